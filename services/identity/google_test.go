package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/identity"
)

func TestGoogleVerifier_rejectsGarbage(t *testing.T) {
	v := identity.NewGoogleVerifier([]string{"client-id.apps.googleusercontent.com"})
	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		_, err := v.Verify(context.Background(), token)
		assert.True(t, core.IsKind(err, core.KindPermission), "token %q", token)
	}

	noAudience := identity.NewGoogleVerifier(nil)
	_, err := noAudience.Verify(context.Background(), "a.b.c")
	assert.Equal(t, identity.ErrInvalidToken, err)
}

func TestStaticVerifier(t *testing.T) {
	v := identity.NewStaticVerifier()
	p := user.Principal{Subject: "uid-1", Email: "an@school.test", Verified: true}
	v.Add("tok", p)

	got, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = v.Verify(context.Background(), "other")
	assert.Equal(t, identity.ErrInvalidToken, err)
}
