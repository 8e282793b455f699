// Package identity verifies ID tokens issued by the identity provider.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

// ErrInvalidToken is returned for tokens that are malformed, expired, or issued for another audience.
var ErrInvalidToken = core.E(core.KindPermission, "", errors.New("invalid identity token"))

// Verifier turns an ID token into the principal it asserts.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (user.Principal, error)
}

type googleVerifier struct {
	audience []string
	v        googleAuthIDTokenVerifier.Verifier
}

var _ Verifier = (*googleVerifier)(nil)

// NewGoogleVerifier checks Google-signed ID tokens issued to one of `clientIDs`.
func NewGoogleVerifier(clientIDs []string) Verifier {
	return &googleVerifier{audience: clientIDs}
}

func (g *googleVerifier) Verify(_ context.Context, idToken string) (user.Principal, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" || len(g.audience) == 0 {
		return user.Principal{}, ErrInvalidToken
	}
	if err := g.v.VerifyIDToken(idToken, g.audience); err != nil {
		return user.Principal{}, core.E(core.KindPermission, "identity.Verify", err)
	}
	claims, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return user.Principal{}, core.E(core.KindPermission, "identity.Verify", err)
	}
	return user.Principal{
		Subject:  claims.Sub,
		Email:    claims.Email,
		Name:     claims.Name,
		Picture:  claims.Picture,
		Verified: claims.EmailVerified,
	}, nil
}

// StaticVerifier maps fixed tokens to principals. Used in tests and local development.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]user.Principal
}

var _ Verifier = (*StaticVerifier)(nil)

func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{tokens: make(map[string]user.Principal)}
}

func (s *StaticVerifier) Add(token string, p user.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = p
}

func (s *StaticVerifier) Verify(_ context.Context, idToken string) (user.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.tokens[idToken]
	if !ok {
		return user.Principal{}, ErrInvalidToken
	}
	return p, nil
}
