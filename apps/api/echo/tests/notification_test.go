package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/user"
)

func Test_notificationApi(t *testing.T) {
	f := setup(t)

	vp := f.createUser(t, "vp", "Vy", user.RoleVicePrincipal)
	an := f.createUser(t, "an", "An", user.RoleTeacher)
	binh := f.createUser(t, "binh", "Bình", user.RoleTeacher)
	anToken := f.token(t, an)

	// two tasks for An
	for i := 0; i < 2; i++ {
		req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", f.token(t, vp), newTaskBody(t, time.Now().Add(time.Hour).UTC(), an.ID))
		f.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	messages := f.mailer.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "an@school.test", messages[0].To[0].Address)

	list := func(query string) []notification.Notification {
		req, rec := newAuthRequest(http.MethodGet, "/v1/notifications"+query, anToken)
		f.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ns []notification.Notification
		unmarshal(t, rec, &ns)
		return ns
	}
	ns := list("")
	require.Len(t, ns, 2)
	assert.Equal(t, notification.TypeTaskAssigned, ns[0].Type)
	assert.False(t, ns[0].Read)
	assert.Len(t, list("?limit=1"), 1)

	runHTTPTests(t, f, []httpTest{
		{name: "unread count", path: "/v1/notifications/unread-count", token: anToken, wantCode: http.StatusOK, wantData: []byte(`{"count": 2}`)},
		{name: "bad limit", path: "/v1/notifications?limit=ten", token: anToken, wantCode: http.StatusBadRequest},
		{name: "others' inbox", method: http.MethodPost, path: "/v1/notifications/" + ns[0].ID + "/read", token: f.token(t, binh), wantCode: http.StatusNotFound},
		{name: "mark read", method: http.MethodPost, path: "/v1/notifications/" + ns[0].ID + "/read", token: anToken, wantCode: http.StatusNoContent},
		{name: "one left", path: "/v1/notifications/unread-count", token: anToken, wantCode: http.StatusOK, wantData: []byte(`{"count": 1}`)},
	})

	unread := list("?unread=true")
	require.Len(t, unread, 1)
	assert.Equal(t, ns[1].ID, unread[0].ID)

	runHTTPTests(t, f, []httpTest{
		{name: "read all", method: http.MethodPost, path: "/v1/notifications/read-all", token: anToken, wantCode: http.StatusOK, wantData: []byte(`{"updated": 1}`)},
		{name: "none left", path: "/v1/notifications/unread-count", token: anToken, wantCode: http.StatusOK, wantData: []byte(`{"count": 0}`)},
		{name: "empty inbox", path: "/v1/notifications", token: f.token(t, binh), wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})
}
