package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/schooldesk/apps/api/echo"
	"github.com/trezcool/schooldesk/core/user"
)

func Test_userApi_signIn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.usrRepo.SaveWhitelistEntry(ctx, user.WhitelistEntry{
		Email: "an@school.test", Role: user.RoleDepartmentHead, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	f.verifier.Add("token-an", user.Principal{Subject: "g-an", Email: "An@School.test", Name: "An", Verified: true})
	f.verifier.Add("token-binh", user.Principal{Subject: "g-binh", Email: "binh@school.test", Name: "Binh", Verified: true})
	f.verifier.Add("token-unverified", user.Principal{Subject: "g-an", Email: "an@school.test", Name: "An"})

	signIn := func(token string) []byte {
		return marchallObj(t, SignInRequest{IDToken: token})
	}

	runHTTPTests(t, f, []httpTest{
		{
			name: "id_token required", method: http.MethodPost, path: "/v1/auth/google", body: signIn(""),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"id_token": "this field is required"}`),
		},
		{name: "invalid token", method: http.MethodPost, path: "/v1/auth/google", body: signIn("nope"), wantCode: http.StatusForbidden},
		{name: "not whitelisted", method: http.MethodPost, path: "/v1/auth/google", body: signIn("token-binh"), wantCode: http.StatusForbidden},
		{name: "unverified email", method: http.MethodPost, path: "/v1/auth/google", body: signIn("token-unverified"), wantCode: http.StatusForbidden},
	})

	req, rec := newRequest(http.MethodPost, "/v1/auth/google", signIn("token-an"))
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SignInResponse
	unmarshal(t, rec, &resp)
	require.NotNil(t, resp.User)
	assert.Equal(t, "g-an", resp.User.ID)
	assert.Equal(t, "an@school.test", resp.User.Email)
	assert.Equal(t, user.RoleDepartmentHead, resp.User.Role, "role comes from the whitelist")
	require.NotEmpty(t, resp.Token)

	// the token authenticates further requests
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
	f.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)

	// and can be refreshed
	req, rec = newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", resp.Token)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed SignInResponse
	unmarshal(t, rec, &refreshed)
	assert.NotEmpty(t, refreshed.Token)
	assert.Nil(t, refreshed.User)
}

func Test_userApi_query(t *testing.T) {
	f := setup(t)

	admin := f.createUser(t, "admin", "Admin", user.RoleAdmin)
	head := f.createUser(t, "head", "Head", user.RoleDepartmentHead)
	teacher := f.createUser(t, "teacher", "Teacher", user.RoleTeacher)
	_ = f.createUser(t, "naughty", "Naughty", user.RoleTeacher, false)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantLen  int
	}{
		{name: "teacher forbidden", path: "/v1/users", token: f.token(t, teacher), wantCode: http.StatusForbidden},
		{name: "all", path: "/v1/users", token: f.token(t, admin), wantCode: http.StatusOK, wantLen: 4},
		{name: "department head", path: "/v1/users", token: f.token(t, head), wantCode: http.StatusOK, wantLen: 4},
		{name: "role", path: "/v1/users?role=teacher", token: f.token(t, admin), wantCode: http.StatusOK, wantLen: 2},
		{name: "is_active", path: "/v1/users?is_active=false", token: f.token(t, admin), wantCode: http.StatusOK, wantLen: 1},
		{name: "search", path: "/v1/users?search=HEA", token: f.token(t, admin), wantCode: http.StatusOK, wantLen: 1},
		{name: "bad is_active", path: "/v1/users?is_active=maybe", token: f.token(t, admin), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			f.do(req, rec)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				var users []user.User
				unmarshal(t, rec, &users)
				assert.Len(t, users, tt.wantLen)
			}
		})
	}
}

func Test_userApi_update(t *testing.T) {
	f := setup(t)

	admin := f.createUser(t, "admin", "Admin", user.RoleAdmin)
	vp := f.createUser(t, "vp", "Vy", user.RoleVicePrincipal)
	teacher := f.createUser(t, "teacher", "Teacher", user.RoleTeacher)
	other := f.createUser(t, "other", "Other", user.RoleTeacher)

	adminToken := f.token(t, admin)
	teacherToken := f.token(t, teacher)

	runHTTPTests(t, f, []httpTest{
		{
			name: "update me", method: http.MethodPut, path: "/v1/users/me", token: teacherToken,
			body: []byte(`{"display_name": "  Thầy Tùng "}`), wantCode: http.StatusOK,
		},
		{
			name: "role on me", method: http.MethodPut, path: "/v1/users/me", token: teacherToken,
			body: []byte(`{"role": "admin"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "blank name", method: http.MethodPut, path: "/v1/users/me", token: teacherToken,
			body: []byte(`{"display_name": "   "}`), wantCode: http.StatusBadRequest,
		},
		{name: "teacher reads other", path: "/v1/users/" + other.ID, token: teacherToken, wantCode: http.StatusNotFound},
		{name: "teacher reads self", path: "/v1/users/" + teacher.ID, token: teacherToken, wantCode: http.StatusOK},
		{name: "vp reads other", path: "/v1/users/" + other.ID, token: f.token(t, vp), wantCode: http.StatusOK},
		{
			name: "vp cannot update", method: http.MethodPut, path: "/v1/users/" + other.ID, token: f.token(t, vp),
			body: []byte(`{"role": "department_head"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "admin demotes self", method: http.MethodPut, path: "/v1/users/" + admin.ID, token: adminToken,
			body: []byte(`{"role": "teacher"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown role", method: http.MethodPut, path: "/v1/users/" + other.ID, token: adminToken,
			body: []byte(`{"role": "janitor"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "admin promotes", method: http.MethodPut, path: "/v1/users/" + other.ID, token: adminToken,
			body: []byte(`{"role": "department_head"}`), wantCode: http.StatusOK,
		},
		{
			name: "push token", method: http.MethodPut, path: "/v1/users/me/push-token", token: teacherToken,
			body: []byte(`{"token": "ExponentPushToken[abc]"}`), wantCode: http.StatusNoContent,
		},
	})

	got, err := f.usrRepo.GetUserByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleDepartmentHead, got.Role)

	got, err = f.usrRepo.GetUserByID(context.Background(), teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thầy Tùng", got.DisplayName)
	assert.Equal(t, "ExponentPushToken[abc]", got.PushToken)
}

func Test_userApi_whitelist(t *testing.T) {
	f := setup(t)

	admin := f.createUser(t, "admin", "Admin", user.RoleAdmin)
	teacher := f.createUser(t, "teacher", "Teacher", user.RoleTeacher)
	adminToken := f.token(t, admin)

	runHTTPTests(t, f, []httpTest{
		{name: "admin only", path: "/v1/whitelist", token: f.token(t, teacher), wantCode: http.StatusForbidden},
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/whitelist", token: adminToken,
			body: []byte(`{"email": "not-an-email"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "add", method: http.MethodPost, path: "/v1/whitelist", token: adminToken,
			body: []byte(`{"email": " New@School.test "}`), wantCode: http.StatusCreated,
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/whitelist", adminToken)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []user.WhitelistEntry
	unmarshal(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "new@school.test", entries[0].Email)
	assert.Equal(t, user.RoleTeacher, entries[0].Role, "default role")
	assert.Equal(t, admin.ID, entries[0].AddedBy)

	runHTTPTests(t, f, []httpTest{
		{name: "remove", method: http.MethodDelete, path: "/v1/whitelist/new@school.test", token: adminToken, wantCode: http.StatusNoContent},
		{name: "remove again", method: http.MethodDelete, path: "/v1/whitelist/new@school.test", token: adminToken, wantCode: http.StatusNotFound},
	})
}
