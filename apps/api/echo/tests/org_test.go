package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/user"
)

func Test_orgApi_departments(t *testing.T) {
	f := setup(t)

	vp := f.createUser(t, "vp", "Vy", user.RoleVicePrincipal)
	head := f.createUser(t, "head", "Hoa", user.RoleDepartmentHead)
	teacher := f.createUser(t, "teacher", "Tùng", user.RoleTeacher)
	vpToken := f.token(t, vp)

	runHTTPTests(t, f, []httpTest{
		{
			name: "teachers cannot create", method: http.MethodPost, path: "/v1/departments", token: f.token(t, teacher),
			body: []byte(`{"name": "Toán"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown member", method: http.MethodPost, path: "/v1/departments", token: vpToken,
			body: []byte(`{"name": "Toán", "teacher_ids": ["nobody"]}`), wantCode: http.StatusBadRequest,
		},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/departments", vpToken,
		marchallObj(t, org.NewDepartment{Name: "Toán", TeacherIDs: []string{head.ID, teacher.ID}}))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var dep org.Department
	unmarshal(t, rec, &dep)
	depPath := "/v1/departments/" + dep.ID

	runHTTPTests(t, f, []httpTest{
		{
			name: "head must be a department head", method: http.MethodPut, path: depPath, token: vpToken,
			body: marchallObj(t, map[string]string{"head_teacher_id": teacher.ID}), wantCode: http.StatusBadRequest,
		},
		{
			name: "set head", method: http.MethodPut, path: depPath, token: vpToken,
			body: marchallObj(t, map[string]string{"head_teacher_id": head.ID}), wantCode: http.StatusOK,
		},
		{name: "anyone reads", path: depPath, token: f.token(t, teacher), wantCode: http.StatusOK},
		{name: "unknown", path: "/v1/departments/nope", token: vpToken, wantCode: http.StatusNotFound},
	})

	req, rec = newAuthRequest(http.MethodGet, depPath, vpToken)
	f.do(req, rec)
	unmarshal(t, rec, &dep)
	assert.Equal(t, head.ID, dep.HeadTeacherID)

	runHTTPTests(t, f, []httpTest{
		{name: "delete", method: http.MethodDelete, path: depPath, token: vpToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: depPath, token: vpToken, wantCode: http.StatusNotFound},
	})
}

func Test_orgApi_schoolYears(t *testing.T) {
	f := setup(t)

	admin := f.createUser(t, "admin", "Admin", user.RoleAdmin)
	vp := f.createUser(t, "vp", "Vy", user.RoleVicePrincipal)
	adminToken := f.token(t, admin)

	runHTTPTests(t, f, []httpTest{
		{name: "no active year", path: "/v1/school-years/active", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "admin only", method: http.MethodPost, path: "/v1/school-years", token: f.token(t, vp),
			body: []byte(`{"name": "2024-2025", "start_date": "2024-09-01T00:00:00Z", "end_date": "2025-05-31T00:00:00Z"}`),
			wantCode: http.StatusForbidden,
		},
		{
			name: "end before start", method: http.MethodPost, path: "/v1/school-years", token: adminToken,
			body: []byte(`{"name": "2024-2025", "start_date": "2024-09-01T00:00:00Z", "end_date": "2024-05-31T00:00:00Z"}`),
			wantCode: http.StatusBadRequest,
		},
	})

	create := func(name, start, end string, active bool) org.SchoolYear {
		body := marchallObj(t, map[string]interface{}{"name": name, "start_date": start, "end_date": end, "is_active": active})
		req, rec := newAuthRequest(http.MethodPost, "/v1/school-years", adminToken, body)
		f.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var sy org.SchoolYear
		unmarshal(t, rec, &sy)
		return sy
	}
	old := create("2023-2024", "2023-09-01T00:00:00Z", "2024-05-31T00:00:00Z", true)
	cur := create("2024-2025", "2024-09-01T00:00:00Z", "2025-05-31T00:00:00Z", false)
	assert.True(t, old.IsActive)
	assert.False(t, cur.IsActive)

	req, rec := newAuthRequest(http.MethodPost, "/v1/school-years/"+cur.ID+"/activate", adminToken)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/v1/school-years/active", f.token(t, vp))
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var active org.SchoolYear
	unmarshal(t, rec, &active)
	assert.Equal(t, cur.ID, active.ID)

	req, rec = newAuthRequest(http.MethodGet, "/v1/school-years", adminToken)
	f.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var years []org.SchoolYear
	unmarshal(t, rec, &years)
	require.Len(t, years, 2)
	assert.Equal(t, cur.ID, years[0].ID, "most recent first")
	assert.False(t, years[1].IsActive)
}
