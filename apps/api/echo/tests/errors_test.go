package tests

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

type kindErr struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func Test_errorHandler_uploadKinds(t *testing.T) {
	f := setup(t)

	vp := f.createUser(t, "vp", "Vy", user.RoleVicePrincipal)
	an := f.createUser(t, "an", "An", user.RoleTeacher)
	vpToken, anToken := f.token(t, vp), f.token(t, an)

	req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", vpToken, newTaskBody(t, time.Now().Add(24*time.Hour).UTC(), an.ID))
	f.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tsk task.Task
	unmarshal(t, rec, &tsk)

	submit := func() *kindErr {
		req, rec := newMultipartRequest(t, http.MethodPost, "/v1/tasks/"+tsk.ID+"/submissions", anToken,
			map[string]string{"content": "Kế hoạch tuần 1", "intent_id": "3b8f1c9e-7a24-4d6b-9e0f-5c1a2d3e4f60"},
			formFile{field: "files", name: "plan.txt", content: []byte("tiết 1")},
		)
		f.do(req, rec)
		if rec.Code == http.StatusCreated {
			return nil
		}
		var body kindErr
		unmarshal(t, rec, &body)
		assert.NotEmpty(t, body.Error)
		return &body
	}

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind core.Kind
	}{
		{
			name:     "quota",
			err:      core.E(core.KindQuotaExceeded, "filestore.Upload", errors.New("403: cap_exceeded")),
			wantCode: http.StatusInsufficientStorage,
			wantKind: core.KindQuotaExceeded,
		},
		{
			name:     "network",
			err:      core.E(core.KindNetwork, "filestore.Upload", errors.New("dial tcp: connection refused")),
			wantCode: http.StatusServiceUnavailable,
			wantKind: core.KindNetwork,
		},
		{
			name:     "storage permission",
			err:      core.E(core.KindPermission, "filestore.Upload", errors.New("401: bad_auth_token")),
			wantCode: http.StatusForbidden,
			wantKind: core.KindPermission,
		},
		{
			name:     "unclassified",
			err:      errors.New("500: internal_error"),
			wantCode: http.StatusBadGateway,
			wantKind: core.KindUploadFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.files.FailUploadsAfter(0, tt.err)
			req, rec := newMultipartRequest(t, http.MethodPost, "/v1/tasks/"+tsk.ID+"/submissions", anToken,
				map[string]string{"content": "Kế hoạch tuần 1"},
				formFile{field: "files", name: "plan.txt", content: []byte("tiết 1")},
			)
			f.do(req, rec)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var body kindErr
			unmarshal(t, rec, &body)
			assert.Equal(t, tt.wantKind.String(), body.Kind)
			assert.Equal(t, tt.wantKind.Message(), body.Message)
			assert.NotEmpty(t, body.Error)
		})
	}
	assert.Empty(t, f.files.Files(), "nothing stored by failed submissions")

	// uploads recover
	f.files.FailUploadsAfter(-1, nil)
	assert.Nil(t, submit())
	assert.Len(t, f.files.Files(), 1)
}
