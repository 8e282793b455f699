package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/schooldesk/apps/api/echo"
	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/analytics"
	"github.com/trezcool/schooldesk/core/document"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/filestore"
	"github.com/trezcool/schooldesk/services/identity"
	"github.com/trezcool/schooldesk/storage/database/inmem"
	"github.com/trezcool/schooldesk/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	conf     *core.Config
	app      *Server
	usrRepo  user.Repository
	verifier *identity.StaticVerifier
	files    *filestore.Memory
	mailer   *testutil.Mailer
	logger   *testutil.Logger
}

func setup(t *testing.T) *fixture {
	conf := core.NewTestConfig()
	f := &fixture{
		conf:     conf,
		verifier: identity.NewStaticVerifier(),
		files:    filestore.NewMemory("https://files.test"),
		mailer:   new(testutil.Mailer),
		logger:   new(testutil.Logger),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	f.usrRepo = inmemdb.NewUserRepository(db)
	taskRepo := inmemdb.NewTaskRepository(db)

	// set up services
	policy := core.NewUploadPolicy(conf.Storage)
	usrSvc := user.NewService(f.usrRepo)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), usrSvc, f.mailer, f.logger)
	taskSvc := task.NewService(taskRepo, usrSvc, f.files, policy, notifSvc, f.logger)
	docSvc := document.NewService(inmemdb.NewDocumentRepository(db), usrSvc, notifSvc, f.logger, document.Options{
		Files:         f.files,
		Policy:        policy,
		Thumbnail:     filestore.Thumbnail,
		ThumbnailSize: conf.Storage.ThumbnailSize,
	})

	// set up server
	f.app = NewServer(ServerDeps{
		Conf:            conf,
		Logger:          f.logger,
		Validate:        validate,
		Translator:      translator,
		Verifier:        f.verifier,
		UserSvc:         usrSvc,
		OrgSvc:          org.NewService(inmemdb.NewOrgRepository(db), usrSvc),
		TaskSvc:         taskSvc,
		AnalyticsSvc:    analytics.NewService(analytics.NewRepositoryLoader(taskRepo, f.usrRepo), taskSvc),
		DocumentSvc:     docSvc,
		NotificationSvc: notifSvc,
		HealthChecks:    map[string]HealthCheck{"files": f.files.Health},
		DisableReqLogs:  true,
	})
	t.Cleanup(func() { _ = f.app.Close() })
	return f
}

func (f *fixture) createUser(t *testing.T, id, name, role string, isActive ...bool) user.User {
	active := true
	if len(isActive) > 0 {
		active = isActive[0]
	}
	return testutil.CreateUser(t, f.usrRepo, id, name, id+"@school.test", role, active)
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	token, err := GenerateToken(f.conf, NewClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}
	return token
}

// do serves the request and returns the recorded response.
func (f *fixture) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// formFile is a file part of a multipart request.
type formFile struct {
	field, name string
	content     []byte
}

func newMultipartRequest(
	t *testing.T,
	method, path, token string,
	fields map[string]string,
	files ...formFile,
) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() failed: %v", err)
		}
	}
	for _, ff := range files {
		part, err := w.CreateFormFile(ff.field, ff.name)
		if err != nil {
			t.Fatalf("CreateFormFile() failed: %v", err)
		}
		if _, err = part.Write(ff.content); err != nil {
			t.Fatalf("part.Write() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart.Close() failed: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))
		})
	}
}
