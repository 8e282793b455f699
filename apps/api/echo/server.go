package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/analytics"
	"github.com/trezcool/schooldesk/core/document"
	"github.com/trezcool/schooldesk/core/notification"
	"github.com/trezcool/schooldesk/core/org"
	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
	"github.com/trezcool/schooldesk/services/identity"
)

type (
	// HealthCheck reports whether a dependency is reachable.
	HealthCheck func(ctx context.Context) error

	ServerDeps struct {
		Conf            *core.Config
		Logger          core.Logger
		Validate        *validator.Validate
		Translator      ut.Translator
		Verifier        identity.Verifier
		UserSvc         *user.Service
		OrgSvc          *org.Service
		TaskSvc         *task.Service
		AnalyticsSvc    *analytics.Service
		DocumentSvc     *document.Service
		NotificationSvc *notification.Service
		HealthChecks    map[string]HealthCheck
		DisableReqLogs  bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.AllowedOrigins}))
	s.app.Use(middleware.BodyLimit(bodyLimit(conf.Storage)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", s.health)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	authed := v1.Group("", jwt, userMiddleware(s.deps.UserSvc))

	registerUserAPI(v1, authed, s.deps)
	registerOrgAPI(authed, s.deps)
	registerTaskAPI(authed, s.deps)
	registerAnalyticsAPI(authed, s.deps)
	registerDocumentAPI(authed, s.deps)
	registerNotificationAPI(authed, s.deps)
}

// bodyLimit leaves room for a full batch of files plus the form fields.
func bodyLimit(conf core.StorageConfig) string {
	files := int64(conf.MaxFiles)
	if files <= 0 {
		files = 1
	}
	mb := (conf.MaxFileSize*files)>>20 + 1
	return strconv.FormatInt(mb, 10) + "M"
}

// Start listens on the configured address. Listener failures are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to SchoolDesk API!")
}

// health runs every registered check; any failure makes the response a 503.
func (s *Server) health(ctx echo.Context) error {
	status := make(map[string]string, len(s.deps.HealthChecks))
	code := http.StatusOK
	for name, check := range s.deps.HealthChecks {
		if err := check(ctx.Request().Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	return ctx.JSON(code, echo.Map{"build": s.deps.Conf.Build, "checks": status})
}
