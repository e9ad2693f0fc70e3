package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/admin"
	"github.com/trezcool/elimu/core/ai"
	"github.com/trezcool/elimu/core/assignment"
	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/course"
	"github.com/trezcool/elimu/core/user"
	kvstore "github.com/trezcool/elimu/storage/kv"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		Issuer   *auth.Issuer
		Sessions *kvstore.Sessions
		Attempts *kvstore.Attempts

		UserSvc        *user.Service
		CourseSvc      *course.Service
		CertificateSvc *certificate.Service
		AssignmentSvc  *assignment.Service
		AdminSvc       *admin.Service
		AISvc          *ai.Service
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := s.app.Group("")
	authn := guard(s.deps.Issuer)

	registerAuthAPI(g, authn, s.deps)
	registerUserAPI(g, guard(s.deps.Issuer, auth.RoleAdmin), s.deps.UserSvc)
	registerCourseAPI(g, authn, s.deps.CourseSvc)
	registerCertificateAPI(g, authn, s.deps.CertificateSvc)
	registerAssignmentAPI(g, authn, s.deps.AssignmentSvc)
	registerAdminAPI(g, guard(s.deps.Issuer, auth.RoleAdmin), s.deps.AdminSvc)
	registerAIAPI(g, authn, guard(s.deps.Issuer, auth.RoleAdmin), s.deps.AISvc)
}

// Start blocks until the server stops; failures other than a graceful shutdown are sent to Errors.
func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errs
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
