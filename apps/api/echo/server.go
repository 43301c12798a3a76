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

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/exploration"
	"github.com/trezcool/matembezi/core/feed"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/core/notification"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/stats"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/user"
)

// Deps are the services exposed by the API.
type Deps struct {
	Validate        *validator.Validate
	Translator      ut.Translator
	UserSvc         user.ServiceInterface
	PasswordReset   *user.PasswordResetter
	RightsSvc       *rights.Service
	ExplorationSvc  *exploration.Service
	AdventureSvc    *adventure.Service
	CommitSvc       *commitlog.Service
	SummarySvc      *summary.Service
	StatsSvc        *stats.Service
	FeedbackSvc     *feedback.Service
	FeedSvc         *feed.Service
	NotificationSvc *notification.Service
}

type Server struct {
	conf     *core.Config
	logger   core.Logger
	app      *echo.Echo
	auth     *authenticator
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(conf *core.Config, logger core.Logger, deps Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		app:      echo.New(),
		auth:     newAuthenticator(conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps Deps) {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, deps.Translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug
	s.app.Validator = structValidator{validate: deps.Validate}

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt, optionalJWT := s.auth.middlewares()

	registerUserAPI(v1, jwt, s.auth, deps.UserSvc, deps.PasswordReset, deps.Validate)
	registerExplorationAPI(v1, jwt, optionalJWT, deps.ExplorationSvc, deps.RightsSvc, deps.StatsSvc, deps.FeedbackSvc)
	registerAdventureAPI(v1, jwt, optionalJWT, deps.AdventureSvc)
	registerRightsAPI(v1, jwt, optionalJWT, deps.RightsSvc)
	registerLibraryAPI(v1, jwt, optionalJWT, deps.SummarySvc, deps.CommitSvc)
	registerFeedAPI(v1, jwt, deps.FeedSvc, deps.FeedbackSvc)
	registerNotificationAPI(v1, jwt, s.auth, deps.NotificationSvc, deps.Validate)
}

func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
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

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
