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

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/chat"
	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/subject"
	"github.com/aulaprof/aula/core/user"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		Sessions       *user.Sessions
		SubjectSvc     *subject.Service
		DocumentSvc    *document.Service
		ChatHub        *chat.Hub
		Validate       *validator.Validate
		Translator     ut.Translator
		MediaRoot      string // served under /media when set (filesystem storage)
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		tokens   *TokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = core.DiscardLogger{}
	}
	if deps.Sessions == nil {
		deps.Sessions = user.NewSessions(deps.Conf.Server.SessionCacheSize, deps.Conf.Server.JWTExpirationDelta)
	}

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		tokens:   NewTokenIssuer(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
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
	s.app.Use(metricsMiddleware())
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if s.deps.MediaRoot != "" {
		s.app.Static("/media", s.deps.MediaRoot)
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.tokens.jwtConfig())
	guard := sessionGuard(s.deps.UserSvc, s.deps.Sessions)

	registerSessionAPI(v1, jwt, guard, s.deps.UserSvc, s.deps.Sessions, s.deps.ChatHub, s.tokens, s.deps.Validate)
	registerSubjectAPI(v1, jwt, guard, s.deps.SubjectSvc, s.deps.Validate)
	registerDocumentAPI(v1, jwt, guard, s.deps.DocumentSvc, conf.Server.MaxUploadSize)
	registerChatAPI(v1, jwt, guard, s.deps.ChatHub)
}

// Start starts the server. Errors are reported on Errors(); a clean shutdown is not an error.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// Tokens returns the issuer signing this server's session tokens.
func (s *Server) Tokens() *TokenIssuer { return s.tokens }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
