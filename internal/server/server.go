package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/CoreyFoshee/thatsamorepizza/internal/app"
	"github.com/CoreyFoshee/thatsamorepizza/internal/config"
	"github.com/CoreyFoshee/thatsamorepizza/internal/errors"
	"github.com/CoreyFoshee/thatsamorepizza/internal/websocket"
)

const (
	sessionName         = "amore_session"
	sessionKeyVoterID   = "voter_id"
	sessionKeyAdmin     = "admin"
	sessionMaxAgeDays   = 7
	shutdownGracePeriod = 10 * time.Second
)

// Pinger is the minimal health-check surface a backing store exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	app          *app.Service
	hub          *websocket.Hub
	sessionStore *sessions.CookieStore
	limits       *ConnectionLimits
	redisCheck   Pinger
	dbCheck      Pinger
	startTime    time.Time
}

// NewServer wires the HTTP layer. redisCheck and dbCheck may be nil
// when the corresponding backend is not configured; readiness then
// skips that check.
func NewServer(cfg *config.Config, svc *app.Service, hub *websocket.Hub, redisCheck, dbCheck Pinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * sessionMaxAgeDays,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		app:          svc,
		hub:          hub,
		sessionStore: sessionStore,
		limits:       NewConnectionLimits(int64(cfg.MaxDisplayClients), perIPDisplayMax, displayConnRate, displayConnBurst),
		redisCheck:   redisCheck,
		dbCheck:      dbCheck,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
