// Package httpserver exposes the voting API over HTTP with echo.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/adapter/metrics"
	"github.com/ARRNAV26/Voting-System/internal/app"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/ARRNAV26/Voting-System/internal/platform/config"
	"github.com/labstack/echo/v4"
)

type appService interface {
	Register(ctx context.Context, in app.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)

	ListSuggestions(ctx context.Context, p app.ListParams) ([]domain.SuggestionSnapshot, error)
	TopSuggestions(ctx context.Context, limit int) ([]domain.SuggestionSnapshot, error)
	Categories(ctx context.Context) ([]domain.CategoryCount, error)
	GetSuggestion(ctx context.Context, id int64) (*domain.SuggestionSnapshot, error)
	UserSuggestions(ctx context.Context, authorID int64) ([]domain.SuggestionSnapshot, error)
	CreateSuggestion(ctx context.Context, authorID int64, in app.SuggestionInput) (*domain.SuggestionSnapshot, error)
	UpdateSuggestion(ctx context.Context, actorID, id int64, patch domain.SuggestionPatch) (*domain.SuggestionSnapshot, error)
	TransitionStatus(ctx context.Context, actorID, id int64, target domain.Status) (*domain.SuggestionSnapshot, error)
	DeleteSuggestion(ctx context.Context, actorID, id int64) error

	CastVote(ctx context.Context, userID, suggestionID int64, isUpvote bool) (app.VoteResult, error)
	RemoveVote(ctx context.Context, userID, suggestionID int64) (app.VoteResult, error)
	VoteInfo(ctx context.Context, userID, suggestionID int64) (app.VoteResult, error)
	UserVotes(ctx context.Context, userID int64) ([]domain.Vote, error)
}

// websocketHandler serves the live-update upgrade routes.
type websocketHandler interface {
	HandleConnect(c echo.Context) error
	HandleUserConnect(c echo.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app       appService
	websocket websocketHandler

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler

	healthChecks    []HealthCheck
	connectionCount func() int
	startTime       time.Time
}

// Option customises optional server collaborators.
type Option func(*Server)

// WithMetrics records request metrics and serves handler on /metrics.
func WithMetrics(m *metrics.HTTPMetrics, handler http.Handler) Option {
	return func(s *Server) {
		s.httpMetrics = m
		s.metricsHandler = handler
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, checks...)
	}
}

// WithConnectionCount reports live WebSocket connections on /health/live.
func WithConnectionCount(count func() int) Option {
	return func(s *Server) {
		s.connectionCount = count
	}
}

func NewServer(cfg *config.Config, app appService, ws websocketHandler, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		websocket: ws,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be mounted on any http.Server or httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
