package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const maxBodySize = "1M"

func (s *Server) registerRoutes() {
	s.echo.HTTPErrorHandler = s.handleHTTPError

	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.config.AllowedOrigins(),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
	}))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            63072000, // 2 years; only sent over HTTPS
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	s.echo.Use(middleware.BodyLimit(maxBodySize))

	s.echo.GET("/", s.handleRoot)

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerSuggestionRoutes()
	s.registerVoteRoutes()

	if s.websocket != nil {
		s.echo.GET("/api/ws", s.websocket.HandleConnect)
		s.echo.GET("/api/ws/:user_id", s.websocket.HandleUserConnect)
	}
}

func (s *Server) registerAuthRoutes() {
	g := s.echo.Group("/api/auth")
	limiter := newRateLimiter(authRatePerSecond, authBurst)

	g.POST("/register", s.handleRegister, limiter)
	g.POST("/login", s.handleLogin, limiter)
	g.GET("/me", s.handleMe, s.requireAuth)
}

func (s *Server) registerSuggestionRoutes() {
	g := s.echo.Group("/api/suggestions")

	g.GET("", s.handleListSuggestions)
	g.GET("/top", s.handleTopSuggestions)
	g.GET("/categories", s.handleCategories)
	g.GET("/:id", s.handleGetSuggestion)
	g.POST("", s.handleCreateSuggestion, s.requireAuth)
	g.PUT("/:id", s.handleUpdateSuggestion, s.requireAuth)
	g.PATCH("/:id/status", s.handleUpdateStatus, s.requireAuth)
	g.DELETE("/:id", s.handleDeleteSuggestion, s.requireAuth)

	s.echo.GET("/api/users/:id/suggestions", s.handleUserSuggestions)
}

func (s *Server) registerVoteRoutes() {
	g := s.echo.Group("/api/votes", s.requireAuth)

	g.POST("", s.handleCastVote)
	g.GET("/:suggestion_id", s.handleVoteInfo)
	g.DELETE("/:suggestion_id", s.handleRemoveVote)

	s.echo.GET("/api/users/me/votes", s.handleMyVotes, s.requireAuth)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
