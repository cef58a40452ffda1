package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second

	checkPassed = "ok"
)

// HealthCheck is a named dependency probe (storage, redis).
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type livenessResponse struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime"`
	Connections *int    `json:"websocket_connections,omitempty"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	// FailedChecks lists failing probes in name order.
	FailedChecks []string `json:"failed_checks,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.probe(c, startupProbeTimeout)
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.probe(c, readinessProbeTimeout)
}

// handleLiveness never consults dependencies; a down database must not get
// the process restarted.
func (s *Server) handleLiveness(c echo.Context) error {
	resp := livenessResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Seconds(),
	}
	if s.connectionCount != nil {
		n := s.connectionCount()
		resp.Connections = &n
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) probe(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	resp := readinessResponse{Status: "ready"}
	if len(s.healthChecks) == 0 {
		return c.JSON(http.StatusOK, resp)
	}

	resp.Checks = runHealthChecks(ctx, s.healthChecks)
	for name, result := range resp.Checks {
		if result != checkPassed {
			resp.FailedChecks = append(resp.FailedChecks, name)
		}
	}
	if len(resp.FailedChecks) == 0 {
		return c.JSON(http.StatusOK, resp)
	}

	sort.Strings(resp.FailedChecks)
	resp.Status = "unhealthy"
	slog.WarnContext(ctx, "Health check failed", "failed_checks", resp.FailedChecks)
	return c.JSON(http.StatusServiceUnavailable, resp)
}

// runHealthChecks runs every probe concurrently and maps its name to "ok" or
// the error text.
func runHealthChecks(ctx context.Context, checks []HealthCheck) map[string]string {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(checks))
	)
	for _, hc := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := checkPassed
			if err := hc.Check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			results[hc.Name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Voting System API",
		"version": version.Get().Version,
	})
}
