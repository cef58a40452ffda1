package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ARRNAV26/Voting-System/internal/adapter/auth"
	"github.com/ARRNAV26/Voting-System/internal/adapter/httpserver"
	"github.com/ARRNAV26/Voting-System/internal/adapter/memory"
	"github.com/ARRNAV26/Voting-System/internal/adapter/metrics"
	"github.com/ARRNAV26/Voting-System/internal/adapter/postgres"
	"github.com/ARRNAV26/Voting-System/internal/adapter/redis"
	"github.com/ARRNAV26/Voting-System/internal/adapter/sqlite"
	"github.com/ARRNAV26/Voting-System/internal/adapter/websocket"
	"github.com/ARRNAV26/Voting-System/internal/app"
	"github.com/ARRNAV26/Voting-System/internal/broadcast"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/ARRNAV26/Voting-System/internal/platform/config"
	"github.com/ARRNAV26/Voting-System/internal/platform/logging"
	"github.com/ARRNAV26/Voting-System/internal/platform/retry"
	"github.com/ARRNAV26/Voting-System/internal/platform/version"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const startupTimeout = 30 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// connectPostgres retries the initial connection; the database container
// often comes up after the app in compose setups.
func connectPostgres(ctx context.Context, cfg *config.Config, m *metrics.StorageMetrics) (*postgres.Store, error) {
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database not ready, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	pool, err := retry.Do(ctx, policy, retry.Transient, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, m)
	})
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return postgres.NewStore(pool), nil
}

func setupStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock, m *metrics.StorageMetrics) (domain.Store, error) {
	slog.Info("Opening storage", "driver", cfg.StorageDriver)

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		return connectPostgres(ctx, cfg, m)
	case config.StorageSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, clock, m)
	case config.StorageMemory:
		slog.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(clock), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// setupRedis returns nil when REDIS_URL is unset; vote rate limiting is then off.
func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) (*goredis.Client, error) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, vote rate limiting disabled")
		return nil, nil
	}
	return redis.NewClient(ctx, cfg.RedisURL, m)
}

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Shutdown does not track hijacked WebSocket connections; the hub
		// closes them with a going-away frame.
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	registry := metrics.NewRegistry()
	m := metrics.NewSet(registry)

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := setupStore(startCtx, cfg, clock, m.Storage)
	if err != nil {
		slog.Error("Failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}()

	healthChecks := []httpserver.HealthCheck{{Name: "storage", Check: store.Ping}}

	redisClient, err := setupRedis(startCtx, cfg, m.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	deps := app.Deps{
		Users:       store,
		Suggestions: store,
		Votes:       store,
		Hasher:      auth.NewBcryptHasher(),
		Tokens:      auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL(), clock),
		Metrics:     m.Votes,
		Clock:       clock,
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		deps.RateLimiter = redis.NewVoteRateLimiter(redisClient, clock, cfg.VoteRateLimit, cfg.VoteRateWindow)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	hub := broadcast.NewHub(
		broadcast.NewRegistry(cfg.MaxWebSocketConnections),
		clock,
		broadcast.WithMetrics(m.WebSocket),
		broadcast.WithSendBuffer(cfg.WebSocketSendBuffer),
	)
	deps.Publisher = hub

	appSvc := app.NewService(deps)

	wsHandler := websocket.NewHandler(hub, appSvc,
		websocket.NewCheckOrigin(cfg.AppURL, cfg.AllowedOrigins(), cfg.IsDevelopment()))

	srv := httpserver.NewServer(cfg, appSvc, wsHandler,
		httpserver.WithMetrics(m.HTTP, metrics.Handler(registry)),
		httpserver.WithHealthChecks(healthChecks...),
		httpserver.WithConnectionCount(hub.Registry().Len),
	)

	done := runGracefulShutdown(cfg, srv, hub)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
