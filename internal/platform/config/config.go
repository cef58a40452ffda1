package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8000"`
	AppURL        string `env:"APP_URL" default:"http://localhost:8000"`
	StorageDriver string `env:"STORAGE_DRIVER" default:"sqlite"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" default:"voting_system.db"`
	RedisURL      string `env:"REDIS_URL"`
	SecretKey     string `env:"SECRET_KEY"`
	CORSOrigins   string `env:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	AccessTokenExpireMinutes int `env:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"30"`
	MaxWebSocketConnections  int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	WebSocketSendBuffer      int `env:"WS_SEND_BUFFER" default:"64"`
	VoteRateLimit            int `env:"VOTE_RATE_LIMIT" default:"30"`

	VoteRateWindow  time.Duration `env:"VOTE_RATE_WINDOW" default:"1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// developmentSecret signs tokens when SECRET_KEY is unset outside production.
const developmentSecret = "dev-secret-key-change-in-production"

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = developmentSecret
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// AccessTokenTTL is the lifetime of issued bearer tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ORIGINS into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func validate(cfg *Config) error {
	required := map[string]string{}
	if cfg.StorageDriver == StoragePostgres {
		required["DATABASE_URL"] = cfg.DatabaseURL
	}
	if cfg.IsProduction() {
		required["SECRET_KEY"] = cfg.SecretKey
	}

	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s is required", strings.Join(missing, ", "))
	}

	if !slices.Contains([]string{StoragePostgres, StorageSQLite, StorageMemory}, cfg.StorageDriver) {
		return fmt.Errorf("STORAGE_DRIVER must be one of postgres, sqlite, memory, got %q", cfg.StorageDriver)
	}
	if cfg.IsProduction() && cfg.StorageDriver == StorageMemory {
		return errors.New("STORAGE_DRIVER=memory is not allowed in production")
	}
	if cfg.IsProduction() && cfg.StorageDriver == StoragePostgres {
		if err := validateSSLMode(cfg.DatabaseURL); err != nil {
			return err
		}
	}
	if cfg.AccessTokenExpireMinutes <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if cfg.WebSocketSendBuffer < 1 {
		return errors.New("WS_SEND_BUFFER must be at least 1")
	}
	if cfg.VoteRateLimit < 0 {
		return errors.New("VOTE_RATE_LIMIT must not be negative")
	}

	return nil
}

func validateSSLMode(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
