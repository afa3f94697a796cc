package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// Real-time channel
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 8 * 1024
	SendBufferSize = 256

	// Message log paging
	DefaultPageSize = 50
	MaxPageSize     = 200

	// Reconcile retries
	ReconcileQueue     = "roster"
	ReconcileUniqueTTL = time.Minute

	DefaultLocale = "en"
)

// Config holds everything the binaries read from the environment.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	// WSBindSender makes the handshake token mandatory and overrides the
	// client-supplied sender_id with the token's user.
	WSBindSender bool          `envconfig:"WS_BIND_SENDER" default:"false"`
	WSWriteWait  time.Duration `envconfig:"WS_WRITE_WAIT" default:"10s"`
	WSSendBuffer int           `envconfig:"WS_SEND_BUFFER" default:"256"`

	DefaultCoordinatorID string `envconfig:"DEFAULT_COORDINATOR_ID"`
	Locale               string `envconfig:"LOCALE" default:"en"`

	ReconcileMaxRetry    int `envconfig:"RECONCILE_MAX_RETRY" default:"5"`
	ReconcileConcurrency int `envconfig:"RECONCILE_CONCURRENCY" default:"4"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.WSSendBuffer <= 0 {
		cfg.WSSendBuffer = SendBufferSize
	}
	if cfg.WSWriteWait <= 0 {
		cfg.WSWriteWait = WriteWait
	}
	return &cfg, nil
}

// RedisEnabled reports whether presence tracking and the retry queue can run.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// SlogLevel converts LOG_LEVEL into a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
