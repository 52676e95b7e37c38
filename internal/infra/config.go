package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const insecureJWTSecret = "change-me-in-production"

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"pawtap"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"pawtap"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"pawtap"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"20"`

	// Cache. An empty REDIS_URL keeps the cache in process memory.
	RedisURL     string        `env:"REDIS_URL"`
	CachePrefix  string        `env:"CACHE_PREFIX" envDefault:"pawtap:"`
	CacheProbeAt time.Duration `env:"CACHE_PROBE_INTERVAL" envDefault:"30s"`

	// Telegram
	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	InitDataMaxAge   time.Duration `env:"TELEGRAM_INIT_DATA_MAX_AGE" envDefault:"24h"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTPlayerExpiry time.Duration `env:"JWT_PLAYER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry  time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort         int           `env:"API_PORT" envDefault:"3100"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Game
	GameConfigPath     string        `env:"GAME_CONFIG_PATH" envDefault:"config/game.yaml"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"10m"`
	SnapshotInterval   time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
	TapFlushInterval   time.Duration `env:"TAP_FLUSH_INTERVAL" envDefault:"5s"`
	TapRatePerSecond   float64       `env:"TAP_RATE_PER_SECOND" envDefault:"20"`
	TapBurst           int           `env:"TAP_BURST" envDefault:"30"`
	CareCooldown       time.Duration `env:"CARE_COOLDOWN" envDefault:"1m"`
	LoginRateLimit     int           `env:"LOGIN_RATE_LIMIT" envDefault:"20"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" envDefault:"pawtap-outbox-consumer"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.SnapshotInterval <= 0 || c.TapFlushInterval <= 0 || c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL, TAP_FLUSH_INTERVAL and SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == insecureJWTSecret {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
