package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/cartwright-labs/purchaseflow/pkg/config"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Ops HTTP server (health, metrics).
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`

	// Postgres (checkout session store).
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"purchaseflow"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"purchaseflow_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"purchaseflow"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Redis (idempotent consumer store).
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka.
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	CartSyncGroup string   `env:"CHECKOUT_CART_SYNC_GROUP" envDefault:"checkout-cart-sync"`

	// Checkout session expiry in minutes.
	SessionTTLMinutes int `env:"CHECKOUT_SESSION_TTL_MINUTES" envDefault:"30"`

	// How often the expiry sweep runs and how many sessions it expires per run.
	ExpirySweepSeconds int `env:"CHECKOUT_EXPIRY_SWEEP_SECONDS" envDefault:"60"`
	ExpirySweepLimit   int `env:"CHECKOUT_EXPIRY_SWEEP_LIMIT" envDefault:"100"`

	// Catalog service (price/availability resolver).
	CatalogBaseURL string `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8001"`
	Currency       string `env:"CHECKOUT_CURRENCY" envDefault:"EUR"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.SessionTTLMinutes < 1 {
		return fmt.Errorf("invalid session TTL: %d minutes", c.SessionTTLMinutes)
	}
	if c.ExpirySweepLimit < 1 {
		return fmt.Errorf("invalid expiry sweep limit: %d", c.ExpirySweepLimit)
	}
	return nil
}

// SessionTTL returns the checkout session time-to-live as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// ExpirySweepInterval returns how often the expiry sweep runs.
func (c *Config) ExpirySweepInterval() time.Duration {
	return time.Duration(c.ExpirySweepSeconds) * time.Second
}

// Postgres returns the connection pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	cfg := database.DefaultPostgresConfig()
	cfg.Host = c.PostgresHost
	cfg.Port = c.PostgresPort
	cfg.User = c.PostgresUser
	cfg.Password = c.PostgresPassword
	cfg.DBName = c.PostgresDB
	cfg.SSLMode = c.PostgresSSLMode
	return cfg
}
