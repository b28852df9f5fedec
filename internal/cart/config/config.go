package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/cartwright-labs/purchaseflow/pkg/config"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Ops HTTP server (health, metrics).
	HTTPPort int `env:"CART_HTTP_PORT" envDefault:"8003"`

	// Redis (active cart store).
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Cart TTL in hours (default: 7 days).
	CartTTLHours int `env:"CART_TTL_HOURS" envDefault:"168"`

	// Postgres (cart query projection).
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"purchaseflow"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"purchaseflow_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"purchaseflow"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Kafka.
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ProjectorGroup string   `env:"CART_PROJECTOR_GROUP" envDefault:"cart-projector"`

	// Catalog service (price/availability resolver).
	CatalogBaseURL string `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8001"`
	Currency       string `env:"CART_CURRENCY" envDefault:"EUR"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
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
	if c.CartTTLHours < 1 {
		return fmt.Errorf("invalid cart TTL: %d hours", c.CartTTLHours)
	}
	return nil
}

// CartTTL returns the cart time-to-live as a duration.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
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
