package config

import (
	"fmt"

	pkgconfig "github.com/cartwright-labs/purchaseflow/pkg/config"
	"github.com/cartwright-labs/purchaseflow/pkg/database"
)

// Config holds all configuration for the inventory service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Ops HTTP server (health, metrics).
	HTTPPort int `env:"INVENTORY_HTTP_PORT" envDefault:"8005"`

	// Postgres (stock level store).
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
	KafkaBrokers        []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	StockReductionGroup string   `env:"INVENTORY_STOCK_GROUP" envDefault:"inventory-stock-reduction"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load inventory config: %w", err)
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
	return nil
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
