// Package config loads service configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from the process environment using `env` struct tags.
// Every service config in internal/<context>/config goes through here:
//
//	type Config struct {
//	    HTTPPort int      `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`
//	    Brokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
