// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/stripe/stripe-go/v79"
)

type Config struct {
	PostgresDSN string `envconfig:"POSTGRES_DSN" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	NatsURL string `envconfig:"NATS_URL" default:"nats://localhost:4222"`

	// ShippingFee is the flat per-order shipping fee in major units. It is
	// added once at checkout, never per item.
	ShippingFee float64 `envconfig:"SHIPPING_FEE" default:"50"`

	Currency string `envconfig:"CURRENCY" default:"zar"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("market", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StripeCurrency returns the configured currency as the stripe type used on
// orders.
func (c *Config) StripeCurrency() stripe.Currency {
	return stripe.Currency(c.Currency)
}
