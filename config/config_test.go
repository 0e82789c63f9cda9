package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/market")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr default: got %q", cfg.RedisAddr)
	}
	if cfg.NatsURL != "nats://localhost:4222" {
		t.Errorf("NatsURL default: got %q", cfg.NatsURL)
	}
	if cfg.ShippingFee != 50 {
		t.Errorf("ShippingFee default: got %v", cfg.ShippingFee)
	}
	if cfg.Currency != "zar" {
		t.Errorf("Currency default: got %q", cfg.Currency)
	}
	if string(cfg.StripeCurrency()) != "zar" {
		t.Errorf("StripeCurrency: got %q", cfg.StripeCurrency())
	}
}

func TestLoadRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "placeholder") // register the restore
	os.Unsetenv("POSTGRES_DSN")
	os.Unsetenv("MARKET_POSTGRES_DSN")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without POSTGRES_DSN")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://db:5432/market")
	t.Setenv("SHIPPING_FEE", "75.5")
	t.Setenv("CURRENCY", "usd")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShippingFee != 75.5 {
		t.Errorf("ShippingFee override: got %v", cfg.ShippingFee)
	}
	if cfg.Currency != "usd" {
		t.Errorf("Currency override: got %q", cfg.Currency)
	}
}
