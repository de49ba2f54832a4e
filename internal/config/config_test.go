package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with empty path failed: %v", err)
	}
	if cfg.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", cfg.Symbol)
	}
	if !cfg.Balance.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("balance = %s, want 10000", cfg.Balance)
	}
	if !cfg.FeeRate.Equal(decimal.NewFromFloat(0.0004)) {
		t.Errorf("feeRate = %s, want 0.0004", cfg.FeeRate)
	}
	if cfg.Server.Port != "8080" || cfg.Feed.Mode != "binance" {
		t.Errorf("server/feed defaults = %q/%q", cfg.Server.Port, cfg.Feed.Mode)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
symbol: ETHUSDT
balance: 5000
feeRate: 0.0002
maintenanceMarginRate: 0.01
server:
  port: "9090"
feed:
  mode: sim
  intervalMs: 100
  startPrice: 2000
  drift: 0.002
snapshot:
  intervalSeconds: 30
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Symbol != "ETHUSDT" {
		t.Errorf("symbol = %q, want ETHUSDT", cfg.Symbol)
	}
	if !cfg.Balance.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance = %s, want 5000", cfg.Balance)
	}
	// Decimal values must parse exactly, not through float64.
	if !cfg.FeeRate.Equal(decimal.RequireFromString("0.0002")) {
		t.Errorf("feeRate = %s, want 0.0002", cfg.FeeRate)
	}
	if cfg.Feed.Mode != "sim" || cfg.Feed.IntervalMs != 100 {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Snapshot.IntervalSeconds != 30 {
		t.Errorf("snapshot interval = %d, want 30", cfg.Snapshot.IntervalSeconds)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
symbol: ETHUSDT
server:
  port: "9090"
`)
	t.Setenv("PORT", "7070")
	t.Setenv("SYMBOL", "SOLUSDT")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q, want env override 7070", cfg.Server.Port)
	}
	if cfg.Symbol != "SOLUSDT" {
		t.Errorf("symbol = %q, want env override SOLUSDT", cfg.Symbol)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad symbol", func(c *Config) { c.Symbol = "nope" }},
		{"negative balance", func(c *Config) { c.Balance = Dec{decimal.NewFromInt(-1)} }},
		{"negative fee", func(c *Config) { c.FeeRate = Dec{decimal.NewFromFloat(-0.01)} }},
		{"unknown feed mode", func(c *Config) { c.Feed.Mode = "replay" }},
		{"sim without interval", func(c *Config) { c.Feed.Mode = "sim"; c.Feed.IntervalMs = 0 }},
		{"sim without start price", func(c *Config) { c.Feed.Mode = "sim"; c.Feed.StartPrice = Dec{decimal.Zero} }},
		{"negative snapshot interval", func(c *Config) { c.Snapshot.IntervalSeconds = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeConfig(t, "symbol: [not, a, scalar")
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}
