// Package config loads simulator configuration from a YAML file with
// environment overrides for deployment-specific settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/papertrade/perp-engine/internal/symbol"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Dec is a decimal.Decimal that unmarshals from YAML scalars, so money
// values never pass through float64.
type Dec struct {
	decimal.Decimal
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Dec) UnmarshalYAML(value *yaml.Node) error {
	dec, err := decimal.NewFromString(value.Value)
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", value.Value, err)
	}
	d.Decimal = dec
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Dec) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Config is the full runtime configuration.
type Config struct {
	Symbol              string `yaml:"symbol"`
	Balance             Dec    `yaml:"balance"`
	FeeRate             Dec    `yaml:"feeRate"`
	MaintenanceRate     Dec    `yaml:"maintenanceMarginRate"`
	MinOrderValue       Dec    `yaml:"minOrderValue"`
	MaxPositionNotional Dec    `yaml:"maxPositionNotional"` // zero = unlimited

	Server   ServerConfig   `yaml:"server"`
	Feed     FeedConfig     `yaml:"feed"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// FeedConfig selects and tunes the price source. Mode is "binance" or
// "sim".
type FeedConfig struct {
	Mode       string `yaml:"mode"`
	URL        string `yaml:"url"`        // binance mode; empty = production endpoint
	IntervalMs int    `yaml:"intervalMs"` // sim mode tick interval
	StartPrice Dec    `yaml:"startPrice"` // sim mode starting price
	Drift      Dec    `yaml:"drift"`      // sim mode max fractional move per tick
	Seed       int64  `yaml:"seed"`       // sim mode RNG seed; 0 = time-based
}

type SnapshotConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Symbol:          "BTCUSDT",
		Balance:         Dec{decimal.NewFromInt(10000)},
		FeeRate:         Dec{decimal.NewFromFloat(0.0004)},
		MaintenanceRate: Dec{decimal.NewFromFloat(0.005)},
		MinOrderValue:   Dec{decimal.NewFromInt(1)},
		Server:          ServerConfig{Port: "8080"},
		Feed: FeedConfig{
			Mode:       "binance",
			IntervalMs: 1000,
			StartPrice: Dec{decimal.NewFromInt(30000)},
			Drift:      Dec{decimal.NewFromFloat(0.001)},
		},
		Snapshot: SnapshotConfig{IntervalSeconds: 5},
	}
}

// Load reads YAML config from path over the defaults, applies environment
// overrides, and validates. An empty path yields defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays deployment environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("FEED_MODE"); v != "" {
		cfg.Feed.Mode = v
	}
}

// Validate applies basic sanity checks.
func Validate(cfg Config) error {
	if _, err := symbol.Parse(cfg.Symbol); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Balance.IsNegative() {
		return fmt.Errorf("%w: balance must not be negative", ErrInvalidConfig)
	}
	if cfg.FeeRate.IsNegative() {
		return fmt.Errorf("%w: feeRate must not be negative", ErrInvalidConfig)
	}
	if cfg.MaintenanceRate.IsNegative() {
		return fmt.Errorf("%w: maintenanceMarginRate must not be negative", ErrInvalidConfig)
	}
	if cfg.MinOrderValue.IsNegative() {
		return fmt.Errorf("%w: minOrderValue must not be negative", ErrInvalidConfig)
	}
	switch cfg.Feed.Mode {
	case "binance":
	case "sim":
		if cfg.Feed.IntervalMs <= 0 {
			return fmt.Errorf("%w: feed.intervalMs must be positive in sim mode", ErrInvalidConfig)
		}
		if !cfg.Feed.StartPrice.IsPositive() {
			return fmt.Errorf("%w: feed.startPrice must be positive in sim mode", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: feed.mode must be binance or sim, got %q", ErrInvalidConfig, cfg.Feed.Mode)
	}
	if cfg.Snapshot.IntervalSeconds < 0 {
		return fmt.Errorf("%w: snapshot.intervalSeconds must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SnapshotInterval returns the persistence cadence; zero disables periodic
// snapshots.
func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

// FeedInterval returns the sim feed tick cadence.
func (c Config) FeedInterval() time.Duration {
	return time.Duration(c.Feed.IntervalMs) * time.Millisecond
}
