// Package container provides dependency injection and lifecycle management
// for the carrier integration service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/infrastructure/external/carriers"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Carriers CarriersConfig
	Sync     SyncConfig
	Redis    RedisConfig
	Lark     LarkConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CarriersConfig holds adapter and orchestration settings.
type CarriersConfig struct {
	// Production disables the mock fallback for unknown carriers
	Production bool

	// PacingDelay is the minimum gap between carrier calls in a batch sync
	PacingDelay time.Duration

	// HTTPTimeout bounds every carrier HTTP request
	HTTPTimeout time.Duration

	// MaxDocumentPages rejects larger PDF uploads; zero means no limit
	MaxDocumentPages int

	Mock carriers.MockOptions

	// Seed configs are upserted into carrier_configs at startup
	Seed []*carrier.Config
}

// SyncConfig configures the scheduled carrier sync worker.
type SyncConfig struct {
	Enabled    bool
	Interval   time.Duration
	Carriers   []string
	RunOnStart bool
	Retry      service.RetryPolicy
}

// RedisConfig selects the Redis claim lock when URL is set.
type RedisConfig struct {
	URL               string
	LockTTL           time.Duration
	LockRetryInterval time.Duration
}

// LarkConfig enables the intel notifier when all of AppID, AppSecret and
// ChatID are set.
type LarkConfig struct {
	AppID       string
	AppSecret   string
	ChatID      string
	MinPriority string
}

// Enabled reports whether the notifier should be built.
func (c LarkConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ChatID != ""
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns a development configuration backed by a local
// database file and the in-process lock.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/carrier.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Carriers: CarriersConfig{
			PacingDelay:      500 * time.Millisecond,
			HTTPTimeout:      30 * time.Second,
			MaxDocumentPages: 500,
			Mock:             carriers.DefaultMockOptions(),
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 15 * time.Minute,
			Retry:    service.DefaultRetryPolicy(),
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Carriers.HTTPTimeout <= 0 {
		return fmt.Errorf("carriers.http_timeout must be positive")
	}
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	for i, seed := range c.Carriers.Seed {
		if seed == nil || seed.Code == "" {
			return fmt.Errorf("carriers.seed[%d]: code is required", i)
		}
	}
	return nil
}
