package config

import (
	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/container"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/infrastructure/external/carriers"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	seeds := make([]*carrier.Config, 0, len(c.Carriers.Seed))
	for _, s := range c.Carriers.Seed {
		seeds = append(seeds, &carrier.Config{
			Code:                  s.Code,
			Name:                  s.Name,
			APIEndpoint:           s.APIEndpoint,
			APIKey:                s.APIKey,
			ClientID:              s.ClientID,
			ClientSecret:          s.ClientSecret,
			RefreshToken:          s.RefreshToken,
			WebhookSecret:         s.WebhookSecret,
			TestMode:              s.TestMode,
			SupportsDirectFiling:  s.SupportsDirectFiling,
			SupportsStatusUpdates: s.SupportsStatusUpdates,
			Enabled:               s.Enabled,
		})
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Carriers: container.CarriersConfig{
			Production:       c.IsProduction(),
			PacingDelay:      c.Carriers.PacingDelay,
			HTTPTimeout:      c.Carriers.HTTPTimeout,
			MaxDocumentPages: c.Carriers.MaxDocumentPages,
			Mock: carriers.MockOptions{
				MinLatency:   c.Carriers.Mock.MinLatency,
				MaxLatency:   c.Carriers.Mock.MaxLatency,
				FailureRate:  c.Carriers.Mock.FailureRate,
				StepInterval: c.Carriers.Mock.StepInterval,
			},
			Seed: seeds,
		},
		Sync: container.SyncConfig{
			Enabled:    c.Sync.Enabled,
			Interval:   c.Sync.Interval,
			Carriers:   c.Sync.Carriers,
			RunOnStart: c.Sync.RunOnStart,
			Retry:      c.RetryPolicy(),
		},
		Redis: container.RedisConfig{
			URL:               c.Redis.URL,
			LockTTL:           c.Redis.LockTTL,
			LockRetryInterval: c.Redis.LockRetryInterval,
		},
		Lark: container.LarkConfig{
			AppID:       c.Lark.AppID,
			AppSecret:   c.Lark.AppSecret,
			ChatID:      c.Lark.ChatID,
			MinPriority: c.Lark.MinPriority,
		},
		Metrics: container.MetricsConfig{Enabled: c.Metrics.Enabled},
	}
}

// RetryPolicy returns the sync retry settings as a service.RetryPolicy.
func (c *Config) RetryPolicy() service.RetryPolicy {
	return service.RetryPolicy{
		MaxAttempts: c.Sync.Retry.MaxAttempts,
		BaseDelay:   c.Sync.Retry.BaseDelay,
		MaxDelay:    c.Sync.Retry.MaxDelay,
	}
}
