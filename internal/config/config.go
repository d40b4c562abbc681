package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/carrier-integration/pkg/utils"
)

// Carrier environments
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Carriers CarriersConfig `mapstructure:"carriers"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxWebhookBytes int64         `mapstructure:"max_webhook_bytes"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// CarriersConfig controls adapter construction
type CarriersConfig struct {
	// Environment is production, development or test. Outside production
	// unknown carriers fall back to the mock adapter.
	Environment      string        `mapstructure:"environment"`
	PacingDelay      time.Duration `mapstructure:"pacing_delay"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	MaxDocumentPages int           `mapstructure:"max_document_pages"`
	Mock             MockConfig    `mapstructure:"mock"`
	Seed             []CarrierSeed `mapstructure:"seed"`
}

// MockConfig tunes the mock adapter
type MockConfig struct {
	MinLatency   time.Duration `mapstructure:"min_latency"`
	MaxLatency   time.Duration `mapstructure:"max_latency"`
	FailureRate  float64       `mapstructure:"failure_rate"`
	StepInterval time.Duration `mapstructure:"step_interval"`
}

// CarrierSeed is a carrier config upserted into carrier_configs at startup
type CarrierSeed struct {
	Code                  string `mapstructure:"code"`
	Name                  string `mapstructure:"name"`
	APIEndpoint           string `mapstructure:"api_endpoint"`
	APIKey                string `mapstructure:"api_key"`
	ClientID              string `mapstructure:"client_id"`
	ClientSecret          string `mapstructure:"client_secret"`
	RefreshToken          string `mapstructure:"refresh_token"`
	WebhookSecret         string `mapstructure:"webhook_secret"`
	TestMode              bool   `mapstructure:"test_mode"`
	SupportsDirectFiling  bool   `mapstructure:"supports_direct_filing"`
	SupportsStatusUpdates bool   `mapstructure:"supports_status_updates"`
	Enabled               bool   `mapstructure:"enabled"`
}

// SyncConfig configures the scheduled reconciliation worker
type SyncConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Carriers   []string      `mapstructure:"carriers"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	Retry      RetryConfig   `mapstructure:"retry"`
}

// RetryConfig mirrors service.RetryPolicy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// RedisConfig enables the distributed claim lock when URL is set
type RedisConfig struct {
	URL               string        `mapstructure:"url"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval time.Duration `mapstructure:"lock_retry_interval"`
}

// LarkConfig enables intel notifications when app credentials and a chat are set
type LarkConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	ChatID      string `mapstructure:"chat_id"`
	MinPriority string `mapstructure:"min_priority"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from an optional YAML file, an optional .env file
// and environment variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.max_webhook_bytes", 1<<20)
	v.SetDefault("server.max_upload_bytes", 25<<20)

	// Database defaults
	v.SetDefault("database.path", "data/carrier.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Carrier defaults
	v.SetDefault("carriers.environment", EnvDevelopment)
	v.SetDefault("carriers.pacing_delay", 500*time.Millisecond)
	v.SetDefault("carriers.http_timeout", 30*time.Second)
	v.SetDefault("carriers.max_document_pages", 500)
	v.SetDefault("carriers.mock.min_latency", 200*time.Millisecond)
	v.SetDefault("carriers.mock.max_latency", 800*time.Millisecond)
	v.SetDefault("carriers.mock.failure_rate", 0.05)
	v.SetDefault("carriers.mock.step_interval", 0)

	// Sync worker defaults
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", 15*time.Minute)
	v.SetDefault("sync.run_on_start", false)
	v.SetDefault("sync.retry.max_attempts", 3)
	v.SetDefault("sync.retry.base_delay", time.Second)
	v.SetDefault("sync.retry.max_delay", 30*time.Second)

	// Redis lock defaults
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("redis.lock_retry_interval", 100*time.Millisecond)

	v.SetDefault("lark.min_priority", "high")
	v.SetDefault("metrics.enabled", true)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("carriers.environment", "CARRIER_ENV")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.chat_id", "LARK_CHAT_ID")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Carriers.Environment {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		return fmt.Errorf("carriers.environment must be one of production, development, test: %q", c.Carriers.Environment)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	mock := c.Carriers.Mock
	if mock.FailureRate < 0 || mock.FailureRate > 1 {
		return fmt.Errorf("carriers.mock.failure_rate must be within [0, 1]")
	}
	if mock.MaxLatency < mock.MinLatency {
		return fmt.Errorf("carriers.mock.max_latency must not be below min_latency")
	}

	seen := make(map[string]bool, len(c.Carriers.Seed))
	for i, seed := range c.Carriers.Seed {
		if err := utils.ValidateCarrierCode(seed.Code); err != nil {
			return fmt.Errorf("carriers.seed[%d]: %w", i, err)
		}
		if seen[seed.Code] {
			return fmt.Errorf("carriers.seed[%d]: duplicate code %s", i, seed.Code)
		}
		seen[seed.Code] = true
		if err := utils.ValidateEndpointURL(seed.APIEndpoint); err != nil {
			return fmt.Errorf("carriers.seed[%d]: %w", i, err)
		}
	}

	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive when sync is enabled")
	}

	// Lark is optional, but half-configured credentials are a mistake.
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}
	if c.Lark.AppID != "" && c.Lark.ChatID == "" {
		return fmt.Errorf("lark.chat_id is required when lark credentials are set")
	}

	return nil
}

// IsProduction reports whether carriers run against production systems
func (c *Config) IsProduction() bool {
	return c.Carriers.Environment == EnvProduction
}

// LarkEnabled reports whether intel notifications are configured
func (c *Config) LarkEnabled() bool {
	return c.Lark.AppID != "" && c.Lark.AppSecret != "" && c.Lark.ChatID != ""
}
