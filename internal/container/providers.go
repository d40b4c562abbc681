package container

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/infrastructure/document"
	"github.com/garyjia/carrier-integration/internal/infrastructure/external/carriers"
	infraLark "github.com/garyjia/carrier-integration/internal/infrastructure/external/lark"
	"github.com/garyjia/carrier-integration/internal/infrastructure/lock"
	"github.com/garyjia/carrier-integration/internal/infrastructure/metrics"
	"github.com/garyjia/carrier-integration/internal/infrastructure/persistence/repository"
	"github.com/garyjia/carrier-integration/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/carrier-integration/internal/infrastructure/worker"
	"github.com/garyjia/carrier-integration/migrations"
	"github.com/garyjia/carrier-integration/pkg/database"
	"github.com/garyjia/carrier-integration/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
	Migrator       *database.Migrator
}

// LockBundle holds the claim locker and the Redis client backing it, if any.
type LockBundle struct {
	Locker port.ClaimLocker
	Redis  interface{ Close() error }
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if _, err := migrator.Apply(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		Migrator:       migrator,
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Claims:         repository.NewClaimRepository(sqlDB, logger),
		CarrierConfigs: repository.NewCarrierConfigRepository(sqlDB, logger),
		Intel:          repository.NewIntelRepository(sqlDB, logger),
		Activities:     repository.NewActivityRepository(sqlDB, logger),
	}, nil
}

// SeedCarriers upserts configured carriers. Tokens already stored for a
// carrier survive the seed unless the seed sets its own.
func SeedCarriers(ctx context.Context, configs port.CarrierConfigRepository, seeds []*carrier.Config, logger *zap.Logger) error {
	for _, seed := range seeds {
		cfg := seed.Clone()
		existing, err := configs.GetByCode(ctx, cfg.Code)
		if err != nil {
			return fmt.Errorf("failed to load carrier %s: %w", cfg.Code, err)
		}
		if existing != nil {
			if cfg.AccessToken == "" {
				cfg.AccessToken = existing.AccessToken
				cfg.TokenExpiry = existing.TokenExpiry
			}
			if cfg.RefreshToken == "" {
				cfg.RefreshToken = existing.RefreshToken
			}
		}
		if err := configs.Upsert(ctx, cfg); err != nil {
			return fmt.Errorf("failed to seed carrier %s: %w", cfg.Code, err)
		}
		logger.Info("Carrier config seeded",
			zap.String("carrier", cfg.Code),
			zap.Bool("enabled", cfg.Enabled))
	}
	return nil
}

// ProvideLocker returns a Redis-backed locker when a URL is configured and an
// in-process one otherwise.
func ProvideLocker(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg == nil || cfg.URL == "" {
		logger.Info("Using in-process claim lock")
		return &LockBundle{Locker: lock.NewMemoryLocker()}, nil
	}

	rdb, err := lock.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	logger.Info("Using Redis claim lock", zap.Duration("ttl", cfg.LockTTL))
	return &LockBundle{
		Locker: lock.NewRedisLocker(rdb, lock.RedisOptions{
			TTL:           cfg.LockTTL,
			RetryInterval: cfg.LockRetryInterval,
		}, logger),
		Redis: rdb,
	}, nil
}

// ProvideNotifier returns the Lark intel notifier, or nil when Lark is not
// configured.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) port.IntelNotifier {
	if cfg == nil || !cfg.Enabled() {
		logger.Info("Lark notifier disabled")
		return nil
	}
	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:       cfg.AppID,
		AppSecret:   cfg.AppSecret,
		ChatID:      cfg.ChatID,
		MinPriority: cfg.MinPriority,
	}, logger)
	return infraLark.NewIntelNotifier(client, cfg.ChatID, cfg.MinPriority, logger)
}

// ProvideRequestSink fans carrier request logs out to zap and, when enabled,
// Prometheus.
func ProvideRequestSink(cfg *MetricsConfig, logger *zap.Logger) carriers.RequestSink {
	sinks := carriers.MultiSink{carriers.NewZapSink(logger)}
	if cfg != nil && cfg.Enabled {
		metrics.RegisterDefault()
		sinks = append(sinks, metrics.Sink{})
	}
	return sinks
}

// ProvideRegistry creates the adapter registry. Refreshed OAuth tokens are
// written back to carrier_configs.
func ProvideRegistry(cfg *CarriersConfig, configs port.CarrierConfigRepository, sink carriers.RequestSink, logger *zap.Logger) (*carriers.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("carriers config is required")
	}
	if configs == nil {
		return nil, fmt.Errorf("carrier config repository is required")
	}

	deps := carriers.Dependencies{
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Sink:       sink,
		Mock:       cfg.Mock,
		SaveTokens: func(ctx context.Context, code, accessToken, refreshToken string, expiry *time.Time) error {
			return configs.UpdateTokens(ctx, code, accessToken, refreshToken, expiry)
		},
	}
	return carriers.NewRegistry(configs, deps, cfg.Production, logger), nil
}

// ServiceDeps holds the dependencies ProvideServices wires together.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Registry  port.AdapterRegistry
	Locker    port.ClaimLocker
	Notifier  port.IntelNotifier
	Carriers  *CarriersConfig
	Metrics   *MetricsConfig

	// ClaimRetry is applied per claim inside batch syncs
	ClaimRetry service.RetryPolicy
	Logger     *zap.Logger
}

// ProvideServices creates the carrier and webhook services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Registry == nil {
		return nil, fmt.Errorf("repositories and registry are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var recorder port.SyncRecorder
	if deps.Metrics != nil && deps.Metrics.Enabled {
		metrics.RegisterDefault()
		recorder = metrics.Recorder{}
	}

	logger := utils.NewKVLogger(deps.Logger)
	carrierSvc := service.NewCarrierService(service.CarrierServiceDeps{
		Registry:    deps.Registry,
		Claims:      deps.Repos.Claims,
		Configs:     deps.Repos.CarrierConfigs,
		Intel:       deps.Repos.Intel,
		Activities:  deps.Repos.Activities,
		TxManager:   deps.TxManager,
		Locker:      deps.Locker,
		Notifier:    deps.Notifier,
		Inspector:   document.NewPDFInspector(deps.Carriers.MaxDocumentPages, deps.Logger),
		Recorder:    recorder,
		Logger:      logger,
		PacingDelay: deps.Carriers.PacingDelay,
		ClaimRetry:  deps.ClaimRetry,
		Production:  deps.Carriers.Production,
	})

	return &ServiceBundle{
		Carrier: carrierSvc,
		Webhook: service.NewWebhookService(carrierSvc, deps.Repos.Claims, deps.Repos.Activities, logger),
	}, nil
}

// ProvideWorkers creates the worker manager and, when enabled, the carrier
// sync worker.
func ProvideWorkers(cfg *SyncConfig, carrierSvc service.CarrierService, logger *zap.Logger) (*worker.WorkerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sync config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)
	if !cfg.Enabled {
		logger.Info("Carrier sync worker disabled")
		return manager, nil
	}

	manager.Register(worker.NewCarrierSyncWorker(carrierSvc, worker.CarrierSyncConfig{
		Interval:   cfg.Interval,
		Carriers:   cfg.Carriers,
		Retry:      cfg.Retry,
		RunOnStart: cfg.RunOnStart,
	}, logger))
	return manager, nil
}
