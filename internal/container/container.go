package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/infrastructure/external/carriers"
	"github.com/garyjia/carrier-integration/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/carrier-integration/internal/infrastructure/worker"
	"github.com/garyjia/carrier-integration/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	migrator     *database.Migrator
	repositories *RepositoryBundle

	// Infrastructure - Carriers and coordination
	locks    *LockBundle
	notifier port.IntelNotifier
	registry *carriers.Registry

	// Application
	services *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Claims         port.ClaimRepository
	CarrierConfigs port.CarrierConfigRepository
	Intel          port.IntelRepository
	Activities     port.ActivityRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Carrier service.CarrierService
	Webhook service.WebhookService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing:
// 1. Database, repositories and carrier seeds
// 2. Claim lock and notifier
// 3. Adapter registry
// 4. Application services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"coordination", c.initCoordination},
		{"carrier registry", c.initRegistry},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Component initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	if c.locks != nil && c.locks.Redis != nil {
		if err := c.locks.Redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	c.locks = nil

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.sqlDB = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else if version, err := c.migrator.Version(context.Background()); err != nil {
			set("database", false, err.Error())
		} else {
			set("database", true, fmt.Sprintf("schema version: %d", version))
		}
	}

	if c.registry != nil {
		set("carriers", true, fmt.Sprintf("registered adapters: %d", len(c.registry.Codes())))
	} else {
		set("carriers", false, "not initialized")
	}

	switch {
	case c.workers == nil:
		set("workers", false, "not initialized")
	case c.workers.GetWorkerCount() == 0:
		set("workers", true, "no workers configured")
	default:
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
		for _, ws := range c.workers.Statuses() {
			msg := ""
			if !ws.Running {
				msg = "not running"
			}
			set("worker:"+ws.Name, ws.Running, msg)
		}
	}

	return status
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr
	c.migrator = dbBundle.Migrator

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	return SeedCarriers(c.ctx, repos.CarrierConfigs, c.config.Carriers.Seed, c.logger)
}

func (c *Container) initCoordination() error {
	locks, err := ProvideLocker(c.ctx, &c.config.Redis, c.logger)
	if err != nil {
		return err
	}
	c.locks = locks
	c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	return nil
}

func (c *Container) initRegistry() error {
	sink := ProvideRequestSink(&c.config.Metrics, c.logger)
	registry, err := ProvideRegistry(&c.config.Carriers, c.repositories.CarrierConfigs, sink, c.logger)
	if err != nil {
		return err
	}
	c.registry = registry
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Registry:   c.registry,
		Locker:     c.locks.Locker,
		Notifier:   c.notifier,
		Carriers:   &c.config.Carriers,
		Metrics:    &c.config.Metrics,
		ClaimRetry: c.config.Sync.Retry,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Sync, c.services.Carrier, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Registry returns the carrier adapter registry.
func (c *Container) Registry() *carriers.Registry {
	return c.registry
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
