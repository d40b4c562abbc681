package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/service"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// Syncer is the part of service.CarrierService the sync worker drives
type Syncer interface {
	SyncAllClaims(ctx context.Context, carrierCode string) (*service.SyncAllResult, error)
	ListCarriers(ctx context.Context) ([]*carrier.Config, error)
}

// CarrierSyncConfig configures CarrierSyncWorker
type CarrierSyncConfig struct {
	Interval time.Duration
	// Carriers to reconcile; empty means every listed carrier that supports
	// status updates.
	Carriers   []string
	Retry      service.RetryPolicy
	RunOnStart bool
	// OnResult, when set, receives every completed batch.
	OnResult func(*service.SyncAllResult)
}

// CarrierSyncWorker periodically reconciles filed claims against their carriers.
// It is the polling fallback for carriers whose webhooks are missing or lossy.
type CarrierSyncWorker struct {
	syncer Syncer
	cfg    CarrierSyncConfig
	logger *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastRun   map[string]*service.SyncAllResult
}

// NewCarrierSyncWorker creates a new carrier sync worker
func NewCarrierSyncWorker(syncer Syncer, cfg CarrierSyncConfig, logger *zap.Logger) *CarrierSyncWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = service.DefaultRetryPolicy()
	}
	return &CarrierSyncWorker{
		syncer:  syncer,
		cfg:     cfg,
		logger:  logger,
		lastRun: make(map[string]*service.SyncAllResult),
	}
}

// Start starts the sync loop
func (w *CarrierSyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("carrier sync worker is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("CarrierSyncWorker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Strings("carriers", w.cfg.Carriers))

	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight batch to return
func (w *CarrierSyncWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("CarrierSyncWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *CarrierSyncWorker) Name() string {
	return "CarrierSyncWorker"
}

// LastResult returns the most recent batch result for a carrier
func (w *CarrierSyncWorker) LastResult(carrierCode string) *service.SyncAllResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun[carrierCode]
}

func (w *CarrierSyncWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	if w.cfg.RunOnStart {
		w.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Sync loop context cancelled")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce reconciles every target carrier one after another
func (w *CarrierSyncWorker) RunOnce(ctx context.Context) {
	codes, err := w.targets(ctx)
	if err != nil {
		w.logger.Error("Failed to resolve carriers to sync", zap.Error(err))
		return
	}

	for _, code := range codes {
		if ctx.Err() != nil {
			return
		}

		// Per-claim failures are retried inside the batch; this covers a
		// batch that could not start, such as a busy database.
		result, err := service.WithRetry(ctx, w.cfg.Retry, func(ctx context.Context) (*service.SyncAllResult, error) {
			return w.syncer.SyncAllClaims(ctx, code)
		})
		if err != nil {
			w.logger.Error("Carrier batch sync failed",
				zap.String("carrier", code),
				zap.String("code", carrier.CodeOf(err)),
				zap.Error(err))
			continue
		}

		w.mu.Lock()
		w.lastRun[code] = result
		w.mu.Unlock()

		w.logger.Info("Carrier batch sync completed",
			zap.String("carrier", code),
			zap.Int("total", result.Total),
			zap.Int("synced", result.Synced),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))

		if w.cfg.OnResult != nil {
			w.cfg.OnResult(result)
		}
	}
}

func (w *CarrierSyncWorker) targets(ctx context.Context) ([]string, error) {
	if len(w.cfg.Carriers) > 0 {
		return w.cfg.Carriers, nil
	}

	configs, err := w.syncer.ListCarriers(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if cfg.SupportsStatusUpdates {
			codes = append(codes, cfg.Code)
		}
	}
	return codes, nil
}
