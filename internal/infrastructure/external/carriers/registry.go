package carriers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// Dependencies are handed to every adapter constructor.
type Dependencies struct {
	HTTPClient *http.Client
	Sink       RequestSink
	SaveTokens TokenSaver
	Mock       MockOptions
}

// Constructor builds an uninitialized adapter.
type Constructor func(deps Dependencies) port.CarrierAdapter

// Registry maps carrier codes to adapters, creating and initializing each
// one on first use and caching it afterwards.
type Registry struct {
	configs    port.CarrierConfigRepository
	deps       Dependencies
	production bool
	logger     *zap.Logger

	mu           sync.RWMutex
	constructors map[string]Constructor
	cache        map[string]port.CarrierAdapter
}

// NewRegistry creates a registry with the built-in adapters registered.
// Outside production a carrier without a stored config falls back to the mock.
// In production every carrier, mock included, needs an enabled stored config.
func NewRegistry(configs port.CarrierConfigRepository, deps Dependencies, production bool, logger *zap.Logger) *Registry {
	r := &Registry{
		configs:      configs,
		deps:         deps,
		production:   production,
		logger:       logger,
		constructors: make(map[string]Constructor),
		cache:        make(map[string]port.CarrierAdapter),
	}

	r.Register(MockCode, func(d Dependencies) port.CarrierAdapter {
		return NewMockAdapter(d.Mock)
	})
	r.Register(HarborlineCode, func(d Dependencies) port.CarrierAdapter {
		return NewHarborlineAdapter(d.HTTPClient, d.Sink, d.SaveTokens)
	})

	return r
}

// Register adds or replaces the constructor for a carrier code.
func (r *Registry) Register(code string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code = normalizeCode(code)
	r.constructors[code] = ctor
	delete(r.cache, code)
}

// Get returns the cached adapter for code or builds and initializes one.
func (r *Registry) Get(ctx context.Context, code string) (port.CarrierAdapter, error) {
	code = normalizeCode(code)

	r.mu.RLock()
	if adapter, ok := r.cache[code]; ok {
		r.mu.RUnlock()
		return adapter, nil
	}
	ctor, known := r.constructors[code]
	r.mu.RUnlock()

	if !known {
		return nil, carrier.Errorf(carrier.CodeCarrierNotAvailable, false, "carrier %s not available", code)
	}

	adapter, err := r.build(ctx, code, ctor)
	if err != nil {
		return nil, err
	}

	// Another caller may have won the race while we were initializing.
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cache[code]; ok {
		return existing, nil
	}
	r.cache[code] = adapter
	return adapter, nil
}

func (r *Registry) build(ctx context.Context, code string, ctor Constructor) (port.CarrierAdapter, error) {
	cfg, err := r.configs.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for carrier %s: %w", code, err)
	}

	if cfg == nil {
		if r.production {
			return nil, carrier.Errorf(carrier.CodeCarrierNotAvailable, false, "carrier %s not available", code)
		}
		if code != MockCode {
			r.logger.Warn("No config for carrier, using mock adapter",
				zap.String("carrier", code))
			ctor = r.constructors[MockCode]
		}
		cfg = &carrier.Config{Code: code, Name: code, TestMode: true, Enabled: true}
	} else if !cfg.Enabled {
		return nil, carrier.Errorf(carrier.CodeCarrierNotAvailable, false, "carrier %s is disabled", code)
	}

	adapter := ctor(r.deps)
	if err := adapter.Initialize(ctx, cfg); err != nil {
		return nil, err
	}

	r.logger.Info("Carrier adapter initialized",
		zap.String("carrier", code),
		zap.String("adapter", adapter.Code()),
		zap.Bool("test_mode", cfg.TestMode))
	return adapter, nil
}

// Invalidate drops the cached adapter so the next Get rebuilds it from the
// stored config.
func (r *Registry) Invalidate(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, normalizeCode(code))
}

// Codes returns the registered carrier codes in sorted order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.constructors))
	for code := range r.constructors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
