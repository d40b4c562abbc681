package carriers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

type stubConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*carrier.Config
	err     error
	loads   int
}

func (s *stubConfigRepo) GetByCode(ctx context.Context, code string) (*carrier.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.configs[code].Clone(), nil
}

func (s *stubConfigRepo) List(ctx context.Context) ([]*carrier.Config, error) {
	return nil, nil
}

func (s *stubConfigRepo) Upsert(ctx context.Context, cfg *carrier.Config) error {
	return nil
}

func (s *stubConfigRepo) UpdateTokens(ctx context.Context, code, accessToken, refreshToken string, expiry *time.Time) error {
	return nil
}

func newTestRegistry(repo *stubConfigRepo, production bool) *Registry {
	return NewRegistry(repo, Dependencies{Mock: MockOptions{Seed: 7}}, production, zap.NewNop())
}

func TestRegistry_UnknownCode(t *testing.T) {
	r := newTestRegistry(&stubConfigRepo{}, false)

	_, err := r.Get(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, carrier.CodeCarrierNotAvailable, carrier.CodeOf(err))
	assert.Contains(t, err.Error(), "carrier acme not available")
	assert.False(t, carrier.IsRetryable(err))
}

func TestRegistry_FallsBackToMockOutsideProduction(t *testing.T) {
	r := newTestRegistry(&stubConfigRepo{}, false)

	adapter, err := r.Get(context.Background(), "Harborline")
	require.NoError(t, err)
	assert.Equal(t, MockCode, adapter.Code())
}

func TestRegistry_NoFallbackInProduction(t *testing.T) {
	for _, code := range []string{HarborlineCode, MockCode, " MOCK "} {
		t.Run(code, func(t *testing.T) {
			r := newTestRegistry(&stubConfigRepo{}, true)

			adapter, err := r.Get(context.Background(), code)
			assert.Nil(t, adapter)
			assert.Equal(t, carrier.CodeCarrierNotAvailable, carrier.CodeOf(err))
			assert.Empty(t, r.cache)
		})
	}
}

func TestRegistry_ConfiguredMockInProduction(t *testing.T) {
	repo := &stubConfigRepo{configs: map[string]*carrier.Config{
		MockCode: {Code: MockCode, Enabled: true, TestMode: true, WebhookSecret: "whsec"},
	}}
	r := newTestRegistry(repo, true)

	adapter, err := r.Get(context.Background(), MockCode)
	require.NoError(t, err)
	assert.Equal(t, MockCode, adapter.Code())

	payload := []byte(`{"event":"claim.approved","claimId":"mock-1"}`)
	assert.False(t, adapter.VerifyWebhook(payload, ""))
	assert.True(t, adapter.VerifyWebhook(payload, SignHMACSHA256("whsec", payload)))
}

func TestRegistry_CachesAndInvalidates(t *testing.T) {
	repo := &stubConfigRepo{configs: map[string]*carrier.Config{
		HarborlineCode: {Code: HarborlineCode, APIKey: "k", Enabled: true, SupportsStatusUpdates: true},
	}}
	r := newTestRegistry(repo, true)
	ctx := context.Background()

	first, err := r.Get(ctx, HarborlineCode)
	require.NoError(t, err)
	assert.Equal(t, HarborlineCode, first.Code())

	second, err := r.Get(ctx, HarborlineCode)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, repo.loads)

	r.Invalidate(HarborlineCode)
	third, err := r.Get(ctx, HarborlineCode)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, repo.loads)
}

func TestRegistry_DisabledCarrier(t *testing.T) {
	repo := &stubConfigRepo{configs: map[string]*carrier.Config{
		HarborlineCode: {Code: HarborlineCode, Enabled: false},
	}}
	r := newTestRegistry(repo, false)

	_, err := r.Get(context.Background(), HarborlineCode)
	assert.Equal(t, carrier.CodeCarrierNotAvailable, carrier.CodeOf(err))
}

func TestRegistry_ConfigLoadError(t *testing.T) {
	r := newTestRegistry(&stubConfigRepo{err: errors.New("db closed")}, false)

	_, err := r.Get(context.Background(), HarborlineCode)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db closed")
}

func TestRegistry_RegisterCustom(t *testing.T) {
	r := newTestRegistry(&stubConfigRepo{}, false)
	r.Register("Acme", func(d Dependencies) port.CarrierAdapter {
		return NewMockAdapter(d.Mock)
	})

	assert.Equal(t, []string{"acme", HarborlineCode, MockCode}, r.Codes())

	_, err := r.Get(context.Background(), "acme")
	require.NoError(t, err)
}
