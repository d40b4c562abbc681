package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// memClaimRepo keeps claims in memory and applies updates field by field.
type memClaimRepo struct {
	mu        sync.Mutex
	claims    map[string]*entity.Claim
	updates   []*entity.ClaimUpdate
	updateErr error
}

func newMemClaimRepo(claims ...*entity.Claim) *memClaimRepo {
	r := &memClaimRepo{claims: make(map[string]*entity.Claim)}
	for _, c := range claims {
		r.claims[c.ID] = c
	}
	return r
}

func (r *memClaimRepo) Create(ctx context.Context, claim *entity.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[claim.ID] = claim
	return nil
}

func (r *memClaimRepo) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memClaimRepo) GetByCarrierClaimID(ctx context.Context, code, carrierClaimID string) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.Carrier == code && c.CarrierClaimID == carrierClaimID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memClaimRepo) GetByClaimNumber(ctx context.Context, code, number string) (*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.Carrier == code && c.ClaimNumber == number {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memClaimRepo) Update(ctx context.Context, id string, update *entity.ClaimUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("claim %s not found", id)
	}
	update.Apply(c)
	r.updates = append(r.updates, update)
	return nil
}

func (r *memClaimRepo) ListSyncable(ctx context.Context, code string) ([]*entity.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Claim
	for _, id := range sortedKeys(r.claims) {
		c := r.claims[id]
		if c.Carrier == code && c.IsFiledWithCarrier && c.Status.IsSyncable() {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memClaimRepo) get(id string) entity.Claim {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.claims[id]
}

func sortedKeys(m map[string]*entity.Claim) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type memIntelRepo struct {
	mu      sync.Mutex
	records []*entity.IntelRecord
}

func (r *memIntelRepo) Create(ctx context.Context, record *entity.IntelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memIntelRepo) ListByClaimID(ctx context.Context, claimID string) ([]*entity.IntelRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.IntelRecord
	for _, rec := range r.records {
		if rec.ClaimID == claimID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memActivityRepo struct {
	mu   sync.Mutex
	logs []*entity.ActivityLog
}

func (r *memActivityRepo) Create(ctx context.Context, log *entity.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *memActivityRepo) ListByClaimID(ctx context.Context, claimID string) ([]*entity.ActivityLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.ActivityLog
	for _, l := range r.logs {
		if l.ClaimID == claimID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memActivityRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

type mockConfigRepo struct {
	getFunc    func(ctx context.Context, code string) (*carrier.Config, error)
	listFunc   func(ctx context.Context) ([]*carrier.Config, error)
	upsertFunc func(ctx context.Context, cfg *carrier.Config) error
}

func (m *mockConfigRepo) GetByCode(ctx context.Context, code string) (*carrier.Config, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, code)
	}
	return nil, nil
}

func (m *mockConfigRepo) List(ctx context.Context) ([]*carrier.Config, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockConfigRepo) Upsert(ctx context.Context, cfg *carrier.Config) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, cfg)
	}
	return nil
}

func (m *mockConfigRepo) UpdateTokens(ctx context.Context, code, access, refresh string, expiry *time.Time) error {
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockAdapter is a func-field adapter; unset funcs return harmless defaults.
type mockAdapter struct {
	code                 string
	fileClaimFunc        func(ctx context.Context, s *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error)
	getClaimStatusFunc   func(ctx context.Context, id string) (*carrier.ClaimStatusResult, error)
	getClaimByNumberFunc func(ctx context.Context, number string) (*carrier.ClaimStatusResult, error)
	fileSupplementFunc   func(ctx context.Context, s *carrier.SupplementSubmission) (*carrier.SupplementResult, error)
	uploadDocumentFunc   func(ctx context.Context, d *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error)
	verifyWebhookFunc    func(payload []byte, signature string) bool
	parseWebhookFunc     func(payload []byte) (*carrier.WebhookEvent, error)
}

func (m *mockAdapter) Code() string { return m.code }

func (m *mockAdapter) Initialize(ctx context.Context, cfg *carrier.Config) error { return nil }

func (m *mockAdapter) TestConnection(ctx context.Context) bool { return true }

func (m *mockAdapter) FileClaim(ctx context.Context, s *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
	if m.fileClaimFunc != nil {
		return m.fileClaimFunc(ctx, s)
	}
	return &carrier.ClaimFilingResult{CarrierClaimID: "c-1", ClaimNumber: "N-1", Status: carrier.StatusReceived}, nil
}

func (m *mockAdapter) GetClaimStatus(ctx context.Context, id string) (*carrier.ClaimStatusResult, error) {
	if m.getClaimStatusFunc != nil {
		return m.getClaimStatusFunc(ctx, id)
	}
	return &carrier.ClaimStatusResult{CarrierClaimID: id, Status: carrier.StatusReceived}, nil
}

func (m *mockAdapter) GetClaimByNumber(ctx context.Context, number string) (*carrier.ClaimStatusResult, error) {
	if m.getClaimByNumberFunc != nil {
		return m.getClaimByNumberFunc(ctx, number)
	}
	return &carrier.ClaimStatusResult{ClaimNumber: number, Status: carrier.StatusReceived}, nil
}

func (m *mockAdapter) FileSupplement(ctx context.Context, s *carrier.SupplementSubmission) (*carrier.SupplementResult, error) {
	if m.fileSupplementFunc != nil {
		return m.fileSupplementFunc(ctx, s)
	}
	return &carrier.SupplementResult{SupplementID: "s-1", Status: carrier.StatusSupplementRequested}, nil
}

func (m *mockAdapter) UploadDocument(ctx context.Context, d *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error) {
	if m.uploadDocumentFunc != nil {
		return m.uploadDocumentFunc(ctx, d)
	}
	return &carrier.DocumentUploadResult{DocumentID: "d-1"}, nil
}

func (m *mockAdapter) GetDocuments(ctx context.Context, id string) ([]carrier.Document, error) {
	return []carrier.Document{}, nil
}

func (m *mockAdapter) VerifyWebhook(payload []byte, signature string) bool {
	if m.verifyWebhookFunc != nil {
		return m.verifyWebhookFunc(payload, signature)
	}
	return true
}

func (m *mockAdapter) ParseWebhook(payload []byte) (*carrier.WebhookEvent, error) {
	if m.parseWebhookFunc != nil {
		return m.parseWebhookFunc(payload)
	}
	return &carrier.WebhookEvent{Type: carrier.EventStatusChanged}, nil
}

func (m *mockAdapter) MapStatus(s string) carrier.ClaimStatus {
	if status, ok := carrier.ParseStatus(s); ok {
		return status
	}
	return carrier.StatusReceived
}

func (m *mockAdapter) MapStatusToInternal(s carrier.ClaimStatus) carrier.InternalStatus {
	return s.Internal()
}

func (m *mockAdapter) RefreshToken(ctx context.Context) error { return nil }

type stubRegistry struct {
	adapters    map[string]port.CarrierAdapter
	invalidated []string
}

func (r *stubRegistry) Get(ctx context.Context, code string) (port.CarrierAdapter, error) {
	if a, ok := r.adapters[code]; ok {
		return a, nil
	}
	return nil, carrier.Errorf(carrier.CodeCarrierNotAvailable, false, "carrier %s not available", code)
}

func (r *stubRegistry) Invalidate(code string) {
	r.invalidated = append(r.invalidated, code)
}

func (r *stubRegistry) Codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		codes = append(codes, c)
	}
	return codes
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []*entity.IntelRecord
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, record *entity.IntelRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	return n.err
}

type stubInspector struct {
	pages int
	err   error
}

func (s stubInspector) PageCount(content []byte, contentType string) (int, error) {
	return s.pages, s.err
}

type fixture struct {
	claims     *memClaimRepo
	intel      *memIntelRepo
	activities *memActivityRepo
	notifier   *recordingNotifier
	registry   *stubRegistry
	service    CarrierService
}

type fixtureOption func(*CarrierServiceDeps)

func newFixture(adapter port.CarrierAdapter, claims []*entity.Claim, opts ...fixtureOption) *fixture {
	f := &fixture{
		claims:     newMemClaimRepo(claims...),
		intel:      &memIntelRepo{},
		activities: &memActivityRepo{},
		notifier:   &recordingNotifier{},
		registry:   &stubRegistry{adapters: map[string]port.CarrierAdapter{}},
	}
	if adapter != nil {
		f.registry.adapters[adapter.Code()] = adapter
	}

	deps := CarrierServiceDeps{
		Registry:   f.registry,
		Claims:     f.claims,
		Configs:    &mockConfigRepo{},
		Intel:      f.intel,
		Activities: f.activities,
		TxManager:  passthroughTx{},
		Notifier:   f.notifier,
		Logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.service = NewCarrierService(deps)
	return f
}

func filedClaim(id string, status carrier.InternalStatus) *entity.Claim {
	filedAt := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return &entity.Claim{
		ID:                 id,
		PolicyNumber:       "POL-123",
		Carrier:            "acme",
		CarrierClaimID:     "carrier-" + id,
		ClaimNumber:        "ACM-" + id,
		CarrierStatus:      carrier.StatusReceived,
		Status:             status,
		IsFiledWithCarrier: true,
		FiledAt:            &filedAt,
	}
}

func floatPtr(v float64) *float64 { return &v }
