package carriers

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
)

// MockCode is the registry key of the offline adapter.
const MockCode = "mock"

// mockProgression is the happy path a mock claim walks through over time.
var mockProgression = []carrier.ClaimStatus{
	carrier.StatusReceived,
	carrier.StatusAssigned,
	carrier.StatusInspectionScheduled,
	carrier.StatusInspectionComplete,
	carrier.StatusUnderReview,
	carrier.StatusApproved,
	carrier.StatusPaymentProcessing,
	carrier.StatusPaymentIssued,
	carrier.StatusClosed,
}

var mockAdjusters = []carrier.Adjuster{
	{ID: "ADJ-1001", Name: "Dana Whitfield", Phone: "5125550142", Email: "dana.whitfield@mock-carrier.test"},
	{ID: "ADJ-1002", Name: "Marcus Okafor", Phone: "5125550187", Email: "marcus.okafor@mock-carrier.test"},
	{ID: "ADJ-1003", Name: "Priya Raman", Phone: "5125550119", Email: "priya.raman@mock-carrier.test"},
}

// MockOptions tunes the simulated carrier.
type MockOptions struct {
	MinLatency time.Duration
	MaxLatency time.Duration
	// FailureRate is the probability that a filing is rejected with VALIDATION_ERROR.
	FailureRate float64
	// StepInterval advances filed claims one status per interval. Zero freezes them.
	StepInterval time.Duration
	Seed         int64
	Now          func() time.Time
}

// DefaultMockOptions mirrors a slow, mostly reliable carrier.
func DefaultMockOptions() MockOptions {
	return MockOptions{
		MinLatency:  200 * time.Millisecond,
		MaxLatency:  800 * time.Millisecond,
		FailureRate: 0.05,
	}
}

type mockClaim struct {
	snapshot carrier.ClaimStatusResult
	filedAt  time.Time
	amount   float64
}

// MockAdapter simulates a carrier entirely in memory for development and tests.
type MockAdapter struct {
	opts MockOptions

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.RWMutex
	config    *carrier.Config
	claims    map[string]*mockClaim
	byNumber  map[string]string
	documents map[string][]carrier.Document
}

// NewMockAdapter creates a mock carrier.
func NewMockAdapter(opts MockOptions) *MockAdapter {
	if opts.MaxLatency < opts.MinLatency {
		opts.MaxLatency = opts.MinLatency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockAdapter{
		opts:      opts,
		rng:       rand.New(rand.NewSource(seed)),
		config:    &carrier.Config{Code: MockCode, Name: "Mock Carrier", TestMode: true},
		claims:    make(map[string]*mockClaim),
		byNumber:  make(map[string]string),
		documents: make(map[string][]carrier.Document),
	}
}

// Code implements port.CarrierAdapter.
func (m *MockAdapter) Code() string { return MockCode }

// Initialize implements port.CarrierAdapter.
func (m *MockAdapter) Initialize(_ context.Context, cfg *carrier.Config) error {
	if cfg == nil {
		return nil
	}
	m.mu.Lock()
	m.config = cfg.Clone()
	m.mu.Unlock()
	return nil
}

// TestConnection implements port.CarrierAdapter.
func (m *MockAdapter) TestConnection(ctx context.Context) bool {
	return m.delay(ctx) == nil
}

// FileClaim implements port.CarrierAdapter.
func (m *MockAdapter) FileClaim(ctx context.Context, submission *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if submission == nil || strings.TrimSpace(submission.PolicyNumber) == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "policy number is required", false)
	}
	if m.chance(m.opts.FailureRate) {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier rejected the submission: policy could not be verified", false)
	}

	now := m.opts.Now()
	id := "mock-" + uuid.New().String()

	amount := 0.0
	if submission.InitialEstimate != nil {
		amount = *submission.InitialEstimate
	} else {
		amount = float64(2500 + m.intn(22500))
	}

	m.mu.Lock()
	number := m.claimNumberLocked(now)
	claim := &mockClaim{
		filedAt: now,
		amount:  amount,
		snapshot: carrier.ClaimStatusResult{
			CarrierClaimID: id,
			ClaimNumber:    number,
			Status:         carrier.StatusReceived,
			StatusCode:     "RECEIVED",
			StatusMessage:  "Claim received",
			LastUpdated:    now,
			Timeline: []carrier.TimelineEvent{{
				Timestamp:   now,
				Type:        "filed",
				Description: "First notice of loss received",
				Actor:       "system",
			}},
		},
	}

	m.claims[id] = claim
	m.byNumber[number] = id
	m.mu.Unlock()

	eta := now.AddDate(0, 0, 3)
	return &carrier.ClaimFilingResult{
		CarrierClaimID: id,
		ClaimNumber:    number,
		Status:         carrier.StatusReceived,
		NextSteps: []string{
			"An adjuster will be assigned within 1-2 business days",
			"Keep receipts for any emergency repairs",
			"Take photos of all damaged areas before cleanup",
		},
		EstimatedResponseDate: &eta,
		TrackingURL:           "https://mock-carrier.test/claims/" + number,
	}, nil
}

// GetClaimStatus implements port.CarrierAdapter. Unknown ids get a
// synthesized snapshot that stays stable for later lookups.
func (m *MockAdapter) GetClaimStatus(ctx context.Context, carrierClaimID string) (*carrier.ClaimStatusResult, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if carrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	claim, ok := m.claims[carrierClaimID]
	if !ok {
		claim = m.synthesizeLocked(carrierClaimID, m.claimNumberLocked(m.opts.Now()))
	}
	return m.snapshotLocked(claim), nil
}

// GetClaimByNumber implements port.CarrierAdapter.
func (m *MockAdapter) GetClaimByNumber(ctx context.Context, claimNumber string) (*carrier.ClaimStatusResult, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if claimNumber == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "claim number is required", false)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var claim *mockClaim
	if id, ok := m.byNumber[claimNumber]; ok {
		claim = m.claims[id]
	} else {
		claim = m.synthesizeLocked("mock-"+uuid.New().String(), claimNumber)
	}
	return m.snapshotLocked(claim), nil
}

// FileSupplement implements port.CarrierAdapter.
func (m *MockAdapter) FileSupplement(ctx context.Context, submission *carrier.SupplementSubmission) (*carrier.SupplementResult, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if submission == nil || submission.CarrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}

	now := m.opts.Now()
	m.mu.Lock()
	if claim, ok := m.claims[submission.CarrierClaimID]; ok {
		claim.snapshot.Timeline = append(claim.snapshot.Timeline, carrier.TimelineEvent{
			Timestamp:   now,
			Type:        "supplement",
			Description: "Supplement received: " + submission.Reason,
			Actor:       "insured",
		})
	}
	m.mu.Unlock()

	return &carrier.SupplementResult{
		SupplementID: "sup-" + uuid.New().String(),
		Status:       carrier.StatusSupplementRequested,
		Message:      "Supplement received and queued for adjuster review",
		SubmittedAt:  now,
	}, nil
}

// UploadDocument implements port.CarrierAdapter.
func (m *MockAdapter) UploadDocument(ctx context.Context, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	if doc == nil || doc.CarrierClaimID == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier claim id is required", false)
	}
	if len(doc.Content) == 0 {
		return nil, carrier.NewError(carrier.CodeValidation, "document content is empty", false)
	}

	now := m.opts.Now()
	id := "doc-" + uuid.New().String()
	url := fmt.Sprintf("https://mock-carrier.test/claims/%s/documents/%s", doc.CarrierClaimID, id)

	m.mu.Lock()
	m.documents[doc.CarrierClaimID] = append(m.documents[doc.CarrierClaimID], carrier.Document{
		ID:          id,
		Name:        doc.FileName,
		Type:        doc.DocumentType,
		ContentType: doc.ContentType,
		URL:         url,
		UploadedAt:  now,
		Source:      "insured",
	})
	m.mu.Unlock()

	return &carrier.DocumentUploadResult{DocumentID: id, UploadedAt: now, URL: url}, nil
}

// GetDocuments implements port.CarrierAdapter.
func (m *MockAdapter) GetDocuments(ctx context.Context, carrierClaimID string) ([]carrier.Document, error) {
	if err := m.delay(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]carrier.Document, len(m.documents[carrierClaimID]))
	copy(docs, m.documents[carrierClaimID])
	return docs, nil
}

// VerifyWebhook implements port.CarrierAdapter. It checks the same
// HMAC-SHA256 signature as a real carrier and rejects everything when no
// secret is configured.
func (m *MockAdapter) VerifyWebhook(payload []byte, signature string) bool {
	m.mu.RLock()
	secret := m.config.WebhookSecret
	m.mu.RUnlock()

	return VerifyHMACSHA256(secret, payload, signature)
}

type mockWebhookPayload struct {
	Event       string                 `json:"event"`
	ClaimID     string                 `json:"claimId"`
	ClaimNumber string                 `json:"claimNumber"`
	Timestamp   string                 `json:"timestamp"`
	Data        map[string]interface{} `json:"data"`
}

// ParseWebhook implements port.CarrierAdapter.
func (m *MockAdapter) ParseWebhook(payload []byte) (*carrier.WebhookEvent, error) {
	var body mockWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, carrier.Errorf(carrier.CodeInvalidPayload, false, "malformed webhook payload: %v", err)
	}
	if body.ClaimID == "" && body.ClaimNumber == "" {
		return nil, carrier.NewError(carrier.CodeInvalidPayload, "webhook carries no claim reference", false)
	}

	eventType := carrier.WebhookEventType(body.Event)
	if !eventType.IsValid() {
		eventType = carrier.EventStatusChanged
	}
	ts := ParseTime(body.Timestamp)
	if ts.IsZero() {
		ts = m.opts.Now()
	}

	return &carrier.WebhookEvent{
		Type:           eventType,
		CarrierCode:    MockCode,
		CarrierClaimID: body.ClaimID,
		ClaimNumber:    body.ClaimNumber,
		Timestamp:      ts,
		Payload:        body.Data,
	}, nil
}

// MapStatus implements port.CarrierAdapter.
func (m *MockAdapter) MapStatus(carrierStatus string) carrier.ClaimStatus {
	normalized := strings.ToLower(strings.TrimSpace(carrierStatus))
	normalized = strings.NewReplacer("_", "-", " ", "-").Replace(normalized)
	if status, ok := carrier.ParseStatus(normalized); ok {
		return status
	}
	return carrier.StatusReceived
}

// MapStatusToInternal implements port.CarrierAdapter.
func (m *MockAdapter) MapStatusToInternal(status carrier.ClaimStatus) carrier.InternalStatus {
	return status.Internal()
}

// RefreshToken implements port.CarrierAdapter; the mock has no tokens.
func (m *MockAdapter) RefreshToken(context.Context) error {
	return nil
}

// synthesizeLocked fabricates a plausible claim at a random point of the
// progression and stores it. Caller holds m.mu.
func (m *MockAdapter) synthesizeLocked(id, number string) *mockClaim {
	now := m.opts.Now()
	stage := m.intn(len(mockProgression))
	daysAgo := 3 + m.intn(40)

	claim := &mockClaim{
		filedAt: now.AddDate(0, 0, -daysAgo),
		amount:  float64(2500 + m.intn(22500)),
		snapshot: carrier.ClaimStatusResult{
			CarrierClaimID: id,
			ClaimNumber:    number,
			LastUpdated:    now,
		},
	}
	m.applyStageLocked(claim, stage)
	m.claims[id] = claim
	m.byNumber[number] = id
	return claim
}

// snapshotLocked advances a filed claim by elapsed time and returns a copy.
func (m *MockAdapter) snapshotLocked(claim *mockClaim) *carrier.ClaimStatusResult {
	if m.opts.StepInterval > 0 {
		steps := int(m.opts.Now().Sub(claim.filedAt) / m.opts.StepInterval)
		if steps >= len(mockProgression) {
			steps = len(mockProgression) - 1
		}
		if steps > stageOf(claim.snapshot.Status) {
			m.applyStageLocked(claim, steps)
		}
	}

	out := claim.snapshot
	if claim.snapshot.Adjuster != nil {
		adj := *claim.snapshot.Adjuster
		out.Adjuster = &adj
	}
	out.Timeline = append([]carrier.TimelineEvent(nil), claim.snapshot.Timeline...)
	out.Documents = append([]carrier.Document(nil), m.documents[claim.snapshot.CarrierClaimID]...)
	return &out
}

// applyStageLocked sets the status for a progression stage along with the
// fields a real carrier would have populated by then.
func (m *MockAdapter) applyStageLocked(claim *mockClaim, stage int) {
	status := mockProgression[stage]
	snap := &claim.snapshot
	now := m.opts.Now()

	snap.Status = status
	snap.StatusCode = strings.ToUpper(strings.ReplaceAll(string(status), "-", "_"))
	snap.StatusMessage = "Claim " + strings.ReplaceAll(string(status), "-", " ")
	snap.LastUpdated = now
	snap.Timeline = append(snap.Timeline, carrier.TimelineEvent{
		Timestamp:   now,
		Type:        "status_change",
		Description: snap.StatusMessage,
		Actor:       "carrier",
	})

	if stage >= stageOf(carrier.StatusAssigned) && snap.Adjuster == nil {
		adj := mockAdjusters[m.intn(len(mockAdjusters))]
		snap.Adjuster = &adj
	}
	if stage >= stageOf(carrier.StatusInspectionScheduled) && snap.InspectionDate == nil {
		inspection := claim.filedAt.AddDate(0, 0, 5)
		snap.InspectionDate = &inspection
		snap.InspectionScheduled = true
	}
	if stage >= stageOf(carrier.StatusApproved) && snap.Financials.ApprovedAmount == nil {
		rcv := claim.amount
		depreciation := rcv * 0.15
		acv := rcv - depreciation
		snap.Financials.RCV = floatPtr(rcv)
		snap.Financials.Depreciation = floatPtr(depreciation)
		snap.Financials.ACV = floatPtr(acv)
		snap.Financials.ApprovedAmount = floatPtr(acv)
	}
	if stage >= stageOf(carrier.StatusPaymentIssued) && snap.Financials.PaidAmount == nil {
		snap.Financials.PaidAmount = floatPtr(*snap.Financials.ApprovedAmount)
	}
}

func stageOf(status carrier.ClaimStatus) int {
	for i, s := range mockProgression {
		if s == status {
			return i
		}
	}
	return -1
}

// claimNumber renders MCK<year>-<6 digits>.
// claimNumberLocked draws a claim number not yet handed out. Caller holds m.mu.
func (m *MockAdapter) claimNumberLocked(now time.Time) string {
	for {
		number := fmt.Sprintf("MCK%04d-%06d", now.Year(), m.intn(1000000))
		if _, taken := m.byNumber[number]; !taken {
			return number
		}
	}
}

// delay sleeps a random latency within bounds, returning early on cancellation.
func (m *MockAdapter) delay(ctx context.Context) error {
	d := m.opts.MinLatency
	if spread := m.opts.MaxLatency - m.opts.MinLatency; spread > 0 {
		d += time.Duration(m.int63n(int64(spread)))
	}
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return carrier.NewError(carrier.CodeCanceled, err.Error(), false)
		}
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return carrier.NewError(carrier.CodeCanceled, ctx.Err().Error(), false)
	case <-timer.C:
		return nil
	}
}

func (m *MockAdapter) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Float64() < p
}

func (m *MockAdapter) intn(n int) int {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(n)
}

func (m *MockAdapter) int63n(n int64) int64 {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Int63n(n)
}
