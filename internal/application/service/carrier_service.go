package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

// DefaultPacingDelay separates consecutive carrier calls in a batch sync.
const DefaultPacingDelay = 500 * time.Millisecond

// CarrierService is the entry point the rest of the system uses to talk to
// insurance carriers. Failures come back as *carrier.Error values.
type CarrierService interface {
	GetAdapter(ctx context.Context, carrierCode string) (port.CarrierAdapter, error)
	FileClaim(ctx context.Context, claimID, carrierCode string, submission *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error)
	SyncClaimStatus(ctx context.Context, claimID string) (*SyncResult, error)
	SyncAllClaims(ctx context.Context, carrierCode string) (*SyncAllResult, error)
	FileSupplement(ctx context.Context, claimID string, submission *carrier.SupplementSubmission) (*carrier.SupplementResult, error)
	UploadDocument(ctx context.Context, claimID string, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error)
	GetDocuments(ctx context.Context, claimID string) ([]carrier.Document, error)
	TestConnection(ctx context.Context, carrierCode string) (bool, error)
	ListCarriers(ctx context.Context) ([]*carrier.Config, error)
	UpdateCarrierConfig(ctx context.Context, cfg *carrier.Config) (*carrier.Config, error)
}

// SyncResult describes one successful status sync.
type SyncResult struct {
	ClaimID        string                     `json:"claim_id"`
	CarrierCode    string                     `json:"carrier_code"`
	Snapshot       *carrier.ClaimStatusResult `json:"snapshot"`
	PreviousStatus carrier.InternalStatus     `json:"previous_status"`
	NewStatus      carrier.InternalStatus     `json:"new_status"`
	Changed        bool                       `json:"changed"`
	Intel          *entity.IntelRecord        `json:"intel,omitempty"`
}

// ClaimSyncOutcome is the per-claim line of a batch sync.
type ClaimSyncOutcome struct {
	ClaimID        string                 `json:"claim_id"`
	ClaimNumber    string                 `json:"claim_number,omitempty"`
	Success        bool                   `json:"success"`
	PreviousStatus carrier.InternalStatus `json:"previous_status,omitempty"`
	NewStatus      carrier.InternalStatus `json:"new_status,omitempty"`
	CarrierStatus  carrier.ClaimStatus    `json:"carrier_status,omitempty"`
	Changed        bool                   `json:"changed"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Retryable      bool                   `json:"retryable,omitempty"`
	Attempts       int                    `json:"attempts"`
	SyncedAt       time.Time              `json:"synced_at"`
}

// SyncAllResult aggregates a batch sync. Synced + Failed always equals Total.
type SyncAllResult struct {
	CarrierCode string             `json:"carrier_code"`
	Total       int                `json:"total"`
	Synced      int                `json:"synced"`
	Failed      int                `json:"failed"`
	Errors      []string           `json:"errors"`
	Results     []ClaimSyncOutcome `json:"results"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// CarrierServiceDeps groups the collaborators of the carrier service.
// Locker, Notifier, Inspector and Recorder are optional. ClaimRetry bounds
// how often SyncAllClaims retries a claim whose sync failed with a retryable
// error; the zero value syncs each claim once.
type CarrierServiceDeps struct {
	Registry    port.AdapterRegistry
	Claims      port.ClaimRepository
	Configs     port.CarrierConfigRepository
	Intel       port.IntelRepository
	Activities  port.ActivityRepository
	TxManager   port.TransactionManager
	Locker      port.ClaimLocker
	Notifier    port.IntelNotifier
	Inspector   port.DocumentInspector
	Recorder    port.SyncRecorder
	Logger      Logger
	PacingDelay time.Duration
	ClaimRetry  RetryPolicy
	Production  bool
	Now         func() time.Time
}

type carrierServiceImpl struct {
	deps CarrierServiceDeps

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewCarrierService creates a new CarrierService
func NewCarrierService(deps CarrierServiceDeps) CarrierService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.PacingDelay < 0 {
		deps.PacingDelay = 0
	}
	if deps.Locker == nil {
		deps.Locker = noopLocker{}
	}
	return &carrierServiceImpl{
		deps:     deps,
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetAdapter resolves a carrier code through the registry.
func (s *carrierServiceImpl) GetAdapter(ctx context.Context, carrierCode string) (port.CarrierAdapter, error) {
	code := normalizeCarrierCode(carrierCode)
	if code == "" {
		return nil, carrier.NewError(carrier.CodeCarrierNotAvailable, "carrier code is empty", false)
	}
	adapter, err := s.deps.Registry.Get(ctx, code)
	if err != nil {
		s.deps.Logger.Warn("Carrier adapter unavailable", "carrier", code, "error", err)
		return nil, carrier.AsError(err, carrier.CodeCarrierNotAvailable)
	}
	return adapter, nil
}

// FileClaim files the claim with the carrier and records the carrier's
// acknowledgment on the claim. A failed filing only touches the sync error
// fields and is returned to the caller.
func (s *carrierServiceImpl) FileClaim(ctx context.Context, claimID, carrierCode string, submission *carrier.ClaimSubmission) (*carrier.ClaimFilingResult, error) {
	carrierCode = normalizeCarrierCode(carrierCode)
	s.deps.Logger.Info("Filing claim with carrier", "claim_id", claimID, "carrier", carrierCode)

	if submission == nil {
		return nil, carrier.NewError(carrier.CodeValidation, "claim submission is required", false)
	}

	unlock, err := s.lock(ctx, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	claim, err := s.loadClaim(ctx, claimID, carrier.CodeFilingFailed)
	if err != nil {
		return nil, err
	}
	if claim.IsFiledWithCarrier {
		return nil, carrier.Errorf(carrier.CodeAlreadyFiled, false,
			"claim %s is already filed with %s as %s", claimID, claim.Carrier, claim.ClaimNumber)
	}

	adapter, err := s.GetAdapter(ctx, carrierCode)
	if err != nil {
		s.recordFailure(ctx, claimID, "file", carrierCode, err)
		return nil, err
	}

	sub := *submission
	sub.InternalClaimID = claimID

	result, err := guard(carrier.CodeFilingFailed, func() (*carrier.ClaimFilingResult, error) {
		return adapter.FileClaim(ctx, &sub)
	})
	if err != nil {
		s.recordFailure(ctx, claimID, "file", carrierCode, err)
		return nil, err
	}

	now := s.deps.Now()
	code := carrierCode
	status := result.Status
	internal := adapter.MapStatusToInternal(status)
	filed := true
	noError := ""

	update := &entity.ClaimUpdate{
		Carrier:            &code,
		CarrierClaimID:     &result.CarrierClaimID,
		ClaimNumber:        &result.ClaimNumber,
		CarrierStatus:      &status,
		Status:             &internal,
		IsFiledWithCarrier: &filed,
		FiledAt:            &now,
		LastSyncAt:         &now,
		LastSyncError:      &noError,
	}
	applyAdjuster(update, result.Adjuster)

	activity := s.newActivity(claimID, entity.ActivityClaimFiled,
		fmt.Sprintf("Claim filed with %s as %s", code, result.ClaimNumber),
		map[string]interface{}{
			"carrier":          code,
			"carrier_claim_id": result.CarrierClaimID,
			"claim_number":     result.ClaimNumber,
			"status":           status,
		})

	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.deps.Claims.Update(txCtx, claimID, update); err != nil {
			return fmt.Errorf("update claim: %w", err)
		}
		if err := s.deps.Activities.Create(txCtx, activity); err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		return nil
	})
	if err != nil {
		s.deps.Logger.Error("Claim filed but persisting the result failed",
			"claim_id", claimID,
			"carrier", code,
			"carrier_claim_id", result.CarrierClaimID,
			"claim_number", result.ClaimNumber,
			"error", err)
		cerr := carrier.Errorf(carrier.CodeFilingFailed, true, "persist filing result: %v", err)
		s.record(code, "file", cerr)
		return nil, cerr
	}

	s.record(code, "file", nil)
	s.deps.Logger.Info("Claim filed with carrier",
		"claim_id", claimID,
		"carrier", code,
		"claim_number", result.ClaimNumber,
		"status", status)

	return result, nil
}

// SyncClaimStatus pulls the carrier's current snapshot for one claim and
// persists it. An intel record is created only when the internal status moves.
func (s *carrierServiceImpl) SyncClaimStatus(ctx context.Context, claimID string) (*SyncResult, error) {
	unlock, err := s.lock(ctx, claimID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	claim, err := s.loadClaim(ctx, claimID, carrier.CodeSyncFailed)
	if err != nil {
		return nil, err
	}
	if !claim.HasCarrierReference() {
		return nil, carrier.Errorf(carrier.CodeNotFiled, false, "claim %s has not been filed with a carrier", claimID)
	}

	adapter, err := s.GetAdapter(ctx, claim.Carrier)
	if err != nil {
		s.recordFailure(ctx, claimID, "sync", claim.Carrier, err)
		return nil, err
	}

	snapshot, err := guard(carrier.CodeSyncFailed, func() (*carrier.ClaimStatusResult, error) {
		if claim.CarrierClaimID != "" {
			return adapter.GetClaimStatus(ctx, claim.CarrierClaimID)
		}
		return adapter.GetClaimByNumber(ctx, claim.ClaimNumber)
	})
	if err != nil {
		s.recordFailure(ctx, claimID, "sync", claim.Carrier, err)
		return nil, err
	}

	previous := claim.Status
	if !previous.IsValid() {
		previous = carrier.InternalPending
	}
	next := adapter.MapStatusToInternal(snapshot.Status)

	result := &SyncResult{
		ClaimID:        claimID,
		CarrierCode:    claim.Carrier,
		Snapshot:       snapshot,
		PreviousStatus: previous,
		NewStatus:      next,
		Changed:        previous != next,
	}

	update := s.snapshotUpdate(claim, snapshot, next)

	if result.Changed {
		result.Intel = s.newIntel(claim, previous, next, snapshot)
	}
	activity := s.newActivity(claimID, entity.ActivityStatusSynced,
		fmt.Sprintf("Carrier status synced: %s", snapshot.Status),
		map[string]interface{}{
			"carrier":         claim.Carrier,
			"carrier_status":  snapshot.Status,
			"previous_status": previous,
			"new_status":      next,
		})

	err = s.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.deps.Claims.Update(txCtx, claimID, update); err != nil {
			return fmt.Errorf("update claim: %w", err)
		}
		if result.Intel != nil {
			if err := s.deps.Intel.Create(txCtx, result.Intel); err != nil {
				return fmt.Errorf("create intel: %w", err)
			}
		}
		if err := s.deps.Activities.Create(txCtx, activity); err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		return nil
	})
	if err != nil {
		cerr := carrier.Errorf(carrier.CodeSyncFailed, true, "persist sync result: %v", err)
		s.recordFailure(ctx, claimID, "sync", claim.Carrier, cerr)
		return nil, cerr
	}

	s.record(claim.Carrier, "sync", nil)
	if result.Intel != nil {
		if s.deps.Recorder != nil {
			s.deps.Recorder.RecordIntel(claim.Carrier, result.Intel.Priority)
		}
		s.notify(ctx, result.Intel)
	}

	s.deps.Logger.Info("Claim status synced",
		"claim_id", claimID,
		"carrier", claim.Carrier,
		"carrier_status", snapshot.Status,
		"previous_status", previous,
		"new_status", next,
		"changed", result.Changed)

	return result, nil
}

// snapshotUpdate builds the field update for a successful sync. Figures the
// carrier did not report are left as they are.
func (s *carrierServiceImpl) snapshotUpdate(claim *entity.Claim, snap *carrier.ClaimStatusResult, internal carrier.InternalStatus) *entity.ClaimUpdate {
	now := s.deps.Now()
	status := snap.Status
	noError := ""

	update := &entity.ClaimUpdate{
		CarrierStatus:  &status,
		Status:         &internal,
		ApprovedAmount: snap.Financials.ApprovedAmount,
		PaidAmount:     snap.Financials.PaidAmount,
		Depreciation:   snap.Financials.Depreciation,
		ACV:            snap.Financials.ACV,
		RCV:            snap.Financials.RCV,
		InspectionDate: snap.InspectionDate,
		LastSyncAt:     &now,
		LastSyncError:  &noError,
	}
	applyAdjuster(update, snap.Adjuster)

	if claim.CarrierClaimID == "" && snap.CarrierClaimID != "" {
		id := snap.CarrierClaimID
		update.CarrierClaimID = &id
	}
	if claim.ClaimNumber == "" && snap.ClaimNumber != "" {
		number := snap.ClaimNumber
		update.ClaimNumber = &number
	}
	return update
}

// SyncAllClaims syncs every open filed claim of a carrier one at a time,
// pacing calls with a limiter shared by all batches for that carrier. Claims
// that fail with a retryable error are synced again in later rounds, with
// backoff, until ClaimRetry runs out. When ctx is done the remaining claims
// are counted as failed.
func (s *carrierServiceImpl) SyncAllClaims(ctx context.Context, carrierCode string) (*SyncAllResult, error) {
	code := normalizeCarrierCode(carrierCode)
	result := &SyncAllResult{
		CarrierCode: code,
		Errors:      []string{},
		Results:     []ClaimSyncOutcome{},
		StartedAt:   s.deps.Now(),
	}

	claims, err := s.deps.Claims.ListSyncable(ctx, code)
	if err != nil {
		return nil, carrier.Errorf(carrier.CodeSyncFailed, true, "list syncable claims: %v", err)
	}
	result.Total = len(claims)

	s.deps.Logger.Info("Starting batch sync", "carrier", code, "claims", len(claims))

	limiter := s.limiter(code)
	pending := make([]int, 0, len(claims))
	for _, claim := range claims {
		result.Results = append(result.Results, ClaimSyncOutcome{
			ClaimID:        claim.ID,
			ClaimNumber:    claim.ClaimNumber,
			PreviousStatus: claim.Status,
		})
		pending = append(pending, len(result.Results)-1)
	}

	attempts := s.deps.ClaimRetry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts && len(pending) > 0; attempt++ {
		if attempt > 1 {
			s.deps.Logger.Warn("Retrying failed claim syncs",
				"carrier", code, "claims", len(pending), "attempt", attempt)
			if err := sleepCtx(ctx, s.deps.ClaimRetry.Backoff(attempt-1)); err != nil {
				break
			}
		}

		var retry []int
		for _, i := range pending {
			outcome := &result.Results[i]

			var syncErr error
			if err := ctx.Err(); err != nil {
				syncErr = err
			} else if limiter != nil {
				syncErr = limiter.Wait(ctx)
			}

			var synced *SyncResult
			if syncErr == nil {
				synced, syncErr = s.SyncClaimStatus(ctx, outcome.ClaimID)
			}
			outcome.Attempts = attempt
			outcome.apply(ctx, synced, syncErr, s.deps.Now())
			if outcome.Retryable {
				retry = append(retry, i)
			}
		}
		pending = retry
	}
	result.tally()

	result.FinishedAt = s.deps.Now()
	s.deps.Logger.Info("Batch sync finished",
		"carrier", code,
		"total", result.Total,
		"synced", result.Synced,
		"failed", result.Failed,
		"duration", result.FinishedAt.Sub(result.StartedAt).String())

	return result, nil
}

// apply records the result of one SyncClaimStatus attempt.
func (o *ClaimSyncOutcome) apply(ctx context.Context, synced *SyncResult, err error, at time.Time) {
	o.SyncedAt = at
	if err != nil {
		o.Success = false
		o.ErrorCode = carrier.CodeOf(err)
		if o.ErrorCode == "" && ctx.Err() != nil {
			o.ErrorCode = carrier.CodeCanceled
		}
		o.Error = err.Error()
		o.Retryable = carrier.IsRetryable(err) && ctx.Err() == nil
		return
	}
	o.Success = true
	o.ErrorCode = ""
	o.Error = ""
	o.Retryable = false
	o.NewStatus = synced.NewStatus
	o.CarrierStatus = synced.Snapshot.Status
	o.Changed = synced.Changed
}

// tally recounts Synced, Failed and Errors from the per-claim outcomes.
func (r *SyncAllResult) tally() {
	r.Synced, r.Failed = 0, 0
	r.Errors = r.Errors[:0]
	for _, o := range r.Results {
		if o.Success {
			r.Synced++
			continue
		}
		r.Failed++
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", o.ClaimID, o.Error))
	}
}

// limiter returns the carrier's shared pacing limiter, nil when pacing is off.
func (s *carrierServiceImpl) limiter(code string) *rate.Limiter {
	if s.deps.PacingDelay <= 0 {
		return nil
	}
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	l, ok := s.limiters[code]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.deps.PacingDelay), 1)
		s.limiters[code] = l
	}
	return l
}

// FileSupplement amends a filed claim.
func (s *carrierServiceImpl) FileSupplement(ctx context.Context, claimID string, submission *carrier.SupplementSubmission) (*carrier.SupplementResult, error) {
	if submission == nil {
		return nil, carrier.NewError(carrier.CodeValidation, "supplement submission is required", false)
	}
	claim, adapter, err := s.filedClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	sub := *submission
	sub.CarrierClaimID = claim.CarrierClaimID
	sub.ClaimNumber = claim.ClaimNumber

	result, err := guard(carrier.CodeFilingFailed, func() (*carrier.SupplementResult, error) {
		return adapter.FileSupplement(ctx, &sub)
	})
	s.record(claim.Carrier, "supplement", err)
	if err != nil {
		s.deps.Logger.Error("Failed to file supplement", "claim_id", claimID, "carrier", claim.Carrier, "error", err)
		return nil, err
	}

	s.appendActivity(ctx, s.newActivity(claimID, entity.ActivitySupplementFiled,
		fmt.Sprintf("Supplement filed with %s: %s", claim.Carrier, sub.Reason),
		map[string]interface{}{
			"supplement_id": result.SupplementID,
			"status":        result.Status,
		}))

	return result, nil
}

// UploadDocument sends a document to the carrier for a filed claim. PDFs are
// opened first and rejected when unreadable.
func (s *carrierServiceImpl) UploadDocument(ctx context.Context, claimID string, doc *carrier.DocumentUpload) (*carrier.DocumentUploadResult, error) {
	if doc == nil || len(doc.Content) == 0 {
		return nil, carrier.NewError(carrier.CodeValidation, "document content is required", false)
	}
	claim, adapter, err := s.filedClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	pages := 0
	if s.deps.Inspector != nil && isPDF(doc) {
		pages, err = s.deps.Inspector.PageCount(doc.Content, doc.ContentType)
		if err != nil {
			return nil, carrier.Errorf(carrier.CodeValidation, false, "document %s is not a readable PDF: %v", doc.FileName, err)
		}
	}

	upload := *doc
	upload.CarrierClaimID = claim.CarrierClaimID
	upload.ClaimNumber = claim.ClaimNumber

	result, err := guard(carrier.CodeFilingFailed, func() (*carrier.DocumentUploadResult, error) {
		return adapter.UploadDocument(ctx, &upload)
	})
	s.record(claim.Carrier, "upload_document", err)
	if err != nil {
		s.deps.Logger.Error("Failed to upload document", "claim_id", claimID, "carrier", claim.Carrier, "error", err)
		return nil, err
	}

	meta := map[string]interface{}{
		"document_id":   result.DocumentID,
		"file_name":     doc.FileName,
		"document_type": doc.DocumentType,
	}
	if pages > 0 {
		meta["pages"] = pages
	}
	s.appendActivity(ctx, s.newActivity(claimID, entity.ActivityDocumentUploaded,
		fmt.Sprintf("Document %s uploaded to %s", doc.FileName, claim.Carrier), meta))

	return result, nil
}

// GetDocuments lists the documents the carrier holds for a filed claim.
func (s *carrierServiceImpl) GetDocuments(ctx context.Context, claimID string) ([]carrier.Document, error) {
	claim, adapter, err := s.filedClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.CarrierClaimID == "" {
		return nil, carrier.Errorf(carrier.CodeNotFiled, false, "claim %s has no carrier claim id", claimID)
	}
	return guard(carrier.CodeSyncFailed, func() ([]carrier.Document, error) {
		return adapter.GetDocuments(ctx, claim.CarrierClaimID)
	})
}

// TestConnection probes a carrier.
func (s *carrierServiceImpl) TestConnection(ctx context.Context, carrierCode string) (bool, error) {
	adapter, err := s.GetAdapter(ctx, carrierCode)
	if err != nil {
		return false, err
	}
	ok := adapter.TestConnection(ctx)
	s.deps.Logger.Info("Carrier connection tested", "carrier", carrierCode, "ok", ok)
	return ok, nil
}

// UpdateCarrierConfig stores a carrier's settings and drops its cached
// adapter so the next call is made with them. Credentials and tokens left
// empty keep their stored values.
func (s *carrierServiceImpl) UpdateCarrierConfig(ctx context.Context, cfg *carrier.Config) (*carrier.Config, error) {
	if cfg == nil {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier config is required", false)
	}
	updated := cfg.Clone()
	updated.Code = normalizeCarrierCode(updated.Code)
	if updated.Code == "" {
		return nil, carrier.NewError(carrier.CodeValidation, "carrier code is required", false)
	}

	existing, err := s.deps.Configs.GetByCode(ctx, updated.Code)
	if err != nil {
		return nil, fmt.Errorf("load carrier config: %w", err)
	}
	if existing != nil {
		keep := func(dst *string, stored string) {
			if *dst == "" {
				*dst = stored
			}
		}
		keep(&updated.APIKey, existing.APIKey)
		keep(&updated.ClientID, existing.ClientID)
		keep(&updated.ClientSecret, existing.ClientSecret)
		keep(&updated.WebhookSecret, existing.WebhookSecret)
		keep(&updated.RefreshToken, existing.RefreshToken)
		if updated.AccessToken == "" {
			updated.AccessToken = existing.AccessToken
			updated.TokenExpiry = existing.TokenExpiry
		}
	}

	if err := s.deps.Configs.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("save carrier config: %w", err)
	}
	s.deps.Registry.Invalidate(updated.Code)

	s.deps.Logger.Info("Carrier config updated",
		"carrier", updated.Code,
		"enabled", updated.Enabled,
		"test_mode", updated.TestMode,
		"created", existing == nil)
	return updated, nil
}

// ListCarriers returns the carriers usable for filing or syncing. Outside
// production the mock carrier is always offered.
func (s *carrierServiceImpl) ListCarriers(ctx context.Context) ([]*carrier.Config, error) {
	configs, err := s.deps.Configs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list carrier configs: %w", err)
	}

	usable := make([]*carrier.Config, 0, len(configs)+1)
	hasMock := false
	for _, cfg := range configs {
		if !cfg.Usable() {
			continue
		}
		if cfg.Code == "mock" {
			hasMock = true
		}
		usable = append(usable, cfg)
	}

	if !s.deps.Production && !hasMock {
		usable = append(usable, &carrier.Config{
			Code:                  "mock",
			Name:                  "Mock Carrier",
			TestMode:              true,
			Enabled:               true,
			SupportsDirectFiling:  true,
			SupportsStatusUpdates: true,
		})
	}
	return usable, nil
}

// filedClaim loads a claim that has been filed and resolves its adapter.
func (s *carrierServiceImpl) filedClaim(ctx context.Context, claimID string) (*entity.Claim, port.CarrierAdapter, error) {
	claim, err := s.loadClaim(ctx, claimID, carrier.CodeSyncFailed)
	if err != nil {
		return nil, nil, err
	}
	if !claim.IsFiledWithCarrier || !claim.HasCarrierReference() {
		return nil, nil, carrier.Errorf(carrier.CodeNotFiled, false, "claim %s has not been filed with a carrier", claimID)
	}
	adapter, err := s.GetAdapter(ctx, claim.Carrier)
	if err != nil {
		return nil, nil, err
	}
	return claim, adapter, nil
}

func (s *carrierServiceImpl) loadClaim(ctx context.Context, claimID, fallbackCode string) (*entity.Claim, error) {
	claim, err := s.deps.Claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, carrier.Errorf(fallbackCode, true, "load claim %s: %v", claimID, err)
	}
	if claim == nil {
		return nil, carrier.Errorf(carrier.CodeClaimNotFound, false, "claim %s not found", claimID)
	}
	return claim, nil
}

func (s *carrierServiceImpl) lock(ctx context.Context, claimID string) (func(), error) {
	unlock, err := s.deps.Locker.Lock(ctx, claimID)
	if err != nil {
		return nil, carrier.Errorf(carrier.CodeClaimLocked, true, "claim %s is busy: %v", claimID, err)
	}
	return unlock, nil
}

// recordFailure persists only the sync error metadata. Persistence errors
// here are logged and swallowed so the carrier failure reaches the caller.
func (s *carrierServiceImpl) recordFailure(ctx context.Context, claimID, operation, carrierCode string, cause error) {
	s.record(carrierCode, operation, cause)

	now := s.deps.Now()
	message := cause.Error()
	update := &entity.ClaimUpdate{LastSyncError: &message, LastSyncAt: &now}
	if err := s.deps.Claims.Update(ctx, claimID, update); err != nil {
		s.deps.Logger.Error("Failed to record sync error", "claim_id", claimID, "error", err)
	}

	s.deps.Logger.Warn("Carrier operation failed",
		"operation", operation,
		"claim_id", claimID,
		"carrier", carrierCode,
		"code", carrier.CodeOf(cause),
		"retryable", carrier.IsRetryable(cause),
		"error", cause)
}

func (s *carrierServiceImpl) record(carrierCode, operation string, err error) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordSync(carrierCode, operation, err)
	}
}

func (s *carrierServiceImpl) newIntel(claim *entity.Claim, previous, next carrier.InternalStatus, snap *carrier.ClaimStatusResult) *entity.IntelRecord {
	priority := entity.PriorityMedium
	if next == carrier.InternalApproved {
		priority = entity.PriorityHigh
	}

	label := claim.ClaimNumber
	if label == "" {
		label = claim.ID
	}
	summary := fmt.Sprintf("%s reports claim %s as %s (was %s).", claim.Carrier, label, next, previous)
	if snap.StatusMessage != "" {
		summary += " " + snap.StatusMessage
	}

	return &entity.IntelRecord{
		ID:             uuid.New().String(),
		ClaimID:        claim.ID,
		CarrierCode:    claim.Carrier,
		Type:           entity.IntelTypeCarrierStatusChange,
		Title:          fmt.Sprintf("Claim %s is now %s", label, next),
		Summary:        summary,
		Priority:       priority,
		PreviousStatus: string(previous),
		NewStatus:      string(next),
		CreatedAt:      s.deps.Now(),
	}
}

func (s *carrierServiceImpl) newActivity(claimID, action, description string, meta map[string]interface{}) *entity.ActivityLog {
	log := &entity.ActivityLog{
		ID:          uuid.New().String(),
		ClaimID:     claimID,
		Action:      action,
		Description: description,
		CreatedAt:   s.deps.Now(),
	}
	if len(meta) > 0 {
		if data, err := json.Marshal(meta); err == nil {
			log.Metadata = string(data)
		}
	}
	return log
}

func (s *carrierServiceImpl) appendActivity(ctx context.Context, log *entity.ActivityLog) {
	if err := s.deps.Activities.Create(ctx, log); err != nil {
		s.deps.Logger.Error("Failed to append activity", "claim_id", log.ClaimID, "action", log.Action, "error", err)
	}
}

// notify is best effort; the intel record is already committed.
func (s *carrierServiceImpl) notify(ctx context.Context, record *entity.IntelRecord) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, record); err != nil {
		s.deps.Logger.Warn("Failed to deliver intel notification", "claim_id", record.ClaimID, "error", err)
	}
}

func applyAdjuster(update *entity.ClaimUpdate, adj *carrier.Adjuster) {
	if adj == nil || adj.Name == "" {
		return
	}
	name, phone, email := adj.Name, adj.Phone, adj.Email
	update.AdjusterName = &name
	update.AdjusterPhone = &phone
	update.AdjusterEmail = &email
}

func isPDF(doc *carrier.DocumentUpload) bool {
	return strings.EqualFold(doc.ContentType, "application/pdf") ||
		strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}

// guard runs an adapter call, turning panics and untagged errors into a
// retryable failure under code.
func guard[T any](code string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = carrier.Errorf(code, true, "unexpected failure: %v", r)
		}
	}()

	result, err = fn()
	if err != nil {
		var zero T
		return zero, carrier.AsError(err, code)
	}
	return result, nil
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// normalizeCarrierCode matches the registry's keying so stored claims and
// ListSyncable agree on the code.
func normalizeCarrierCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
