package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

// WebhookService ingests carrier notifications. A webhook is only a hint:
// the matched claim is re-synced from the carrier.
type WebhookService interface {
	HandleWebhook(ctx context.Context, carrierCode string, payload []byte, signature string) (*WebhookOutcome, error)
}

// WebhookOutcome reports what a webhook delivery led to.
type WebhookOutcome struct {
	Event     *carrier.WebhookEvent `json:"event"`
	ClaimID   string                `json:"claim_id,omitempty"`
	Matched   bool                  `json:"matched"`
	Sync      *SyncResult           `json:"sync,omitempty"`
	SyncError string                `json:"sync_error,omitempty"`
}

type webhookServiceImpl struct {
	carriers   CarrierService
	claims     port.ClaimRepository
	activities port.ActivityRepository
	logger     Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(
	carriers CarrierService,
	claims port.ClaimRepository,
	activities port.ActivityRepository,
	logger Logger,
) WebhookService {
	return &webhookServiceImpl{
		carriers:   carriers,
		claims:     claims,
		activities: activities,
		logger:     logger,
	}
}

// HandleWebhook verifies the signature before any parsing, then matches the
// event to a claim and syncs it. Unmatched events are acknowledged.
func (s *webhookServiceImpl) HandleWebhook(ctx context.Context, carrierCode string, payload []byte, signature string) (*WebhookOutcome, error) {
	adapter, err := s.carriers.GetAdapter(ctx, carrierCode)
	if err != nil {
		return nil, err
	}

	if !adapter.VerifyWebhook(payload, signature) {
		s.logger.Warn("Rejected webhook with invalid signature", "carrier", carrierCode, "payload_size", len(payload))
		return nil, carrier.NewError(carrier.CodeInvalidSignature, "webhook signature verification failed", false)
	}

	event, err := guard(carrier.CodeInvalidPayload, func() (*carrier.WebhookEvent, error) {
		return adapter.ParseWebhook(payload)
	})
	if err != nil {
		s.logger.Warn("Rejected malformed webhook", "carrier", carrierCode, "error", err)
		return nil, err
	}

	outcome := &WebhookOutcome{Event: event}

	claim, err := s.findClaim(ctx, carrierCode, event)
	if err != nil {
		return nil, carrier.Errorf(carrier.CodeSyncFailed, true, "look up webhook claim: %v", err)
	}
	if claim == nil {
		s.logger.Warn("Webhook for unknown claim",
			"carrier", carrierCode,
			"event", event.Type,
			"carrier_claim_id", event.CarrierClaimID,
			"claim_number", event.ClaimNumber)
		return outcome, nil
	}

	outcome.ClaimID = claim.ID
	outcome.Matched = true

	log := &entity.ActivityLog{
		ID:          uuid.New().String(),
		ClaimID:     claim.ID,
		Action:      entity.ActivityWebhookReceived,
		Description: fmt.Sprintf("Webhook %s received from %s", event.Type, carrierCode),
		CreatedAt:   event.Timestamp,
	}
	if err := s.activities.Create(ctx, log); err != nil {
		s.logger.Error("Failed to record webhook activity", "claim_id", claim.ID, "error", err)
	}

	sync, err := s.carriers.SyncClaimStatus(ctx, claim.ID)
	if err != nil {
		outcome.SyncError = err.Error()
		s.logger.Warn("Webhook-triggered sync failed", "claim_id", claim.ID, "carrier", carrierCode, "error", err)
		return outcome, nil
	}
	outcome.Sync = sync

	s.logger.Info("Webhook processed",
		"carrier", carrierCode,
		"event", event.Type,
		"claim_id", claim.ID,
		"changed", sync.Changed)

	return outcome, nil
}

func (s *webhookServiceImpl) findClaim(ctx context.Context, carrierCode string, event *carrier.WebhookEvent) (*entity.Claim, error) {
	if event.CarrierClaimID != "" {
		claim, err := s.claims.GetByCarrierClaimID(ctx, carrierCode, event.CarrierClaimID)
		if err != nil || claim != nil {
			return claim, err
		}
	}
	if event.ClaimNumber != "" {
		return s.claims.GetByClaimNumber(ctx, carrierCode, event.ClaimNumber)
	}
	return nil, nil
}
