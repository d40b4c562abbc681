package port

import (
	"context"
	"time"

	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

// ClaimRepository is the persistence surface this layer needs from the claim
// store: read by id, lookups by carrier reference, and field-level updates.
type ClaimRepository interface {
	// Create inserts a claim record; intake normally owns this.
	Create(ctx context.Context, claim *entity.Claim) error

	// Lookups return nil, nil when no record matches.
	GetByID(ctx context.Context, id string) (*entity.Claim, error)

	GetByCarrierClaimID(ctx context.Context, carrierCode, carrierClaimID string) (*entity.Claim, error)
	GetByClaimNumber(ctx context.Context, carrierCode, claimNumber string) (*entity.Claim, error)

	// Update writes only the non-nil fields of update.
	Update(ctx context.Context, id string, update *entity.ClaimUpdate) error

	// ListSyncable returns filed claims for a carrier that are not closed or denied.
	ListSyncable(ctx context.Context, carrierCode string) ([]*entity.Claim, error)
}

// CarrierConfigRepository stores per-carrier connection settings. GetByCode
// returns nil, nil for an unknown code.
type CarrierConfigRepository interface {
	GetByCode(ctx context.Context, code string) (*carrier.Config, error)
	List(ctx context.Context) ([]*carrier.Config, error)
	Upsert(ctx context.Context, cfg *carrier.Config) error
	UpdateTokens(ctx context.Context, code, accessToken, refreshToken string, expiry *time.Time) error
}

// IntelRepository stores intel records
type IntelRepository interface {
	Create(ctx context.Context, record *entity.IntelRecord) error
	ListByClaimID(ctx context.Context, claimID string) ([]*entity.IntelRecord, error)
}

// ActivityRepository stores claim activity logs
type ActivityRepository interface {
	Create(ctx context.Context, log *entity.ActivityLog) error
	ListByClaimID(ctx context.Context, claimID string) ([]*entity.ActivityLog, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
