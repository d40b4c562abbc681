package port

import (
	"context"

	"github.com/garyjia/carrier-integration/internal/domain/entity"
)

// ClaimLocker serializes read-modify-persist sequences on a single claim.
// Lock blocks until the lock is held or ctx is done; the returned func releases it.
type ClaimLocker interface {
	Lock(ctx context.Context, claimID string) (unlock func(), err error)
}

// IntelNotifier pushes intel records to people who should know about them.
type IntelNotifier interface {
	Notify(ctx context.Context, record *entity.IntelRecord) error
}

// SyncRecorder observes orchestration outcomes for metrics.
type SyncRecorder interface {
	RecordSync(carrierCode, operation string, err error)
	RecordIntel(carrierCode, priority string)
}
