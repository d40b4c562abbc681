package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
	"github.com/garyjia/carrier-integration/internal/infrastructure/persistence/sqlite"
)

const claimColumns = `
	id, customer_id, policy_number, carrier, carrier_claim_id, claim_number,
	carrier_status, status, approved_amount, paid_amount, depreciation, acv, rcv,
	adjuster_name, adjuster_phone, adjuster_email, inspection_date,
	is_filed_with_carrier, filed_at, last_sync_at, last_sync_error, created_at
`

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a claim record
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}
	if claim.Status == "" {
		claim.Status = carrier.InternalPending
	}

	query := `
		INSERT INTO claims (
			id, customer_id, policy_number, carrier, carrier_claim_id, claim_number,
			carrier_status, status, approved_amount, paid_amount, depreciation, acv, rcv,
			adjuster_name, adjuster_phone, adjuster_email, inspection_date,
			is_filed_with_carrier, filed_at, last_sync_at, last_sync_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.exec(ctx).ExecContext(ctx, query,
		claim.ID,
		claim.CustomerID,
		claim.PolicyNumber,
		claim.Carrier,
		claim.CarrierClaimID,
		claim.ClaimNumber,
		string(claim.CarrierStatus),
		string(claim.Status),
		nullFloat(claim.ApprovedAmount),
		nullFloat(claim.PaidAmount),
		nullFloat(claim.Depreciation),
		nullFloat(claim.ACV),
		nullFloat(claim.RCV),
		claim.AdjusterName,
		claim.AdjusterPhone,
		claim.AdjusterEmail,
		nullTime(claim.InspectionDate),
		claim.IsFiledWithCarrier,
		nullTime(claim.FiledAt),
		nullTime(claim.LastSyncAt),
		claim.LastSyncError,
		claim.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("claim_id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetByID retrieves a claim by ID
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByCarrierClaimID retrieves a claim by the carrier-assigned id
func (r *ClaimRepository) GetByCarrierClaimID(ctx context.Context, carrierCode, carrierClaimID string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE carrier = ? AND carrier_claim_id = ? LIMIT 1`
	return r.getOne(ctx, query, carrierCode, carrierClaimID)
}

// GetByClaimNumber retrieves a claim by the carrier's claim number
func (r *ClaimRepository) GetByClaimNumber(ctx context.Context, carrierCode, claimNumber string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE carrier = ? AND claim_number = ? LIMIT 1`
	return r.getOne(ctx, query, carrierCode, claimNumber)
}

func (r *ClaimRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.Claim, error) {
	claim, err := scanClaim(r.exec(ctx).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// Update writes the set fields of update and nothing else
func (r *ClaimRepository) Update(ctx context.Context, id string, update *entity.ClaimUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}

	sets, args := claimUpdateSet(update)
	query := `UPDATE claims SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	result, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.String("claim_id", id), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("claim not found: %s", id)
	}
	return nil
}

func claimUpdateSet(u *entity.ClaimUpdate) ([]string, []interface{}) {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if u.Carrier != nil {
		add("carrier", *u.Carrier)
	}
	if u.CarrierClaimID != nil {
		add("carrier_claim_id", *u.CarrierClaimID)
	}
	if u.ClaimNumber != nil {
		add("claim_number", *u.ClaimNumber)
	}
	if u.CarrierStatus != nil {
		add("carrier_status", string(*u.CarrierStatus))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.ApprovedAmount != nil {
		add("approved_amount", *u.ApprovedAmount)
	}
	if u.PaidAmount != nil {
		add("paid_amount", *u.PaidAmount)
	}
	if u.Depreciation != nil {
		add("depreciation", *u.Depreciation)
	}
	if u.ACV != nil {
		add("acv", *u.ACV)
	}
	if u.RCV != nil {
		add("rcv", *u.RCV)
	}
	if u.AdjusterName != nil {
		add("adjuster_name", *u.AdjusterName)
	}
	if u.AdjusterPhone != nil {
		add("adjuster_phone", *u.AdjusterPhone)
	}
	if u.AdjusterEmail != nil {
		add("adjuster_email", *u.AdjusterEmail)
	}
	if u.InspectionDate != nil {
		add("inspection_date", *u.InspectionDate)
	}
	if u.IsFiledWithCarrier != nil {
		add("is_filed_with_carrier", *u.IsFiledWithCarrier)
	}
	if u.FiledAt != nil {
		add("filed_at", *u.FiledAt)
	}
	if u.LastSyncAt != nil {
		add("last_sync_at", *u.LastSyncAt)
	}
	if u.LastSyncError != nil {
		add("last_sync_error", *u.LastSyncError)
	}
	return sets, args
}

// ListSyncable returns filed claims of a carrier that are not closed or denied
func (r *ClaimRepository) ListSyncable(ctx context.Context, carrierCode string) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + `
		FROM claims
		WHERE carrier = ?
			AND is_filed_with_carrier = 1
			AND status NOT IN (?, ?)
		ORDER BY created_at, id
	`

	rows, err := r.exec(ctx).QueryContext(ctx, query, carrierCode,
		string(carrier.InternalClosed), string(carrier.InternalDenied))
	if err != nil {
		r.logger.Error("Failed to list syncable claims", zap.String("carrier", carrierCode), zap.Error(err))
		return nil, fmt.Errorf("failed to list syncable claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var (
		claim                                  entity.Claim
		carrierStatus, status                  string
		approved, paid, depreciation, acv, rcv sql.NullFloat64
		inspection, filedAt, lastSyncAt        sql.NullTime
	)

	err := row.Scan(
		&claim.ID,
		&claim.CustomerID,
		&claim.PolicyNumber,
		&claim.Carrier,
		&claim.CarrierClaimID,
		&claim.ClaimNumber,
		&carrierStatus,
		&status,
		&approved,
		&paid,
		&depreciation,
		&acv,
		&rcv,
		&claim.AdjusterName,
		&claim.AdjusterPhone,
		&claim.AdjusterEmail,
		&inspection,
		&claim.IsFiledWithCarrier,
		&filedAt,
		&lastSyncAt,
		&claim.LastSyncError,
		&claim.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.CarrierStatus = carrier.ClaimStatus(carrierStatus)
	claim.Status = carrier.InternalStatus(status)
	claim.ApprovedAmount = floatFromNull(approved)
	claim.PaidAmount = floatFromNull(paid)
	claim.Depreciation = floatFromNull(depreciation)
	claim.ACV = floatFromNull(acv)
	claim.RCV = floatFromNull(rcv)
	claim.InspectionDate = timeFromNull(inspection)
	claim.FiledAt = timeFromNull(filedAt)
	claim.LastSyncAt = timeFromNull(lastSyncAt)
	return &claim, nil
}

func (r *ClaimRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

// Verify interface compliance
var _ port.ClaimRepository = (*ClaimRepository)(nil)
