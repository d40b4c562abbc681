package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/entity"
	"github.com/garyjia/carrier-integration/internal/infrastructure/persistence/sqlite"
)

// IntelRepository implements port.IntelRepository
type IntelRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIntelRepository creates a new intel repository
func NewIntelRepository(db *sql.DB, logger *zap.Logger) port.IntelRepository {
	return &IntelRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an intel record
func (r *IntelRepository) Create(ctx context.Context, record *entity.IntelRecord) error {
	query := `
		INSERT INTO intel_records (
			id, claim_id, carrier_code, type, title, summary, priority,
			previous_status, new_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		record.ID,
		record.ClaimID,
		record.CarrierCode,
		record.Type,
		record.Title,
		record.Summary,
		record.Priority,
		record.PreviousStatus,
		record.NewStatus,
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create intel record", zap.String("claim_id", record.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create intel record: %w", err)
	}
	return nil
}

// ListByClaimID returns a claim's intel records, oldest first
func (r *IntelRepository) ListByClaimID(ctx context.Context, claimID string) ([]*entity.IntelRecord, error) {
	query := `
		SELECT id, claim_id, carrier_code, type, title, summary, priority,
			previous_status, new_status, created_at
		FROM intel_records
		WHERE claim_id = ?
		ORDER BY created_at, rowid
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to list intel records", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to list intel records: %w", err)
	}
	defer rows.Close()

	var records []*entity.IntelRecord
	for rows.Next() {
		var rec entity.IntelRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ClaimID,
			&rec.CarrierCode,
			&rec.Type,
			&rec.Title,
			&rec.Summary,
			&rec.Priority,
			&rec.PreviousStatus,
			&rec.NewStatus,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan intel record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Verify interface compliance
var _ port.IntelRepository = (*IntelRepository)(nil)
