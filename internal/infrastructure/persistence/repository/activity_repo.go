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

// ActivityRepository implements port.ActivityRepository
type ActivityRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB, logger *zap.Logger) port.ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an activity log entry
func (r *ActivityRepository) Create(ctx context.Context, log *entity.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (id, claim_id, action, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		log.ID,
		log.ClaimID,
		log.Action,
		log.Description,
		log.Metadata,
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create activity log",
			zap.String("claim_id", log.ClaimID),
			zap.String("action", log.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

// ListByClaimID returns a claim's activity, oldest first
func (r *ActivityRepository) ListByClaimID(ctx context.Context, claimID string) ([]*entity.ActivityLog, error) {
	query := `
		SELECT id, claim_id, action, description, metadata, created_at
		FROM activity_logs
		WHERE claim_id = ?
		ORDER BY created_at, rowid
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to list activity logs", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.ActivityLog
	for rows.Next() {
		var l entity.ActivityLog
		if err := rows.Scan(&l.ID, &l.ClaimID, &l.Action, &l.Description, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// Verify interface compliance
var _ port.ActivityRepository = (*ActivityRepository)(nil)
