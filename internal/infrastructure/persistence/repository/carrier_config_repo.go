package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/carrier-integration/internal/application/port"
	"github.com/garyjia/carrier-integration/internal/domain/carrier"
	"github.com/garyjia/carrier-integration/internal/infrastructure/persistence/sqlite"
)

const carrierConfigColumns = `
	code, name, api_endpoint, api_key, client_id, client_secret,
	access_token, refresh_token, token_expiry, webhook_secret, test_mode,
	supports_direct_filing, supports_status_updates, enabled, updated_at
`

// CarrierConfigRepository implements port.CarrierConfigRepository
type CarrierConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCarrierConfigRepository creates a new carrier config repository
func NewCarrierConfigRepository(db *sql.DB, logger *zap.Logger) port.CarrierConfigRepository {
	return &CarrierConfigRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCode retrieves a carrier config by its code
func (r *CarrierConfigRepository) GetByCode(ctx context.Context, code string) (*carrier.Config, error) {
	query := `SELECT ` + carrierConfigColumns + ` FROM carrier_configs WHERE code = ?`

	cfg, err := scanCarrierConfig(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get carrier config", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get carrier config: %w", err)
	}
	return cfg, nil
}

// List returns every stored carrier config ordered by code
func (r *CarrierConfigRepository) List(ctx context.Context) ([]*carrier.Config, error) {
	query := `SELECT ` + carrierConfigColumns + ` FROM carrier_configs ORDER BY code`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list carrier configs", zap.Error(err))
		return nil, fmt.Errorf("failed to list carrier configs: %w", err)
	}
	defer rows.Close()

	var configs []*carrier.Config
	for rows.Next() {
		cfg, err := scanCarrierConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan carrier config: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Upsert inserts or replaces a carrier config
func (r *CarrierConfigRepository) Upsert(ctx context.Context, cfg *carrier.Config) error {
	cfg.UpdatedAt = time.Now()

	query := `
		INSERT INTO carrier_configs (
			code, name, api_endpoint, api_key, client_id, client_secret,
			access_token, refresh_token, token_expiry, webhook_secret, test_mode,
			supports_direct_filing, supports_status_updates, enabled, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			api_endpoint = excluded.api_endpoint,
			api_key = excluded.api_key,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			webhook_secret = excluded.webhook_secret,
			test_mode = excluded.test_mode,
			supports_direct_filing = excluded.supports_direct_filing,
			supports_status_updates = excluded.supports_status_updates,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		cfg.Code,
		cfg.Name,
		cfg.APIEndpoint,
		cfg.APIKey,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.AccessToken,
		cfg.RefreshToken,
		nullTime(cfg.TokenExpiry),
		cfg.WebhookSecret,
		cfg.TestMode,
		cfg.SupportsDirectFiling,
		cfg.SupportsStatusUpdates,
		cfg.Enabled,
		cfg.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert carrier config", zap.String("code", cfg.Code), zap.Error(err))
		return fmt.Errorf("failed to upsert carrier config: %w", err)
	}
	return nil
}

// UpdateTokens stores refreshed OAuth tokens. An empty refresh token keeps
// the stored one.
func (r *CarrierConfigRepository) UpdateTokens(ctx context.Context, code, accessToken, refreshToken string, expiry *time.Time) error {
	query := `
		UPDATE carrier_configs
		SET access_token = ?,
			refresh_token = CASE WHEN ? = '' THEN refresh_token ELSE ? END,
			token_expiry = ?,
			updated_at = ?
		WHERE code = ?
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		accessToken, refreshToken, refreshToken, nullTime(expiry), time.Now(), code)
	if err != nil {
		r.logger.Error("Failed to update carrier tokens", zap.String("code", code), zap.Error(err))
		return fmt.Errorf("failed to update carrier tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("carrier config not found: %s", code)
	}
	return nil
}

func scanCarrierConfig(row rowScanner) (*carrier.Config, error) {
	var (
		cfg    carrier.Config
		expiry sql.NullTime
	)

	err := row.Scan(
		&cfg.Code,
		&cfg.Name,
		&cfg.APIEndpoint,
		&cfg.APIKey,
		&cfg.ClientID,
		&cfg.ClientSecret,
		&cfg.AccessToken,
		&cfg.RefreshToken,
		&expiry,
		&cfg.WebhookSecret,
		&cfg.TestMode,
		&cfg.SupportsDirectFiling,
		&cfg.SupportsStatusUpdates,
		&cfg.Enabled,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.TokenExpiry = timeFromNull(expiry)
	return &cfg, nil
}

// Verify interface compliance
var _ port.CarrierConfigRepository = (*CarrierConfigRepository)(nil)
