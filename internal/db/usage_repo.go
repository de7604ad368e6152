package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"photoforge/internal/types"
)

// UsageRepository tracks per-user upload counts within calendar-month
// billing periods. Rows are keyed by (user_id, period_start).
type UsageRepository struct {
	db DBTX
}

// NewUsageRepository creates a usage repository.
func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetForPeriod returns the usage row covering the period containing now, or
// nil when the user has no activity this period. A missing row is
// semantically zero usage.
func (r *UsageRepository) GetForPeriod(ctx context.Context, userID string, now time.Time) (*types.UsageTracking, error) {
	periodStart, _ := types.PeriodBounds(now)

	query := `
		SELECT user_id, period_start, period_end, upload_count, updated_at
		FROM usage_tracking
		WHERE user_id = $1 AND period_start = $2`

	var usage types.UsageTracking
	err := r.db.QueryRow(ctx, query, userID, periodStart).Scan(
		&usage.UserID,
		&usage.PeriodStart,
		&usage.PeriodEnd,
		&usage.UploadCount,
		&usage.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch usage", err)
	}

	return &usage, nil
}

// Increment adds one upload to the user's current-period counter, creating
// the period row on first use.
func (r *UsageRepository) Increment(ctx context.Context, userID string, now time.Time) error {
	periodStart, periodEnd := types.PeriodBounds(now)

	query := `
		INSERT INTO usage_tracking (user_id, period_start, period_end, upload_count, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (user_id, period_start) DO UPDATE SET
			upload_count = usage_tracking.upload_count + 1,
			updated_at   = NOW()`

	if _, err := r.db.Exec(ctx, query, userID, periodStart, periodEnd); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to increment usage", err)
	}

	return nil
}

// ResetForPeriod zeroes the user's counter for the period containing now.
// Returns false when no row exists for that period, which callers treat as
// an already-clean state rather than an error.
func (r *UsageRepository) ResetForPeriod(ctx context.Context, userID string, now time.Time) (bool, error) {
	periodStart, _ := types.PeriodBounds(now)

	query := `
		UPDATE usage_tracking
		SET upload_count = 0, updated_at = NOW()
		WHERE user_id = $1 AND period_start = $2`

	tag, err := r.db.Exec(ctx, query, userID, periodStart)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to reset usage", err)
	}

	return tag.RowsAffected() > 0, nil
}
