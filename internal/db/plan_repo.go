package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"photoforge/internal/types"
)

// PlanRepository persists the subscription plan catalog. Plan names are
// unique and seeding is idempotent on that constraint.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a plan repository.
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

// Seed inserts the given plan definitions, skipping any whose name already
// exists. Existing rows are never modified so manual catalog edits survive
// re-runs. Returns the number of plans actually inserted.
func (r *PlanRepository) Seed(ctx context.Context, plans []types.SubscriptionPlan) (int, error) {
	query := `
		INSERT INTO subscription_plans (
			id, name, stripe_price_id, monthly_upload_limit,
			features, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (name) DO NOTHING`

	inserted := 0
	for _, plan := range plans {
		features, err := json.Marshal(plan.Features)
		if err != nil {
			return inserted, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode plan features", err)
		}

		id := plan.ID
		if id == "" {
			id = uuid.NewString()
		}

		tag, err := r.db.Exec(ctx, query,
			id,
			plan.Name,
			plan.StripePriceID,
			plan.MonthlyUploadLimit,
			features,
			plan.Active,
		)
		if err != nil {
			return inserted, types.NewAppError(types.ErrCodeInternalDB, "failed to seed plan", err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// ListActive returns all active plans ordered by monthly upload limit.
func (r *PlanRepository) ListActive(ctx context.Context) ([]types.SubscriptionPlan, error) {
	query := `
		SELECT id, name, stripe_price_id, monthly_upload_limit,
		       features, active, created_at
		FROM subscription_plans
		WHERE active = TRUE
		ORDER BY monthly_upload_limit ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	var plans []types.SubscriptionPlan
	for rows.Next() {
		var plan types.SubscriptionPlan
		var features []byte
		if err := rows.Scan(
			&plan.ID,
			&plan.Name,
			&plan.StripePriceID,
			&plan.MonthlyUploadLimit,
			&features,
			&plan.Active,
			&plan.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan", err)
		}
		if len(features) > 0 {
			if err := json.Unmarshal(features, &plan.Features); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode plan features", err)
			}
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate plans", err)
	}

	return plans, nil
}

// GetByPriceID looks a plan up by its Stripe price reference.
func (r *PlanRepository) GetByPriceID(ctx context.Context, priceID string) (*types.SubscriptionPlan, error) {
	query := `
		SELECT id, name, stripe_price_id, monthly_upload_limit,
		       features, active, created_at
		FROM subscription_plans
		WHERE stripe_price_id = $1`

	var plan types.SubscriptionPlan
	var features []byte
	err := r.db.QueryRow(ctx, query, priceID).Scan(
		&plan.ID,
		&plan.Name,
		&plan.StripePriceID,
		&plan.MonthlyUploadLimit,
		&features,
		&plan.Active,
		&plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch plan", err)
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &plan.Features); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode plan features", err)
		}
	}

	return &plan, nil
}
