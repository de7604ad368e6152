package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"photoforge/internal/types"
)

// SubscriptionRepository persists the local mirror of Stripe subscription
// state. The Stripe subscription ID is the primary key; webhook deliveries
// are reconciled into this table.
type SubscriptionRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepository creates a subscription repository.
func NewSubscriptionRepository(db DBTX, logger *slog.Logger) *SubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepository{db: db, logger: logger}
}

// Upsert reconciles a webhook-derived subscription snapshot into the store.
//
// On first insert all fields are written. On conflict only the mutable
// fields (status, price, current period end) are overwritten; identity
// fields (user_id, stripe_customer_id) keep their original values. The
// update is guarded by last_event_at so that replayed or out-of-order
// deliveries whose event timestamp is older than the stored one leave the
// row untouched.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *types.UserSubscription) error {
	query := `
		INSERT INTO user_subscriptions (
			id, user_id, price_id, stripe_customer_id,
			status, current_period_end, last_event_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status             = EXCLUDED.status,
			price_id           = EXCLUDED.price_id,
			current_period_end = EXCLUDED.current_period_end,
			last_event_at      = EXCLUDED.last_event_at,
			updated_at         = NOW()
		WHERE user_subscriptions.last_event_at <= EXCLUDED.last_event_at`

	tag, err := r.db.Exec(ctx, query,
		sub.ID,
		sub.UserID,
		sub.PriceID,
		sub.StripeCustomerID,
		sub.Status,
		sub.CurrentPeriodEnd,
		sub.LastEventAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription", err)
	}

	if tag.RowsAffected() == 0 {
		// Stale event, a newer snapshot is already stored.
		r.logger.InfoContext(ctx, "skipping stale subscription event",
			"subscription_id", sub.ID,
			"event_at", sub.LastEventAt)
	}

	return nil
}

// MarkCanceled sets the subscription status to canceled. Unknown
// subscription IDs and stale events are silently ignored so that webhook
// replays stay idempotent.
func (r *SubscriptionRepository) MarkCanceled(ctx context.Context, subscriptionID string, eventAt time.Time) error {
	query := `
		UPDATE user_subscriptions
		SET status = $2, last_event_at = $3, updated_at = NOW()
		WHERE id = $1 AND last_event_at <= $3`

	tag, err := r.db.Exec(ctx, query, subscriptionID, types.SubStatusCanceled, eventAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to cancel subscription", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "cancel event matched no subscription row",
			"subscription_id", subscriptionID,
			"event_at", eventAt)
	}

	return nil
}

// GetByUserID returns the most recently updated subscription for a user, or
// nil when the user has none.
func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*types.UserSubscription, error) {
	query := `
		SELECT id, user_id, price_id, stripe_customer_id,
		       status, current_period_end, last_event_at,
		       created_at, updated_at
		FROM user_subscriptions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	var sub types.UserSubscription
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PriceID,
		&sub.StripeCustomerID,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.LastEventAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch subscription", err)
	}

	return &sub, nil
}
