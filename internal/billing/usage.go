package billing

import (
	"context"
	"log/slog"
	"time"

	"photoforge/internal/types"
)

// SubscriptionLookup resolves a user's current subscription, nil when none.
type SubscriptionLookup interface {
	GetByUserID(ctx context.Context, userID string) (*types.UserSubscription, error)
}

// UsageStore is the persistence surface for upload counters.
type UsageStore interface {
	GetForPeriod(ctx context.Context, userID string, now time.Time) (*types.UsageTracking, error)
	Increment(ctx context.Context, userID string, now time.Time) error
	ResetForPeriod(ctx context.Context, userID string, now time.Time) (bool, error)
}

// UserLookup resolves users for the admin reset routine.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
}

// UsageService enforces monthly upload quotas. The effective limit comes
// from the user's subscription price; users without an active subscription
// get the Free tier.
type UsageService struct {
	subs   SubscriptionLookup
	usage  UsageStore
	users  UserLookup
	clock  types.Clock
	logger *slog.Logger
}

// NewUsageService creates a usage service.
func NewUsageService(subs SubscriptionLookup, usage UsageStore, users UserLookup, clock types.Clock, logger *slog.Logger) *UsageService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageService{
		subs:   subs,
		usage:  usage,
		users:  users,
		clock:  clock,
		logger: logger,
	}
}

// EffectivePlan returns the catalog plan governing the user right now.
// Only an active or trialing subscription grants a paid tier; every other
// status falls back to Free.
func (s *UsageService) EffectivePlan(ctx context.Context, userID string) (types.SubscriptionPlan, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return types.SubscriptionPlan{}, err
	}
	if sub == nil {
		return FreePlan(), nil
	}

	switch sub.Status {
	case types.SubStatusActive, types.SubStatusTrialing:
	default:
		return FreePlan(), nil
	}

	plan, ok := PlanByPrice(sub.PriceID)
	if !ok {
		// A price we do not recognize grants nothing beyond Free.
		s.logger.WarnContext(ctx, "subscription references unknown price",
			"user_id", userID, "price_id", sub.PriceID)
		return FreePlan(), nil
	}
	return plan, nil
}

// CheckUploadAllowed verifies the user has quota left this billing period.
// A missing usage row counts as zero consumed.
func (s *UsageService) CheckUploadAllowed(ctx context.Context, userID string) error {
	plan, err := s.EffectivePlan(ctx, userID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	usage, err := s.usage.GetForPeriod(ctx, userID, now)
	if err != nil {
		return err
	}

	consumed := 0
	if usage != nil {
		consumed = usage.UploadCount
	}

	if consumed >= plan.MonthlyUploadLimit {
		return types.NewAppErrorWithDetails(
			types.ErrCodeLimitUploads,
			"monthly upload limit reached",
			nil,
			map[string]any{
				"limit": plan.MonthlyUploadLimit,
				"used":  consumed,
				"plan":  plan.Name,
			},
		)
	}

	return nil
}

// UsageSummary describes a user's quota consumption for the current
// billing period.
type UsageSummary struct {
	Plan        string    `json:"plan"`
	UploadLimit int       `json:"uploadLimit"`
	UploadsUsed int       `json:"uploadsUsed"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// Summary reports the user's effective plan and consumption for the period
// containing now. A missing usage row reads as zero uploads.
func (s *UsageService) Summary(ctx context.Context, userID string) (*UsageSummary, error) {
	plan, err := s.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	periodStart, periodEnd := types.PeriodBounds(now)

	usage, err := s.usage.GetForPeriod(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	summary := &UsageSummary{
		Plan:        plan.Name,
		UploadLimit: plan.MonthlyUploadLimit,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	if usage != nil {
		summary.UploadsUsed = usage.UploadCount
	}
	return summary, nil
}

// RecordUpload counts one upload against the current period.
func (s *UsageService) RecordUpload(ctx context.Context, userID string) error {
	return s.usage.Increment(ctx, userID, s.clock.Now())
}

// ResetByEmail zeroes the current-period counter for the user with the
// given email. Used by the admin reset routine. Returns true when a counter
// row was actually reset; false means the user had no usage this period,
// which is already the desired state.
func (s *UsageService) ResetByEmail(ctx context.Context, email string) (bool, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	reset, err := s.usage.ResetForPeriod(ctx, user.ID, s.clock.Now())
	if err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "usage reset",
		"user_id", user.ID,
		"row_found", reset,
	)
	return reset, nil
}
