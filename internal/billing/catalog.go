// Package billing provides the plan catalog and billing domain logic.
package billing

import "photoforge/internal/types"

// Stripe price IDs for the paid tiers. Free has no price; it is the state
// of having no subscription row at all.
const (
	PriceCreatorMonthly = "price_creator_monthly"
	PriceProMonthly     = "price_pro_monthly"
	PriceStudioMonthly  = "price_studio_monthly"
)

// catalogDefaults is the authoritative plan catalog:
//
//	| Plan    | Uploads/Month | Projects | Batch | RAW | Priority |
//	|---------|---------------|----------|-------|-----|----------|
//	| Free    | 10            | 3        | No    | No  | No       |
//	| Creator | 100           | 25       | No    | Yes | No       |
//	| Pro     | 500           | 100      | Yes   | Yes | No       |
//	| Studio  | 2000          | 500      | Yes   | Yes | Yes      |
//
// Plan names are unique; the seeding routine relies on that to stay
// idempotent.
var catalogDefaults = []types.SubscriptionPlan{
	{
		Name:               "Free",
		StripePriceID:      nil,
		MonthlyUploadLimit: 10,
		Features: types.PlanFeatures{
			MaxProjects: 3,
		},
		Active: true,
	},
	{
		Name:               "Creator",
		StripePriceID:      priceRef(PriceCreatorMonthly),
		MonthlyUploadLimit: 100,
		Features: types.PlanFeatures{
			MaxProjects:     25,
			AllowRawUploads: true,
		},
		Active: true,
	},
	{
		Name:               "Pro",
		StripePriceID:      priceRef(PriceProMonthly),
		MonthlyUploadLimit: 500,
		Features: types.PlanFeatures{
			MaxProjects:     100,
			AllowBatchEdit:  true,
			AllowRawUploads: true,
		},
		Active: true,
	},
	{
		Name:               "Studio",
		StripePriceID:      priceRef(PriceStudioMonthly),
		MonthlyUploadLimit: 2000,
		Features: types.PlanFeatures{
			MaxProjects:     500,
			AllowBatchEdit:  true,
			AllowRawUploads: true,
			PriorityQueue:   true,
		},
		Active: true,
	},
}

func priceRef(id string) *string { return &id }

// Catalog returns a copy of the plan catalog for seeding. The copy is deep:
// price ID pointers are duplicated, so callers may mutate the returned
// plans freely without touching the package catalog.
func Catalog() []types.SubscriptionPlan {
	out := make([]types.SubscriptionPlan, len(catalogDefaults))
	copy(out, catalogDefaults)
	for i := range out {
		if out[i].StripePriceID != nil {
			out[i].StripePriceID = priceRef(*out[i].StripePriceID)
		}
	}
	return out
}

// PlanByPrice resolves a Stripe price ID to its catalog plan. Returns
// (zero, false) for unknown prices so callers can decide how to degrade.
func PlanByPrice(priceID string) (types.SubscriptionPlan, bool) {
	for _, plan := range catalogDefaults {
		if plan.StripePriceID != nil && *plan.StripePriceID == priceID {
			return plan, true
		}
	}
	return types.SubscriptionPlan{}, false
}

// KnownPrice reports whether the price ID belongs to the catalog.
func KnownPrice(priceID string) bool {
	_, ok := PlanByPrice(priceID)
	return ok
}

// FreePlan returns the Free tier, the fallback for users without an active
// subscription.
func FreePlan() types.SubscriptionPlan {
	return catalogDefaults[0]
}
