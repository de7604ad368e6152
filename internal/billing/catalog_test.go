package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_NamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, plan := range Catalog() {
		require.False(t, seen[plan.Name], "duplicate plan name %q", plan.Name)
		seen[plan.Name] = true
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].Name = "Mutated"

	second := Catalog()
	assert.Equal(t, "Free", second[0].Name)
}

func TestCatalog_CopyIsDeep(t *testing.T) {
	first := Catalog()
	require.NotNil(t, first[1].StripePriceID)
	*first[1].StripePriceID = "price_mutated"

	second := Catalog()
	require.NotNil(t, second[1].StripePriceID)
	assert.Equal(t, PriceCreatorMonthly, *second[1].StripePriceID)
}

func TestPlanByPrice(t *testing.T) {
	plan, ok := PlanByPrice(PriceStudioMonthly)
	require.True(t, ok)
	assert.Equal(t, "Studio", plan.Name)
	assert.Equal(t, 2000, plan.MonthlyUploadLimit)
	assert.True(t, plan.Features.PriorityQueue)

	_, ok = PlanByPrice("price_unknown")
	assert.False(t, ok)
}

func TestFreePlan_HasNoPrice(t *testing.T) {
	plan := FreePlan()
	assert.Equal(t, "Free", plan.Name)
	assert.Nil(t, plan.StripePriceID)
}
