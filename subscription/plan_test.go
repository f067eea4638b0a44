package subscription

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stripe/stripe-go/v72"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPlansJSON = `[
    {
        "tier": "free_trial",
        "name": "Free Trial",
        "monthlyRequestLimit": 100,
        "maxDailyRequests": 100,
        "reservedForReports": 10,
        "prices": []
    },
    {
        "tier": "pro",
        "name": "Pro",
        "monthlyRequestLimit": 1000,
        "reservedForReports": 50,
        "prices": [
            {"interval": "monthly", "amountInCents": 1200, "stripePriceId": "price_pro_monthly"},
            {"interval": "yearly", "amountInCents": 12000, "stripePriceId": "price_pro_yearly"}
        ]
    }
]`

func writeTestPlans(t *testing.T) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "plans")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	filename := filepath.Join(dir, "plans.json")
	require.NoError(t, ioutil.WriteFile(filename, []byte(testPlansJSON), 0644))
	return filename
}

func TestLoadPlansFromFile(t *testing.T) {
	plans, err := loadPlansFromFile(writeTestPlans(t))
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, TierFreeTrial, plans[0].Tier)
	assert.Equal(t, int64(100), plans[0].MonthlyRequestLimit)
	assert.Equal(t, int64(100), plans[0].MaxDailyRequests)
	assert.Equal(t, int64(10), plans[0].ReservedForReports)

	assert.Equal(t, TierPro, plans[1].Tier)
	assert.Equal(t, int64(1000), plans[1].MonthlyRequestLimit)
	assert.Equal(t, int64(0), plans[1].MaxDailyRequests)
}

func TestLoadPlansFromFileMissing(t *testing.T) {
	_, err := loadPlansFromFile("does-not-exist.json")
	assert.Error(t, err)
}

func TestPlanIsFree(t *testing.T) {
	plans, err := loadPlansFromFile(writeTestPlans(t))
	require.NoError(t, err)

	assert.True(t, plans[0].IsFree())
	assert.False(t, plans[1].IsFree())
}

func TestPriceForInterval(t *testing.T) {
	plans, err := loadPlansFromFile(writeTestPlans(t))
	require.NoError(t, err)

	pro := plans[1]
	monthly := pro.priceForInterval("monthly")
	require.NotNil(t, monthly)
	assert.Equal(t, "price_pro_monthly", monthly.StripePriceID)
	assert.Equal(t, int64(1200), monthly.AmountInCents)

	yearly := pro.priceForInterval("yearly")
	require.NotNil(t, yearly)
	assert.Equal(t, "price_pro_yearly", yearly.StripePriceID)

	assert.Nil(t, pro.priceForInterval("weekly"))
	assert.Nil(t, plans[0].priceForInterval("monthly"))
}

func TestStatusFromStripe(t *testing.T) {
	assert.Equal(t, StatusActive, statusFromStripe(stripe.SubscriptionStatusActive))
	assert.Equal(t, StatusTrialing, statusFromStripe(stripe.SubscriptionStatusTrialing))
	assert.Equal(t, StatusPastDue, statusFromStripe(stripe.SubscriptionStatusPastDue))
	assert.Equal(t, StatusPastDue, statusFromStripe(stripe.SubscriptionStatusUnpaid))
	assert.Equal(t, StatusCanceled, statusFromStripe(stripe.SubscriptionStatusCanceled))
	assert.Equal(t, StatusCanceled, statusFromStripe(stripe.SubscriptionStatusIncompleteExpired))
}
