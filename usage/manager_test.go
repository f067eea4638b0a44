package usage

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskflowhq/taskflow/external"
	"github.com/taskflowhq/taskflow/subscription"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPlansJSON = `[
    {
        "tier": "free_trial",
        "name": "Free Trial",
        "monthlyRequestLimit": 100,
        "maxDailyRequests": 100,
        "reservedForReports": 10,
        "prices": []
    }
]`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func newTestManager(t *testing.T) (*Manager, *subscription.Manager) {
	t.Helper()
	db := newTestDB(t)

	dir, err := ioutil.TempDir("", "plans")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	planFile := filepath.Join(dir, "plans.json")
	require.NoError(t, ioutil.WriteFile(planFile, []byte(testPlansJSON), 0644))

	subManager, err := subscription.NewManager(subscription.ManagerOptions{
		StripeClient:   external.NewStripeClient("sk_test_usage"),
		DB:             db,
		Logger:         zaptest.NewLogger(t),
		PathToPlanJSON: planFile,
	})
	require.NoError(t, err)

	usageManager, err := NewManager(ManagerOptions{
		DB:                  db,
		Logger:              zaptest.NewLogger(t),
		SubscriptionManager: subManager,
	})
	require.NoError(t, err)
	return usageManager, subManager
}

func TestRecordIncrementsUsageByOne(t *testing.T) {
	ctx := context.Background()
	usageManager, subManager := newTestManager(t)

	_, err := subManager.StartTrial(ctx, "org-1")
	require.NoError(t, err)

	before, err := usageManager.CheckRequestLimit(ctx, "org-1", CategoryGeneral, false)
	require.NoError(t, err)
	assert.True(t, before.Allowed)
	assert.Equal(t, int64(0), before.CurrentMonthlyUsage)

	require.NoError(t, usageManager.RecordRequest(ctx, "org-1", CategoryGeneral))

	after, err := usageManager.CheckRequestLimit(ctx, "org-1", CategoryGeneral, false)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentMonthlyUsage+1, after.CurrentMonthlyUsage)
	assert.Equal(t, before.CurrentDailyUsage+1, after.CurrentDailyUsage)
	assert.Equal(t, before.Remaining-1, after.Remaining)
}

func TestCheckWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	usageManager, _ := newTestManager(t)

	_, err := usageManager.CheckRequestLimit(ctx, "org-without-billing", CategoryGeneral, false)
	assert.Equal(t, ErrNoSubscription, err)

	err = usageManager.RecordRequest(ctx, "org-without-billing", CategoryGeneral)
	assert.Equal(t, ErrNoSubscription, err)
}

func TestReportEventsCountAgainstSubQuota(t *testing.T) {
	ctx := context.Background()
	usageManager, subManager := newTestManager(t)

	_, err := subManager.StartTrial(ctx, "org-1")
	require.NoError(t, err)

	// exhaust the reserved report quota (10 on the trial plan)
	for i := 0; i < 10; i++ {
		require.NoError(t, usageManager.RecordRequest(ctx, "org-1", CategoryReports))
	}

	result, err := usageManager.CheckRequestLimit(ctx, "org-1", CategoryReports, true)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, ReasonReportQuotaExceeded, result.Reason)
	assert.Equal(t, int64(10), result.CurrentReportUsage)

	// the same ledger state does not block general traffic
	result, err = usageManager.CheckRequestLimit(ctx, "org-1", CategoryGeneral, false)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(10), result.CurrentMonthlyUsage)
}
