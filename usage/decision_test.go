package usage

import (
	"testing"
	"time"

	"github.com/taskflowhq/taskflow/subscription"

	"github.com/stretchr/testify/assert"
)

var trialPlan = subscription.Plan{
	Tier:                subscription.TierFreeTrial,
	MonthlyRequestLimit: 100,
	MaxDailyRequests:    100,
	ReservedForReports:  10,
}

var proPlan = subscription.Plan{
	Tier:                subscription.TierPro,
	MonthlyRequestLimit: 1000,
	ReservedForReports:  50,
}

func TestEvaluateAllowsUnderAllLimits(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	res := evaluate(proPlan, counts{monthly: 500, daily: 40, reports: 10}, false, now)

	assert.True(t, res.Allowed)
	assert.Empty(t, res.Reason)
	assert.Equal(t, int64(500), res.Remaining)
}

func TestEvaluateDeniesAtMonthlyLimit(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	res := evaluate(proPlan, counts{monthly: 1000}, false, now)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonMonthlyQuotaExceeded, res.Reason)
	assert.Equal(t, int64(0), res.Remaining)

	// one past the limit still reports the overshoot honestly
	res = evaluate(proPlan, counts{monthly: 1001}, false, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(-1), res.Remaining)
}

func TestEvaluateReportQuotaOnlyBindsPrivileged(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)
	c := counts{monthly: 100, reports: 50}

	res := evaluate(proPlan, c, true, now)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonReportQuotaExceeded, res.Reason)

	// the same usage does not block general traffic
	res = evaluate(proPlan, c, false, now)
	assert.True(t, res.Allowed)
}

func TestEvaluateReportQuotaCheckedBeforeMonthly(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	// both quotas exhausted: the report reason wins for privileged requests
	res := evaluate(proPlan, counts{monthly: 1000, reports: 50}, true, now)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonReportQuotaExceeded, res.Reason)
}

func TestEvaluateTrialDailyCap(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	res := evaluate(trialPlan, counts{monthly: 99, daily: 100}, false, now)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonDailyQuotaExceeded, res.Reason)
}

func TestEvaluateDailyCapWinsWhenBothExhausted(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	res := evaluate(trialPlan, counts{monthly: 100, daily: 100}, false, now)

	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonDailyQuotaExceeded, res.Reason)
}

func TestEvaluateDailyCapIgnoredOnPaidPlans(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	// paid plans have no daily cap even with heavy single-day usage
	res := evaluate(proPlan, counts{monthly: 500, daily: 500}, false, now)

	assert.True(t, res.Allowed)
}

func TestEvaluateResetsAtNextMonth(t *testing.T) {
	now := time.Date(2021, 3, 15, 12, 0, 0, 0, time.UTC)

	res := evaluate(proPlan, counts{}, false, now)

	assert.Equal(t, time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC), res.ResetsAt)
}

func TestWindowBoundaries(t *testing.T) {
	loc := time.UTC

	justBefore := time.Date(2021, 3, 31, 23, 59, 59, int(999*time.Millisecond), loc)
	justAfter := time.Date(2021, 4, 1, 0, 0, 0, int(time.Millisecond), loc)

	assert.Equal(t, time.Date(2021, 3, 31, 0, 0, 0, 0, loc), startOfDay(justBefore))
	assert.Equal(t, time.Date(2021, 4, 1, 0, 0, 0, 0, loc), startOfDay(justAfter))

	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, loc), startOfMonth(justBefore))
	assert.Equal(t, time.Date(2021, 4, 1, 0, 0, 0, 0, loc), startOfMonth(justAfter))
}

func TestCategoryFromPath(t *testing.T) {
	cases := map[string]string{
		"/organizations/abc123/reports":           "reports",
		"/organizations/abc123/projects":          "projects",
		"/organizations/abc123/projects/p1":       "projects",
		"/organizations/abc123/issues/i1/move":    "issues",
		"/organizations/abc123":                   CategoryGeneral,
		"/plans":                                  CategoryGeneral,
		"/":                                       CategoryGeneral,
		"/users/organizations/abc123/ish/reports": "ish",
	}

	for path, expected := range cases {
		assert.Equal(t, expected, CategoryFromPath(path), "path %s", path)
	}
}
