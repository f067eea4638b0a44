package usage

import (
	"time"

	"github.com/taskflowhq/taskflow/subscription"
)

// Reason identifies which gate denied a request
type Reason string

// Defining the denial reasons. These are ordinary, expected outcomes, not faults.
const (
	ReasonDailyQuotaExceeded   Reason = "DailyQuotaExceeded"
	ReasonMonthlyQuotaExceeded Reason = "MonthlyQuotaExceeded"
	ReasonReportQuotaExceeded  Reason = "ReportQuotaExceeded"
)

// Result is the outcome of an admission check, carrying the usage snapshot
// so clients can display "X of Y requests used, resets at Z"
type Result struct {
	Allowed             bool      `json:"allowed"`
	Reason              Reason    `json:"reason,omitempty"`
	CurrentMonthlyUsage int64     `json:"currentMonthlyUsage"`
	MonthlyLimit        int64     `json:"monthlyLimit"`
	CurrentDailyUsage   int64     `json:"currentDailyUsage"`
	DailyLimit          int64     `json:"dailyLimit"`
	CurrentReportUsage  int64     `json:"currentReportUsage"`
	ReportLimit         int64     `json:"reportLimit"`
	Remaining           int64     `json:"remaining"`
	ResetsAt            time.Time `json:"resetsAt"`
}

type counts struct {
	monthly int64
	daily   int64
	reports int64
}

// evaluate applies the admission rules in order: report sub-quota first, then
// the trial daily cap, then the monthly limit. It has no side effects.
func evaluate(plan subscription.Plan, c counts, privileged bool, now time.Time) Result {
	res := Result{
		CurrentMonthlyUsage: c.monthly,
		MonthlyLimit:        plan.MonthlyRequestLimit,
		CurrentDailyUsage:   c.daily,
		DailyLimit:          plan.MaxDailyRequests,
		CurrentReportUsage:  c.reports,
		ReportLimit:         plan.ReservedForReports,
		Remaining:           plan.MonthlyRequestLimit - c.monthly,
		ResetsAt:            startOfMonth(now).AddDate(0, 1, 0),
	}

	if privileged && c.reports >= plan.ReservedForReports {
		res.Reason = ReasonReportQuotaExceeded
		return res
	}

	// the daily cap only exists on the trial tier
	if plan.IsFree() && plan.MaxDailyRequests > 0 && c.daily >= plan.MaxDailyRequests {
		res.Reason = ReasonDailyQuotaExceeded
		return res
	}

	if c.monthly >= plan.MonthlyRequestLimit {
		res.Reason = ReasonMonthlyQuotaExceeded
		return res
	}

	res.Allowed = true
	return res
}

// Usage windows are calendar-aligned: they reset at local midnight and on the
// first of the month, regardless of the subscription's billing period.

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
