package usage

import (
	"fmt"
	"time"
)

// Event is one append-only record of a rate-limited request. The event log is
// the sole source of truth for usage; no running counter is kept alongside it.
type Event struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	SubscriptionID string    `json:"subscriptionId" gorm:"index"`
	OrganizationID string    `json:"organizationId" gorm:"index"`
	Category       string    `json:"category" gorm:"index"`
	RequestCount   int64     `json:"requestCount"`
	Timestamp      time.Time `json:"timestamp" gorm:"index"`
}

// Request categories derived from the endpoint path. CategoryReports is the
// privileged category with its own reserved sub-quota.
const (
	CategoryReports = "reports"
	CategoryGeneral = "general"
)

// ErrNoSubscription is returned when the organization has no billing record.
// Callers must treat this as a hard deny, never silently allow.
var ErrNoSubscription = fmt.Errorf("organization has no subscription")

// ErrUnknownPlan is returned when a subscription references a tier missing
// from the plan catalog. This is a data inconsistency: deny and log, never panic.
var ErrUnknownPlan = fmt.Errorf("subscription references an unknown plan")
