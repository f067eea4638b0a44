package subscription

import "time"

// Subscription describes the billing state of an organization.
// At most one subscription exists per organization.
type Subscription struct {
	ID                   string     `json:"id" gorm:"primaryKey"`
	OrganizationID       string     `json:"organizationId" gorm:"uniqueIndex"`
	PlanTier             Tier       `json:"planTier"`
	Status               Status     `json:"status"`
	StripeCustomerID     string     `json:"-" gorm:"index"`
	StripeSubscriptionID string     `json:"-" gorm:"index"`
	StripePriceID        string     `json:"-"`
	CurrentPeriodStart   time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time  `json:"currentPeriodEnd"`
	TrialEnd             *time.Time `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd    bool       `json:"cancelAtPeriodEnd"` // mirrored from Stripe for display; cancellation here is immediate
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}
