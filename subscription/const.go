package subscription

// Status is the custom type to define the current lifecycle state of a subscription
type Status string

// Defining the lifecycle states of a Subscription, matching Stripe's vocabulary
const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Tier is the custom type identifying a Plan in the static catalog
type Tier string

// Defining the plan tiers available for purchase
const (
	TierFreeTrial  Tier = "free_trial"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// TrialPeriodDays is how long the zero-cost trial lasts
const TrialPeriodDays = 30
