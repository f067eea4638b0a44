package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ManagerOptions contains the dependencies for the subscription Manager
type ManagerOptions struct {
	StripeClient   *client.API
	DB             *gorm.DB
	Logger         *zap.Logger
	PathToPlanJSON string
}

// Manager handles the plan catalog and the database/Stripe operations on Subscriptions
type Manager struct {
	ManagerOptions
	planArray        []Plan
	planTierIndexMap map[Tier]int
	priceTierMap     map[string]Tier
}

func NewManager(option ManagerOptions) (*Manager, error) {
	if option.StripeClient == nil {
		return nil, fmt.Errorf("nil StripeClient is invalid")
	}
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.PathToPlanJSON) == 0 {
		return nil, fmt.Errorf("empty PathToPlanJSON is invalid")
	}
	if err := option.DB.AutoMigrate(&Subscription{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize subscription.Manager")
	}

	plans, err := loadPlansFromFile(option.PathToPlanJSON)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot populate defined Plans")
	}

	tierMap := make(map[Tier]int)
	priceMap := make(map[string]Tier)
	for index, p := range plans {
		tierMap[p.Tier] = index + 1
		for _, price := range p.Prices {
			if len(price.StripePriceID) > 0 {
				priceMap[price.StripePriceID] = p.Tier
			}
		}
	}

	return &Manager{
		ManagerOptions:   option,
		planArray:        plans,
		planTierIndexMap: tierMap,
		priceTierMap:     priceMap,
	}, nil
}

// ListDefinedPlans returns every plan in the static catalog
func (m *Manager) ListDefinedPlans() []Plan {
	return m.planArray
}

// GetDefinedPlanByTier resolves a tier key against the static catalog
func (m *Manager) GetDefinedPlanByTier(tier Tier) (Plan, bool) {
	index := m.planTierIndexMap[tier]
	if index == 0 {
		return Plan{}, false
	}
	return m.planArray[index-1], true
}

// GetDefinedPlanByPriceID resolves a Stripe price id against the static catalog
func (m *Manager) GetDefinedPlanByPriceID(priceID string) (Plan, bool) {
	tier, ok := m.priceTierMap[priceID]
	if !ok {
		return Plan{}, false
	}
	return m.GetDefinedPlanByTier(tier)
}

// Get returns the organization's subscription, or nil if the organization has none
func (m *Manager) Get(ctx context.Context, orgID string) (*Subscription, error) {
	if len(orgID) == 0 {
		return nil, fmt.Errorf("orgID is required")
	}
	var sub Subscription
	result := m.DB.WithContext(ctx).
		Where("organization_id = ?", orgID).
		First(&sub)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}

	return &sub, nil
}

// StartTrial will begin the zero-cost trial for an organization. An organization
// that has already used its trial cannot start another one.
func (m *Manager) StartTrial(ctx context.Context, orgID string) (*Subscription, error) {
	existing, err := m.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.PlanTier == TierFreeTrial {
		return nil, fmt.Errorf("free trial already used")
	}
	if existing != nil && existing.Status == StatusActive {
		return nil, fmt.Errorf("organization already has an active subscription")
	}

	now := time.Now()
	trialEnd := now.AddDate(0, 0, TrialPeriodDays)

	sub := &Subscription{
		ID:                 shortuuid.New(),
		OrganizationID:     orgID,
		PlanTier:           TierFreeTrial,
		Status:             StatusTrialing,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   trialEnd,
		TrialEnd:           &trialEnd,
	}
	if existing != nil {
		sub.ID = existing.ID
		sub.StripeCustomerID = existing.StripeCustomerID
	}

	result := m.DB.WithContext(ctx).Save(sub)
	if result.Error != nil {
		m.Logger.Error("Unable to create trial subscription in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot start trial")
	}

	return sub, nil
}

// ensureStripeCustomer returns the organization's Stripe customer id, creating one if needed
func (m *Manager) ensureStripeCustomer(ctx context.Context, orgID string, existing *Subscription) (string, error) {
	if existing != nil && len(existing.StripeCustomerID) > 0 {
		return existing.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	params.AddMetadata("OrganizationID", orgID)
	c, err := m.StripeClient.Customers.New(params)
	if err != nil {
		return "", extErrors.Wrap(err, "Cannot create Customer on Stripe")
	}
	if existing != nil {
		result := m.DB.WithContext(ctx).Model(&Subscription{}).
			Where("organization_id = ?", orgID).
			Update("stripe_customer_id", c.ID)
		if result.Error != nil {
			return "", extErrors.Wrap(result.Error, "Cannot persist Stripe customer id")
		}
	}
	return c.ID, nil
}

// CheckoutOption contains the parameters for creating a Stripe Checkout session
type CheckoutOption struct {
	OrganizationID string
	Tier           Tier
	Interval       string
	SuccessURL     string
	CancelURL      string
}

// CreateCheckoutSession will create a Stripe Checkout session for a paid plan
func (m *Manager) CreateCheckoutSession(ctx context.Context, opt CheckoutOption) (*stripe.CheckoutSession, error) {
	plan, ok := m.GetDefinedPlanByTier(opt.Tier)
	if !ok {
		return nil, fmt.Errorf("unknown plan tier %s", opt.Tier)
	}
	if plan.IsFree() {
		return nil, fmt.Errorf("plan %s does not require checkout", opt.Tier)
	}
	price := plan.priceForInterval(opt.Interval)
	if price == nil || len(price.StripePriceID) == 0 {
		return nil, fmt.Errorf("no price defined for plan %s with interval %s", opt.Tier, opt.Interval)
	}

	existing, err := m.Get(ctx, opt.OrganizationID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == StatusActive && existing.PlanTier != TierFreeTrial {
		return nil, fmt.Errorf("organization already has an active subscription")
	}

	customerID, err := m.ensureStripeCustomer(ctx, opt.OrganizationID, existing)
	if err != nil {
		return nil, err
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(opt.SuccessURL),
		CancelURL:  stripe.String(opt.CancelURL),
	}
	sessionParams.AddMetadata("OrganizationID", opt.OrganizationID)
	sessionParams.AddMetadata("PlanTier", string(opt.Tier))

	session, err := m.StripeClient.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create Checkout session on Stripe")
	}
	return session, nil
}

// CreatePortalSession will create a Stripe billing portal session for self-service management
func (m *Manager) CreatePortalSession(ctx context.Context, orgID, returnURL string) (*stripe.BillingPortalSession, error) {
	existing, err := m.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if existing == nil || len(existing.StripeCustomerID) == 0 {
		return nil, fmt.Errorf("no Stripe customer found for organization")
	}

	session, err := m.StripeClient.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Customer:  stripe.String(existing.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create billing portal session on Stripe")
	}
	return session, nil
}

// Cancel will cancel the organization's subscription immediately. The status
// flips to canceled right away instead of deferring to the end of the period.
func (m *Manager) Cancel(ctx context.Context, orgID string) error {
	existing, err := m.Get(ctx, orgID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("organization has no subscription")
	}

	if len(existing.StripeSubscriptionID) > 0 {
		if _, err := m.StripeClient.Subscriptions.Cancel(existing.StripeSubscriptionID, &stripe.SubscriptionCancelParams{
			Params: stripe.Params{
				Context: ctx,
			},
		}); err != nil {
			return extErrors.Wrap(err, "Unable to cancel subscription on Stripe")
		}
	}

	result := m.DB.WithContext(ctx).Model(&Subscription{}).
		Where("organization_id = ?", orgID).
		Updates(map[string]interface{}{
			"status":             StatusCanceled,
			"current_period_end": time.Now(),
		})
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Unable to mark subscription as canceled in database")
	}
	return nil
}

// UpsertFromCheckout persists the subscription created by a completed Checkout session
func (m *Manager) UpsertFromCheckout(ctx context.Context, orgID string, tier Tier, customerID string, sSub *stripe.Subscription) error {
	if _, ok := m.GetDefinedPlanByTier(tier); !ok {
		return fmt.Errorf("unknown plan tier %s", tier)
	}

	sub := &Subscription{
		ID:                   shortuuid.New(),
		OrganizationID:       orgID,
		PlanTier:             tier,
		Status:               statusFromStripe(sSub.Status),
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sSub.ID,
		CurrentPeriodStart:   time.Unix(sSub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(sSub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    sSub.CancelAtPeriodEnd,
	}
	if sSub.Items != nil && len(sSub.Items.Data) > 0 {
		sub.StripePriceID = sSub.Items.Data[0].Price.ID
	}

	existing, err := m.Get(ctx, orgID)
	if err != nil {
		return err
	}
	if existing != nil {
		sub.ID = existing.ID
	}

	result := m.DB.WithContext(ctx).Save(sub)
	if result.Error != nil {
		m.Logger.Error("Unable to upsert subscription in database",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot upsert subscription")
	}
	return nil
}

// SyncFromStripe updates the local row from a Stripe subscription object.
// The row is looked up by Stripe subscription id; unknown subscriptions are ignored.
func (m *Manager) SyncFromStripe(ctx context.Context, sSub *stripe.Subscription, status Status) error {
	updates := map[string]interface{}{
		"status":               status,
		"current_period_start": time.Unix(sSub.CurrentPeriodStart, 0),
		"current_period_end":   time.Unix(sSub.CurrentPeriodEnd, 0),
		"cancel_at_period_end": sSub.CancelAtPeriodEnd,
	}
	if sSub.Items != nil && len(sSub.Items.Data) > 0 {
		priceID := sSub.Items.Data[0].Price.ID
		updates["stripe_price_id"] = priceID
		if plan, ok := m.GetDefinedPlanByPriceID(priceID); ok {
			updates["plan_tier"] = plan.Tier
		} else {
			m.Logger.Error("No matching plan found for Stripe price",
				zap.String("StripePriceID", priceID),
				zap.String("StripeSubscriptionID", sSub.ID),
			)
		}
	}

	result := m.DB.WithContext(ctx).Model(&Subscription{}).
		Where("stripe_subscription_id = ?", sSub.ID).
		Updates(updates)
	if result.Error != nil {
		return extErrors.Wrap(result.Error, "Unable to synchronize subscription in database")
	}
	return nil
}

// SynchronizeSubscriptionStatus pulls the latest state from Stripe for one subscription
func (m *Manager) SynchronizeSubscriptionStatus(ctx context.Context, stripeSubscriptionID string) error {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	sSub, err := m.StripeClient.Subscriptions.Get(stripeSubscriptionID, params)
	if err != nil {
		return extErrors.Wrap(err, "Unable to fetch from Stripe to synchronize status")
	}
	return m.SyncFromStripe(ctx, sSub, statusFromStripe(sSub.Status))
}

// ListStripeBacked returns all subscriptions that have a Stripe subscription attached
func (m *Manager) ListStripeBacked(ctx context.Context) ([]Subscription, error) {
	subs := make([]Subscription, 0, 1)
	result := m.DB.WithContext(ctx).
		Where("stripe_subscription_id <> ''").
		Find(&subs)
	if result.Error != nil {
		m.Logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, result.Error
	}
	return subs, nil
}

func statusFromStripe(s stripe.SubscriptionStatus) Status {
	switch s {
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusUnpaid:
		return StatusPastDue
	default:
		return StatusCanceled
	}
}
