package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/taskflowhq/taskflow/subscription"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ManagerOptions contains the dependencies for the usage Manager
type ManagerOptions struct {
	DB                  *gorm.DB
	Logger              *zap.Logger
	SubscriptionManager *subscription.Manager
}

// Manager is the quota ledger and admission gate. It decides whether a request
// is permitted under the organization's plan and records admitted requests.
type Manager struct {
	ManagerOptions
}

func NewManager(option ManagerOptions) (*Manager, error) {
	if option.DB == nil {
		return nil, fmt.Errorf("nil DB is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if err := option.DB.AutoMigrate(&Event{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initilize usage.Manager")
	}
	return &Manager{
		ManagerOptions: option,
	}, nil
}

func (m *Manager) sumEvents(ctx context.Context, subscriptionID string, since time.Time, category string) (int64, error) {
	var total int64
	query := m.DB.WithContext(ctx).Model(&Event{}).
		Where("subscription_id = ?", subscriptionID).
		Where("timestamp >= ?", since)
	if len(category) > 0 {
		query = query.Where("category = ?", category)
	}
	row := query.Select("COALESCE(SUM(request_count), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, extErrors.Wrap(err, "Cannot aggregate usage events")
	}
	return total, nil
}

// CheckRequestLimit decides whether one more request is permitted for the
// organization. It performs no mutation; pair it with RecordRequest to admit.
// Quota denials come back inside the Result; only ErrNoSubscription,
// ErrUnknownPlan and infrastructure faults are returned as errors.
func (m *Manager) CheckRequestLimit(ctx context.Context, orgID, category string, privileged bool) (*Result, error) {
	sub, err := m.SubscriptionManager.Get(ctx, orgID)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot look up subscription")
	}
	if sub == nil {
		return nil, ErrNoSubscription
	}

	plan, ok := m.SubscriptionManager.GetDefinedPlanByTier(sub.PlanTier)
	if !ok {
		m.Logger.Error("Subscription references unknown plan tier",
			zap.String("OrganizationID", orgID),
			zap.String("PlanTier", string(sub.PlanTier)),
		)
		return nil, ErrUnknownPlan
	}

	now := time.Now()

	monthly, err := m.sumEvents(ctx, sub.ID, startOfMonth(now), "")
	if err != nil {
		return nil, err
	}
	daily, err := m.sumEvents(ctx, sub.ID, startOfDay(now), "")
	if err != nil {
		return nil, err
	}
	var reports int64
	if privileged {
		reports, err = m.sumEvents(ctx, sub.ID, startOfMonth(now), CategoryReports)
		if err != nil {
			return nil, err
		}
	}

	result := evaluate(plan, counts{
		monthly: monthly,
		daily:   daily,
		reports: reports,
	}, privileged, now)

	return &result, nil
}

// RecordRequest appends one usage event. It does not re-check quota; callers
// are responsible for sequencing the check before the record. Once committed
// the event is never rolled back (at-least-once accounting).
func (m *Manager) RecordRequest(ctx context.Context, orgID, category string) error {
	sub, err := m.SubscriptionManager.Get(ctx, orgID)
	if err != nil {
		return extErrors.Wrap(err, "Cannot look up subscription")
	}
	if sub == nil {
		return ErrNoSubscription
	}

	event := &Event{
		ID:             shortuuid.New(),
		SubscriptionID: sub.ID,
		OrganizationID: orgID,
		Category:       category,
		RequestCount:   1,
		Timestamp:      time.Now(),
	}
	result := m.DB.WithContext(ctx).Create(event)
	if result.Error != nil {
		m.Logger.Error("Unable to record usage event",
			zap.String("OrganizationID", orgID),
			zap.String("Category", category),
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot record usage event")
	}
	return nil
}
