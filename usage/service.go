package usage

import (
	"fmt"
	"net/http"

	"github.com/taskflowhq/taskflow/organization"
	resp "github.com/taskflowhq/taskflow/response"

	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	UsageManager *Manager
	Logger       *zap.Logger
}

// Service is the usage API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the usage API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.UsageManager == nil {
		return nil, fmt.Errorf("nil UsageManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

// Snapshot is the usage summary shown to the customer
type Snapshot struct {
	Result
	PercentageUsed float64 `json:"percentageUsed"`
}

func (s *Service) getUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	result, err := s.UsageManager.CheckRequestLimit(ctx, org.ID, CategoryGeneral, false)
	switch err {
	case nil:
	case ErrNoSubscription:
		resp.WriteResponse(w, r, Snapshot{})
		return
	case ErrUnknownPlan:
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Subscription is misconfigured"))
		return
	default:
		s.Logger.Error("Unable to compute usage snapshot",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get usage"))
		return
	}

	snapshot := Snapshot{
		Result: *result,
	}
	if result.MonthlyLimit > 0 {
		snapshot.PercentageUsed = float64(result.CurrentMonthlyUsage) / float64(result.MonthlyLimit) * 100
	}

	resp.WriteResponse(w, r, snapshot)
}

// Router will return the routes under usage API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.getUsage)

	return r
}
