package subscription

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskflowhq/taskflow/organization"
	resp "github.com/taskflowhq/taskflow/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	SubscriptionManager *Manager
	Logger              *zap.Logger
	FrontendURL         string
}

// Service is the subscription API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the subscription API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.FrontendURL) == 0 {
		return nil, fmt.Errorf("empty FrontendURL is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) listPlans(w http.ResponseWriter, r *http.Request) {
	resp.WriteResponse(w, r, s.SubscriptionManager.ListDefinedPlans())
}

func (s *Service) getSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	sub, err := s.SubscriptionManager.Get(ctx, org.ID)
	if err != nil {
		s.Logger.Error("Unable to query subscription",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the subscription"))
		return
	}

	resp.WriteResponse(w, r, struct {
		Subscription          *Subscription `json:"subscription"`
		HasStripeSubscription bool          `json:"hasStripeSubscription"`
	}{
		Subscription:          sub,
		HasStripeSubscription: sub != nil && len(sub.StripeSubscriptionID) > 0,
	})
}

func (s *Service) startTrial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	logger := s.Logger.With(zap.String("OrganizationID", org.ID))

	sub, err := s.SubscriptionManager.StartTrial(ctx, org.ID)
	if err != nil {
		logger.Error("Unable to start trial",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Cannot start trial", err.Error()))
		return
	}

	resp.WriteResponse(w, r, sub)
}

// CheckoutRequest is the model of user request for creating a checkout session
type CheckoutRequest struct {
	Tier     string `json:"tier" validate:"required"`
	Interval string `json:"interval" validate:"omitempty,oneof=monthly yearly"`
}

func (s *Service) createCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid plan or interval"))
		return
	}
	if req.Interval == "" {
		req.Interval = "monthly"
	}

	logger := s.Logger.With(
		zap.String("OrganizationID", org.ID),
		zap.String("PlanTier", req.Tier),
	)

	session, err := s.SubscriptionManager.CreateCheckoutSession(ctx, CheckoutOption{
		OrganizationID: org.ID,
		Tier:           Tier(req.Tier),
		Interval:       req.Interval,
		SuccessURL:     s.FrontendURL + "/organization/" + org.ID + "?success=true",
		CancelURL:      s.FrontendURL + "/settings/subscription?canceled=true",
	})
	if err != nil {
		logger.Error("Unable to create checkout session",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot create checkout session"))
		return
	}

	// the frontend completes the redirect with stripe.js
	resp.WriteResponse(w, r, struct {
		SessionID string `json:"sessionId"`
	}{
		SessionID: session.ID,
	})
}

func (s *Service) createPortal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	session, err := s.SubscriptionManager.CreatePortalSession(ctx, org.ID, s.FrontendURL+"/settings/subscription")
	if err != nil {
		s.Logger.Error("Unable to create portal session",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Cannot create billing portal session"))
		return
	}

	resp.WriteResponse(w, r, struct {
		URL string `json:"url"`
	}{
		URL: session.URL,
	})
}

func (s *Service) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org := ctx.Value(organization.Context).(*organization.Organization)

	if err := s.SubscriptionManager.Cancel(ctx, org.ID); err != nil {
		s.Logger.Error("Unable to cancel subscription",
			zap.String("OrganizationID", org.ID),
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot cancel subscription"))
		return
	}

	resp.WriteResponse(w, r, struct {
		Message string `json:"message"`
	}{
		Message: "Subscription canceled successfully",
	})
}

// PlansRouter returns the public plan catalog routes
func (s *Service) PlansRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listPlans)

	return r
}

// Router will return the routes under subscription API.
// The parent router must resolve the organization (organization.RequireMember);
// mutations additionally require organization.RequireAdmin upstream.
func (s *Service) Router(adminOnly func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.getSubscription)
	r.Group(func(pr chi.Router) {
		pr.Use(adminOnly)
		pr.Post("/trial", s.startTrial)
		pr.Post("/checkout", s.createCheckout)
		pr.Post("/portal", s.createPortal)
		pr.Delete("/", s.cancelSubscription)
	})

	return r
}
