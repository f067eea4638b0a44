package subscription

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

// Stripe caps webhook payloads well below this
const maxWebhookBodyBytes = int64(65536)

// WebhookOptions contains the configuration for the Stripe webhook handler
type WebhookOptions struct {
	SubscriptionManager *Manager
	Logger              *zap.Logger
	EndpointSecret      string
}

// Webhook handles subscription lifecycle events pushed by Stripe
type Webhook struct {
	WebhookOptions
}

// NewWebhook will create an instance of the Stripe webhook handler
func NewWebhook(option WebhookOptions) (*Webhook, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if len(option.EndpointSecret) == 0 {
		return nil, fmt.Errorf("empty EndpointSecret is invalid")
	}
	return &Webhook{
		WebhookOptions: option,
	}, nil
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.EndpointSecret)
	if err != nil {
		h.Logger.Error("Webhook signature verification failed",
			zap.Error(err),
		)
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}

	logger := h.Logger.With(zap.String("EventType", string(event.Type)))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			logger.Error("Cannot decode checkout session", zap.Error(err))
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		orgID := session.Metadata["OrganizationID"]
		tier := Tier(session.Metadata["PlanTier"])
		if session.Subscription == nil || len(orgID) == 0 {
			logger.Error("Checkout session missing subscription or metadata",
				zap.String("SessionID", session.ID),
			)
			break
		}
		sSub, err := h.SubscriptionManager.StripeClient.Subscriptions.Get(session.Subscription.ID, &stripe.SubscriptionParams{
			Params: stripe.Params{
				Context: ctx,
			},
		})
		if err != nil {
			logger.Error("Cannot fetch subscription from Stripe", zap.Error(err))
			http.Error(w, "stripe unavailable", http.StatusInternalServerError)
			return
		}
		var customerID string
		if session.Customer != nil {
			customerID = session.Customer.ID
		}
		if err := h.SubscriptionManager.UpsertFromCheckout(ctx, orgID, tier, customerID, sSub); err != nil {
			logger.Error("Cannot persist subscription", zap.Error(err))
			http.Error(w, "persistence failure", http.StatusInternalServerError)
			return
		}

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			logger.Error("Cannot decode invoice", zap.Error(err))
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		if invoice.Subscription == nil {
			break
		}
		status := StatusActive
		if event.Type == "invoice.payment_failed" {
			status = StatusPastDue
		}
		sSub, err := h.SubscriptionManager.StripeClient.Subscriptions.Get(invoice.Subscription.ID, &stripe.SubscriptionParams{
			Params: stripe.Params{
				Context: ctx,
			},
		})
		if err != nil {
			logger.Error("Cannot fetch subscription from Stripe", zap.Error(err))
			http.Error(w, "stripe unavailable", http.StatusInternalServerError)
			return
		}
		if err := h.SubscriptionManager.SyncFromStripe(ctx, sSub, status); err != nil {
			logger.Error("Cannot synchronize subscription", zap.Error(err))
			http.Error(w, "persistence failure", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.updated":
		var sSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sSub); err != nil {
			logger.Error("Cannot decode subscription", zap.Error(err))
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		if err := h.SubscriptionManager.SyncFromStripe(ctx, &sSub, statusFromStripe(sSub.Status)); err != nil {
			logger.Error("Cannot synchronize subscription", zap.Error(err))
			http.Error(w, "persistence failure", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.deleted":
		var sSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sSub); err != nil {
			logger.Error("Cannot decode subscription", zap.Error(err))
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		if err := h.SubscriptionManager.SyncFromStripe(ctx, &sSub, StatusCanceled); err != nil {
			logger.Error("Cannot synchronize subscription", zap.Error(err))
			http.Error(w, "persistence failure", http.StatusInternalServerError)
			return
		}

	default:
		// acknowledge everything else so Stripe stops retrying
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"received":true}`))
}
