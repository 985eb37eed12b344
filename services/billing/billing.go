// Package billing integrates Stripe subscriptions for the premium plan.
package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"

	svcerr "github.com/quanticpro/backend/internal/errors"
	"github.com/quanticpro/backend/internal/logging"
	"github.com/quanticpro/backend/services/notify"
	"github.com/quanticpro/backend/services/users"
)

// Gateway is the slice of the Stripe API the service uses.
type Gateway interface {
	CreateCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CancelSubscription(id string) (*stripe.Subscription, error)
}

// Config holds the Stripe settings.
type Config struct {
	WebhookSecret string
	PriceID       string
	// AppBaseURL is where checkout redirects land.
	AppBaseURL string
}

// Service manages subscription state.
type Service struct {
	store    users.Store
	gateway  Gateway
	notifier notify.Notifier
	config   Config
	logger   *logging.Logger

	// verifyWebhook is swapped in tests.
	verifyWebhook func(payload []byte, sigHeader, secret string) (stripe.Event, error)
}

// NewService creates the billing service.
func NewService(store users.Store, gateway Gateway, notifier notify.Notifier, cfg Config, logger *logging.Logger) *Service {
	return &Service{
		store:         store,
		gateway:       gateway,
		notifier:      notifier,
		config:        cfg,
		logger:        logger,
		verifyWebhook: verifyEvent,
	}
}

// Checkout creates a subscription checkout session and returns its URL.
func (s *Service) Checkout(ctx context.Context, userID, email string) (string, error) {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.IsPremium {
		return "", svcerr.InvalidInput("subscription already active")
	}
	if email == "" {
		email = u.Email
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(s.config.AppBaseURL + "/premium/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     stripe.String(s.config.AppBaseURL + "/premium"),
	}
	params.AddMetadata("user_id", userID)

	subData := &stripe.CheckoutSessionSubscriptionDataParams{}
	subData.AddMetadata("user_id", userID)
	params.SubscriptionData = subData

	session, err := s.gateway.CreateCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// Cancel ends the user's subscription. A user without a recorded
// subscription just has the premium flags cleared.
func (s *Service) Cancel(ctx context.Context, userID string) error {
	u, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}

	if u.StripeSubscriptionID != "" {
		if _, err := s.gateway.CancelSubscription(u.StripeSubscriptionID); err != nil {
			return fmt.Errorf("cancel subscription: %w", err)
		}
	}

	if err := s.clearPremium(ctx, userID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, userID, "Abbonamento", "Abbonamento Premium annullato", notify.KindBilling)
	return nil
}

// ProcessWebhook verifies a Stripe webhook payload and applies the event.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.verifyWebhook(payload, sigHeader, s.config.WebhookSecret)
	if err != nil {
		return svcerr.Unauthorized("webhook signature verification failed")
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return svcerr.InvalidInput("malformed checkout session payload")
		}
		return s.activate(ctx, &session)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return svcerr.InvalidInput("malformed subscription payload")
		}
		return s.deactivate(ctx, &sub)

	default:
		// Unhandled event types are acknowledged, not errors.
		s.logger.WithContext(ctx).WithField("type", string(event.Type)).Debug("webhook event ignored")
		return nil
	}
}

func (s *Service) activate(ctx context.Context, session *stripe.CheckoutSession) error {
	userID := session.Metadata["user_id"]
	if userID == "" {
		return svcerr.InvalidInput("checkout session missing user metadata")
	}

	fields := map[string]any{"is_premium": true}
	if session.Customer != nil {
		fields["stripe_customer_id"] = session.Customer.ID
	}
	if session.Subscription != nil {
		fields["stripe_subscription_id"] = session.Subscription.ID
	}

	if err := s.store.UpdateFields(ctx, userID, fields); err != nil {
		return fmt.Errorf("activate premium for %s: %w", userID, err)
	}

	s.notifier.Notify(ctx, userID, "Abbonamento", "Benvenuto in Premium!", notify.KindBilling)
	return nil
}

func (s *Service) deactivate(ctx context.Context, sub *stripe.Subscription) error {
	userID := sub.Metadata["user_id"]
	if userID == "" {
		s.logger.WithContext(ctx).WithField("subscription", sub.ID).Warn("subscription deleted without user metadata")
		return nil
	}

	if err := s.clearPremium(ctx, userID); err != nil {
		return err
	}
	s.notifier.Notify(ctx, userID, "Abbonamento", "Abbonamento Premium terminato", notify.KindBilling)
	return nil
}

func (s *Service) clearPremium(ctx context.Context, userID string) error {
	err := s.store.UpdateFields(ctx, userID, map[string]any{
		"is_premium":             false,
		"stripe_subscription_id": "",
	})
	if err != nil {
		return fmt.Errorf("clear premium for %s: %w", userID, err)
	}
	return nil
}
