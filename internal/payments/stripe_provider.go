package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const stripeProviderName = "stripe"

// StripeLogger receives structured events emitted by the Stripe provider.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeClients struct {
	paymentIntents stripePaymentIntentAPI
}

// StripeProviderConfig configures a StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	// Clients overrides the real Stripe bindings in tests.
	Clients *stripeClients
}

// StripeProvider authorises order charges through Stripe payment intents.
type StripeProvider struct {
	clients stripeClients
	logger  StripeLogger
	clock   func() time.Time
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider builds a StripeProvider from cfg. APIKey is required
// unless cfg.Clients is supplied.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	clients := stripeClients{}
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			return nil, errors.New("payments: stripe api key is required")
		}
		sc := client.New(key, cfg.Backends)
		clients.paymentIntents = sc.PaymentIntents
	}
	if clients.paymentIntents == nil {
		return nil, errors.New("payments: stripe payment intent client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &StripeProvider{
		clients: clients,
		logger:  logger,
		clock:   func() time.Time { return clock().UTC() },
	}, nil
}

// CreatePaymentIntent authorises req.Amount against the customer. The
// request's idempotency key makes retried placements safe.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error) {
	if req.Amount <= 0 {
		return PaymentIntent{}, fmt.Errorf("payments: invalid amount %d", req.Amount)
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return PaymentIntent{}, errors.New("payments: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Metadata = map[string]string{}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.OrderID != "" {
		params.Metadata["order_id"] = req.OrderID
	}
	if req.UserID != "" {
		params.Metadata["user_id"] = req.UserID
	}

	intent, err := p.clients.paymentIntents.New(params)
	if err != nil {
		p.logger(ctx, "stripe.payment_intent.create_failed", map[string]any{
			"order_id": req.OrderID,
			"error":    err.Error(),
		})
		return PaymentIntent{}, fmt.Errorf("payments: create payment intent: %w", err)
	}

	p.logger(ctx, "stripe.payment_intent.created", map[string]any{
		"order_id":  req.OrderID,
		"intent_id": intent.ID,
		"amount":    req.Amount,
		"currency":  currency,
	})

	created := p.clock()
	if intent.Created > 0 {
		created = time.Unix(intent.Created, 0).UTC()
	}
	return PaymentIntent{
		ID:           intent.ID,
		Provider:     stripeProviderName,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		CreatedAt:    created,
	}, nil
}

// CancelPaymentIntent voids a previously created intent, e.g. when an
// order is cancelled before capture.
func (p *StripeProvider) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if strings.TrimSpace(intentID) == "" {
		return errors.New("payments: intent id is required")
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := p.clients.paymentIntents.Cancel(intentID, params); err != nil {
		p.logger(ctx, "stripe.payment_intent.cancel_failed", map[string]any{
			"intent_id": intentID,
			"error":     err.Error(),
		})
		return fmt.Errorf("payments: cancel payment intent: %w", err)
	}
	p.logger(ctx, "stripe.payment_intent.cancelled", map[string]any{"intent_id": intentID})
	return nil
}
