// Package payments abstracts the payment service provider used at order
// placement.
package payments

import (
	"context"
	"time"
)

// PaymentIntentRequest describes the charge to authorise for an order.
type PaymentIntentRequest struct {
	// Amount is the grand total in the currency's minor units.
	Amount   int64
	Currency string
	OrderID  string
	UserID   string
	// IdempotencyKey deduplicates retried placements at the provider.
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// PaymentIntent is the provider-side record of an authorised charge.
type PaymentIntent struct {
	ID           string
	Provider     string
	ClientSecret string
	Status       string
	CreatedAt    time.Time
}

// Provider is the payment gateway contract consumed by the order service.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
}
