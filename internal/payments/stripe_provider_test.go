package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	stripe "github.com/stripe/stripe-go/v78"
)

type fakePaymentIntentAPI struct {
	newParams    *stripe.PaymentIntentParams
	newResult    *stripe.PaymentIntent
	newErr       error
	cancelledID  string
	cancelErr    error
	cancelCalled bool
}

func (f *fakePaymentIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.newParams = params
	if f.newErr != nil {
		return nil, f.newErr
	}
	return f.newResult, nil
}

func (f *fakePaymentIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePaymentIntentAPI) Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	f.cancelCalled = true
	f.cancelledID = id
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusCanceled}, nil
}

func newTestProvider(t *testing.T, api *fakePaymentIntentAPI) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{paymentIntents: api},
		Clock:   func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewStripeProvider: %v", err)
	}
	return provider
}

func TestNewStripeProviderRequiresKey(t *testing.T) {
	if _, err := NewStripeProvider(StripeProviderConfig{}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	api := &fakePaymentIntentAPI{
		newResult: &stripe.PaymentIntent{
			ID:           "pi_123",
			ClientSecret: "pi_123_secret",
			Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
			Created:      time.Date(2024, 6, 1, 11, 59, 0, 0, time.UTC).Unix(),
		},
	}
	provider := newTestProvider(t, api)

	intent, err := provider.CreatePaymentIntent(context.Background(), PaymentIntentRequest{
		Amount:         2450,
		Currency:       "USD",
		OrderID:        "order-1",
		UserID:         "user-1",
		IdempotencyKey: "order-1",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if intent.ID != "pi_123" || intent.Provider != stripeProviderName {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if got := stripe.Int64Value(api.newParams.Amount); got != 2450 {
		t.Fatalf("amount = %d, want 2450", got)
	}
	if got := stripe.StringValue(api.newParams.Currency); got != "usd" {
		t.Fatalf("currency = %q, want usd", got)
	}
	if api.newParams.Metadata["order_id"] != "order-1" {
		t.Fatalf("order metadata missing: %v", api.newParams.Metadata)
	}
	if api.newParams.IdempotencyKey == nil || *api.newParams.IdempotencyKey != "order-1" {
		t.Fatal("idempotency key not set")
	}
}

func TestCreatePaymentIntentRejectsInvalidInput(t *testing.T) {
	provider := newTestProvider(t, &fakePaymentIntentAPI{})

	if _, err := provider.CreatePaymentIntent(context.Background(), PaymentIntentRequest{Amount: 0, Currency: "usd"}); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := provider.CreatePaymentIntent(context.Background(), PaymentIntentRequest{Amount: 100}); err == nil {
		t.Fatal("expected error for missing currency")
	}
}

func TestCancelPaymentIntent(t *testing.T) {
	api := &fakePaymentIntentAPI{}
	provider := newTestProvider(t, api)

	if err := provider.CancelPaymentIntent(context.Background(), "pi_123"); err != nil {
		t.Fatalf("CancelPaymentIntent: %v", err)
	}
	if !api.cancelCalled || api.cancelledID != "pi_123" {
		t.Fatalf("cancel not forwarded: %+v", api)
	}

	api.cancelErr = errors.New("boom")
	if err := provider.CancelPaymentIntent(context.Background(), "pi_123"); err == nil {
		t.Fatal("expected cancel error")
	}
}
