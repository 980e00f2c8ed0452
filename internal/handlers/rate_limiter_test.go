package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/services"
)

func TestFixedWindowLimiter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newFixedWindowLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("requests within the budget should pass")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("third request in the window should be throttled")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("other clients have their own budget")
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("10.0.0.1") {
		t.Fatal("budget should reset after the window passes")
	}
}

func TestFixedWindowLimiterDisabled(t *testing.T) {
	if limiter := newFixedWindowLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatal("zero limit should disable limiting")
	}
	if limiter := newFixedWindowLimiter(10, 0, nil); limiter != nil {
		t.Fatal("zero window should disable limiting")
	}
}

func TestPromoHandlersValidateThrottled(t *testing.T) {
	validator := &stubPromoValidator{
		validateFunc: func(ctx context.Context, code string, subtotal decimal.Decimal) (services.PromoValidation, error) {
			return services.PromoValidation{Code: code, Eligible: true}, nil
		},
	}

	handler := NewPromoHandlers(validator, "USD")
	handler.limiter = newFixedWindowLimiter(1, time.Minute, nil)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/promos/validate", strings.NewReader(`{"code":"SAVE10","subtotal":"20.00"}`))
		rr := httptest.NewRecorder()
		handler.validate(rr, req)
		return rr
	}

	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("first attempt status = %d", rr.Code)
	}

	rr := send()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "rate_limited" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestOrderHandlersTrackOrderThrottled(t *testing.T) {
	service := &stubOrderService{
		trackFunc: func(ctx context.Context, token string) (services.OrderTracking, error) {
			return services.OrderTracking{OrderNumber: "DP-000001", Status: "placed"}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	handler.trackLimiter = newFixedWindowLimiter(1, time.Minute, nil)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/track/tok-order-1", nil)
		rr := httptest.NewRecorder()
		handler.trackOrder(rr, req)
		return rr
	}

	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("first lookup status = %d", rr.Code)
	}
	if rr := send(); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
}
