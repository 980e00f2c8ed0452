package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/services"
)

type stubPromoValidator struct {
	validateFunc func(ctx context.Context, code string, subtotal decimal.Decimal) (services.PromoValidation, error)
}

func (s *stubPromoValidator) ValidatePromoCode(ctx context.Context, code string, subtotal decimal.Decimal) (services.PromoValidation, error) {
	return s.validateFunc(ctx, code, subtotal)
}

func TestPromoHandlersValidateEligible(t *testing.T) {
	validator := &stubPromoValidator{
		validateFunc: func(ctx context.Context, code string, subtotal decimal.Decimal) (services.PromoValidation, error) {
			if code != "SAVE10" {
				t.Fatalf("unexpected code %q", code)
			}
			if !subtotal.Equal(decimal.RequireFromString("20.00")) {
				t.Fatalf("unexpected subtotal %s", subtotal)
			}
			return services.PromoValidation{
				Code:     "SAVE10",
				Eligible: true,
				Discount: decimal.RequireFromString("2.00"),
			}, nil
		},
	}

	handler := NewPromoHandlers(validator, "USD")

	body := strings.NewReader(`{"code":"SAVE10","subtotal":"20.00"}`)
	req := httptest.NewRequest(http.MethodPost, "/promos/validate", body)
	rr := httptest.NewRecorder()

	handler.validate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp promoValidationPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.IsValid {
		t.Fatalf("expected valid result")
	}
	if resp.Discount != "2.00" {
		t.Fatalf("expected discount 2.00, got %q", resp.Discount)
	}
}

func TestPromoHandlersValidateRejection(t *testing.T) {
	validator := &stubPromoValidator{
		validateFunc: func(ctx context.Context, code string, subtotal decimal.Decimal) (services.PromoValidation, error) {
			return services.PromoValidation{
				Code:    code,
				Message: "Promo code expired",
			}, nil
		},
	}

	handler := NewPromoHandlers(validator, "USD")

	body := strings.NewReader(`{"code":"OLD","subtotal":"20.00"}`)
	req := httptest.NewRequest(http.MethodPost, "/promos/validate", body)
	rr := httptest.NewRecorder()

	handler.validate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp promoValidationPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.IsValid {
		t.Fatalf("expected rejection")
	}
	if resp.Message != "Promo code expired" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestPromoHandlersValidateBadInput(t *testing.T) {
	handler := NewPromoHandlers(&stubPromoValidator{}, "USD")

	cases := map[string]string{
		"missing code":      `{"subtotal":"20.00"}`,
		"blank code":        `{"code":"  ","subtotal":"20.00"}`,
		"bad subtotal":      `{"code":"SAVE10","subtotal":"abc"}`,
		"negative subtotal": `{"code":"SAVE10","subtotal":"-1"}`,
	}
	for name, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/promos/validate", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		handler.validate(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", name, rr.Code)
		}
	}
}
