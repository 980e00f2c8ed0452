package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/services"
)

type stubCartService struct {
	getCartFunc    func(ctx context.Context, userID string) (services.Cart, services.PricingResult, error)
	upsertItemFunc func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, services.PricingResult, error)
	applyPromoFunc func(ctx context.Context, userID, code string) (services.Cart, services.PricingResult, error)
	clearPromoFunc func(ctx context.Context, userID string) (services.Cart, services.PricingResult, error)
	setAddressFunc func(ctx context.Context, userID, addressID string) (services.Cart, services.PricingResult, error)
	clearCartFunc  func(ctx context.Context, userID string) error
	quoteFunc      func(ctx context.Context, userID string) (services.PricingResult, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, services.PricingResult, error) {
	return s.getCartFunc(ctx, userID)
}

func (s *stubCartService) UpsertItem(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, services.PricingResult, error) {
	return s.upsertItemFunc(ctx, cmd)
}

func (s *stubCartService) ApplyPromoCode(ctx context.Context, userID, code string) (services.Cart, services.PricingResult, error) {
	return s.applyPromoFunc(ctx, userID, code)
}

func (s *stubCartService) ClearPromoCode(ctx context.Context, userID string) (services.Cart, services.PricingResult, error) {
	return s.clearPromoFunc(ctx, userID)
}

func (s *stubCartService) SetDeliveryAddress(ctx context.Context, userID, addressID string) (services.Cart, services.PricingResult, error) {
	return s.setAddressFunc(ctx, userID, addressID)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	return s.clearCartFunc(ctx, userID)
}

func (s *stubCartService) Quote(ctx context.Context, userID string) (services.PricingResult, error) {
	return s.quoteFunc(ctx, userID)
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7"}))
}

func TestCartHandlersGetCart(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service := &stubCartService{
		getCartFunc: func(ctx context.Context, userID string) (services.Cart, services.PricingResult, error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			cart := services.Cart{
				UserID:       "user-7",
				RestaurantID: "rest-1",
				Items: []services.CartLine{
					{ID: "line-1", DishID: "dish-1", Quantity: 2, AddedAt: now},
				},
				UpdatedAt: now,
			}
			pricing := services.PricingResult{
				IsValid:  true,
				Currency: "USD",
				Items: []services.PricedItem{
					{DishID: "dish-1", DishName: "Margherita", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2, LineTotal: decimal.RequireFromString("10.00"), IsAvailable: true},
				},
				Subtotal:    decimal.RequireFromString("10.00"),
				Tax:         decimal.RequireFromString("1.00"),
				TaxRate:     decimal.RequireFromString("0.10"),
				DeliveryFee: decimal.RequireFromString("2.00"),
				GrandTotal:  decimal.RequireFromString("13.00"),
			}
			return cart, pricing, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/cart/", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cart.RestaurantID != "rest-1" {
		t.Fatalf("expected restaurant rest-1, got %q", resp.Cart.RestaurantID)
	}
	if len(resp.Cart.Items) != 1 || resp.Cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart items %#v", resp.Cart.Items)
	}
	if !resp.Pricing.IsValid {
		t.Fatalf("expected valid pricing")
	}
	if resp.Pricing.GrandTotal != "13.00" {
		t.Fatalf("expected grand total 13.00, got %q", resp.Pricing.GrandTotal)
	}
}

func TestCartHandlersGetCartUnauthenticated(t *testing.T) {
	handler := NewCartHandlers(nil, &stubCartService{})
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rr := httptest.NewRecorder()
	handler.getCart(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestCartHandlersUpsertItem(t *testing.T) {
	service := &stubCartService{
		upsertItemFunc: func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, services.PricingResult, error) {
			if cmd.DishID != "dish-1" || cmd.Quantity != 3 {
				t.Fatalf("unexpected command %#v", cmd)
			}
			return services.Cart{UserID: cmd.UserID}, services.PricingResult{IsValid: false, ErrorMessage: "Cart is empty"}, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/cart/items/dish-1", `{"quantity":3}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestCartHandlersUpsertItemRestaurantMismatch(t *testing.T) {
	service := &stubCartService{
		upsertItemFunc: func(ctx context.Context, cmd services.UpsertCartItemCommand) (services.Cart, services.PricingResult, error) {
			return services.Cart{}, services.PricingResult{}, services.ErrCartRestaurantMismatch
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPut, "/cart/items/dish-9", `{"quantity":1}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "cart_restaurant_mismatch" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := false
	service := &stubCartService{
		clearCartFunc: func(ctx context.Context, userID string) error {
			cleared = true
			return nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/cart/", ""))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if !cleared {
		t.Fatalf("expected clear to reach the service")
	}
}

func TestCartHandlersQuote(t *testing.T) {
	service := &stubCartService{
		quoteFunc: func(ctx context.Context, userID string) (services.PricingResult, error) {
			return services.PricingResult{IsValid: false, ErrorMessage: "Cart is empty"}, nil
		},
	}

	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/cart/quote", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp struct {
		Pricing pricingPayload `json:"pricing"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Pricing.IsValid {
		t.Fatalf("expected invalid pricing for an empty cart")
	}
	if resp.Pricing.ErrorMessage != "Cart is empty" {
		t.Fatalf("unexpected message %q", resp.Pricing.ErrorMessage)
	}
}
