package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/platform/idempotency"
	"github.com/dishpatch/api/internal/services"
)

type stubOrderService struct {
	placeFunc      func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error)
	getFunc        func(ctx context.Context, userID, orderID string) (services.Order, error)
	listFunc       func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateFunc     func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
	cancelFunc     func(ctx context.Context, userID, orderID string) (services.Order, error)
	issueTokenFunc func(ctx context.Context, userID, orderID string) (string, error)
	trackFunc      func(ctx context.Context, token string) (services.OrderTracking, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	return s.placeFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, userID, orderID string) (services.Order, error) {
	return s.getFunc(ctx, userID, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	return s.listFunc(ctx, filter)
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	return s.updateFunc(ctx, cmd)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, userID, orderID string) (services.Order, error) {
	return s.cancelFunc(ctx, userID, orderID)
}

func (s *stubOrderService) IssueTrackToken(ctx context.Context, userID, orderID string) (string, error) {
	return s.issueTokenFunc(ctx, userID, orderID)
}

func (s *stubOrderService) TrackOrder(ctx context.Context, token string) (services.OrderTracking, error) {
	return s.trackFunc(ctx, token)
}

func sampleOrder() services.Order {
	placed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return services.Order{
		ID:           "order-1",
		OrderNumber:  "DP-000001",
		UserID:       "user-7",
		RestaurantID: "rest-1",
		Status:       "placed",
		Currency:     "USD",
		Items: []services.OrderLineItem{
			{DishID: "dish-1", Name: "Margherita", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 2, LineTotal: decimal.RequireFromString("10.00")},
		},
		Totals: services.OrderTotals{
			Subtotal:    decimal.RequireFromString("10.00"),
			Tax:         decimal.RequireFromString("1.00"),
			DeliveryFee: decimal.RequireFromString("2.00"),
			Total:       decimal.RequireFromString("13.00"),
		},
		PlacedAt: placed,
	}
}

func TestOrderHandlersPlaceOrder(t *testing.T) {
	service := &stubOrderService{
		placeFunc: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
			if cmd.UserID != "user-7" {
				t.Fatalf("unexpected user id %q", cmd.UserID)
			}
			if cmd.Notes != "ring the bell" {
				t.Fatalf("unexpected notes %q", cmd.Notes)
			}
			order := sampleOrder()
			order.Notes = cmd.Notes
			return order, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/", `{"notes":"ring the bell"}`))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	var resp struct {
		Order orderPayload `json:"order"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.OrderNumber != "DP-000001" {
		t.Fatalf("expected order number DP-000001, got %q", resp.Order.OrderNumber)
	}
	if resp.Order.Total != "13.00" {
		t.Fatalf("expected total 13.00, got %q", resp.Order.Total)
	}
	if resp.Order.DeliveryNotes != "ring the bell" {
		t.Fatalf("expected delivery notes to round-trip, got %q", resp.Order.DeliveryNotes)
	}
}

func TestOrderHandlersPlacementGuard(t *testing.T) {
	placements := 0
	service := &stubOrderService{
		placeFunc: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
			placements++
			return sampleOrder(), nil
		},
	}

	guard := idempotency.Middleware(idempotency.NewMemoryStore())
	handler := NewOrderHandlers(nil, service, WithPlacementGuard(guard))
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	send := func() *httptest.ResponseRecorder {
		req := authedRequest(http.MethodPost, "/orders/", `{"notes":"ring the bell"}`)
		req.Header.Set("Idempotency-Key", "place-1")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first placement status = %d", first.Code)
	}

	// A retried placement with the same key must not create a second order.
	second := send()
	if placements != 1 {
		t.Fatalf("placements = %d, want exactly 1", placements)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("replayed status = %d", second.Code)
	}
	if second.Header().Get(idempotency.ReplayHeader) != "true" {
		t.Fatal("expected the replay marker header")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body %q differs from original %q", second.Body.String(), first.Body.String())
	}

	// Placement without a key is rejected outright.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/", `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without a key, got %d", rr.Code)
	}
}

func TestOrderHandlersPlaceOrderEmptyCart(t *testing.T) {
	service := &stubOrderService{
		placeFunc: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderCartEmpty
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/", `{}`))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["error"] != "cart_empty" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(ctx context.Context, userID, orderID string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/order-9", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersTrackOrder(t *testing.T) {
	service := &stubOrderService{
		trackFunc: func(ctx context.Context, token string) (services.OrderTracking, error) {
			if token != "tok-order-1" {
				return services.OrderTracking{}, services.ErrOrderTrackTokenInvalid
			}
			return services.OrderTracking{
				OrderNumber:  "DP-000001",
				Status:       "preparing",
				RestaurantID: "rest-1",
				PlacedAt:     "2025-03-01T12:00:00Z",
				UpdatedAt:    "2025-03-01T12:10:00Z",
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/track", handler.TrackRoutes)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/track/tok-order-1", nil)
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["orderNumber"] != "DP-000001" {
		t.Fatalf("unexpected order number %v", body["orderNumber"])
	}
	if body["status"] != "preparing" {
		t.Fatalf("unexpected status %v", body["status"])
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/track/garbage", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for a bad token, got %d", rr.Code)
	}
}
