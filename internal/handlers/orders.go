package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/services"
)

// OrderHandlers exposes order placement, history, cancellation and the share
// token flow. Tracking by token is mounted separately because couriers and
// recipients follow the link without signing in.
type OrderHandlers struct {
	authn          *auth.Authenticator
	orders         services.OrderService
	placementGuard func(http.Handler) http.Handler
	trackLimiter   rateLimiter
}

// OrderOption customises OrderHandlers construction.
type OrderOption func(*OrderHandlers)

// WithPlacementGuard wraps order placement with extra middleware, such as the
// Idempotency-Key guard.
func WithPlacementGuard(guard func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.placementGuard = guard
	}
}

func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:        authn,
		orders:       orders,
		trackLimiter: newFixedWindowLimiter(trackLookupsPerMinute, time.Minute, time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the authenticated order endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	if h.placementGuard != nil {
		r.With(h.placementGuard).Post("/", h.placeOrder)
	} else {
		r.Post("/", h.placeOrder)
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Post("/{orderID}/track-token", h.issueTrackToken)
}

// TrackRoutes wires the tokenized tracking endpoint outside the auth wall.
func (h *OrderHandlers) TrackRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{token}", h.trackOrder)
}

type placeOrderRequest struct {
	Notes string `json:"notes"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req placeOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeBodyError(w, r, err)
			return
		}
	}
	order, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID: uid,
		Notes:  strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	pageReq, err := requestPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		UserID:     uid,
		Status:     services.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Pagination: pageReq,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	payload := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		payload = append(payload, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":        payload,
		"nextPageToken": nextPageToken(page.NextCursor),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, uid, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(ctx, uid, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) issueTrackToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	token, err := h.orders.IssueTrackToken(ctx, uid, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *OrderHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.trackLimiter != nil && !h.trackLimiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many tracking requests", http.StatusTooManyRequests))
		return
	}
	tracking, err := h.orders.TrackOrder(ctx, chi.URLParam(r, "token"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orderNumber":  tracking.OrderNumber,
		"status":       tracking.Status,
		"restaurantId": tracking.RestaurantID,
		"placedAt":     tracking.PlacedAt,
		"updatedAt":    tracking.UpdatedAt,
	})
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "Cart is empty", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderPricingInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("pricing_invalid", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderItemsUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("items_unavailable", "one or more dishes are no longer available", http.StatusConflict))
	case errors.Is(err, services.ErrOrderRestaurantClosed):
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_closed", "Restaurant is currently closed", http.StatusConflict))
	case errors.Is(err, services.ErrOrderMinimumNotMet):
		httpx.WriteError(ctx, w, httpx.NewError("minimum_not_met", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderPromoIneligible):
		httpx.WriteError(ctx, w, httpx.NewError("promo_ineligible", "promo code can no longer be applied", http.StatusConflict))
	case errors.Is(err, services.ErrOrderAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "delivery address not found", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderTrackTokenInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("track_token_invalid", "tracking link is invalid or expired", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "order operation failed", http.StatusInternalServerError))
	}
}
