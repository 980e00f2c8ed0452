package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/services"
)

// CartHandlers exposes the authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Put("/items/{dishID}", h.upsertItem)
	r.Delete("/items/{dishID}", h.removeItem)
	r.Post("/promo", h.applyPromo)
	r.Delete("/promo", h.clearPromo)
	r.Put("/address", h.setAddress)
	r.Post("/quote", h.quote)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	cart, pricing, err := h.carts.GetCart(ctx, uid)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart, pricing))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	if err := h.carts.ClearCart(ctx, uid); err != nil {
		writeCartError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) upsertItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req upsertItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	cart, pricing, err := h.carts.UpsertItem(ctx, services.UpsertCartItemCommand{
		UserID:   uid,
		DishID:   chi.URLParam(r, "dishID"),
		Quantity: req.Quantity,
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart, pricing))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	cart, pricing, err := h.carts.UpsertItem(ctx, services.UpsertCartItemCommand{
		UserID: uid,
		DishID: chi.URLParam(r, "dishID"),
	})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart, pricing))
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

func (h *CartHandlers) applyPromo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req applyPromoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	cart, pricing, err := h.carts.ApplyPromoCode(ctx, uid, req.Code)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart, pricing))
}

func (h *CartHandlers) clearPromo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	cart, pricing, err := h.carts.ClearPromoCode(ctx, uid)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart, pricing))
}

type setAddressRequest struct {
	AddressID string `json:"addressId"`
}

func (h *CartHandlers) setAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req setAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	cart, pricing, err := h.carts.SetDeliveryAddress(ctx, uid, req.AddressID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart, pricing))
}

// quote returns the full pricing preview without persisting anything.
func (h *CartHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	pricing, err := h.carts.Quote(ctx, uid)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"pricing": buildPricingPayload(pricing)})
}

func requireUID(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartRestaurantMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("cart_restaurant_mismatch", "cart holds items from another restaurant", http.StatusConflict))
	case errors.Is(err, services.ErrCartLineNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_line_not_found", "dish is not in the cart", http.StatusNotFound))
	case errors.Is(err, services.ErrDishNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("dish_not_found", "dish not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "cart operation failed", http.StatusInternalServerError))
	}
}
