package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/services"
)

// PromoHandlers exposes the public promo code preview endpoint. Validation
// never consumes a code, so no authentication is required here; a per-client
// throttle keeps the endpoint from being used to enumerate codes.
type PromoHandlers struct {
	promos   services.PromoValidator
	currency string
	limiter  rateLimiter
}

func NewPromoHandlers(promos services.PromoValidator, currency string) *PromoHandlers {
	return &PromoHandlers{
		promos:   promos,
		currency: currency,
		limiter:  newFixedWindowLimiter(promoValidatePerMinute, time.Minute, time.Now),
	}
}

func (h *PromoHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate", h.validate)
}

type validatePromoRequest struct {
	Code     string `json:"code"`
	Subtotal string `json:"subtotal"`
}

func (h *PromoHandlers) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.promos == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "promo service not configured", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many validation attempts", http.StatusTooManyRequests))
		return
	}
	var req validatePromoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "code is required", http.StatusBadRequest))
		return
	}
	subtotal, err := decimal.NewFromString(strings.TrimSpace(req.Subtotal))
	if err != nil || subtotal.IsNegative() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must be a non-negative decimal amount", http.StatusBadRequest))
		return
	}
	validation, err := h.promos.ValidatePromoCode(ctx, req.Code, subtotal)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "promo validation failed", http.StatusInternalServerError))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildPromoValidationPayload(validation, h.currency))
}
