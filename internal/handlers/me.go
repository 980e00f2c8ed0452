package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/services"
)

// MeHandlers exposes the signed-in user's profile and address book.
type MeHandlers struct {
	authn    *auth.Authenticator
	users    services.UserService
	currency string
}

func NewMeHandlers(authn *auth.Authenticator, users services.UserService, currency string) *MeHandlers {
	return &MeHandlers{authn: authn, users: users, currency: currency}
}

func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.updateProfile)
	r.Get("/addresses", h.listAddresses)
	r.Post("/addresses", h.createAddress)
	r.Put("/addresses/{addressID}", h.updateAddress)
	r.Delete("/addresses/{addressID}", h.deleteAddress)
	r.Post("/addresses/{addressID}/default", h.setDefaultAddress)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	// Reads double as provisioning so a first visit materialises the profile.
	profile, err := h.users.EnsureProfile(ctx, services.EnsureProfileCommand{
		UserID: identity.UID,
		Email:  identity.Email,
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"profile": buildProfilePayload(profile)})
}

type updateProfileRequest struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
}

func (h *MeHandlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	profile, err := h.users.EnsureProfile(ctx, services.EnsureProfileCommand{
		UserID:      uid,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Phone:       strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"profile": buildProfilePayload(profile)})
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	addresses, err := h.users.ListAddresses(ctx, uid)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	payload := make([]addressPayload, 0, len(addresses))
	for _, address := range addresses {
		payload = append(payload, buildAddressPayload(address, h.currency))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"addresses": payload})
}

type upsertAddressRequest struct {
	Label               string `json:"label"`
	Line1               string `json:"line1"`
	Line2               string `json:"line2"`
	City                string `json:"city"`
	PostalCode          string `json:"postalCode"`
	Phone               string `json:"phone"`
	IsDefault           bool   `json:"isDefault"`
	DeliveryFeeOverride string `json:"deliveryFeeOverride"`
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	h.upsertAddress(w, r, "")
}

func (h *MeHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	h.upsertAddress(w, r, chi.URLParam(r, "addressID"))
}

func (h *MeHandlers) upsertAddress(w http.ResponseWriter, r *http.Request, addressID string) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req upsertAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	cmd := services.UpsertAddressCommand{
		UserID: uid,
		Address: services.Address{
			ID:         addressID,
			Label:      strings.TrimSpace(req.Label),
			Line1:      strings.TrimSpace(req.Line1),
			Line2:      strings.TrimSpace(req.Line2),
			City:       strings.TrimSpace(req.City),
			PostalCode: strings.TrimSpace(req.PostalCode),
			Phone:      strings.TrimSpace(req.Phone),
			IsDefault:  req.IsDefault,
		},
	}
	if override := strings.TrimSpace(req.DeliveryFeeOverride); override != "" {
		amount, err := decimal.NewFromString(override)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "deliveryFeeOverride must be a decimal amount", http.StatusBadRequest))
			return
		}
		cmd.Address.DeliveryFeeOverride = &amount
	}
	address, err := h.users.UpsertAddress(ctx, cmd)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if addressID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, map[string]any{"address": buildAddressPayload(address, h.currency)})
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	if err := h.users.DeleteAddress(ctx, uid, chi.URLParam(r, "addressID")); err != nil {
		writeUserError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	addressID := chi.URLParam(r, "addressID")
	if err := h.users.SetDefaultAddress(ctx, uid, addressID); err != nil {
		writeUserError(ctx, w, err)
		return
	}
	address, err := h.users.GetAddress(ctx, uid, addressID)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"address": buildAddressPayload(address, h.currency)})
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user profile not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "profile operation failed", http.StatusInternalServerError))
	}
}
