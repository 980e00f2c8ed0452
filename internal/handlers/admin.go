package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/services"
)

// AdminHandlers groups the management surface for catalog, promo codes and
// order operations. Every route requires a staff role.
type AdminHandlers struct {
	authn    *auth.Authenticator
	catalog  services.CatalogService
	promos   services.PromotionService
	orders   services.OrderService
	currency string
}

func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, promos services.PromotionService, orders services.OrderService, currency string) *AdminHandlers {
	return &AdminHandlers{
		authn:    authn,
		catalog:  catalog,
		promos:   promos,
		orders:   orders,
		currency: currency,
	}
}

func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth("manager", "admin"))
	}

	r.Get("/restaurants", h.listRestaurants)
	r.Post("/restaurants", h.createRestaurant)
	r.Put("/restaurants/{restaurantID}", h.updateRestaurant)
	r.Delete("/restaurants/{restaurantID}", h.deleteRestaurant)

	r.Post("/restaurants/{restaurantID}/dishes", h.createDish)
	r.Put("/restaurants/{restaurantID}/dishes/{dishID}", h.updateDish)
	r.Delete("/restaurants/{restaurantID}/dishes/{dishID}", h.deleteDish)

	r.Post("/restaurants/{restaurantID}/categories", h.createCategory)
	r.Put("/restaurants/{restaurantID}/categories/{categoryID}", h.updateCategory)
	r.Delete("/restaurants/{restaurantID}/categories/{categoryID}", h.deleteCategory)

	r.Get("/promo-codes", h.listPromoCodes)
	r.Get("/promo-codes/{code}", h.getPromoCode)
	r.Put("/promo-codes/{code}", h.upsertPromoCode)
	r.Delete("/promo-codes/{code}", h.deletePromoCode)

	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
}

func (h *AdminHandlers) listRestaurants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageReq, err := requestPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.catalog.ListRestaurants(ctx, services.RestaurantListFilter{
		Cuisine:       strings.TrimSpace(r.URL.Query().Get("cuisine")),
		IncludeHidden: true,
		Pagination:    pageReq,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	items := make([]restaurantPayload, 0, len(page.Items))
	for _, restaurant := range page.Items {
		items = append(items, buildRestaurantPayload(restaurant, h.currency))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"restaurants":   items,
		"nextPageToken": nextPageToken(page.NextCursor),
	})
}

type upsertRestaurantRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Cuisines     []string `json:"cuisines"`
	IsOpen       bool     `json:"isOpen"`
	DeliveryFee  string   `json:"deliveryFee"`
	MinimumOrder string   `json:"minimumOrder"`
	AddressLine  string   `json:"addressLine"`
	ImageURL     string   `json:"imageUrl"`
	IsPublished  bool     `json:"isPublished"`
}

func (h *AdminHandlers) createRestaurant(w http.ResponseWriter, r *http.Request) {
	h.saveRestaurant(w, r, "")
}

func (h *AdminHandlers) updateRestaurant(w http.ResponseWriter, r *http.Request) {
	h.saveRestaurant(w, r, chi.URLParam(r, "restaurantID"))
}

func (h *AdminHandlers) saveRestaurant(w http.ResponseWriter, r *http.Request, restaurantID string) {
	ctx := r.Context()
	var req upsertRestaurantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	fee, err := parseMoneyField(req.DeliveryFee)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "deliveryFee must be a decimal amount", http.StatusBadRequest))
		return
	}
	minimum, err := parseMoneyField(req.MinimumOrder)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "minimumOrder must be a decimal amount", http.StatusBadRequest))
		return
	}
	restaurant, err := h.catalog.UpsertRestaurant(ctx, services.UpsertRestaurantCommand{
		Restaurant: services.Restaurant{
			ID:           restaurantID,
			Name:         req.Name,
			Description:  req.Description,
			Cuisines:     req.Cuisines,
			IsOpen:       req.IsOpen,
			DeliveryFee:  fee,
			MinimumOrder: minimum,
			AddressLine:  req.AddressLine,
			ImageURL:     req.ImageURL,
			IsPublished:  req.IsPublished,
		},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if restaurantID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, map[string]any{"restaurant": buildRestaurantPayload(restaurant, h.currency)})
}

func (h *AdminHandlers) deleteRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.DeleteRestaurant(ctx, chi.URLParam(r, "restaurantID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertDishRequest struct {
	CategoryID  string `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	IsAvailable bool   `json:"isAvailable"`
	ImageURL    string `json:"imageUrl"`
}

func (h *AdminHandlers) createDish(w http.ResponseWriter, r *http.Request) {
	h.saveDish(w, r, "")
}

func (h *AdminHandlers) updateDish(w http.ResponseWriter, r *http.Request) {
	h.saveDish(w, r, chi.URLParam(r, "dishID"))
}

func (h *AdminHandlers) saveDish(w http.ResponseWriter, r *http.Request, dishID string) {
	ctx := r.Context()
	var req upsertDishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	price, err := parseMoneyField(req.Price)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price must be a decimal amount", http.StatusBadRequest))
		return
	}
	dish, err := h.catalog.UpsertDish(ctx, services.UpsertDishCommand{
		Dish: services.Dish{
			ID:           dishID,
			RestaurantID: chi.URLParam(r, "restaurantID"),
			CategoryID:   req.CategoryID,
			Name:         req.Name,
			Description:  req.Description,
			Price:        price,
			IsAvailable:  req.IsAvailable,
			ImageURL:     req.ImageURL,
		},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if dishID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, map[string]any{"dish": buildDishPayload(dish, h.currency)})
}

func (h *AdminHandlers) deleteDish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.DeleteDish(ctx, chi.URLParam(r, "dishID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertCategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

func (h *AdminHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, "")
}

func (h *AdminHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, chi.URLParam(r, "categoryID"))
}

func (h *AdminHandlers) saveCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	ctx := r.Context()
	var req upsertCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	category, err := h.catalog.UpsertMenuCategory(ctx, services.UpsertMenuCategoryCommand{
		Category: services.MenuCategory{
			ID:           categoryID,
			RestaurantID: chi.URLParam(r, "restaurantID"),
			Name:         req.Name,
			SortOrder:    req.SortOrder,
		},
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	status := http.StatusOK
	if categoryID == "" {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, map[string]any{"category": buildCategoryPayload(category)})
}

func (h *AdminHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.DeleteMenuCategory(ctx, chi.URLParam(r, "categoryID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listPromoCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageReq, err := requestPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.promos.ListPromoCodes(ctx, services.PromoCodeListFilter{Pagination: pageReq})
	if err != nil {
		writePromoError(ctx, w, err)
		return
	}
	items := make([]promoCodePayload, 0, len(page.Items))
	for _, promo := range page.Items {
		items = append(items, buildPromoCodePayload(promo, h.currency))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"promoCodes":    items,
		"nextPageToken": nextPageToken(page.NextCursor),
	})
}

func (h *AdminHandlers) getPromoCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	promo, err := h.promos.GetPromoCode(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writePromoError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"promoCode": buildPromoCodePayload(promo, h.currency)})
}

type upsertPromoCodeRequest struct {
	Description        string `json:"description"`
	DiscountPercentage string `json:"discountPercentage"`
	DiscountAmount     string `json:"discountAmount"`
	FreeDelivery       bool   `json:"freeDelivery"`
	MinimumOrderAmount string `json:"minimumOrderAmount"`
	IsActive           bool   `json:"isActive"`
	ExpiresAt          string `json:"expiresAt"`
	UsageLimit         *int   `json:"usageLimit"`
}

func (h *AdminHandlers) upsertPromoCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req upsertPromoCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	percentage, err := parseMoneyField(req.DiscountPercentage)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discountPercentage must be a decimal", http.StatusBadRequest))
		return
	}
	amount, err := parseMoneyField(req.DiscountAmount)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "discountAmount must be a decimal amount", http.StatusBadRequest))
		return
	}
	minimum, err := parseMoneyField(req.MinimumOrderAmount)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "minimumOrderAmount must be a decimal amount", http.StatusBadRequest))
		return
	}
	promo := services.PromoCode{
		Code:               chi.URLParam(r, "code"),
		Description:        req.Description,
		DiscountPercentage: percentage,
		DiscountAmount:     amount,
		FreeDelivery:       req.FreeDelivery,
		MinimumOrderAmount: minimum,
		IsActive:           req.IsActive,
		UsageLimit:         req.UsageLimit,
	}
	if expires := strings.TrimSpace(req.ExpiresAt); expires != "" {
		at, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expiresAt must be RFC 3339", http.StatusBadRequest))
			return
		}
		promo.ExpiresAt = &at
	}
	saved, err := h.promos.UpsertPromoCode(ctx, services.UpsertPromoCodeCommand{Promo: promo})
	if err != nil {
		writePromoError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"promoCode": buildPromoCodePayload(saved, h.currency)})
}

func (h *AdminHandlers) deletePromoCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.promos.DeletePromoCode(ctx, chi.URLParam(r, "code")); err != nil {
		writePromoError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pageReq, err := requestPagination(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		RestaurantID: strings.TrimSpace(r.URL.Query().Get("restaurantId")),
		Status:       services.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Pagination:   pageReq,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"orders":        items,
		"nextPageToken": nextPageToken(page.NextCursor),
	})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := requireUID(ctx, w)
	if !ok {
		return
	}
	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:   chi.URLParam(r, "orderID"),
		NewStatus: services.OrderStatus(strings.TrimSpace(req.Status)),
		ActorUID:  uid,
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

// parseMoneyField treats a blank field as zero so partial admin payloads do
// not have to spell out every amount.
func parseMoneyField(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrRestaurantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_not_found", "restaurant not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDishNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("dish_not_found", "dish not found", http.StatusNotFound))
	case errors.Is(err, services.ErrMenuCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "menu category not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

func writePromoError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPromoInvalidCode):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPromoNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("promo_not_found", "promo code not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "promo operation failed", http.StatusInternalServerError))
	}
}
