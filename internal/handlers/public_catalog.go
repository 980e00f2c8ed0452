package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/platform/httpx"
	"github.com/dishpatch/api/internal/platform/pagination"
	"github.com/dishpatch/api/internal/services"
)

// PublicCatalogHandlers exposes the unauthenticated restaurant and menu
// surface.
type PublicCatalogHandlers struct {
	catalog  services.CatalogService
	currency string
}

func NewPublicCatalogHandlers(catalog services.CatalogService, currency string) *PublicCatalogHandlers {
	return &PublicCatalogHandlers{catalog: catalog, currency: currency}
}

// Routes wires the /public endpoints onto the provided router.
func (h *PublicCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/restaurants", h.listRestaurants)
	r.Get("/restaurants/{restaurantID}", h.getRestaurant)
	r.Get("/restaurants/{restaurantID}/dishes", h.listDishes)
	r.Get("/restaurants/{restaurantID}/categories", h.listCategories)
}

func (h *PublicCatalogHandlers) listRestaurants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.RestaurantListFilter{
		Cuisine:    strings.TrimSpace(r.URL.Query().Get("cuisine")),
		OnlyOpen:   r.URL.Query().Get("open") == "true",
		Pagination: domain.Pagination{Limit: params.PageSize, Token: params.Cursor},
	}
	page, err := h.catalog.ListRestaurants(ctx, filter)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to list restaurants", http.StatusInternalServerError))
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

func (h *PublicCatalogHandlers) getRestaurant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	restaurant, err := h.catalog.GetRestaurant(ctx, chi.URLParam(r, "restaurantID"))
	if err != nil {
		if errors.Is(err, services.ErrRestaurantNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("restaurant_not_found", "Restaurant not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to load restaurant", http.StatusInternalServerError))
		return
	}
	if !restaurant.IsPublished {
		// Unpublished restaurants are invisible on the public surface.
		httpx.WriteError(ctx, w, httpx.NewError("restaurant_not_found", "Restaurant not found", http.StatusNotFound))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"restaurant": buildRestaurantPayload(restaurant, h.currency)})
}

func (h *PublicCatalogHandlers) listDishes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.DishListFilter{
		RestaurantID:  chi.URLParam(r, "restaurantID"),
		CategoryID:    strings.TrimSpace(r.URL.Query().Get("categoryId")),
		OnlyAvailable: r.URL.Query().Get("available") == "true",
		Pagination:    domain.Pagination{Limit: params.PageSize, Token: params.Cursor},
	}
	page, err := h.catalog.ListDishes(ctx, filter)
	if err != nil {
		if errors.Is(err, services.ErrCatalogInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to list dishes", http.StatusInternalServerError))
		return
	}

	items := make([]dishPayload, 0, len(page.Items))
	for _, dish := range page.Items {
		items = append(items, buildDishPayload(dish, h.currency))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"dishes":        items,
		"nextPageToken": nextPageToken(page.NextCursor),
	})
}

func (h *PublicCatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categories, err := h.catalog.ListMenuCategories(ctx, chi.URLParam(r, "restaurantID"))
	if err != nil {
		if errors.Is(err, services.ErrCatalogInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to list categories", http.StatusInternalServerError))
		return
	}

	items := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		items = append(items, buildCategoryPayload(category))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"categories": items})
}
