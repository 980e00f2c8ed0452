package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

const menuCategoryCollection = "menu_categories"

type menuCategoryDocument struct {
	RestaurantID string    `firestore:"restaurantId"`
	Name         string    `firestore:"name"`
	SortOrder    int       `firestore:"sortOrder"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func (d menuCategoryDocument) toDomain(id string) domain.MenuCategory {
	return domain.MenuCategory{
		ID:           id,
		RestaurantID: d.RestaurantID,
		Name:         d.Name,
		SortOrder:    d.SortOrder,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MenuCategoryRepository persists menu categories in Firestore.
type MenuCategoryRepository struct {
	base *pfirestore.BaseRepository[menuCategoryDocument]
}

// NewMenuCategoryRepository constructs a Firestore-backed category
// repository.
func NewMenuCategoryRepository(provider *pfirestore.Provider) (*MenuCategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("menu category repository requires firestore provider")
	}
	return &MenuCategoryRepository{
		base: pfirestore.NewBaseRepository[menuCategoryDocument](provider, menuCategoryCollection, nil),
	}, nil
}

// ListByRestaurant returns the categories of a restaurant in menu order.
func (r *MenuCategoryRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.MenuCategory, error) {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return nil, errors.New("menu category repository: restaurant id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("restaurantId", "==", restaurantID).OrderBy("sortOrder", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.MenuCategory, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, doc.Data.toDomain(doc.ID))
	}
	return categories, nil
}

// Upsert creates or replaces the category document.
func (r *MenuCategoryRepository) Upsert(ctx context.Context, category domain.MenuCategory) (domain.MenuCategory, error) {
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return domain.MenuCategory{}, errors.New("menu category repository: id is required")
	}
	doc := menuCategoryDocument{
		RestaurantID: strings.TrimSpace(category.RestaurantID),
		Name:         strings.TrimSpace(category.Name),
		SortOrder:    category.SortOrder,
		CreatedAt:    category.CreatedAt,
		UpdatedAt:    category.UpdatedAt,
	}
	if _, err := r.base.Set(ctx, id, doc); err != nil {
		return domain.MenuCategory{}, err
	}
	category.ID = id
	return category, nil
}

// Delete removes the category document.
func (r *MenuCategoryRepository) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, id)
}

var _ repositories.MenuCategoryRepository = (*MenuCategoryRepository)(nil)
