package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

const dishCollection = "dishes"

// Firestore caps "in" queries at 30 values per clause.
const dishBatchSize = 30

type dishDocument struct {
	RestaurantID string    `firestore:"restaurantId"`
	CategoryID   string    `firestore:"categoryId,omitempty"`
	Name         string    `firestore:"name"`
	Description  string    `firestore:"description,omitempty"`
	Price        string    `firestore:"price"`
	IsAvailable  bool      `firestore:"isAvailable"`
	ImageURL     string    `firestore:"imageUrl,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func (d dishDocument) toDomain(id string) (domain.Dish, error) {
	price, err := decodeDecimal(d.Price)
	if err != nil {
		return domain.Dish{}, fmt.Errorf("dish %s: %w", id, err)
	}
	return domain.Dish{
		ID:           id,
		RestaurantID: d.RestaurantID,
		CategoryID:   d.CategoryID,
		Name:         d.Name,
		Description:  d.Description,
		Price:        price,
		IsAvailable:  d.IsAvailable,
		ImageURL:     d.ImageURL,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func dishToDocument(dish domain.Dish) dishDocument {
	return dishDocument{
		RestaurantID: strings.TrimSpace(dish.RestaurantID),
		CategoryID:   strings.TrimSpace(dish.CategoryID),
		Name:         strings.TrimSpace(dish.Name),
		Description:  strings.TrimSpace(dish.Description),
		Price:        encodeDecimal(dish.Price),
		IsAvailable:  dish.IsAvailable,
		ImageURL:     strings.TrimSpace(dish.ImageURL),
		CreatedAt:    dish.CreatedAt,
		UpdatedAt:    dish.UpdatedAt,
	}
}

// DishRepository persists dishes in Firestore.
type DishRepository struct {
	base *pfirestore.BaseRepository[dishDocument]
}

// NewDishRepository constructs a Firestore-backed dish repository.
func NewDishRepository(provider *pfirestore.Provider) (*DishRepository, error) {
	if provider == nil {
		return nil, errors.New("dish repository requires firestore provider")
	}
	return &DishRepository{
		base: pfirestore.NewBaseRepository[dishDocument](provider, dishCollection, nil),
	}, nil
}

// GetByID fetches a single dish.
func (r *DishRepository) GetByID(ctx context.Context, id string) (domain.Dish, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Dish{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// GetByIDs fetches dishes in batches keyed by dish ID. IDs with no
// matching document are absent from the result rather than an error.
func (r *DishRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Dish, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	result := make(map[string]domain.Dish, len(unique))
	for start := 0; start < len(unique); start += dishBatchSize {
		end := start + dishBatchSize
		if end > len(unique) {
			end = len(unique)
		}
		batch := unique[start:end]

		docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
			return query.Where(firestore.DocumentID, "in", batch)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			dish, err := doc.Data.toDomain(doc.ID)
			if err != nil {
				return nil, err
			}
			result[doc.ID] = dish
		}
	}
	return result, nil
}

// ListByRestaurant returns a page of dishes for a restaurant ordered by name.
func (r *DishRepository) ListByRestaurant(ctx context.Context, restaurantID string, pagination domain.Pagination) (domain.CursorPage[domain.Dish], error) {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return domain.CursorPage[domain.Dish]{}, errors.New("dish repository: restaurant id is required")
	}

	limit := pagination.Limit
	if limit <= 0 {
		limit = 100
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("restaurantId", "==", restaurantID).OrderBy("name", firestore.Asc)
		if token := strings.TrimSpace(pagination.Token); token != "" {
			query = query.StartAfter(token)
		}
		return query.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Dish]{}, err
	}

	page := domain.CursorPage[domain.Dish]{}
	for i, doc := range docs {
		if i == limit {
			page.NextCursor = docs[limit-1].Data.Name
			break
		}
		dish, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return domain.CursorPage[domain.Dish]{}, err
		}
		page.Items = append(page.Items, dish)
	}
	return page, nil
}

// Upsert creates or replaces the dish document.
func (r *DishRepository) Upsert(ctx context.Context, dish domain.Dish) (domain.Dish, error) {
	id := strings.TrimSpace(dish.ID)
	if id == "" {
		return domain.Dish{}, errors.New("dish repository: id is required")
	}
	if _, err := r.base.Set(ctx, id, dishToDocument(dish)); err != nil {
		return domain.Dish{}, err
	}
	dish.ID = id
	return dish, nil
}

// Delete removes the dish document.
func (r *DishRepository) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, id)
}

var _ repositories.DishRepository = (*DishRepository)(nil)
