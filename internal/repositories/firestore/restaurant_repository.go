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

const restaurantCollection = "restaurants"

type restaurantDocument struct {
	Name         string    `firestore:"name"`
	Description  string    `firestore:"description,omitempty"`
	Cuisines     []string  `firestore:"cuisines,omitempty"`
	IsOpen       bool      `firestore:"isOpen"`
	DeliveryFee  string    `firestore:"deliveryFee"`
	MinimumOrder string    `firestore:"minimumOrder,omitempty"`
	AddressLine  string    `firestore:"addressLine,omitempty"`
	ImageURL     string    `firestore:"imageUrl,omitempty"`
	IsPublished  bool      `firestore:"isPublished"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func (d restaurantDocument) toDomain(id string) (domain.Restaurant, error) {
	deliveryFee, err := decodeDecimal(d.DeliveryFee)
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("restaurant %s: %w", id, err)
	}
	minimumOrder, err := decodeDecimal(d.MinimumOrder)
	if err != nil {
		return domain.Restaurant{}, fmt.Errorf("restaurant %s: %w", id, err)
	}
	return domain.Restaurant{
		ID:           id,
		Name:         d.Name,
		Description:  d.Description,
		Cuisines:     append([]string(nil), d.Cuisines...),
		IsOpen:       d.IsOpen,
		DeliveryFee:  deliveryFee,
		MinimumOrder: minimumOrder,
		AddressLine:  d.AddressLine,
		ImageURL:     d.ImageURL,
		IsPublished:  d.IsPublished,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func restaurantToDocument(restaurant domain.Restaurant) restaurantDocument {
	return restaurantDocument{
		Name:         strings.TrimSpace(restaurant.Name),
		Description:  strings.TrimSpace(restaurant.Description),
		Cuisines:     append([]string(nil), restaurant.Cuisines...),
		IsOpen:       restaurant.IsOpen,
		DeliveryFee:  encodeDecimal(restaurant.DeliveryFee),
		MinimumOrder: encodeDecimal(restaurant.MinimumOrder),
		AddressLine:  strings.TrimSpace(restaurant.AddressLine),
		ImageURL:     strings.TrimSpace(restaurant.ImageURL),
		IsPublished:  restaurant.IsPublished,
		CreatedAt:    restaurant.CreatedAt,
		UpdatedAt:    restaurant.UpdatedAt,
	}
}

// RestaurantRepository persists restaurants in Firestore.
type RestaurantRepository struct {
	base *pfirestore.BaseRepository[restaurantDocument]
}

// NewRestaurantRepository constructs a Firestore-backed restaurant
// repository.
func NewRestaurantRepository(provider *pfirestore.Provider) (*RestaurantRepository, error) {
	if provider == nil {
		return nil, errors.New("restaurant repository requires firestore provider")
	}
	return &RestaurantRepository{
		base: pfirestore.NewBaseRepository[restaurantDocument](provider, restaurantCollection, nil),
	}, nil
}

// GetByID fetches a restaurant by its document ID.
func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (domain.Restaurant, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Restaurant{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// List returns a page of restaurants matching the filter ordered by name.
func (r *RestaurantRepository) List(ctx context.Context, filter repositories.RestaurantListFilter) (domain.CursorPage[domain.Restaurant], error) {
	limit := filter.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.OnlyPublished {
			query = query.Where("isPublished", "==", true)
		}
		if filter.OnlyOpen {
			query = query.Where("isOpen", "==", true)
		}
		if cuisine := strings.TrimSpace(filter.Cuisine); cuisine != "" {
			query = query.Where("cuisines", "array-contains", strings.ToLower(cuisine))
		}
		query = query.OrderBy("name", firestore.Asc)
		if token := strings.TrimSpace(filter.Pagination.Token); token != "" {
			query = query.StartAfter(token)
		}
		// Fetch one extra document to detect whether another page exists.
		return query.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Restaurant]{}, err
	}

	page := domain.CursorPage[domain.Restaurant]{}
	for i, doc := range docs {
		if i == limit {
			page.NextCursor = docs[limit-1].Data.Name
			break
		}
		restaurant, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return domain.CursorPage[domain.Restaurant]{}, err
		}
		page.Items = append(page.Items, restaurant)
	}
	return page, nil
}

// Upsert creates or replaces the restaurant document.
func (r *RestaurantRepository) Upsert(ctx context.Context, restaurant domain.Restaurant) (domain.Restaurant, error) {
	id := strings.TrimSpace(restaurant.ID)
	if id == "" {
		return domain.Restaurant{}, errors.New("restaurant repository: id is required")
	}
	if _, err := r.base.Set(ctx, id, restaurantToDocument(restaurant)); err != nil {
		return domain.Restaurant{}, err
	}
	restaurant.ID = id
	return restaurant, nil
}

// Delete removes the restaurant document.
func (r *RestaurantRepository) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, id)
}

var _ repositories.RestaurantRepository = (*RestaurantRepository)(nil)
