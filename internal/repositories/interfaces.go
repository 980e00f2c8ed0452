// Package repositories declares the persistence interfaces consumed by
// the service layer.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/dishpatch/api/internal/domain"
)

// RepositoryError lets callers branch on persistence failure semantics
// without depending on the backing store.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err represents a missing document.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err represents a conflicting update.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// RestaurantListFilter narrows restaurant listings.
type RestaurantListFilter struct {
	Cuisine       string
	OnlyOpen      bool
	OnlyPublished bool
	Pagination    domain.Pagination
}

// RestaurantRepository persists restaurants.
type RestaurantRepository interface {
	GetByID(ctx context.Context, id string) (domain.Restaurant, error)
	List(ctx context.Context, filter RestaurantListFilter) (domain.CursorPage[domain.Restaurant], error)
	Upsert(ctx context.Context, restaurant domain.Restaurant) (domain.Restaurant, error)
	Delete(ctx context.Context, id string) error
}

// DishRepository persists dishes.
type DishRepository interface {
	GetByID(ctx context.Context, id string) (domain.Dish, error)
	// GetByIDs returns the dishes found for the given IDs keyed by dish ID.
	// Missing IDs are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Dish, error)
	ListByRestaurant(ctx context.Context, restaurantID string, pagination domain.Pagination) (domain.CursorPage[domain.Dish], error)
	Upsert(ctx context.Context, dish domain.Dish) (domain.Dish, error)
	Delete(ctx context.Context, id string) error
}

// MenuCategoryRepository persists menu categories.
type MenuCategoryRepository interface {
	ListByRestaurant(ctx context.Context, restaurantID string) ([]domain.MenuCategory, error)
	Upsert(ctx context.Context, category domain.MenuCategory) (domain.MenuCategory, error)
	Delete(ctx context.Context, id string) error
}

// PromoCodeRepository persists promo codes. Codes are stored uppercase;
// lookups are case-insensitive by normalising before querying.
type PromoCodeRepository interface {
	GetByCode(ctx context.Context, code string) (domain.PromoCode, error)
	List(ctx context.Context, pagination domain.Pagination) (domain.CursorPage[domain.PromoCode], error)
	Upsert(ctx context.Context, promo domain.PromoCode) (domain.PromoCode, error)
	Delete(ctx context.Context, id string) error
	// Consume atomically increments the usage counter, re-checking
	// eligibility inside the transaction. It fails with a conflict error
	// when the limit is already reached.
	Consume(ctx context.Context, code string, now time.Time) (domain.PromoCode, error)
}

// CartRepository persists the single active cart per user.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID       string
	RestaurantID string
	Status       domain.OrderStatus
	Pagination   domain.Pagination
}

// OrderRepository persists orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
}

// UserRepository persists user profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}

// AddressRepository persists the delivery addresses owned by a user.
type AddressRepository interface {
	Get(ctx context.Context, userID, addressID string) (domain.Address, error)
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Upsert(ctx context.Context, address domain.Address) (domain.Address, error)
	Delete(ctx context.Context, userID, addressID string) error
	SetDefault(ctx context.Context, userID, addressID string) error
}

// CounterRepository hands out monotonically increasing sequence numbers,
// used for human-readable order numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Registry aggregates every repository the service layer depends on.
type Registry struct {
	Restaurants RestaurantRepository
	Dishes      DishRepository
	Categories  MenuCategoryRepository
	PromoCodes  PromoCodeRepository
	Carts       CartRepository
	Orders      OrderRepository
	Users       UserRepository
	Addresses   AddressRepository
	Counters    CounterRepository
}
