package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/repositories"
)

var (
	// ErrRestaurantNotFound indicates no restaurant exists for the id.
	ErrRestaurantNotFound = errors.New("catalog service: restaurant not found")
	// ErrDishNotFound indicates no dish exists for the id.
	ErrDishNotFound = errors.New("catalog service: dish not found")
	// ErrMenuCategoryNotFound indicates no menu category exists for the id.
	ErrMenuCategoryNotFound = errors.New("catalog service: menu category not found")
	// ErrCatalogInvalidInput signals malformed catalog management input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
)

// CatalogServiceDeps bundles dependencies required to construct a CatalogService.
type CatalogServiceDeps struct {
	Restaurants repositories.RestaurantRepository
	Dishes      repositories.DishRepository
	Categories  repositories.MenuCategoryRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type catalogService struct {
	restaurants repositories.RestaurantRepository
	dishes      repositories.DishRepository
	categories  repositories.MenuCategoryRepository
	clock       func() time.Time
	idGen       func() string
	// sanitizer strips all markup from admin-submitted names and
	// descriptions before they reach storage.
	sanitizer *bluemonday.Policy
}

// NewCatalogService wires a CatalogService backed by the catalog repositories.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Restaurants == nil {
		return nil, errors.New("catalog service: restaurant repository is required")
	}
	if deps.Dishes == nil {
		return nil, errors.New("catalog service: dish repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: menu category repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &catalogService{
		restaurants: deps.Restaurants,
		dishes:      deps.Dishes,
		categories:  deps.Categories,
		clock:       func() time.Time { return clock().UTC() },
		idGen:       idGen,
		sanitizer:   bluemonday.StrictPolicy(),
	}, nil
}

// GetRestaurant resolves a restaurant by id. It backs both the public detail
// endpoint and the pricing engine's restaurant lookup.
func (s *catalogService) GetRestaurant(ctx context.Context, restaurantID string) (Restaurant, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return Restaurant{}, ErrRestaurantNotFound
	}
	restaurant, err := s.restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Restaurant{}, ErrRestaurantNotFound
		}
		return Restaurant{}, err
	}
	return restaurant, nil
}

func (s *catalogService) ListRestaurants(ctx context.Context, filter RestaurantListFilter) (domain.CursorPage[Restaurant], error) {
	repoFilter := repositories.RestaurantListFilter{
		Cuisine:       strings.TrimSpace(filter.Cuisine),
		OnlyOpen:      filter.OnlyOpen,
		OnlyPublished: !filter.IncludeHidden,
		Pagination:    filter.Pagination,
	}
	return s.restaurants.List(ctx, repoFilter)
}

// DishesByIDs resolves dishes in batch for the pricing engine. Unknown ids
// are absent from the map; the caller decides how to degrade.
func (s *catalogService) DishesByIDs(ctx context.Context, dishIDs []string) (map[string]Dish, error) {
	if len(dishIDs) == 0 {
		return map[string]Dish{}, nil
	}
	return s.dishes.GetByIDs(ctx, dishIDs)
}

func (s *catalogService) GetDish(ctx context.Context, dishID string) (Dish, error) {
	if strings.TrimSpace(dishID) == "" {
		return Dish{}, ErrDishNotFound
	}
	dish, err := s.dishes.GetByID(ctx, dishID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Dish{}, ErrDishNotFound
		}
		return Dish{}, err
	}
	return dish, nil
}

func (s *catalogService) ListDishes(ctx context.Context, filter DishListFilter) (domain.CursorPage[Dish], error) {
	if strings.TrimSpace(filter.RestaurantID) == "" {
		return domain.CursorPage[Dish]{}, fmt.Errorf("%w: restaurant id is required", ErrCatalogInvalidInput)
	}
	page, err := s.dishes.ListByRestaurant(ctx, filter.RestaurantID, filter.Pagination)
	if err != nil {
		return domain.CursorPage[Dish]{}, err
	}
	// Category and availability are narrowed in memory; menus are small
	// enough that a dedicated index is not worth it.
	filtered := page.Items[:0]
	for _, dish := range page.Items {
		if filter.CategoryID != "" && dish.CategoryID != filter.CategoryID {
			continue
		}
		if filter.OnlyAvailable && !dish.IsAvailable {
			continue
		}
		filtered = append(filtered, dish)
	}
	page.Items = filtered
	return page, nil
}

func (s *catalogService) ListMenuCategories(ctx context.Context, restaurantID string) ([]MenuCategory, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return nil, fmt.Errorf("%w: restaurant id is required", ErrCatalogInvalidInput)
	}
	return s.categories.ListByRestaurant(ctx, restaurantID)
}

func (s *catalogService) UpsertRestaurant(ctx context.Context, cmd UpsertRestaurantCommand) (Restaurant, error) {
	restaurant := cmd.Restaurant
	restaurant.Name = s.sanitize(restaurant.Name)
	restaurant.Description = s.sanitize(restaurant.Description)
	if restaurant.Name == "" {
		return Restaurant{}, fmt.Errorf("%w: restaurant name is required", ErrCatalogInvalidInput)
	}
	if restaurant.DeliveryFee.IsNegative() || restaurant.MinimumOrder.IsNegative() {
		return Restaurant{}, fmt.Errorf("%w: negative amount", ErrCatalogInvalidInput)
	}

	now := s.clock()
	if restaurant.ID == "" {
		restaurant.ID = s.idGen()
		restaurant.CreatedAt = now
	} else if existing, err := s.restaurants.GetByID(ctx, restaurant.ID); err == nil {
		restaurant.CreatedAt = existing.CreatedAt
	} else if !repositories.IsNotFound(err) {
		return Restaurant{}, err
	} else {
		restaurant.CreatedAt = now
	}
	restaurant.UpdatedAt = now

	saved, err := s.restaurants.Upsert(ctx, restaurant)
	if err != nil {
		return Restaurant{}, err
	}
	return saved, nil
}

func (s *catalogService) DeleteRestaurant(ctx context.Context, restaurantID string) error {
	if strings.TrimSpace(restaurantID) == "" {
		return ErrRestaurantNotFound
	}
	if err := s.restaurants.Delete(ctx, restaurantID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrRestaurantNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) UpsertDish(ctx context.Context, cmd UpsertDishCommand) (Dish, error) {
	dish := cmd.Dish
	dish.Name = s.sanitize(dish.Name)
	dish.Description = s.sanitize(dish.Description)
	if dish.Name == "" {
		return Dish{}, fmt.Errorf("%w: dish name is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(dish.RestaurantID) == "" {
		return Dish{}, fmt.Errorf("%w: restaurant id is required", ErrCatalogInvalidInput)
	}
	if dish.Price.IsNegative() {
		return Dish{}, fmt.Errorf("%w: negative price", ErrCatalogInvalidInput)
	}
	if _, err := s.GetRestaurant(ctx, dish.RestaurantID); err != nil {
		return Dish{}, err
	}

	now := s.clock()
	if dish.ID == "" {
		dish.ID = s.idGen()
		dish.CreatedAt = now
	} else if existing, err := s.dishes.GetByID(ctx, dish.ID); err == nil {
		dish.CreatedAt = existing.CreatedAt
	} else if !repositories.IsNotFound(err) {
		return Dish{}, err
	} else {
		dish.CreatedAt = now
	}
	dish.UpdatedAt = now

	saved, err := s.dishes.Upsert(ctx, dish)
	if err != nil {
		return Dish{}, err
	}
	return saved, nil
}

func (s *catalogService) DeleteDish(ctx context.Context, dishID string) error {
	if strings.TrimSpace(dishID) == "" {
		return ErrDishNotFound
	}
	if err := s.dishes.Delete(ctx, dishID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrDishNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) UpsertMenuCategory(ctx context.Context, cmd UpsertMenuCategoryCommand) (MenuCategory, error) {
	category := cmd.Category
	category.Name = s.sanitize(category.Name)
	if category.Name == "" {
		return MenuCategory{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(category.RestaurantID) == "" {
		return MenuCategory{}, fmt.Errorf("%w: restaurant id is required", ErrCatalogInvalidInput)
	}
	if _, err := s.GetRestaurant(ctx, category.RestaurantID); err != nil {
		return MenuCategory{}, err
	}

	now := s.clock()
	if category.ID == "" {
		category.ID = s.idGen()
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	saved, err := s.categories.Upsert(ctx, category)
	if err != nil {
		return MenuCategory{}, err
	}
	return saved, nil
}

func (s *catalogService) DeleteMenuCategory(ctx context.Context, categoryID string) error {
	if strings.TrimSpace(categoryID) == "" {
		return ErrMenuCategoryNotFound
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrMenuCategoryNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) sanitize(input string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(input))
}
