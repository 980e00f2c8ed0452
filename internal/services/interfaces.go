package services

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/dishpatch/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	SortOrder       = domain.SortOrder
	Restaurant      = domain.Restaurant
	MenuCategory    = domain.MenuCategory
	Dish            = domain.Dish
	PromoCode       = domain.PromoCode
	PromoValidation = domain.PromoValidation
	LineItem        = domain.LineItem
	Cart            = domain.Cart
	CartLine        = domain.CartLine
	CartEstimate    = domain.CartEstimate
	PricingResult   = domain.PricingResult
	PricedItem      = domain.PricedItem
	Order           = domain.Order
	OrderStatus     = domain.OrderStatus
	OrderLineItem   = domain.OrderLineItem
	OrderTotals     = domain.OrderTotals
	OrderEvent      = domain.OrderEvent
	Address         = domain.Address
	UserProfile     = domain.UserProfile
)

// PriceRequest carries the inputs to a pricing calculation. UserID scopes the
// optional delivery-address lookup; PromoCode is matched case-insensitively.
type PriceRequest struct {
	UserID            string
	RestaurantID      string
	Items             []LineItem
	PromoCode         string
	DeliveryAddressID string
}

// PricingService computes a deterministic price breakdown for a prospective
// order. Implementations never write to any store.
type PricingService interface {
	CalculatePricing(ctx context.Context, req PriceRequest) (PricingResult, error)
}

// RestaurantStore is the restaurant lookup consumed by the pricing engine.
// Implementations return ErrRestaurantNotFound for unknown ids.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, restaurantID string) (Restaurant, error)
}

// DishStore resolves dishes in batch for pricing. Missing ids are simply
// absent from the returned map.
type DishStore interface {
	DishesByIDs(ctx context.Context, dishIDs []string) (map[string]Dish, error)
}

// PromoValidator evaluates promo-code eligibility against a subtotal. An
// ineligible code is reported through the validation result, not an error.
type PromoValidator interface {
	ValidatePromoCode(ctx context.Context, code string, subtotal decimal.Decimal) (PromoValidation, error)
}

// DeliveryFeeResolver is the optional address-tier fee collaborator. The
// boolean reports whether the address carries an override at all.
type DeliveryFeeResolver interface {
	DeliveryFeeForAddress(ctx context.Context, userID, addressID string) (decimal.Decimal, bool, error)
}

// PromotionService manages the promo-code registry and exposes validation to
// the pricing path and atomic consumption to order placement.
type PromotionService interface {
	PromoValidator
	GetPromoCode(ctx context.Context, code string) (PromoCode, error)
	ListPromoCodes(ctx context.Context, filter PromoCodeListFilter) (domain.CursorPage[PromoCode], error)
	UpsertPromoCode(ctx context.Context, cmd UpsertPromoCodeCommand) (PromoCode, error)
	DeletePromoCode(ctx context.Context, code string) error
	ConsumePromoCode(ctx context.Context, code string) error
}

type PromoCodeListFilter struct {
	Pagination Pagination
}

type UpsertPromoCodeCommand struct {
	Promo PromoCode
}

// CatalogService serves the public restaurant/dish catalog and the admin
// management surface. It doubles as the pricing engine's restaurant and dish
// stores.
type CatalogService interface {
	RestaurantStore
	DishStore
	ListRestaurants(ctx context.Context, filter RestaurantListFilter) (domain.CursorPage[Restaurant], error)
	GetDish(ctx context.Context, dishID string) (Dish, error)
	ListDishes(ctx context.Context, filter DishListFilter) (domain.CursorPage[Dish], error)
	ListMenuCategories(ctx context.Context, restaurantID string) ([]MenuCategory, error)
	UpsertRestaurant(ctx context.Context, cmd UpsertRestaurantCommand) (Restaurant, error)
	DeleteRestaurant(ctx context.Context, restaurantID string) error
	UpsertDish(ctx context.Context, cmd UpsertDishCommand) (Dish, error)
	DeleteDish(ctx context.Context, dishID string) error
	UpsertMenuCategory(ctx context.Context, cmd UpsertMenuCategoryCommand) (MenuCategory, error)
	DeleteMenuCategory(ctx context.Context, categoryID string) error
}

type RestaurantListFilter struct {
	Cuisine       string
	OnlyOpen      bool
	IncludeHidden bool
	Pagination    Pagination
}

type DishListFilter struct {
	RestaurantID  string
	CategoryID    string
	OnlyAvailable bool
	Pagination    Pagination
}

type UpsertRestaurantCommand struct {
	Restaurant Restaurant
}

type UpsertDishCommand struct {
	Dish Dish
}

type UpsertMenuCategoryCommand struct {
	Category MenuCategory
}

// CartService maintains per-user carts. Reads re-price through the pricing
// engine so returned estimates reflect the current catalog.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, PricingResult, error)
	UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, PricingResult, error)
	ApplyPromoCode(ctx context.Context, userID, code string) (Cart, PricingResult, error)
	ClearPromoCode(ctx context.Context, userID string) (Cart, PricingResult, error)
	SetDeliveryAddress(ctx context.Context, userID, addressID string) (Cart, PricingResult, error)
	ClearCart(ctx context.Context, userID string) error
	Quote(ctx context.Context, userID string) (PricingResult, error)
}

// UpsertCartItemCommand sets the quantity of a dish in a cart. Quantity zero
// removes the line.
type UpsertCartItemCommand struct {
	UserID   string
	DishID   string
	Quantity int
}

// OrderService owns the order lifecycle from placement through delivery.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) (Order, error)
	IssueTrackToken(ctx context.Context, userID, orderID string) (string, error)
	TrackOrder(ctx context.Context, token string) (OrderTracking, error)
}

type PlaceOrderCommand struct {
	UserID string
	Notes  string
}

type OrderListFilter struct {
	UserID       string
	RestaurantID string
	Status       OrderStatus
	Pagination   Pagination
}

type UpdateOrderStatusCommand struct {
	OrderID   string
	NewStatus OrderStatus
	ActorUID  string
	Reason    string
}

// OrderTracking is the public, unauthenticated projection of an order used by
// the courier tracking page.
type OrderTracking struct {
	OrderNumber  string
	Status       OrderStatus
	RestaurantID string
	PlacedAt     string
	UpdatedAt    string
}

// OrderEventPublisher emits order lifecycle events to interested consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// TrackTokenSource issues and verifies the signed tokens behind public order
// tracking links.
type TrackTokenSource interface {
	Issue(orderID string) (string, error)
	Verify(token string) (string, error)
}

// UserService manages user profiles and delivery addresses. It implements
// DeliveryFeeResolver for the pricing engine's optional fee override.
type UserService interface {
	DeliveryFeeResolver
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	EnsureProfile(ctx context.Context, cmd EnsureProfileCommand) (UserProfile, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	GetAddress(ctx context.Context, userID, addressID string) (Address, error)
	UpsertAddress(ctx context.Context, cmd UpsertAddressCommand) (Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
	SetDefaultAddress(ctx context.Context, userID, addressID string) error
}

type EnsureProfileCommand struct {
	UserID      string
	Email       string
	DisplayName string
	Phone       string
	Roles       []string
}

type UpsertAddressCommand struct {
	UserID  string
	Address Address
}
