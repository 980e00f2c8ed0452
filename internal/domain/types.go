package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortOrder enumerates supported orderings for list queries.
type SortOrder string

const (
	// SortAscending sorts results from lowest to highest.
	SortAscending SortOrder = "asc"
	// SortDescending sorts results from highest to lowest.
	SortDescending SortOrder = "desc"
)

// Pagination captures cursor pagination inputs shared by list queries.
type Pagination struct {
	// Limit caps the number of returned documents. Zero applies the
	// repository default.
	Limit int
	// Token resumes iteration from a previously returned cursor.
	Token string
}

// CursorPage wraps a single page of results together with the cursor
// needed to fetch the next one.
type CursorPage[T any] struct {
	Items      []T
	NextCursor string
}

// Restaurant is a storefront that owns a menu of dishes.
type Restaurant struct {
	ID          string
	Name        string
	Description string
	Cuisines    []string
	// IsOpen reflects whether the restaurant currently accepts orders.
	// Pricing still works for a closed restaurant; order placement does not.
	IsOpen bool
	// DeliveryFee is the flat fee charged per order unless a delivery
	// address carries an override.
	DeliveryFee decimal.Decimal
	// MinimumOrder is the smallest pre-discount subtotal the restaurant
	// accepts at order placement. Zero disables the check.
	MinimumOrder decimal.Decimal
	AddressLine  string
	ImageURL     string
	IsPublished  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MenuCategory groups dishes inside a restaurant menu.
type MenuCategory struct {
	ID           string
	RestaurantID string
	Name         string
	SortOrder    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Dish is a single orderable menu item.
type Dish struct {
	ID           string
	RestaurantID string
	CategoryID   string
	Name         string
	Description  string
	Price        decimal.Decimal
	// IsAvailable marks whether the dish can be ordered right now.
	// Unavailable dishes still show up in pricing breakdowns at a zero
	// unit price so clients can surface them.
	IsAvailable bool
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PromoCode is a redeemable discount definition.
type PromoCode struct {
	ID          string
	Code        string
	Description string
	// DiscountPercentage, when positive, discounts the subtotal by this
	// percentage and takes precedence over DiscountAmount.
	DiscountPercentage decimal.Decimal
	// DiscountAmount is a fixed discount applied when no percentage is set.
	DiscountAmount decimal.Decimal
	// FreeDelivery waives the delivery fee when the code applies.
	FreeDelivery bool
	// MinimumOrderAmount is the smallest subtotal eligible for the code.
	MinimumOrderAmount decimal.Decimal
	IsActive           bool
	// ExpiresAt, when set, is the instant after which the code stops
	// being redeemable.
	ExpiresAt *time.Time
	// UsageLimit, when set, caps total redemptions across all users.
	UsageLimit *int
	TimesUsed  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the code is past its expiry at the given instant.
func (p PromoCode) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// Exhausted reports whether the code has hit its usage limit.
func (p PromoCode) Exhausted() bool {
	return p.UsageLimit != nil && p.TimesUsed >= *p.UsageLimit
}

// LineItem is a dish reference plus quantity as submitted by a client.
type LineItem struct {
	DishID   string
	Quantity int
}

// CartLine is a persisted cart entry.
type CartLine struct {
	ID       string
	DishID   string
	Quantity int
	AddedAt  time.Time
}

// CartEstimate is the pricing snapshot stored alongside a cart. It is
// advisory; authoritative numbers are recomputed at read and checkout time.
type CartEstimate struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
	Currency    string
}

// Cart is the single active cart owned by a user. A cart holds dishes from
// at most one restaurant.
type Cart struct {
	UserID            string
	RestaurantID      string
	Items             []CartLine
	PromoCode         string
	DeliveryAddressID string
	Estimate          *CartEstimate
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TotalQuantity sums the quantities across all cart lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, line := range c.Items {
		total += line.Quantity
	}
	return total
}

// OrderStatus tracks an order through its delivery lifecycle.
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// CanTransitionTo reports whether the status may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	allowed, ok := orderTransitions[s]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

// OrderLineItem is an immutable snapshot of a priced dish at order time.
type OrderLineItem struct {
	DishID    string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

// OrderTotals is the monetary summary frozen into an order.
type OrderTotals struct {
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Order is a placed order with its frozen pricing snapshot.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	RestaurantID    string
	Status          OrderStatus
	Currency        string
	Items           []OrderLineItem
	Totals          OrderTotals
	PromoCode       string
	FreeDelivery    bool
	DeliveryAddress *Address
	// Notes carries the customer's delivery instructions captured at
	// checkout.
	Notes           string
	PaymentIntentID string
	CancelReason    string
	PlacedAt        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Address is a saved delivery address belonging to a user.
type Address struct {
	ID         string
	UserID     string
	Label      string
	Recipient  string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
	Phone      string
	// DeliveryFeeOverride, when set, replaces the restaurant delivery fee
	// for orders shipped to this address.
	DeliveryFeeOverride *decimal.Decimal
	IsDefault           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UserProfile mirrors the identity-provider user inside the application
// datastore.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	PhoneNumber string
	Roles       []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasRole reports whether the profile carries the given role.
func (u UserProfile) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// OrderEvent is published to the async job topic when an order changes.
type OrderEvent struct {
	Type         string
	OrderID      string
	OrderNumber  string
	UserID       string
	RestaurantID string
	Status       OrderStatus
	OccurredAt   time.Time
}
