package domain

import "github.com/shopspring/decimal"

// PricedItem is the per-line detail inside a pricing breakdown.
type PricedItem struct {
	DishID   string
	DishName string
	// UnitPrice is zero when the dish is missing or unavailable.
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
	IsAvailable bool
}

// PricingResult is the full cost breakdown for a cart. When IsValid is
// false the breakdown could not be computed and every monetary field is
// zero; ErrorMessage explains why.
type PricingResult struct {
	IsValid      bool
	ErrorMessage string

	Currency string
	Items    []PricedItem

	// Subtotal is the sum of available line totals before any discount.
	Subtotal decimal.Decimal
	// Tax is computed on the pre-discount subtotal.
	Tax     decimal.Decimal
	TaxRate decimal.Decimal
	// DeliveryFee is the effective fee after overrides and free-delivery
	// promos.
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	// GrandTotal is subtotal + tax + delivery fee - discount, clamped at
	// zero.
	GrandTotal decimal.Decimal

	// PromoCodeApplied names the promo that contributed to the breakdown.
	// Empty when no promo applied.
	PromoCodeApplied string
	// PromoMessage carries the rejection reason when a submitted promo did
	// not apply. The breakdown itself is still valid in that case.
	PromoMessage string
	FreeDelivery bool

	// Notes carries non-fatal advisories, such as the restaurant being
	// closed at quote time.
	Notes []string
}

// PromoValidation is the outcome of checking a promo code against a
// subtotal without redeeming it.
type PromoValidation struct {
	Code     string
	Eligible bool
	// Message holds the rejection reason when Eligible is false.
	Message string
	// Discount is the amount the code would take off the given subtotal.
	Discount     decimal.Decimal
	FreeDelivery bool
}
