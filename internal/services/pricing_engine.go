package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/dishpatch/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals malformed request data such as a
	// non-positive quantity or a blank dish id.
	ErrPricingInvalidInput = errors.New("pricing engine: invalid input")
)

const (
	msgCartEmpty          = "Cart is empty"
	msgRestaurantNotFound = "Restaurant not found"
	noteRestaurantClosed  = "Restaurant is currently closed"
)

// PricingEngine computes cart price breakdowns. It is stateless and holds no
// locks; invocations only read from the backing stores, so concurrent calls
// need no coordination and repeated calls with unchanged store state return
// identical results.
type PricingEngine struct {
	restaurants RestaurantStore
	dishes      DishStore
	promos      PromoValidator
	// addressFees is optional; a nil resolver means every order uses the
	// restaurant's flat fee.
	addressFees DeliveryFeeResolver
	taxRate     decimal.Decimal
	currency    string
	now         func() time.Time
	logger      func(context.Context, string, map[string]any)
}

type PricingEngineDeps struct {
	Restaurants RestaurantStore
	Dishes      DishStore
	Promos      PromoValidator
	AddressFees DeliveryFeeResolver
	TaxRate     decimal.Decimal
	Currency    string
	Now         func() time.Time
	Logger      func(context.Context, string, map[string]any)
}

func NewPricingEngine(deps PricingEngineDeps) (*PricingEngine, error) {
	if deps.Restaurants == nil {
		return nil, errors.New("pricing engine: restaurant store is required")
	}
	if deps.Dishes == nil {
		return nil, errors.New("pricing engine: dish store is required")
	}
	if deps.Promos == nil {
		return nil, errors.New("pricing engine: promo validator is required")
	}
	if deps.TaxRate.IsNegative() || deps.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("pricing engine: tax rate %s out of range", deps.TaxRate)
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("pricing engine: currency is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{
		restaurants: deps.Restaurants,
		dishes:      deps.Dishes,
		promos:      deps.Promos,
		addressFees: deps.AddressFees,
		taxRate:     deps.TaxRate,
		currency:    currency,
		now:         func() time.Time { return now().UTC() },
		logger:      logger,
	}, nil
}

var _ PricingService = (*PricingEngine)(nil)

// CalculatePricing produces a full breakdown for the requested cart. A
// missing restaurant or an empty cart yields an invalid result with every
// monetary field zeroed; a missing dish or an ineligible promo degrades into
// the result instead of failing it. The operation never writes anywhere, in
// particular it never touches promo usage counters.
func (e *PricingEngine) CalculatePricing(ctx context.Context, req PriceRequest) (PricingResult, error) {
	if len(req.Items) == 0 {
		return e.invalidResult(msgCartEmpty), nil
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.DishID) == "" || item.Quantity <= 0 {
			return PricingResult{}, fmt.Errorf("%w: dish %q quantity %d", ErrPricingInvalidInput, item.DishID, item.Quantity)
		}
	}
	if strings.TrimSpace(req.RestaurantID) == "" {
		return e.invalidResult(msgRestaurantNotFound), nil
	}

	restaurant, err := e.restaurants.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		if errors.Is(err, ErrRestaurantNotFound) {
			return e.invalidResult(msgRestaurantNotFound), nil
		}
		return PricingResult{}, err
	}

	result := PricingResult{
		IsValid:  true,
		Currency: e.currency,
		TaxRate:  e.taxRate,
	}
	if !restaurant.IsOpen {
		result.Notes = append(result.Notes, noteRestaurantClosed)
	}

	dishIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		dishIDs = append(dishIDs, item.DishID)
	}
	dishes, err := e.dishes.DishesByIDs(ctx, dishIDs)
	if err != nil {
		return PricingResult{}, err
	}

	subtotal := decimal.Zero
	items := make([]PricedItem, 0, len(req.Items))
	for _, line := range req.Items {
		priced := PricedItem{
			DishID:    line.DishID,
			Quantity:  line.Quantity,
			UnitPrice: decimal.Zero,
			LineTotal: decimal.Zero,
		}
		dish, found := dishes[line.DishID]
		if found {
			priced.DishName = dish.Name
			if dish.IsAvailable {
				priced.IsAvailable = true
				priced.UnitPrice = dish.Price
				priced.LineTotal = dish.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
				subtotal = subtotal.Add(priced.LineTotal)
			}
		}
		items = append(items, priced)
	}
	result.Items = items
	result.Subtotal = subtotal

	deliveryFee := restaurant.DeliveryFee
	if e.addressFees != nil && req.DeliveryAddressID != "" && req.UserID != "" {
		override, ok, feeErr := e.addressFees.DeliveryFeeForAddress(ctx, req.UserID, req.DeliveryAddressID)
		if feeErr != nil {
			return PricingResult{}, feeErr
		}
		if ok {
			deliveryFee = override
		}
	}

	discount := decimal.Zero
	if code := strings.TrimSpace(req.PromoCode); code != "" {
		validation, promoErr := e.promos.ValidatePromoCode(ctx, code, subtotal)
		if promoErr != nil {
			return PricingResult{}, promoErr
		}
		if validation.Eligible {
			result.PromoCodeApplied = validation.Code
			discount = domain.RoundMoney(validation.Discount, e.currency)
			if validation.FreeDelivery {
				deliveryFee = decimal.Zero
				result.FreeDelivery = true
			}
		} else {
			result.PromoMessage = validation.Message
		}
	}

	tax := domain.RoundMoney(subtotal.Mul(e.taxRate), e.currency)

	result.DeliveryFee = deliveryFee
	result.Discount = discount
	result.Tax = tax
	result.GrandTotal = domain.ClampNonNegative(subtotal.Sub(discount).Add(deliveryFee).Add(tax))

	e.logger(ctx, "pricing.calculated", map[string]any{
		"restaurant_id": req.RestaurantID,
		"items":         len(req.Items),
		"subtotal":      domain.FormatMoney(subtotal, e.currency),
		"grand_total":   domain.FormatMoney(result.GrandTotal, e.currency),
		"promo_applied": result.PromoCodeApplied,
	})
	return result, nil
}

// invalidResult builds the zeroed breakdown used for fatal validation
// failures.
func (e *PricingEngine) invalidResult(message string) PricingResult {
	return PricingResult{
		IsValid:      false,
		ErrorMessage: message,
		Currency:     e.currency,
		Subtotal:     decimal.Zero,
		Tax:          decimal.Zero,
		TaxRate:      decimal.Zero,
		DeliveryFee:  decimal.Zero,
		Discount:     decimal.Zero,
		GrandTotal:   decimal.Zero,
	}
}
