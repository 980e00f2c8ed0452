package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/repositories"
)

var (
	// ErrCartInvalidInput signals malformed cart mutation input.
	ErrCartInvalidInput = errors.New("cart service: invalid input")
	// ErrCartRestaurantMismatch is returned when an item from a different
	// restaurant is added to a non-empty cart.
	ErrCartRestaurantMismatch = errors.New("cart service: cart holds items from another restaurant")
	// ErrCartLineNotFound is returned when removing a dish that is not in
	// the cart.
	ErrCartLineNotFound = errors.New("cart service: dish is not in the cart")
)

const maxCartLineQuantity = 50

// CartServiceDeps bundles dependencies required to construct a CartService.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Dishes      DishStore
	Pricing     PricingService
	Clock       func() time.Time
	IDGenerator func() string
}

type cartService struct {
	carts   repositories.CartRepository
	dishes  DishStore
	pricing PricingService
	clock   func() time.Time
	idGen   func() string
}

// NewCartService wires a CartService. Reads re-price the cart so estimates
// always reflect the current catalog.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Dishes == nil {
		return nil, errors.New("cart service: dish store is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("cart service: pricing service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &cartService{
		carts:   deps.Carts,
		dishes:  deps.Dishes,
		pricing: deps.Pricing,
		clock:   func() time.Time { return clock().UTC() },
		idGen:   idGen,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, PricingResult, error) {
	cart, err := s.loadOrEmpty(ctx, userID)
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	return s.priceAndSnapshot(ctx, cart)
}

func (s *cartService) UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (Cart, PricingResult, error) {
	if strings.TrimSpace(cmd.UserID) == "" || strings.TrimSpace(cmd.DishID) == "" {
		return Cart{}, PricingResult{}, fmt.Errorf("%w: user and dish ids are required", ErrCartInvalidInput)
	}
	if cmd.Quantity < 0 || cmd.Quantity > maxCartLineQuantity {
		return Cart{}, PricingResult{}, fmt.Errorf("%w: quantity %d out of range", ErrCartInvalidInput, cmd.Quantity)
	}

	cart, err := s.loadOrEmpty(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, PricingResult{}, err
	}

	if cmd.Quantity == 0 {
		if !removeLine(&cart, cmd.DishID) {
			return Cart{}, PricingResult{}, ErrCartLineNotFound
		}
	} else {
		dishes, dishErr := s.dishes.DishesByIDs(ctx, []string{cmd.DishID})
		if dishErr != nil {
			return Cart{}, PricingResult{}, dishErr
		}
		dish, found := dishes[cmd.DishID]
		if !found {
			return Cart{}, PricingResult{}, ErrDishNotFound
		}
		if len(cart.Items) > 0 && cart.RestaurantID != dish.RestaurantID {
			return Cart{}, PricingResult{}, ErrCartRestaurantMismatch
		}
		cart.RestaurantID = dish.RestaurantID
		setLine(&cart, cmd.DishID, cmd.Quantity, s.idGen, s.clock())
	}

	if len(cart.Items) == 0 {
		cart.RestaurantID = ""
		cart.PromoCode = ""
	}
	return s.saveAndPrice(ctx, cart)
}

func (s *cartService) ApplyPromoCode(ctx context.Context, userID, code string) (Cart, PricingResult, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return Cart{}, PricingResult{}, fmt.Errorf("%w: promo code is required", ErrCartInvalidInput)
	}
	cart, err := s.loadOrEmpty(ctx, userID)
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	// The code is stored as a hint even when currently ineligible; the
	// pricing result carries the rejection message for the client.
	cart.PromoCode = normalized
	return s.saveAndPrice(ctx, cart)
}

func (s *cartService) ClearPromoCode(ctx context.Context, userID string) (Cart, PricingResult, error) {
	cart, err := s.loadOrEmpty(ctx, userID)
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	cart.PromoCode = ""
	return s.saveAndPrice(ctx, cart)
}

func (s *cartService) SetDeliveryAddress(ctx context.Context, userID, addressID string) (Cart, PricingResult, error) {
	cart, err := s.loadOrEmpty(ctx, userID)
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	cart.DeliveryAddressID = strings.TrimSpace(addressID)
	return s.saveAndPrice(ctx, cart)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, userID); err != nil && !repositories.IsNotFound(err) {
		return err
	}
	return nil
}

// Quote prices the current cart without persisting anything. It is the
// cart-preview endpoint's backend and is safe to call repeatedly.
func (s *cartService) Quote(ctx context.Context, userID string) (PricingResult, error) {
	cart, err := s.loadOrEmpty(ctx, userID)
	if err != nil {
		return PricingResult{}, err
	}
	return s.pricing.CalculatePricing(ctx, priceRequestFor(cart))
}

func (s *cartService) loadOrEmpty(ctx context.Context, userID string) (Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			now := s.clock()
			return Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		return Cart{}, err
	}
	return cart, nil
}

func (s *cartService) saveAndPrice(ctx context.Context, cart Cart) (Cart, PricingResult, error) {
	cart.UpdatedAt = s.clock()
	result, err := s.pricing.CalculatePricing(ctx, priceRequestFor(cart))
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	cart.Estimate = estimateFrom(result)
	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	return saved, result, nil
}

// priceAndSnapshot prices a cart on read and refreshes the stored estimate
// when it drifted from the last snapshot.
func (s *cartService) priceAndSnapshot(ctx context.Context, cart Cart) (Cart, PricingResult, error) {
	result, err := s.pricing.CalculatePricing(ctx, priceRequestFor(cart))
	if err != nil {
		return Cart{}, PricingResult{}, err
	}
	fresh := estimateFrom(result)
	if len(cart.Items) > 0 && !estimatesEqual(cart.Estimate, fresh) {
		cart.Estimate = fresh
		cart.UpdatedAt = s.clock()
		if cart, err = s.carts.Save(ctx, cart); err != nil {
			return Cart{}, PricingResult{}, err
		}
	}
	return cart, result, nil
}

func priceRequestFor(cart Cart) PriceRequest {
	items := make([]LineItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, LineItem{DishID: line.DishID, Quantity: line.Quantity})
	}
	return PriceRequest{
		UserID:            cart.UserID,
		RestaurantID:      cart.RestaurantID,
		Items:             items,
		PromoCode:         cart.PromoCode,
		DeliveryAddressID: cart.DeliveryAddressID,
	}
}

func estimateFrom(result PricingResult) *domain.CartEstimate {
	if !result.IsValid {
		return nil
	}
	return &domain.CartEstimate{
		Subtotal:    result.Subtotal,
		Discount:    result.Discount,
		Tax:         result.Tax,
		DeliveryFee: result.DeliveryFee,
		Total:       result.GrandTotal,
		Currency:    result.Currency,
	}
}

func estimatesEqual(a, b *domain.CartEstimate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Currency == b.Currency &&
		a.Subtotal.Equal(b.Subtotal) &&
		a.Discount.Equal(b.Discount) &&
		a.Tax.Equal(b.Tax) &&
		a.DeliveryFee.Equal(b.DeliveryFee) &&
		a.Total.Equal(b.Total)
}

func removeLine(cart *Cart, dishID string) bool {
	for i, line := range cart.Items {
		if line.DishID == dishID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return true
		}
	}
	return false
}

func setLine(cart *Cart, dishID string, quantity int, idGen func() string, now time.Time) {
	for i, line := range cart.Items {
		if line.DishID == dishID {
			cart.Items[i].Quantity = quantity
			return
		}
	}
	cart.Items = append(cart.Items, domain.CartLine{
		ID:       idGen(),
		DishID:   dishID,
		Quantity: quantity,
		AddedAt:  now,
	})
}
