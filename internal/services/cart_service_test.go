package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCartRepository struct {
	carts map[string]Cart
	saves int
}

func (f *fakeCartRepository) Get(ctx context.Context, userID string) (Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return Cart{}, stubRepoError{notFound: true}
	}
	return cart, nil
}

func (f *fakeCartRepository) Save(ctx context.Context, cart Cart) (Cart, error) {
	f.saves++
	f.carts[cart.UserID] = cart
	return cart, nil
}

func (f *fakeCartRepository) Delete(ctx context.Context, userID string) error {
	if _, ok := f.carts[userID]; !ok {
		return stubRepoError{notFound: true}
	}
	delete(f.carts, userID)
	return nil
}

type fakePricingService struct {
	result  PricingResult
	err     error
	calls   int
	lastReq PriceRequest
}

func (f *fakePricingService) CalculatePricing(ctx context.Context, req PriceRequest) (PricingResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return PricingResult{}, f.err
	}
	return f.result, nil
}

func newCartFixture(t *testing.T) (*fakeCartRepository, *fakeDishStore, *fakePricingService, CartService) {
	t.Helper()
	carts := &fakeCartRepository{carts: map[string]Cart{}}
	dishes := &fakeDishStore{dishes: map[string]Dish{
		"dish-1": {ID: "dish-1", RestaurantID: "rest-1", Name: "Margherita", Price: money(t, "5.00"), IsAvailable: true},
		"dish-9": {ID: "dish-9", RestaurantID: "rest-2", Name: "Sushi", Price: money(t, "9.00"), IsAvailable: true},
	}}
	pricing := &fakePricingService{result: PricingResult{
		IsValid:    true,
		Currency:   "USD",
		Subtotal:   money(t, "10.00"),
		Tax:        money(t, "1.00"),
		GrandTotal: money(t, "11.00"),
	}}
	seq := 0
	service, err := NewCartService(CartServiceDeps{
		Carts:       carts,
		Dishes:      dishes,
		Pricing:     pricing,
		Clock:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { seq++; return string(rune('a' + seq - 1)) },
	})
	if err != nil {
		t.Fatalf("NewCartService error: %v", err)
	}
	return carts, dishes, pricing, service
}

func TestCartService_GetCartCreatesEmpty(t *testing.T) {
	carts, _, pricing, service := newCartFixture(t)

	cart, result, err := service.GetCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetCart error: %v", err)
	}
	if cart.UserID != "user-1" || len(cart.Items) != 0 {
		t.Fatalf("unexpected cart: %+v", cart)
	}
	if !result.IsValid && result.ErrorMessage == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if pricing.calls != 1 {
		t.Fatalf("pricing calls = %d, want 1", pricing.calls)
	}
	// An empty cart is not persisted just for being read.
	if carts.saves != 0 {
		t.Fatalf("saves = %d, want 0", carts.saves)
	}
}

func TestCartService_UpsertItemAddsLine(t *testing.T) {
	carts, _, pricing, service := newCartFixture(t)

	cart, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 2})
	if err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}
	if cart.RestaurantID != "rest-1" {
		t.Fatalf("restaurant = %q, want rest-1", cart.RestaurantID)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", cart.Items)
	}
	if cart.Estimate == nil {
		t.Fatal("expected estimate snapshot on save")
	}
	expectMoney(t, "estimate total", cart.Estimate.Total, money(t, "11.00"))
	if pricing.lastReq.RestaurantID != "rest-1" {
		t.Fatalf("pricing request restaurant = %q", pricing.lastReq.RestaurantID)
	}
	if _, ok := carts.carts["user-1"]; !ok {
		t.Fatal("cart not persisted")
	}

	// Same dish again replaces the quantity instead of appending a line.
	cart, _, err = service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 3})
	if err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items after update: %+v", cart.Items)
	}
}

func TestCartService_UpsertItemRejectsSecondRestaurant(t *testing.T) {
	_, _, _, service := newCartFixture(t)

	if _, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 1}); err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}
	_, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-9", Quantity: 1})
	if !errors.Is(err, ErrCartRestaurantMismatch) {
		t.Fatalf("expected ErrCartRestaurantMismatch, got %v", err)
	}
}

func TestCartService_RemoveLastLineResetsCart(t *testing.T) {
	_, _, _, service := newCartFixture(t)

	if _, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 1}); err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}
	if _, _, err := service.ApplyPromoCode(context.Background(), "user-1", "save10"); err != nil {
		t.Fatalf("ApplyPromoCode error: %v", err)
	}
	cart, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 0})
	if err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}
	if cart.RestaurantID != "" || cart.PromoCode != "" || len(cart.Items) != 0 {
		t.Fatalf("cart not reset: %+v", cart)
	}
}

func TestCartService_RemoveUnknownLine(t *testing.T) {
	_, _, _, service := newCartFixture(t)

	_, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 0})
	if !errors.Is(err, ErrCartLineNotFound) {
		t.Fatalf("expected ErrCartLineNotFound, got %v", err)
	}
}

func TestCartService_ApplyPromoCodeStoresHint(t *testing.T) {
	_, _, pricing, service := newCartFixture(t)

	cart, _, err := service.ApplyPromoCode(context.Background(), "user-1", "  save10 ")
	if err != nil {
		t.Fatalf("ApplyPromoCode error: %v", err)
	}
	if cart.PromoCode != "SAVE10" {
		t.Fatalf("promo hint = %q, want SAVE10", cart.PromoCode)
	}
	if pricing.lastReq.PromoCode != "SAVE10" {
		t.Fatalf("pricing request promo = %q", pricing.lastReq.PromoCode)
	}

	cart, _, err = service.ClearPromoCode(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ClearPromoCode error: %v", err)
	}
	if cart.PromoCode != "" {
		t.Fatalf("promo hint not cleared: %q", cart.PromoCode)
	}
}

func TestCartService_QuoteDoesNotPersist(t *testing.T) {
	carts, _, pricing, service := newCartFixture(t)
	carts.carts["user-1"] = Cart{
		UserID:       "user-1",
		RestaurantID: "rest-1",
		Items:        []CartLine{{ID: "a", DishID: "dish-1", Quantity: 2}},
	}

	result, err := service.Quote(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("unexpected result: %+v", result)
	}
	if carts.saves != 0 {
		t.Fatalf("quote persisted the cart (%d saves)", carts.saves)
	}
	if pricing.lastReq.UserID != "user-1" || len(pricing.lastReq.Items) != 1 {
		t.Fatalf("unexpected pricing request: %+v", pricing.lastReq)
	}
}

func TestCartService_InvalidEstimateNotStored(t *testing.T) {
	carts, _, pricing, service := newCartFixture(t)
	pricing.result = PricingResult{IsValid: false, ErrorMessage: "Restaurant not found"}

	cart, _, err := service.UpsertItem(context.Background(), UpsertCartItemCommand{UserID: "user-1", DishID: "dish-1", Quantity: 1})
	if err != nil {
		t.Fatalf("UpsertItem error: %v", err)
	}
	if cart.Estimate != nil {
		t.Fatalf("invalid pricing must not produce an estimate: %+v", cart.Estimate)
	}
	if _, ok := carts.carts["user-1"]; !ok {
		t.Fatal("cart itself should still persist")
	}
}
