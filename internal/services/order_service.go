package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/payments"
	"github.com/dishpatch/api/internal/repositories"
)

var (
	// ErrOrderNotFound indicates no order exists for the id, or the caller
	// does not own it.
	ErrOrderNotFound = errors.New("order service: order not found")
	// ErrOrderCartEmpty is returned when placement is attempted with no
	// cart lines.
	ErrOrderCartEmpty = errors.New("order service: cart is empty")
	// ErrOrderPricingInvalid wraps a fatal pricing failure at placement.
	ErrOrderPricingInvalid = errors.New("order service: cart could not be priced")
	// ErrOrderItemsUnavailable is returned when any cart line references a
	// missing or unavailable dish.
	ErrOrderItemsUnavailable = errors.New("order service: cart contains unavailable items")
	// ErrOrderRestaurantClosed gates placement for closed restaurants.
	// Pricing previews stay available while a restaurant is closed.
	ErrOrderRestaurantClosed = errors.New("order service: restaurant is closed")
	// ErrOrderMinimumNotMet is returned when the subtotal is below the
	// restaurant's minimum order amount.
	ErrOrderMinimumNotMet = errors.New("order service: minimum order amount not met")
	// ErrOrderPromoIneligible is returned when the promo attached to the
	// cart cannot be redeemed at placement time.
	ErrOrderPromoIneligible = errors.New("order service: promo code can no longer be redeemed")
	// ErrOrderAddressNotFound indicates the cart's delivery address no
	// longer exists.
	ErrOrderAddressNotFound = errors.New("order service: delivery address not found")
	// ErrOrderInvalidTransition rejects a disallowed status change.
	ErrOrderInvalidTransition = errors.New("order service: invalid status transition")
	// ErrOrderTrackTokenInvalid rejects a bad or expired tracking token.
	ErrOrderTrackTokenInvalid = errors.New("order service: invalid tracking token")
)

const orderCounterName = "orders"

// OrderServiceDeps bundles dependencies required to construct an OrderService.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Addresses   repositories.AddressRepository
	Counters    repositories.CounterRepository
	Pricing     PricingService
	Restaurants RestaurantStore
	Promotions  PromotionService
	Payments    payments.Provider
	Publisher   OrderEventPublisher
	TrackTokens TrackTokenSource
	Currency    string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	carts       repositories.CartRepository
	addresses   repositories.AddressRepository
	counters    repositories.CounterRepository
	pricing     PricingService
	restaurants RestaurantStore
	promotions  PromotionService
	payments    payments.Provider
	publisher   OrderEventPublisher
	trackTokens TrackTokenSource
	currency    string
	clock       func() time.Time
	idGen       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires an OrderService. Payments, Publisher, and
// TrackTokens are required; orders are not placeable without them.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("order service: address repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("order service: pricing service is required")
	}
	if deps.Restaurants == nil {
		return nil, errors.New("order service: restaurant store is required")
	}
	if deps.Promotions == nil {
		return nil, errors.New("order service: promotion service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment provider is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("order service: event publisher is required")
	}
	if deps.TrackTokens == nil {
		return nil, errors.New("order service: track token source is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		return nil, errors.New("order service: currency is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:      deps.Orders,
		carts:       deps.Carts,
		addresses:   deps.Addresses,
		counters:    deps.Counters,
		pricing:     deps.Pricing,
		restaurants: deps.Restaurants,
		promotions:  deps.Promotions,
		payments:    deps.Payments,
		publisher:   deps.Publisher,
		trackTokens: deps.TrackTokens,
		currency:    currency,
		clock:       func() time.Time { return clock().UTC() },
		idGen:       idGen,
		logger:      logger,
	}, nil
}

// PlaceOrder turns the user's cart into an immutable order: it re-prices the
// cart, applies the availability and minimum-order gates that pricing
// deliberately leaves open, consumes the promo code exactly once, freezes the
// priced lines and totals, and authorises payment.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return Order{}, ErrOrderNotFound
	}

	cart, err := s.carts.Get(ctx, cmd.UserID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, ErrOrderCartEmpty
		}
		return Order{}, err
	}
	if len(cart.Items) == 0 {
		return Order{}, ErrOrderCartEmpty
	}

	result, err := s.pricing.CalculatePricing(ctx, priceRequestFor(cart))
	if err != nil {
		return Order{}, err
	}
	if !result.IsValid {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderPricingInvalid, result.ErrorMessage)
	}
	for _, item := range result.Items {
		if !item.IsAvailable {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderItemsUnavailable, item.DishID)
		}
	}

	restaurant, err := s.restaurants.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil {
		if errors.Is(err, ErrRestaurantNotFound) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderPricingInvalid, "Restaurant not found")
		}
		return Order{}, err
	}
	if !restaurant.IsOpen {
		return Order{}, ErrOrderRestaurantClosed
	}
	if restaurant.MinimumOrder.IsPositive() && result.Subtotal.LessThan(restaurant.MinimumOrder) {
		return Order{}, fmt.Errorf("%w: minimum is %s", ErrOrderMinimumNotMet, domain.FormatMoney(restaurant.MinimumOrder, s.currency))
	}

	var deliveryAddress *domain.Address
	if cart.DeliveryAddressID != "" {
		address, addrErr := s.addresses.Get(ctx, cmd.UserID, cart.DeliveryAddressID)
		if addrErr != nil {
			if repositories.IsNotFound(addrErr) {
				return Order{}, ErrOrderAddressNotFound
			}
			return Order{}, addrErr
		}
		deliveryAddress = &address
	}

	// Consuming the promo is the one write the pricing path never makes.
	if result.PromoCodeApplied != "" {
		if consumeErr := s.promotions.ConsumePromoCode(ctx, result.PromoCodeApplied); consumeErr != nil {
			if errors.Is(consumeErr, ErrPromoNotFound) || errors.Is(consumeErr, ErrPromoUnavailable) {
				return Order{}, fmt.Errorf("%w: %s", ErrOrderPromoIneligible, result.PromoCodeApplied)
			}
			return Order{}, consumeErr
		}
	}

	sequence, err := s.counters.Next(ctx, orderCounterName)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order := Order{
		ID:           s.idGen(),
		OrderNumber:  fmt.Sprintf("DP-%06d", sequence),
		UserID:       cmd.UserID,
		RestaurantID: cart.RestaurantID,
		Status:       domain.OrderStatusPlaced,
		Currency:     s.currency,
		Items:        orderLinesFrom(result.Items),
		Totals: OrderTotals{
			Subtotal:    result.Subtotal,
			Discount:    result.Discount,
			Tax:         result.Tax,
			DeliveryFee: result.DeliveryFee,
			Total:       result.GrandTotal,
		},
		PromoCode:       result.PromoCodeApplied,
		FreeDelivery:    result.FreeDelivery,
		DeliveryAddress: deliveryAddress,
		Notes:           strings.TrimSpace(cmd.Notes),
		PlacedAt:        now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if amount := domain.MinorUnits(result.GrandTotal, s.currency); amount > 0 {
		intent, payErr := s.payments.CreatePaymentIntent(ctx, payments.PaymentIntentRequest{
			Amount:         amount,
			Currency:       s.currency,
			OrderID:        order.ID,
			UserID:         cmd.UserID,
			IdempotencyKey: order.ID,
			Description:    fmt.Sprintf("Order %s", order.OrderNumber),
		})
		if payErr != nil {
			return Order{}, payErr
		}
		order.PaymentIntentID = intent.ID
	}

	saved, err := s.orders.Insert(ctx, order)
	if err != nil {
		return Order{}, err
	}

	if clearErr := s.carts.Delete(ctx, cmd.UserID); clearErr != nil && !repositories.IsNotFound(clearErr) {
		s.logger(ctx, "order.cart_clear_failed", map[string]any{"order_id": saved.ID, "error": clearErr.Error()})
	}
	s.publish(ctx, "order.placed", saved)
	return saved, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID string) (Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if userID != "" && order.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	return s.orders.List(ctx, repositories.OrderListFilter{
		UserID:       filter.UserID,
		RestaurantID: filter.RestaurantID,
		Status:       filter.Status,
		Pagination:   filter.Pagination,
	})
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	order, err := s.load(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !order.Status.CanTransitionTo(cmd.NewStatus) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, cmd.NewStatus)
	}

	order.Status = cmd.NewStatus
	order.UpdatedAt = s.clock()
	if cmd.NewStatus == domain.OrderStatusCancelled {
		order.CancelReason = strings.TrimSpace(cmd.Reason)
		s.cancelPayment(ctx, order)
	}

	saved, err := s.orders.Update(ctx, order)
	if err != nil {
		return Order{}, err
	}
	s.publish(ctx, "order.status_changed", saved)
	return saved, nil
}

// CancelOrder lets the customer back out while the order is still only
// placed. Later stages require restaurant-side cancellation.
func (s *orderService) CancelOrder(ctx context.Context, userID, orderID string) (Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status != domain.OrderStatusPlaced {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, domain.OrderStatusCancelled)
	}

	order.Status = domain.OrderStatusCancelled
	order.CancelReason = "cancelled by customer"
	order.UpdatedAt = s.clock()
	s.cancelPayment(ctx, order)

	saved, err := s.orders.Update(ctx, order)
	if err != nil {
		return Order{}, err
	}
	s.publish(ctx, "order.status_changed", saved)
	return saved, nil
}

// IssueTrackToken hands out a signed link token for an order the caller
// owns. The token is self-contained; the tracking endpoint needs no auth.
func (s *orderService) IssueTrackToken(ctx context.Context, userID, orderID string) (string, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	return s.trackTokens.Issue(order.ID)
}

func (s *orderService) TrackOrder(ctx context.Context, token string) (OrderTracking, error) {
	orderID, err := s.trackTokens.Verify(token)
	if err != nil {
		return OrderTracking{}, ErrOrderTrackTokenInvalid
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return OrderTracking{}, err
	}
	return OrderTracking{
		OrderNumber:  order.OrderNumber,
		Status:       order.Status,
		RestaurantID: order.RestaurantID,
		PlacedAt:     order.PlacedAt.Format(time.RFC3339),
		UpdatedAt:    order.UpdatedAt.Format(time.RFC3339),
	}, nil
}

func (s *orderService) load(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, ErrOrderNotFound
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) cancelPayment(ctx context.Context, order Order) {
	if order.PaymentIntentID == "" {
		return
	}
	if err := s.payments.CancelPaymentIntent(ctx, order.PaymentIntentID); err != nil {
		s.logger(ctx, "order.payment_cancel_failed", map[string]any{
			"order_id":  order.ID,
			"intent_id": order.PaymentIntentID,
			"error":     err.Error(),
		})
	}
}

// publish is best-effort; a dropped event must not fail the order mutation
// that already committed.
func (s *orderService) publish(ctx context.Context, eventType string, order Order) {
	event := OrderEvent{
		Type:         eventType,
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		Status:       order.Status,
		OccurredAt:   s.clock(),
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"order_id": order.ID,
			"type":     eventType,
			"error":    err.Error(),
		})
	}
}

func orderLinesFrom(items []PricedItem) []OrderLineItem {
	lines := make([]OrderLineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLineItem{
			DishID:    item.DishID,
			Name:      item.DishName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal,
		})
	}
	return lines
}
