package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

const orderCollection = "orders"

type orderLineDocument struct {
	DishID    string `firestore:"dishId"`
	Name      string `firestore:"name"`
	UnitPrice string `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	LineTotal string `firestore:"lineTotal"`
}

type orderAddressDocument struct {
	Label      string `firestore:"label,omitempty"`
	Recipient  string `firestore:"recipient,omitempty"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

type orderDocument struct {
	OrderNumber     string                `firestore:"orderNumber"`
	UserID          string                `firestore:"userId"`
	RestaurantID    string                `firestore:"restaurantId"`
	Status          string                `firestore:"status"`
	Currency        string                `firestore:"currency"`
	Items           []orderLineDocument   `firestore:"items"`
	Subtotal        string                `firestore:"subtotal"`
	Discount        string                `firestore:"discount"`
	Tax             string                `firestore:"tax"`
	DeliveryFee     string                `firestore:"deliveryFee"`
	Total           string                `firestore:"total"`
	PromoCode       string                `firestore:"promoCode,omitempty"`
	FreeDelivery    bool                  `firestore:"freeDelivery"`
	DeliveryAddress *orderAddressDocument `firestore:"deliveryAddress,omitempty"`
	Notes           string                `firestore:"notes,omitempty"`
	PaymentIntentID string                `firestore:"paymentIntentId,omitempty"`
	CancelReason    string                `firestore:"cancelReason,omitempty"`
	PlacedAt        time.Time             `firestore:"placedAt"`
	CreatedAt       time.Time             `firestore:"createdAt"`
	UpdatedAt       time.Time             `firestore:"updatedAt"`
}

func (d orderDocument) toDomain(id string) (domain.Order, error) {
	decode := func(field, raw string) (decimal.Decimal, error) {
		value, err := decodeDecimal(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order %s %s: %w", id, field, err)
		}
		return value, nil
	}

	order := domain.Order{
		ID:              id,
		OrderNumber:     d.OrderNumber,
		UserID:          d.UserID,
		RestaurantID:    d.RestaurantID,
		Status:          domain.OrderStatus(d.Status),
		Currency:        d.Currency,
		PromoCode:       d.PromoCode,
		FreeDelivery:    d.FreeDelivery,
		Notes:           d.Notes,
		PaymentIntentID: d.PaymentIntentID,
		CancelReason:    d.CancelReason,
		PlacedAt:        d.PlacedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}

	var err error
	if order.Totals.Subtotal, err = decode("subtotal", d.Subtotal); err != nil {
		return domain.Order{}, err
	}
	if order.Totals.Discount, err = decode("discount", d.Discount); err != nil {
		return domain.Order{}, err
	}
	if order.Totals.Tax, err = decode("tax", d.Tax); err != nil {
		return domain.Order{}, err
	}
	if order.Totals.DeliveryFee, err = decode("deliveryFee", d.DeliveryFee); err != nil {
		return domain.Order{}, err
	}
	if order.Totals.Total, err = decode("total", d.Total); err != nil {
		return domain.Order{}, err
	}

	for _, line := range d.Items {
		unitPrice, err := decode("unitPrice", line.UnitPrice)
		if err != nil {
			return domain.Order{}, err
		}
		lineTotal, err := decode("lineTotal", line.LineTotal)
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, domain.OrderLineItem{
			DishID:    line.DishID,
			Name:      line.Name,
			UnitPrice: unitPrice,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
	}

	if d.DeliveryAddress != nil {
		order.DeliveryAddress = &domain.Address{
			Label:      d.DeliveryAddress.Label,
			Recipient:  d.DeliveryAddress.Recipient,
			Line1:      d.DeliveryAddress.Line1,
			Line2:      d.DeliveryAddress.Line2,
			City:       d.DeliveryAddress.City,
			PostalCode: d.DeliveryAddress.PostalCode,
			Country:    d.DeliveryAddress.Country,
			Phone:      d.DeliveryAddress.Phone,
		}
	}

	return order, nil
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		RestaurantID:    order.RestaurantID,
		Status:          string(order.Status),
		Currency:        order.Currency,
		Subtotal:        encodeDecimal(order.Totals.Subtotal),
		Discount:        encodeDecimal(order.Totals.Discount),
		Tax:             encodeDecimal(order.Totals.Tax),
		DeliveryFee:     encodeDecimal(order.Totals.DeliveryFee),
		Total:           encodeDecimal(order.Totals.Total),
		PromoCode:       order.PromoCode,
		FreeDelivery:    order.FreeDelivery,
		Notes:           order.Notes,
		PaymentIntentID: order.PaymentIntentID,
		CancelReason:    order.CancelReason,
		PlacedAt:        order.PlacedAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, line := range order.Items {
		doc.Items = append(doc.Items, orderLineDocument{
			DishID:    line.DishID,
			Name:      line.Name,
			UnitPrice: encodeDecimal(line.UnitPrice),
			Quantity:  line.Quantity,
			LineTotal: encodeDecimal(line.LineTotal),
		})
	}
	if order.DeliveryAddress != nil {
		doc.DeliveryAddress = &orderAddressDocument{
			Label:      order.DeliveryAddress.Label,
			Recipient:  order.DeliveryAddress.Recipient,
			Line1:      order.DeliveryAddress.Line1,
			Line2:      order.DeliveryAddress.Line2,
			City:       order.DeliveryAddress.City,
			PostalCode: order.DeliveryAddress.PostalCode,
			Country:    order.DeliveryAddress.Country,
			Phone:      order.DeliveryAddress.Phone,
		}
	}
	return doc
}

// OrderRepository persists orders in Firestore.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil),
	}, nil
}

// GetByID fetches an order by its document ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// List returns a page of orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	limit := filter.Pagination.Limit
	if limit <= 0 {
		limit = 50
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			query = query.Where("userId", "==", userID)
		}
		if restaurantID := strings.TrimSpace(filter.RestaurantID); restaurantID != "" {
			query = query.Where("restaurantId", "==", restaurantID)
		}
		if filter.Status != "" {
			query = query.Where("status", "==", string(filter.Status))
		}
		query = query.OrderBy("placedAt", firestore.Desc)
		if token := strings.TrimSpace(filter.Pagination.Token); token != "" {
			if cursor, parseErr := time.Parse(time.RFC3339Nano, token); parseErr == nil {
				query = query.StartAfter(cursor)
			}
		}
		return query.Limit(limit + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == limit {
			page.NextCursor = docs[limit-1].Data.PlacedAt.Format(time.RFC3339Nano)
			break
		}
		order, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

// Insert creates a new order document, failing on ID collision.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := ref.Create(ctx, orderToDocument(order)); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return order, nil
}

// Update replaces an existing order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	if _, err := r.base.Set(ctx, id, orderToDocument(order)); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
