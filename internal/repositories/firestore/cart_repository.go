package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dishpatch/api/internal/domain"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/repositories"
)

// Carts are stored one document per user, keyed by the user ID.
const cartCollection = "carts"

type cartLineDocument struct {
	ID       string    `firestore:"id"`
	DishID   string    `firestore:"dishId"`
	Quantity int       `firestore:"quantity"`
	AddedAt  time.Time `firestore:"addedAt"`
}

type cartEstimateDocument struct {
	Subtotal    string `firestore:"subtotal"`
	Discount    string `firestore:"discount"`
	Tax         string `firestore:"tax"`
	DeliveryFee string `firestore:"deliveryFee"`
	Total       string `firestore:"total"`
	Currency    string `firestore:"currency"`
}

type cartDocument struct {
	RestaurantID      string                `firestore:"restaurantId,omitempty"`
	Items             []cartLineDocument    `firestore:"items"`
	PromoCode         string                `firestore:"promoCode,omitempty"`
	DeliveryAddressID string                `firestore:"deliveryAddressId,omitempty"`
	Estimate          *cartEstimateDocument `firestore:"estimate,omitempty"`
	CreatedAt         time.Time             `firestore:"createdAt"`
	UpdatedAt         time.Time             `firestore:"updatedAt"`
}

func (d cartDocument) toDomain(userID string) (domain.Cart, error) {
	cart := domain.Cart{
		UserID:            userID,
		RestaurantID:      d.RestaurantID,
		PromoCode:         d.PromoCode,
		DeliveryAddressID: d.DeliveryAddressID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, line := range d.Items {
		cart.Items = append(cart.Items, domain.CartLine{
			ID:       line.ID,
			DishID:   line.DishID,
			Quantity: line.Quantity,
			AddedAt:  line.AddedAt,
		})
	}
	if d.Estimate != nil {
		estimate := domain.CartEstimate{Currency: d.Estimate.Currency}
		var err error
		if estimate.Subtotal, err = decodeDecimal(d.Estimate.Subtotal); err != nil {
			return domain.Cart{}, fmt.Errorf("cart %s: %w", userID, err)
		}
		if estimate.Discount, err = decodeDecimal(d.Estimate.Discount); err != nil {
			return domain.Cart{}, fmt.Errorf("cart %s: %w", userID, err)
		}
		if estimate.Tax, err = decodeDecimal(d.Estimate.Tax); err != nil {
			return domain.Cart{}, fmt.Errorf("cart %s: %w", userID, err)
		}
		if estimate.DeliveryFee, err = decodeDecimal(d.Estimate.DeliveryFee); err != nil {
			return domain.Cart{}, fmt.Errorf("cart %s: %w", userID, err)
		}
		if estimate.Total, err = decodeDecimal(d.Estimate.Total); err != nil {
			return domain.Cart{}, fmt.Errorf("cart %s: %w", userID, err)
		}
		cart.Estimate = &estimate
	}
	return cart, nil
}

func cartToDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		RestaurantID:      strings.TrimSpace(cart.RestaurantID),
		Items:             make([]cartLineDocument, 0, len(cart.Items)),
		PromoCode:         strings.TrimSpace(cart.PromoCode),
		DeliveryAddressID: strings.TrimSpace(cart.DeliveryAddressID),
		CreatedAt:         cart.CreatedAt,
		UpdatedAt:         cart.UpdatedAt,
	}
	for _, line := range cart.Items {
		doc.Items = append(doc.Items, cartLineDocument{
			ID:       line.ID,
			DishID:   line.DishID,
			Quantity: line.Quantity,
			AddedAt:  line.AddedAt,
		})
	}
	if cart.Estimate != nil {
		doc.Estimate = &cartEstimateDocument{
			Subtotal:    encodeDecimal(cart.Estimate.Subtotal),
			Discount:    encodeDecimal(cart.Estimate.Discount),
			Tax:         encodeDecimal(cart.Estimate.Tax),
			DeliveryFee: encodeDecimal(cart.Estimate.DeliveryFee),
			Total:       encodeDecimal(cart.Estimate.Total),
			Currency:    cart.Estimate.Currency,
		}
	}
	return doc
}

// CartRepository persists carts in Firestore.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil),
	}, nil
}

// Get fetches the cart belonging to a user.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

// Save replaces the user's cart document.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}
	if _, err := r.base.Set(ctx, userID, cartToDocument(cart)); err != nil {
		return domain.Cart{}, err
	}
	cart.UserID = userID
	return cart, nil
}

// Delete removes the user's cart document.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(userID))
}

var _ repositories.CartRepository = (*CartRepository)(nil)
