package handlers

import (
	"time"

	domain "github.com/dishpatch/api/internal/domain"
	"github.com/dishpatch/api/internal/services"
)

// JSON shapes returned by the API. Money travels as fixed-point strings in
// the result currency; timestamps as RFC 3339.

type restaurantPayload struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Cuisines     []string `json:"cuisines,omitempty"`
	IsOpen       bool     `json:"isOpen"`
	DeliveryFee  string   `json:"deliveryFee"`
	MinimumOrder string   `json:"minimumOrder"`
	AddressLine  string   `json:"addressLine,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	IsPublished  bool     `json:"isPublished"`
}

type dishPayload struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurantId"`
	CategoryID   string `json:"categoryId,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Price        string `json:"price"`
	IsAvailable  bool   `json:"isAvailable"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

type categoryPayload struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurantId"`
	Name         string `json:"name"`
	SortOrder    int    `json:"sortOrder"`
}

type pricedItemPayload struct {
	DishID      string `json:"dishId"`
	DishName    string `json:"dishName,omitempty"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   string `json:"lineTotal"`
	IsAvailable bool   `json:"isAvailable"`
}

type pricingPayload struct {
	IsValid          bool                `json:"isValid"`
	ErrorMessage     string              `json:"errorMessage,omitempty"`
	Currency         string              `json:"currency"`
	Items            []pricedItemPayload `json:"items"`
	Subtotal         string              `json:"subtotal"`
	Tax              string              `json:"tax"`
	TaxRate          string              `json:"taxRate"`
	DeliveryFee      string              `json:"deliveryFee"`
	Discount         string              `json:"discount"`
	GrandTotal       string              `json:"grandTotal"`
	PromoCodeApplied string              `json:"promoCodeApplied,omitempty"`
	PromoMessage     string              `json:"promoMessage,omitempty"`
	FreeDelivery     bool                `json:"freeDelivery"`
	Notes            []string            `json:"notes,omitempty"`
}

type cartLinePayload struct {
	ID       string `json:"id"`
	DishID   string `json:"dishId"`
	Quantity int    `json:"quantity"`
}

type cartPayload struct {
	RestaurantID      string            `json:"restaurantId,omitempty"`
	Items             []cartLinePayload `json:"items"`
	PromoCode         string            `json:"promoCode,omitempty"`
	DeliveryAddressID string            `json:"deliveryAddressId,omitempty"`
	UpdatedAt         string            `json:"updatedAt,omitempty"`
}

type cartResponse struct {
	Cart    cartPayload    `json:"cart"`
	Pricing pricingPayload `json:"pricing"`
}

type promoValidationPayload struct {
	Code         string `json:"code,omitempty"`
	IsValid      bool   `json:"isValid"`
	Message      string `json:"message,omitempty"`
	Discount     string `json:"discount"`
	FreeDelivery bool   `json:"freeDelivery"`
}

type orderLinePayload struct {
	DishID    string `json:"dishId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

type orderPayload struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	RestaurantID    string             `json:"restaurantId"`
	Status          string             `json:"status"`
	Currency        string             `json:"currency"`
	Items           []orderLinePayload `json:"items"`
	Subtotal        string             `json:"subtotal"`
	Discount        string             `json:"discount"`
	Tax             string             `json:"tax"`
	DeliveryFee     string             `json:"deliveryFee"`
	Total           string             `json:"total"`
	PromoCode       string             `json:"promoCode,omitempty"`
	FreeDelivery    bool               `json:"freeDelivery"`
	DeliveryAddress *addressPayload    `json:"deliveryAddress,omitempty"`
	DeliveryNotes   string             `json:"notes,omitempty"`
	CancelReason    string             `json:"cancelReason,omitempty"`
	PlacedAt        string             `json:"placedAt"`
}

type addressPayload struct {
	ID                  string `json:"id"`
	Label               string `json:"label,omitempty"`
	Recipient           string `json:"recipient,omitempty"`
	Line1               string `json:"line1"`
	Line2               string `json:"line2,omitempty"`
	City                string `json:"city"`
	PostalCode          string `json:"postalCode,omitempty"`
	Country             string `json:"country,omitempty"`
	Phone               string `json:"phone,omitempty"`
	DeliveryFeeOverride string `json:"deliveryFeeOverride,omitempty"`
	IsDefault           bool   `json:"isDefault"`
}

type profilePayload struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Roles       []string `json:"roles"`
}

type promoCodePayload struct {
	Code               string `json:"code"`
	Description        string `json:"description,omitempty"`
	DiscountPercentage string `json:"discountPercentage"`
	DiscountAmount     string `json:"discountAmount"`
	FreeDelivery       bool   `json:"freeDelivery"`
	MinimumOrderAmount string `json:"minimumOrderAmount"`
	IsActive           bool   `json:"isActive"`
	ExpiresAt          string `json:"expiresAt,omitempty"`
	UsageLimit         *int   `json:"usageLimit,omitempty"`
	TimesUsed          int    `json:"timesUsed"`
}

func buildRestaurantPayload(restaurant services.Restaurant, currency string) restaurantPayload {
	return restaurantPayload{
		ID:           restaurant.ID,
		Name:         restaurant.Name,
		Description:  restaurant.Description,
		Cuisines:     restaurant.Cuisines,
		IsOpen:       restaurant.IsOpen,
		DeliveryFee:  domain.FormatMoney(restaurant.DeliveryFee, currency),
		MinimumOrder: domain.FormatMoney(restaurant.MinimumOrder, currency),
		AddressLine:  restaurant.AddressLine,
		ImageURL:     restaurant.ImageURL,
		IsPublished:  restaurant.IsPublished,
	}
}

func buildDishPayload(dish services.Dish, currency string) dishPayload {
	return dishPayload{
		ID:           dish.ID,
		RestaurantID: dish.RestaurantID,
		CategoryID:   dish.CategoryID,
		Name:         dish.Name,
		Description:  dish.Description,
		Price:        domain.FormatMoney(dish.Price, currency),
		IsAvailable:  dish.IsAvailable,
		ImageURL:     dish.ImageURL,
	}
}

func buildCategoryPayload(category services.MenuCategory) categoryPayload {
	return categoryPayload{
		ID:           category.ID,
		RestaurantID: category.RestaurantID,
		Name:         category.Name,
		SortOrder:    category.SortOrder,
	}
}

func buildPricingPayload(result services.PricingResult) pricingPayload {
	currency := result.Currency
	items := make([]pricedItemPayload, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, pricedItemPayload{
			DishID:      item.DishID,
			DishName:    item.DishName,
			UnitPrice:   domain.FormatMoney(item.UnitPrice, currency),
			Quantity:    item.Quantity,
			LineTotal:   domain.FormatMoney(item.LineTotal, currency),
			IsAvailable: item.IsAvailable,
		})
	}
	return pricingPayload{
		IsValid:          result.IsValid,
		ErrorMessage:     result.ErrorMessage,
		Currency:         currency,
		Items:            items,
		Subtotal:         domain.FormatMoney(result.Subtotal, currency),
		Tax:              domain.FormatMoney(result.Tax, currency),
		TaxRate:          result.TaxRate.String(),
		DeliveryFee:      domain.FormatMoney(result.DeliveryFee, currency),
		Discount:         domain.FormatMoney(result.Discount, currency),
		GrandTotal:       domain.FormatMoney(result.GrandTotal, currency),
		PromoCodeApplied: result.PromoCodeApplied,
		PromoMessage:     result.PromoMessage,
		FreeDelivery:     result.FreeDelivery,
		Notes:            result.Notes,
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	lines := make([]cartLinePayload, 0, len(cart.Items))
	for _, line := range cart.Items {
		lines = append(lines, cartLinePayload{ID: line.ID, DishID: line.DishID, Quantity: line.Quantity})
	}
	payload := cartPayload{
		RestaurantID:      cart.RestaurantID,
		Items:             lines,
		PromoCode:         cart.PromoCode,
		DeliveryAddressID: cart.DeliveryAddressID,
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = cart.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func buildCartResponse(cart services.Cart, result services.PricingResult) cartResponse {
	return cartResponse{Cart: buildCartPayload(cart), Pricing: buildPricingPayload(result)}
}

func buildOrderPayload(order services.Order) orderPayload {
	currency := order.Currency
	lines := make([]orderLinePayload, 0, len(order.Items))
	for _, line := range order.Items {
		lines = append(lines, orderLinePayload{
			DishID:    line.DishID,
			Name:      line.Name,
			UnitPrice: domain.FormatMoney(line.UnitPrice, currency),
			Quantity:  line.Quantity,
			LineTotal: domain.FormatMoney(line.LineTotal, currency),
		})
	}
	payload := orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		RestaurantID:  order.RestaurantID,
		Status:        string(order.Status),
		Currency:      currency,
		Items:         lines,
		Subtotal:      domain.FormatMoney(order.Totals.Subtotal, currency),
		Discount:      domain.FormatMoney(order.Totals.Discount, currency),
		Tax:           domain.FormatMoney(order.Totals.Tax, currency),
		DeliveryFee:   domain.FormatMoney(order.Totals.DeliveryFee, currency),
		Total:         domain.FormatMoney(order.Totals.Total, currency),
		PromoCode:     order.PromoCode,
		FreeDelivery:  order.FreeDelivery,
		DeliveryNotes: order.Notes,
		CancelReason:  order.CancelReason,
		PlacedAt:      order.PlacedAt.UTC().Format(time.RFC3339),
	}
	if order.DeliveryAddress != nil {
		address := buildAddressPayload(*order.DeliveryAddress, currency)
		payload.DeliveryAddress = &address
	}
	return payload
}

func buildAddressPayload(address services.Address, currency string) addressPayload {
	payload := addressPayload{
		ID:         address.ID,
		Label:      address.Label,
		Recipient:  address.Recipient,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
		IsDefault:  address.IsDefault,
	}
	if address.DeliveryFeeOverride != nil {
		payload.DeliveryFeeOverride = domain.FormatMoney(*address.DeliveryFeeOverride, currency)
	}
	return payload
}

func buildProfilePayload(profile services.UserProfile) profilePayload {
	return profilePayload{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		PhoneNumber: profile.PhoneNumber,
		Roles:       profile.Roles,
	}
}

func buildPromoValidationPayload(validation services.PromoValidation, currency string) promoValidationPayload {
	return promoValidationPayload{
		Code:         validation.Code,
		IsValid:      validation.Eligible,
		Message:      validation.Message,
		Discount:     domain.FormatMoney(validation.Discount, currency),
		FreeDelivery: validation.FreeDelivery,
	}
}

func buildPromoCodePayload(promo services.PromoCode, currency string) promoCodePayload {
	payload := promoCodePayload{
		Code:               promo.Code,
		Description:        promo.Description,
		DiscountPercentage: promo.DiscountPercentage.String(),
		DiscountAmount:     domain.FormatMoney(promo.DiscountAmount, currency),
		FreeDelivery:       promo.FreeDelivery,
		MinimumOrderAmount: domain.FormatMoney(promo.MinimumOrderAmount, currency),
		IsActive:           promo.IsActive,
		UsageLimit:         promo.UsageLimit,
		TimesUsed:          promo.TimesUsed,
	}
	if promo.ExpiresAt != nil {
		payload.ExpiresAt = promo.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return payload
}
