package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dishpatch/api/internal/payments"
	"github.com/dishpatch/api/internal/platform/config"
	"github.com/dishpatch/api/internal/repositories"
	"github.com/dishpatch/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog    services.CatalogService
	Promotions services.PromotionService
	Pricing    services.PricingService
	Cart       services.CartService
	Users      services.UserService
	Orders     services.OrderService
}

// Deps carries the externally constructed collaborators the container cannot
// build itself.
type Deps struct {
	Config       config.Config
	Repositories repositories.Registry
	Payments     payments.Provider
	Publisher    services.OrderEventPublisher
	TrackTokens  services.TrackTokenSource
	Logger       *zap.Logger
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer assembles the service graph in dependency order. Every
// repository in the registry must be populated.
func NewContainer(ctx context.Context, deps Deps) (*Container, error) {
	reg := deps.Repositories
	if reg.Restaurants == nil || reg.Dishes == nil || reg.Categories == nil ||
		reg.PromoCodes == nil || reg.Carts == nil || reg.Orders == nil ||
		reg.Users == nil || reg.Addresses == nil || reg.Counters == nil {
		return nil, errors.New("di: repository registry is incomplete")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	taxRate, err := decimal.NewFromString(deps.Config.Pricing.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("di: parse tax rate %q: %w", deps.Config.Pricing.TaxRate, err)
	}
	currency := deps.Config.Pricing.Currency

	var svc Services

	svc.Users, err = services.NewUserService(services.UserServiceDeps{
		Users:     reg.Users,
		Addresses: reg.Addresses,
		Clock:     time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build user service: %w", err)
	}

	svc.Promotions, err = services.NewPromotionService(services.PromotionServiceDeps{
		Promos:   reg.PromoCodes,
		Currency: currency,
		Clock:    time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build promotion service: %w", err)
	}

	svc.Catalog, err = services.NewCatalogService(services.CatalogServiceDeps{
		Restaurants: reg.Restaurants,
		Dishes:      reg.Dishes,
		Categories:  reg.Categories,
		Clock:       time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build catalog service: %w", err)
	}

	engine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Restaurants: svc.Catalog,
		Dishes:      svc.Catalog,
		Promos:      svc.Promotions,
		AddressFees: svc.Users,
		TaxRate:     taxRate,
		Currency:    currency,
		Now:         time.Now,
		Logger:      zapEventLogger(logger.Named("pricing")),
	})
	if err != nil {
		return nil, fmt.Errorf("di: build pricing engine: %w", err)
	}
	svc.Pricing = engine

	svc.Cart, err = services.NewCartService(services.CartServiceDeps{
		Carts:   reg.Carts,
		Dishes:  svc.Catalog,
		Pricing: svc.Pricing,
		Clock:   time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("di: build cart service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders,
		Carts:       reg.Carts,
		Addresses:   reg.Addresses,
		Counters:    reg.Counters,
		Pricing:     svc.Pricing,
		Restaurants: svc.Catalog,
		Promotions:  svc.Promotions,
		Payments:    deps.Payments,
		Publisher:   deps.Publisher,
		TrackTokens: deps.TrackTokens,
		Currency:    currency,
		Clock:       time.Now,
		Logger:      zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		return nil, fmt.Errorf("di: build order service: %w", err)
	}

	return &Container{
		Config:       deps.Config,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// zapEventLogger adapts a zap logger to the event-map logging hook services
// accept.
func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}
