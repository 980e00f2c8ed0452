package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/dishpatch/api/internal/di"
	"github.com/dishpatch/api/internal/handlers"
	"github.com/dishpatch/api/internal/payments"
	"github.com/dishpatch/api/internal/platform/auth"
	"github.com/dishpatch/api/internal/platform/config"
	pfirestore "github.com/dishpatch/api/internal/platform/firestore"
	"github.com/dishpatch/api/internal/platform/idempotency"
	"github.com/dishpatch/api/internal/platform/jobs"
	"github.com/dishpatch/api/internal/platform/observability"
	"github.com/dishpatch/api/internal/platform/secrets"
	"github.com/dishpatch/api/internal/repositories"
	firestoreRepo "github.com/dishpatch/api/internal/repositories/firestore"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := buildRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	if cfg.Payments.StripeAPIKey == "" {
		logger.Fatal("stripe api key is required")
	}
	paymentsLogger := logger.Named("payments")
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.Payments.StripeAPIKey,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			paymentsLogger.Debug("stripe log", zFields...)
		},
		Clock: time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	orderTopic := pubsubClient.Topic(cfg.Events.OrderTopic)
	defer func() {
		orderTopic.Stop()
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	publisher, err := jobs.NewPubSubOrderEventPublisher(orderTopic)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	placementGuard := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(ctx)
	defer cleanupCancel()
	if cfg.Idempotency.CleanupInterval > 0 {
		go func() {
			cleanupLogger := logger.Named("idempotency")
			ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-cleanupCtx.Done():
					return
				case <-ticker.C:
					removed, err := idempotencyStore.CleanupExpired(cleanupCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				}
			}
		}()
	}

	trackIssuer, err := auth.NewTrackTokenIssuer(cfg.Tracking.SigningSecret, cfg.Tracking.TokenTTL, time.Now)
	if err != nil {
		logger.Fatal("failed to initialise track token issuer", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, di.Deps{
		Config:       cfg,
		Repositories: registry,
		Payments:     stripeProvider,
		Publisher:    publisher,
		TrackTokens:  trackIssuer,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("failed to assemble services", zap.Error(err))
	}

	currency := cfg.Pricing.Currency
	publicHandlers := handlers.NewPublicCatalogHandlers(container.Services.Catalog, currency)
	cartHandlers := handlers.NewCartHandlers(authenticator, container.Services.Cart)
	promoHandlers := handlers.NewPromoHandlers(container.Services.Promotions, currency)
	orderHandlers := handlers.NewOrderHandlers(authenticator, container.Services.Orders,
		handlers.WithPlacementGuard(placementGuard))
	meHandlers := handlers.NewMeHandlers(authenticator, container.Services.Users, currency)
	adminHandlers := handlers.NewAdminHandlers(authenticator, container.Services.Catalog, container.Services.Promotions, container.Services.Orders, currency)

	healthHandlers := handlers.NewHealthHandlers(func(ctx context.Context) error {
		iter := firestoreClient.Collections(ctx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	})

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithPromoRoutes(promoHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithTrackRoutes(orderHandlers.TrackRoutes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("dishpatch api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildRegistry(provider *pfirestore.Provider) (repositories.Registry, error) {
	var reg repositories.Registry
	var err error

	if reg.Restaurants, err = firestoreRepo.NewRestaurantRepository(provider); err != nil {
		return reg, fmt.Errorf("restaurant repository: %w", err)
	}
	if reg.Dishes, err = firestoreRepo.NewDishRepository(provider); err != nil {
		return reg, fmt.Errorf("dish repository: %w", err)
	}
	if reg.Categories, err = firestoreRepo.NewMenuCategoryRepository(provider); err != nil {
		return reg, fmt.Errorf("menu category repository: %w", err)
	}
	if reg.PromoCodes, err = firestoreRepo.NewPromoCodeRepository(provider); err != nil {
		return reg, fmt.Errorf("promo code repository: %w", err)
	}
	if reg.Carts, err = firestoreRepo.NewCartRepository(provider); err != nil {
		return reg, fmt.Errorf("cart repository: %w", err)
	}
	if reg.Orders, err = firestoreRepo.NewOrderRepository(provider); err != nil {
		return reg, fmt.Errorf("order repository: %w", err)
	}
	if reg.Users, err = firestoreRepo.NewUserRepository(provider); err != nil {
		return reg, fmt.Errorf("user repository: %w", err)
	}
	if reg.Addresses, err = firestoreRepo.NewAddressRepository(provider); err != nil {
		return reg, fmt.Errorf("address repository: %w", err)
	}
	if reg.Counters, err = firestoreRepo.NewCounterRepository(provider); err != nil {
		return reg, fmt.Errorf("counter repository: %w", err)
	}
	return reg, nil
}
