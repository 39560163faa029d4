// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/your-org/storefront-cart/internal/config"
	"github.com/your-org/storefront-cart/internal/domain/cart"
	"github.com/your-org/storefront-cart/internal/domain/catalog"
	"github.com/your-org/storefront-cart/internal/domain/checkout"
	"github.com/your-org/storefront-cart/internal/domain/order"
	"github.com/your-org/storefront-cart/internal/infrastructure/cartapi"
	"github.com/your-org/storefront-cart/internal/infrastructure/database/mongodb"
	"github.com/your-org/storefront-cart/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront-cart/internal/infrastructure/database/redis"
	"github.com/your-org/storefront-cart/internal/infrastructure/messaging/kafka"
	"github.com/your-org/storefront-cart/internal/infrastructure/resilience"
	"github.com/your-org/storefront-cart/internal/interfaces/http"
	"github.com/your-org/storefront-cart/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-cart/internal/interfaces/http/routes"
	"github.com/your-org/storefront-cart/internal/pkg/auth"
	"github.com/your-org/storefront-cart/internal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	log.Infof("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	// Connect to database
	db, err := postgres.NewConnection(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis
	redisClient, err := redis.NewConnection(context.Background(), cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.Health(startupCtx); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}
	cancelStartup()

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), log)
	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.Warnf("Index creation failed: %v", err)
	}

	// Seed the catalog in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(context.Background()); err != nil {
			log.Warnf("Data seeding failed: %v", err)
		}
	}

	checks := map[string]http.HealthCheck{
		"database": db.Health,
		"redis":    redisClient.Health,
	}

	// Account cart store
	var accountCarts func(userID string) cart.Repository
	switch cfg.Cart.StoreDriver {
	case config.StoreDriverMongo:
		mongoDB := connectMongo(cfg, log)
		defer disconnectMongo(mongoDB, log)
		checks["mongo"] = func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) }
		accountCarts = func(userID string) cart.Repository {
			return mongodb.NewAccountCartStore(mongoDB, userID)
		}
	default:
		accountCarts = func(userID string) cart.Repository {
			return postgres.NewAccountCartStore(db.GetDB(), userID)
		}
	}

	breaker := resilience.NewBreaker(resilience.BreakerSettings{
		Name:        "account-cart",
		MaxFailures: cfg.Cart.BreakerMaxFailures,
		OpenTimeout: cfg.Cart.BreakerOpenTimeout,
	}, log)

	// Signed-in carts go through the cart API when one is configured, otherwise
	// straight to the account cart store
	remoteCarts := func(userID, _ string) cart.Repository {
		return breaker.Wrap(accountCarts(userID))
	}
	if cfg.Cart.RemoteAPIURL != "" {
		client := cartapi.NewClient(cfg.Cart.RemoteAPIURL, cfg.Cart.RemoteTimeout)
		remoteCarts = func(_, token string) cart.Repository {
			return breaker.Wrap(client.ForToken(token))
		}
		log.WithField("url", cfg.Cart.RemoteAPIURL).Info("Remote cart API configured")
	}

	sessionCarts := func(sessionID string) cart.Repository {
		return redis.NewSessionRepository(redisClient.GetClient(), sessionID, cfg.Cart.SessionTTL)
	}

	catalogReader := catalog.NewCachedReader(catalog.NewRepository(db.GetDB()), redisClient.GetClient(), cfg.Catalog.CacheTTL, log)

	// Order events
	var publisher order.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.WithField("topic", cfg.Kafka.OrderTopic).Info("Order events publishing to Kafka")
	}

	orderService := order.NewService(db.GetDB(), publisher, log, order.WithProductCache(catalogReader))
	shipping := checkout.NewShippingPolicy(cfg.Checkout.DiscountedCities, cfg.Checkout.DiscountedFee, cfg.Checkout.StandardFee)
	checkoutService := checkout.NewService(cart.NewValidator(catalogReader), shipping, orderService, log)

	log.Info("✅ All systems operational!")

	server := http.NewServer(cfg, routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		JWT:     auth.NewJWTManager(cfg),
		Catalog: catalogReader,
		CartStores: handlers.CartStores{
			Local:  sessionCarts,
			Remote: remoteCarts,
		},
		AccountCarts: accountCarts,
		Checkout:     checkoutService,
		Orders:       orderService,
	}, redisClient.GetClient(), checks)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("👋 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Errorf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Info("✅ Server shutdown completed")
}

func connectMongo(cfg *config.Config, log *logrus.Logger) *mongo.Database {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoDB, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	if err := mongodb.CreateIndexes(ctx, mongoDB); err != nil {
		log.Warnf("Mongo index creation failed: %v", err)
	}
	log.Info("✅ MongoDB connection established successfully")
	return mongoDB
}

func disconnectMongo(db *mongo.Database, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Client().Disconnect(ctx); err != nil {
		log.WithError(err).Warn("MongoDB disconnect failed")
	}
}
