package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/currency"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-orders/internal/service"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		logging.Infof("Falling back to default logger: %v", err)
	}
	defer logging.Sync()

	logger := logging.NewLoggerV2(cfg.App.Name)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", logging.Fields{"error": err})
	}

	secondaryRate, err := currency.ParseRate(cfg.Currency.SecondaryRate)
	if err != nil {
		logger.Fatal("Invalid currency rate", logging.Fields{"error": err})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err})
	}
	defer db.Close()

	catalogPool, err := repository.NewCatalogPool(ctx, cfg.Catalog)
	if err != nil {
		logger.Fatal("Failed to connect to catalog database", logging.Fields{"error": err})
	}
	defer catalogPool.Close()

	redisClient := repository.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	orderRepo := repository.NewPostgresOrderRepository(db, logger)
	captureRepo := repository.NewPostgresPaymentCaptureRepository(db, logger)
	orderCache := repository.NewRedisOrderCache(redisClient, cfg.Redis.TTL)
	catalog := repository.NewPgxCatalogStore(catalogPool, logger)

	paymentClient := clients.NewStripePaymentClient(cfg.Stripe, logger)
	userClient := clients.NewHTTPUserClient(cfg.UserService, logger)

	// The writer connects lazily, so it is safe to build with events disabled.
	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	paymentService := service.NewPaymentService(paymentClient, captureRepo, eventPublisher, cfg)
	orderService := service.NewOrderService(
		orderRepo,
		orderCache,
		catalog,
		userClient,
		paymentService,
		eventPublisher,
		cfg,
	)

	var throttle *middleware.Throttle
	if cfg.RateLimit.Enabled {
		throttle = middleware.NewThrottle(cfg.RateLimit)
	}

	h := handlers.NewHandlers(orderService, paymentService, catalog, secondaryRate, map[string]handlers.Pinger{
		"postgres": orderRepo,
		"redis":    orderCache,
		"catalog":  catalogPool,
	}, cfg)

	srv := server.New(h, throttle, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                  cfg.Server.Port,
			"enable_order_caching":  cfg.Features.EnableOrderCaching,
			"enable_order_events":   cfg.Features.EnableOrderEvents,
			"enable_reconciliation": cfg.Features.EnableReconciliation,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err})
		}
	}()

	var eventConsumer *events.KafkaConsumer
	if cfg.Features.EnableOrderEvents {
		eventConsumer = events.NewKafkaConsumer(cfg.Kafka, paymentService, logger)
		go func() {
			if err := eventConsumer.Start(ctx); err != nil {
				logger.Error("Event consumer failed", logging.Fields{"error": err})
			}
		}()
	}

	if cfg.Features.EnableReconciliation {
		reconciler := service.NewReconciler(captureRepo, orderRepo, cfg.Reconciliation)
		go reconciler.Run(ctx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err})
	}

	cancel()
	if eventConsumer != nil {
		eventConsumer.Stop()
	}

	logger.Info("Server exited")
}

func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	logging.Info("Database connected", logging.Fields{
		"host":         cfg.Database.Host,
		"name":         cfg.Database.Name,
		"auto_migrate": cfg.Database.AutoMigrate,
	})

	return db, nil
}
