package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logisticsapp "github.com/marketplace/backend/internal/application/logistics"
	orderapp "github.com/marketplace/backend/internal/application/order"
	stockapp "github.com/marketplace/backend/internal/application/stock"
	"github.com/marketplace/backend/internal/infrastructure/cache"
	"github.com/marketplace/backend/internal/infrastructure/carrier"
	"github.com/marketplace/backend/internal/infrastructure/config"
	"github.com/marketplace/backend/internal/infrastructure/event"
	"github.com/marketplace/backend/internal/infrastructure/logger"
	"github.com/marketplace/backend/internal/infrastructure/payment"
	"github.com/marketplace/backend/internal/infrastructure/persistence"
	"github.com/marketplace/backend/internal/infrastructure/scheduler"
	"github.com/marketplace/backend/internal/infrastructure/telemetry"
	"github.com/marketplace/backend/internal/interfaces/http/handler"
	"github.com/marketplace/backend/internal/interfaces/http/middleware"
	"github.com/marketplace/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Marketplace Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing; spans cover the HTTP, service and database layers
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Tracing.Enabled,
		CollectorEndpoint: cfg.Tracing.CollectorEndpoint,
		SamplingRatio:     cfg.Tracing.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Tracing.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Attach query spans and slow query flags to the GORM handle
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Tracing.Enabled,
		LogFullSQL:      cfg.Tracing.LogFullSQL,
		SlowQueryThresh: cfg.Tracing.SlowQueryThresh,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register query tracing", zap.Error(err))
	}

	// Initialize repositories
	variantRepo := persistence.NewGormVariantRepository(db.DB)
	cartRepo := persistence.NewGormCartRepository(db.DB)
	recordRepo := persistence.NewGormLogisticsRecordRepository(db.DB)

	// Transaction scopes group the repositories each flow mutates together
	stockScope := persistence.NewGormStockTransactionScope(db.DB)
	orderScope := persistence.NewGormOrderTransactionScope(db.DB)
	logisticsScope := persistence.NewGormLogisticsTransactionScope(db.DB)

	// Carrier client for waybill submission and rate quoting
	carrierClient := carrier.NewHTTPCarrierClient(cfg.Carrier)

	// Rate quotes and geocoded addresses go through Redis when it is
	// reachable; checkout quotes straight from the carrier and stamps raw
	// addresses otherwise
	var quoter orderapp.ShippingQuoter = carrierClient
	var resolver orderapp.AddressResolver
	redisCache, err := cache.NewRedisCache(cfg.Redis, "mkt")
	if err != nil {
		log.Warn("Redis unavailable, rate quotes and geocoding will not be cached", zap.Error(err))
	} else {
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Error("Error closing Redis cache", zap.Error(err))
			}
		}()
		quoter = carrier.NewCachedQuoter(carrierClient, redisCache, log)
		resolver = carrier.NewCachedGeocoder(carrierClient, redisCache, log)
	}

	// Webhook replay protection, Redis-backed with in-memory fallback
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Carrier webhook envelopes are encrypted with a shared passphrase.
	// Production refuses to start without one; development falls back to a
	// fixed secret so local carrier simulators can talk to us.
	webhookSecret := cfg.Carrier.WebhookSecret
	if webhookSecret == "" {
		log.Warn("carrier.webhook_secret not set, using development secret")
		webhookSecret = "dev-carrier-webhook-secret"
	}
	decrypter, err := carrier.NewAESWebhookDecrypter(webhookSecret)
	if err != nil {
		log.Fatal("Failed to create webhook decrypter", zap.Error(err))
	}

	// Stripe signature verification for payment webhooks
	verifier := payment.NewStripeWebhookVerifier(cfg.Payment, log)

	// Initialize application services
	stockService := stockapp.NewStockService(variantRepo, stockScope)
	cartService := orderapp.NewCartService(cartRepo, variantRepo)
	checkoutService := orderapp.NewCheckoutService(orderScope, recordRepo, quoter, cfg.Carrier.Provider, log)
	if resolver != nil {
		checkoutService.SetAddressResolver(resolver)
	}
	checkoutService.SetSenderAddress(cfg.Carrier.SenderAddress)
	paymentService := orderapp.NewPaymentService(orderScope, verifier, idempotencyStore, log)
	returnService := orderapp.NewReturnService(orderScope, log)
	shipmentService := logisticsapp.NewShipmentService(logisticsScope, carrierClient, log)
	webhookService := logisticsapp.NewWebhookService(logisticsScope, decrypter, idempotencyStore, log)

	expiryService := orderapp.NewExpiryService(orderScope, log)
	expiryService.SetExpiry(cfg.Sweep.PendingExpiry)
	expiryService.SetBatchSize(cfg.Sweep.BatchSize)

	autoCompletionService := logisticsapp.NewAutoCompletionService(logisticsScope, log)
	autoCompletionService.SetGrace(cfg.Sweep.AutoCompletionGrace)
	autoCompletionService.SetBatchSize(cfg.Sweep.BatchSize)

	// Initialize event bus
	var eventBus *event.InMemoryEventBus
	if cfg.Event.AsyncEnabled {
		eventBus = event.NewAsyncInMemoryEventBus(log, cfg.Event.BufferSize)
	} else {
		eventBus = event.NewInMemoryEventBus(log)
	}

	// Order paid -> submit the order's shipments to the carrier.
	// Wrapped with idempotency so redelivered events do not double-submit.
	orderPaidHandler := logisticsapp.NewOrderPaidHandler(shipmentService, log)
	eventBus.Subscribe(event.NewIdempotentHandler(orderPaidHandler, idempotencyStore, log))

	log.Info("Event handlers registered",
		zap.Strings("order_paid_events", orderPaidHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	stockService.SetEventPublisher(eventBus)
	checkoutService.SetEventPublisher(eventBus)
	paymentService.SetEventPublisher(eventBus)
	returnService.SetEventPublisher(eventBus)
	shipmentService.SetEventPublisher(eventBus)
	webhookService.SetEventPublisher(eventBus)
	expiryService.SetEventPublisher(eventBus)
	autoCompletionService.SetEventPublisher(eventBus)

	// Start the expiry / auto-completion sweep loop
	sweepScheduler := scheduler.NewSweepScheduler(expiryService, autoCompletionService, cfg.Sweep, log)
	if err := sweepScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}
	defer func() {
		if err := sweepScheduler.Stop(context.Background()); err != nil {
			log.Error("Error stopping sweep scheduler", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	stockHandler := handler.NewStockHandler(stockService)
	cartHandler := handler.NewCartHandler(cartService)
	orderHandler := handler.NewOrderHandler(checkoutService, paymentService)
	returnHandler := handler.NewReturnHandler(returnService)
	shipmentHandler := handler.NewShipmentHandler(shipmentService)
	carrierWebhookHandler := handler.NewCarrierWebhookHandler(webhookService)
	paymentWebhookHandler := handler.NewPaymentWebhookHandler(paymentService)
	adminHandler := handler.NewAdminHandler(expiryService, autoCompletionService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     cfg.Tracing.Enabled,
	}))
	engine.Use(middleware.TracingAttributes())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Stock domain (variants, reservations, product index)
	stockRoutes := router.NewDomainGroup("stock", "/stock")
	stockRoutes.POST("/variants", stockHandler.CreateVariant)
	stockRoutes.GET("/variants/:id", stockHandler.GetVariant)
	stockRoutes.GET("/variants/sku/:sku", stockHandler.GetVariantBySKU)
	stockRoutes.POST("/variants/:id/reserve", stockHandler.Reserve)
	stockRoutes.POST("/variants/:id/commit", stockHandler.Commit)
	stockRoutes.POST("/variants/:id/release", stockHandler.Release)
	stockRoutes.POST("/variants/:id/restock", stockHandler.Restock)
	stockRoutes.POST("/variants/:id/add-stock", stockHandler.AddStock)
	stockRoutes.PUT("/variants/:id/price-override", stockHandler.SetPriceOverride)
	stockRoutes.GET("/products/:id/index", stockHandler.GetProductIndex)

	// Cart
	cartRoutes := router.NewDomainGroup("cart", "/cart")
	cartRoutes.GET("", cartHandler.GetCart)
	cartRoutes.POST("/items", cartHandler.AddItem)
	cartRoutes.DELETE("", cartHandler.ClearCart)

	// Orders (checkout, lifecycle, per-order shipments)
	orderRoutes := router.NewDomainGroup("orders", "/orders")
	orderRoutes.POST("/checkout", orderHandler.Checkout)
	orderRoutes.GET("", orderHandler.ListOrders)
	orderRoutes.GET("/:id", orderHandler.GetOrder)
	orderRoutes.POST("/:id/confirm-payment", orderHandler.ConfirmPayment)
	orderRoutes.POST("/:id/cancel", orderHandler.CancelOrder)
	orderRoutes.GET("/:id/shipments", shipmentHandler.ListForOrder)
	orderRoutes.POST("/:id/shipments", shipmentHandler.SubmitForOrder)

	// Order item return flow
	itemRoutes := router.NewDomainGroup("order-items", "/order-items")
	itemRoutes.POST("/:id/return", returnHandler.RequestReturn)
	itemRoutes.POST("/:id/reviewed", returnHandler.MarkItemReviewed)

	// Returns
	returnRoutes := router.NewDomainGroup("returns", "/returns")
	returnRoutes.GET("/:id", returnHandler.GetReturn)
	returnRoutes.POST("/:id/approve", returnHandler.ApproveReturn)
	returnRoutes.POST("/:id/reject", returnHandler.RejectReturn)
	returnRoutes.POST("/:id/complete", returnHandler.CompleteReturn)

	// Shipments
	shipmentRoutes := router.NewDomainGroup("shipments", "/shipments")
	shipmentRoutes.GET("/:id", shipmentHandler.GetShipment)

	// Webhooks (called by external providers, no gateway headers)
	webhookRoutes := router.NewDomainGroup("webhooks", "/webhooks")
	webhookRoutes.POST("/payment", paymentWebhookHandler.HandlePaymentWebhook)
	webhookRoutes.POST("/carrier/:provider", carrierWebhookHandler.HandleCarrierWebhook)

	// Admin (manual sweep triggers)
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.POST("/sweeps/expiry", adminHandler.RunExpirySweep)
	adminRoutes.POST("/sweeps/autocompletion", adminHandler.RunAutoCompletionSweep)

	// Register all domain groups
	r.Register(stockRoutes).
		Register(cartRoutes).
		Register(orderRoutes).
		Register(itemRoutes).
		Register(returnRoutes).
		Register(shipmentRoutes).
		Register(webhookRoutes).
		Register(adminRoutes)

	// Register system routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
