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

	cartapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/cart"
	catalogapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/catalog"
	checkoutapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/checkout"
	imagingapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/broadcast"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/cache"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/config"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/event"
	infraimaging "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/logger"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/payment"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/persistence"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/scheduler"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/storage"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/telemetry"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/handler"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/middleware"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//	@title			Gifted Solutions Storefront API
//	@version		1.0
//	@description	Electronics storefront: product catalog, image resolution, cart and MoMo checkout.

//	@host		localhost:8080
//	@BasePath	/api/v1

// objectStore is what the storefront needs from object storage: image
// uploads, URL addressing for the resolver and reads for the legacy export
type objectStore interface {
	catalogapp.ObjectStorage
	imagingapp.ObjectLocator
	storage.ObjectGetter
}

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
		_ = log.Sync()
	}()

	instanceID := cfg.App.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("instance_id", instanceID),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.TracerConfig{
		Enabled:           cfg.Telemetry.TracingEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracing", zap.Error(err))
		}
	}()

	// Metrics are optional; a nil registry records nothing
	var metrics *telemetry.StoreMetrics
	if cfg.Telemetry.MetricsEnabled {
		metrics = telemetry.NewStoreMetrics(telemetry.MetricsConfig{
			Namespace:         cfg.Telemetry.Namespace,
			RuntimeCollectors: true,
		})
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.SlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBMetrics(db.DB, metrics, cfg.Telemetry.SlowQueryThresh, log); err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = tracer.IsEnabled()
	dbTracing.SlowQueryThresh = cfg.Telemetry.SlowQueryThresh
	dbTracing.LogFullSQL = cfg.App.Env == "development"
	if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	productRepo := persistence.NewGormProductRepository(db.DB, persistence.WithRepositoryLogger(log))

	// Redis backs the product snapshot and, when selected, the sync channel
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Object storage
	objects, err := newObjectStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	broadcaster, err := newBroadcaster(cfg, instanceID, redisClient, log)
	if err != nil {
		log.Fatal("Failed to initialize product sync", zap.Error(err))
	}
	defer func() {
		if err := broadcaster.Close(); err != nil {
			log.Error("Error closing product sync", zap.Error(err))
		}
	}()

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Product store
	storeOpts := []catalogapp.ProductStoreOption{
		catalogapp.WithSnapshotStore(cache.NewSnapshotStore(redisClient, cfg.Sync, log)),
		catalogapp.WithBroadcaster(broadcaster),
		catalogapp.WithLogger(log),
		catalogapp.WithMetrics(metrics),
	}
	if cfg.Legacy.Enabled && cfg.Storage.Enabled {
		storeOpts = append(storeOpts, catalogapp.WithLegacySource(
			storage.NewLegacyProductSource(objects, cfg.Legacy.Key, log),
		))
	}
	productStore := catalogapp.NewProductStore(productRepo, eventBus, catalogapp.ProductStoreConfig{
		InstanceID:     instanceID,
		ReloadDelay:    cfg.Sync.ReloadDelay,
		ListenDebounce: cfg.Sync.ListenDebounce,
	}, storeOpts...)
	defer productStore.Close()

	if err := productStore.WarmStart(ctx); err != nil {
		log.Warn("No product snapshot to warm start from", zap.Error(err))
	}
	if err := productStore.LoadProducts(ctx, false); err != nil {
		log.Error("Initial product load failed, serving an empty catalog until the next reload", zap.Error(err))
	}
	go func() {
		if err := productStore.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Product sync listener stopped", zap.Error(err))
		}
	}()

	// Image resolution
	checker := infraimaging.NewHTTPChecker(
		infraimaging.WithCheckRateLimit(cfg.Images.CheckRatePerSecond, cfg.Images.CheckBurst),
		infraimaging.WithCheckLogger(log),
	)
	resolver := imagingapp.NewResolver(
		imagingapp.DefaultStrategies(objects, cfg.Images.ProxyBaseURL, cfg.Storage.PresignExpiration),
		imagingapp.NewPlaceholders(cfg.Images.PlaceholderBaseURL),
		checker,
		imagingapp.ResolverConfig{
			Timeouts: imaging.TierTimeouts{
				Primary:   cfg.Images.PrimaryTimeout,
				Secondary: cfg.Images.SecondaryTimeout,
				Fallback:  cfg.Images.FallbackTimeout,
			},
			MaxAttempts:    cfg.Images.MaxAttempts,
			RetryBaseDelay: cfg.Images.RetryBaseDelay,
		},
		imagingapp.WithResolverLogger(log),
		imagingapp.WithResolverMetrics(metrics),
	)
	imageCache, err := imagingapp.NewProxyCache(resolver, cfg.Images.CacheSize,
		imagingapp.WithCacheLogger(log),
		imagingapp.WithCacheMetrics(metrics),
	)
	if err != nil {
		log.Fatal("Failed to create image cache", zap.Error(err))
	}
	coordinator := imagingapp.NewRefreshCoordinator(imageCache, imagingapp.NewDisplayRegistry(), imagingapp.RefreshConfig{
		Mobile:          cfg.Images.Mobile,
		Interval:        cfg.Images.RefreshInterval,
		BatchSize:       cfg.Images.RefreshBatchSize,
		BatchDelay:      cfg.Images.RefreshBatchDelay,
		NetworkDebounce: cfg.Images.NetworkDebounce,
	},
		imagingapp.WithCoordinatorLogger(log),
		imagingapp.WithCoordinatorMetrics(metrics),
	)
	defer coordinator.Close()
	productStore.Subscribe(coordinator)
	go func() {
		if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Image refresh loop stopped", zap.Error(err))
		}
	}()

	// Cart and checkout
	carts := cartapp.NewService(productStore, log)

	gateway, err := payment.NewMomoGatewayAdapter(cfg.Payment, payment.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}
	machine := checkoutapp.NewMachine(gateway, checkoutapp.Config{
		PollInterval: cfg.Checkout.PollInterval,
		PollTimeout:  cfg.Checkout.PollTimeout,
		Currency:     cfg.Payment.Currency,
	},
		checkoutapp.WithLogger(log),
		checkoutapp.WithMetrics(metrics),
		checkoutapp.WithCompletion(func(snap checkout.Snapshot) {
			log.Info("Order paid",
				zap.String("order_id", snap.OrderID),
				zap.String("transaction_id", snap.TransactionID),
				zap.String("amount", snap.Amount),
			)
		}),
	)
	sessions := checkoutapp.NewManager(machine, log)
	defer sessions.CloseAll()

	payLimiter := middleware.NewRateLimiter(cfg.Checkout.PayLimit, cfg.Checkout.PayWindow)
	var payClaims middleware.ClaimStore
	if redisClient != nil {
		payClaims = cache.NewRedisClaimStore(redisClient, cache.DefaultClaimPrefix)
	} else {
		memClaims := cache.NewMemoryClaimStore()
		defer func() { _ = memClaims.Close() }()
		payClaims = memClaims
	}

	// Housekeeping
	housekeeping := scheduler.NewScheduler(log)
	tasks := []scheduler.Task{
		{
			Name:     "idle-carts",
			Interval: cfg.Checkout.PruneInterval,
			Run: func(_ context.Context, now time.Time) (int, error) {
				return carts.Prune(now.Add(-cfg.Checkout.CartTTL)), nil
			},
		},
		{
			Name:     "idle-checkout-sessions",
			Interval: cfg.Checkout.PruneInterval,
			Run: func(_ context.Context, now time.Time) (int, error) {
				return sessions.Prune(now.Add(-cfg.Checkout.SessionTTL)), nil
			},
		},
		{
			Name:     "idle-images",
			Interval: cfg.Checkout.PruneInterval,
			Run: func(_ context.Context, now time.Time) (int, error) {
				return coordinator.Registry().PruneIdle(now.Add(-cfg.Images.IdleTTL)), nil
			},
		},
		{
			Name:     "pay-rate-limit",
			Interval: cfg.Checkout.PruneInterval,
			Run: func(context.Context, time.Time) (int, error) {
				return payLimiter.Sweep(), nil
			},
		},
	}
	for _, task := range tasks {
		if err := housekeeping.Add(task); err != nil {
			log.Fatal("Failed to schedule housekeeping", zap.String("task", task.Name), zap.Error(err))
		}
	}
	if err := housekeeping.Start(ctx); err != nil {
		log.Fatal("Failed to start housekeeping", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := housekeeping.Stop(stopCtx); err != nil {
			log.Error("Error stopping housekeeping", zap.Error(err))
		}
	}()

	// HTTP handlers
	var images *catalogapp.ImageLibrary
	if cfg.Storage.Enabled {
		images = catalogapp.NewImageLibrary(objects, cfg.Storage.MaxUploadSize, log)
	}
	checks := []handler.HealthCheck{{Name: "database", Check: db.Ping}}
	if redisClient != nil {
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	handlers := handler.Handlers{
		Products: handler.NewProductHandler(productStore, images),
		Images:   handler.NewImageHandler(imageCache, coordinator),
		Cart:     handler.NewCartHandler(carts),
		Checkout: handler.NewCheckoutHandler(sessions, carts),
		System:   handler.NewSystemHandler(cfg.App.Name, productStore, checks...),
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to setup validator", zap.Error(err))
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	// Middleware order: request id first so every later log line carries
	// it, then the server span so the request logger can pick up trace_id
	engine.Use(
		logger.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracer.IsEnabled(),
		}),
		middleware.SpanAttributes(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			Metrics:   metrics,
			SkipPaths: []string{cfg.Telemetry.MetricsPath, "/health"},
		}),
	)

	engine.GET("/health", handlers.System.Health)
	if metrics != nil {
		engine.GET(cfg.Telemetry.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	r := router.NewRouter(engine)
	for _, group := range handlers.DomainGroups(handler.RouteOptions{
		Pay: []gin.HandlerFunc{
			middleware.RateLimit(payLimiter),
			middleware.Idempotency(payClaims, cfg.Checkout.SessionTTL),
		},
	}) {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// background loops stop before the deferred closes run
	stop()

	log.Info("Server exited gracefully")
}

// newObjectStore returns the S3 bucket when storage is enabled and an
// in-memory store otherwise
func newObjectStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (objectStore, error) {
	if !cfg.Storage.Enabled {
		log.Warn("Object storage disabled, image uploads are unavailable")
		return storage.NewMemoryObjectStorage(cfg.Storage.PublicBaseURL), nil
	}

	s3Store, err := storage.NewS3ObjectStorage(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		return nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s3Store.EnsureBucket(ensureCtx); err != nil {
		return nil, err
	}
	log.Info("Object storage ready", zap.String("bucket", s3Store.Bucket()))
	return s3Store, nil
}

// newBroadcaster selects the cross-instance product sync transport
func newBroadcaster(cfg *config.Config, instanceID string, client *redis.Client, log *zap.Logger) (catalog.Broadcaster, error) {
	switch cfg.Sync.Transport {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("sync transport redis requires redis.enabled")
		}
		return cache.NewRedisBroadcaster(client,
			cache.WithBroadcastChannel(catalog.SyncChannel),
			cache.WithBroadcastLogger(log),
		), nil
	case "kafka":
		return broadcast.NewKafkaBroadcaster(cfg.Kafka, instanceID, log)
	default:
		log.Info("Product sync limited to this process")
		return cache.NewMemoryHub().Join(), nil
	}
}
