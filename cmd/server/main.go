package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wms/backend/internal/application/stock"
	"github.com/wms/backend/internal/infrastructure/config"
	"github.com/wms/backend/internal/infrastructure/event"
	"github.com/wms/backend/internal/infrastructure/locking"
	"github.com/wms/backend/internal/infrastructure/logger"
	"github.com/wms/backend/internal/infrastructure/persistence"
	"github.com/wms/backend/internal/infrastructure/scheduler"
	"github.com/wms/backend/internal/interfaces/http/handler"
	"github.com/wms/backend/internal/interfaces/http/middleware"
	"github.com/wms/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting WMS Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := gormlogger.Silent
	if !cfg.App.IsProduction() {
		gormLogLevel = gormlogger.Warn
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Stock key locking. Redis locks coordinate multiple instances; the
	// in-process mutex is enough for a single instance.
	var locker stock.KeyedLocker
	if cfg.Locking.UseRedis {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		locker = locking.NewRedisLocker(redisClient, locking.RedisLockerConfig{
			TTL:         cfg.Locking.TTL,
			WaitTimeout: cfg.Locking.WaitTimeout,
		})
		log.Info("Using Redis stock key locks", zap.String("addr", cfg.Redis.Addr()))
	} else {
		locker = locking.NewKeyedMutex(cfg.Locking.WaitTimeout)
	}

	// Initialize repositories
	stockLineRepo := persistence.NewGormStockLineRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	costLayerRepo := persistence.NewGormCostLayerRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	pickingRepo := persistence.NewGormPickingRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Initialize event bus
	eventBus := event.NewInMemoryEventBus(log)

	// Initialize application services
	ledgerService := stock.NewLedgerService(
		stockLineRepo, movementRepo, costLayerRepo,
		txScope, locker, eventBus, log,
		cfg.Costing.Method(),
	)
	valuationService := stock.NewValuationService(costLayerRepo, stockLineRepo, movementRepo, log)
	reservationService := stock.NewReservationService(
		reservationRepo, stockLineRepo,
		txScope, locker, eventBus, log,
		cfg.Reservation.DefaultTTL,
	)
	expiryService := stock.NewReservationExpiryService(reservationRepo, eventBus, log, cfg.Reservation.SweepBatchSize)
	pickingService := stock.NewPickingService(
		pickingRepo, stockLineRepo,
		ledgerService, reservationService,
		txScope, locker, log,
	)

	// Start the reservation expiry sweep
	expiryScheduler := scheduler.NewReservationExpiryScheduler(expiryService, log, scheduler.ReservationExpirySchedulerConfig{
		Enabled:       cfg.Reservation.AutoExpire,
		SweepInterval: cfg.Reservation.SweepInterval,
	})
	if err := expiryScheduler.Start(context.Background()); err != nil {
		log.Fatal("Failed to start expiry scheduler", zap.Error(err))
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := expiryScheduler.Stop(stopCtx); err != nil {
			log.Error("Error stopping expiry scheduler", zap.Error(err))
		}
	}()

	// Initialize handlers
	stockHandler := handler.NewStockHandler(ledgerService, valuationService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	pickingHandler := handler.NewPickingHandler(pickingService)

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))

	// Health check endpoint (outside API versioning, no tenant required)
	engine.GET("/health", healthHandler(db))

	// All API routes are tenant scoped
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.Tenant())

	stockRoutes := router.NewDomainGroup("stock", "/stock")
	stockRoutes.POST("/movements", stockHandler.PostMovement)
	stockRoutes.GET("/movements", stockHandler.GetMovements)
	stockRoutes.GET("/on-hand", stockHandler.GetOnHand)
	stockRoutes.GET("/value", stockHandler.GetValue)
	stockRoutes.GET("/layers", stockHandler.GetLayers)
	stockRoutes.GET("/reconcile", stockHandler.Reconcile)
	stockRoutes.GET("/atp", reservationHandler.GetATP)
	r.Register(stockRoutes)

	reservationRoutes := router.NewDomainGroup("reservations", "/reservations")
	reservationRoutes.POST("", reservationHandler.Reserve)
	reservationRoutes.DELETE("/:id", reservationHandler.Release)
	reservationRoutes.DELETE("/by-reference/:referenceId", reservationHandler.ReleaseByReference)
	r.Register(reservationRoutes)

	pickingRoutes := router.NewDomainGroup("picking", "/picking-lists")
	pickingRoutes.POST("", pickingHandler.CreatePickingList)
	pickingRoutes.GET("/:id", pickingHandler.GetPickingList)
	pickingRoutes.POST("/:id/assign", pickingHandler.AssignPickingList)
	pickingRoutes.POST("/:id/complete", pickingHandler.CompletePickingList)
	pickingRoutes.POST("/:id/cancel", pickingHandler.CancelPickingList)
	r.Register(pickingRoutes)

	taskRoutes := router.NewDomainGroup("picking-tasks", "/picking-tasks")
	taskRoutes.PATCH("/:id", pickingHandler.UpdateTask)
	r.Register(taskRoutes)

	r.Setup()

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
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
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
