package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sepatuku/inventory_api/internal/cache"
	"github.com/sepatuku/inventory_api/internal/config"
	"github.com/sepatuku/inventory_api/internal/database"
	"github.com/sepatuku/inventory_api/internal/feed"
	"github.com/sepatuku/inventory_api/internal/handler"
	"github.com/sepatuku/inventory_api/internal/middleware"
	"github.com/sepatuku/inventory_api/internal/repository"
	"github.com/sepatuku/inventory_api/internal/service"
	"github.com/sepatuku/inventory_api/internal/worker"
	"github.com/sepatuku/inventory_api/pkg/ginee"
)

// main is the application entrypoint for the inventory reconciliation API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting inventory api")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	jobLock := cache.NewJobLock(redisClient)
	stockCache := cache.NewStockCache(redisClient)

	// 4. Initialize feed adapters
	sheetClient := feed.NewSheetClient(cfg.Feed.SheetURL, cfg.Feed.Timeout)
	gineeClient := ginee.NewClient(ginee.Config{
		BaseURL:   cfg.Ginee.BaseURL,
		AccessKey: cfg.Ginee.AccessKey,
		SecretKey: cfg.Ginee.SecretKey,
		Country:   cfg.Ginee.Country,
	})

	// 5. Initialize repositories
	productRepo := repository.NewProductRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	txManager := database.NewTxManager(db)

	// 6. Initialize services
	syncSvc := service.NewSyncService(sheetClient, gineeClient, productRepo, syncLogRepo, txManager, cfg.Sync.ChunkSize, cfg.Sync.Guard)
	checkoutSvc := service.NewCheckoutService(productRepo, orderRepo, txManager, stockCache)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:  handler.NewHealthHandler(db, redisClient),
		Product: handler.NewProductHandler(productRepo, checkoutSvc),
		Sync:    handler.NewSyncHandler(syncSvc),
		Order:   handler.NewOrderHandler(checkoutSvc),
	}

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers)

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start workers
	go worker.NewSyncWorker(syncSvc, jobLock, cfg.Sync.Interval, cfg.Sync.LockTTL).Start(ctx)
	go worker.NewRetentionWorker(syncLogRepo, cfg.Sync.RetentionInterval, cfg.Sync.RetentionDays).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Product *handler.ProductHandler
	Sync    *handler.SyncHandler
	Order   *handler.OrderHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	v1 := router.Group("/v1")
	{
		v1.GET("/products", handlers.Product.GetProducts)
		v1.GET("/products/:sku", handlers.Product.GetProduct)
		v1.GET("/products/:sku/stock", handlers.Product.GetStock)

		v1.POST("/orders", handlers.Order.CreateOrder)

		v1.POST("/sync/preview", handlers.Sync.Preview)
		v1.POST("/sync/apply", handlers.Sync.Apply)
		v1.GET("/sync/status", handlers.Sync.Status)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
