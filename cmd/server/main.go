package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coinfolio/internal/config"
	"github.com/coinfolio/internal/handler"
	"github.com/coinfolio/internal/middleware"
	"github.com/coinfolio/internal/models"
	"github.com/coinfolio/internal/pricefeed"
	"github.com/coinfolio/internal/repository"
	"github.com/coinfolio/internal/service"
	"github.com/coinfolio/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	if err := middleware.InitLogger("logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb := initRedis(cfg)

	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db)
	ledgerStore := repository.NewStore(db)

	// Live prices are optional; stats fall back to realized figures only
	var feed *pricefeed.Feed
	var prices service.PriceSource
	if cfg.Pricefeed.Enabled {
		feed = pricefeed.New(rdb, cfg.Pricefeed.Pairs)
		if err := feed.Start(context.Background()); err != nil {
			log.Printf("Warning: failed to start pricefeed: %v", err)
			feed = nil
		} else {
			prices = feed
		}
	}

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWT)
	portfolioService := service.NewPortfolioService(portfolioRepo)
	ledgerService := service.NewLedgerService(ledgerStore)
	statsService := service.NewStatsService(ledgerStore, rdb, prices)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	portfolioHandler := handler.NewPortfolioHandler(portfolioService, statsService)
	tradeHandler := handler.NewTradeHandler(ledgerService)
	feeHandler := handler.NewFeeHandler()

	router := gin.Default()
	router.Use(middleware.RequestLoggerMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
		}
		if feed != nil {
			status["pricefeed"] = feed.IsConnected()
		}
		c.JSON(http.StatusOK, status)
	})

	v1 := router.Group("/api/v1")
	{
		// Public routes
		authHandler.RegisterRoutes(v1)
		feeHandler.RegisterRoutes(v1)

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(authService))
		portfolioHandler.RegisterRoutes(protected)
		tradeHandler.RegisterRoutes(protected)
	}

	// Background stats snapshots keep the cache warm for active portfolios
	statsWorker := worker.NewStatsWorker(
		statsService,
		portfolioRepo,
		time.Duration(cfg.Worker.StatsIntervalSeconds)*time.Second,
	)
	go statsWorker.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	statsWorker.Stop()
	if feed != nil {
		feed.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := rdb.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}

	log.Println("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Portfolio{},
		&models.Allocation{},
		&models.InitialCoin{},
		&models.Trade{},
	)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
