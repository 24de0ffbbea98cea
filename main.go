package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go_screener_backend/config"
	"go_screener_backend/controllers"
	"go_screener_backend/models"
	"go_screener_backend/routes"
	"go_screener_backend/scheduler"
	"go_screener_backend/services/cache"
	"go_screener_backend/services/providers"
	"go_screener_backend/services/stockdata"
	"go_screener_backend/services/syncjobs"
)

// dbInitialized tracks whether database setup has finished, so the
// /ready probe can report readiness while init runs in the background.
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	logger.Info("==============================================")
	logger.Info("  Screener Sync Backend - Starting...")
	logger.Info("==============================================")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warnf("Config load issue: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(logger))

	// Health endpoints come up first; everything else attaches once the
	// database is ready.
	setupHealthEndpoints(router)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		logger.Infof("Server listening on 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	var jobScheduler *scheduler.Scheduler
	go func() {
		db, err := config.InitDB()
		if err != nil {
			logger.Errorf("Database connection failed: %v", err)
			logger.Warn("Service will continue in limited mode (health check only)")
			return
		}

		logger.Info("Running database migrations...")
		if err := runMigrations(); err != nil {
			logger.Errorf("Migration failed: %v", err)
			return
		}

		// Redis is optional: without it the jobs run uncached and the
		// read path always hits the database.
		var store cache.Store
		if client, err := cache.NewClient(cfg.RedisAddr, cfg.RedisDB, logger); err != nil {
			logger.Warnf("Redis unavailable, caching disabled: %v", err)
		} else {
			store = client
		}
		invalidator := cache.NewInvalidator(store, logger)

		registry := providers.NewRegistry(cfg, logger)

		seed, err := cfg.LoadSeedSymbols()
		if err != nil {
			logger.Warnf("Seed symbols unavailable: %v", err)
		}

		backfill := syncjobs.NewBulkBackfillJob(db, registry.Historical(), invalidator, logger,
			seed, cfg.BackfillBatchSize, cfg.HistoryYears)
		retry := syncjobs.NewRetryProcessor(db, registry.Historical(), invalidator, logger, cfg.HistoryYears)
		delta := syncjobs.NewDeltaSyncJob(db, registry.Historical(), invalidator, logger, cfg.DeltaBatchSize)
		rotation := syncjobs.NewRotationUpdater(db, registry.Fundamentals(), invalidator, logger,
			cfg.FundamentalsBatchSize, cfg.RotationCycleDays)
		retention := syncjobs.NewRetentionTrimmer(db, logger, cfg.HistoryYears)

		priceService := stockdata.NewPriceService(db, registry.Historical(), invalidator, logger)
		detailService := stockdata.NewDetailService(db, rotation, logger, cfg.StockDetailTTL)

		stockController := controllers.NewStockController(priceService, detailService, store, cfg, logger)
		adminController := controllers.NewAdminController(db, backfill, retry, delta, rotation, registry, logger)
		routes.SetupRoutes(router, stockController, adminController)

		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		jobScheduler, err = scheduler.New(cfg.SchedulerTimezone, delta, rotation, retry, retention, logger)
		if err != nil {
			logger.Errorf("Scheduler setup failed: %v", err)
			return
		}
		jobScheduler.Start()

		logger.Info("Application fully initialized with database")
	}()

	gracefulShutdown(server, jobScheduler, logger)
}

// runMigrations runs all database migrations
func runMigrations() error {
	db := config.DB

	if err := models.MigrateMarketModels(db); err != nil {
		return err
	}
	if err := models.MigrateFundamentalModels(db); err != nil {
		return err
	}
	return models.MigrateSyncModels(db)
}

// setupHealthEndpoints sets up liveness and readiness probes
func setupHealthEndpoints(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Screener Sync Backend",
			"version": "1.0.0",
		})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		ready := dbInitialized
		dbInitMutex.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		sqlDB, err := config.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger logs errors and slow requests, skipping health probes
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			logger.Infof("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, logger *logrus.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Infof("Received signal %v, shutting down gracefully...", sig)

	if jobScheduler != nil {
		jobScheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if config.DB != nil {
		if sqlDB, err := config.DB.DB(); err == nil {
			sqlDB.Close()
			logger.Info("Database connection closed")
		}
	}

	logger.Info("Server shutdown completed")
}
