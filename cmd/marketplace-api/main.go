package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-marketplace/internal/api/handlers"
	"auction-marketplace/internal/config"
	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/infrastructure/leader"
	"auction-marketplace/internal/infrastructure/mysql"
	"auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer logger.Sync(log)
	log.Info("Starting marketplace API", "config", cfg.GetConfigString())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
	defer initCancel()

	rdb, err := utils.InitializeRedis(initCtx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	store := redis.NewDocumentStore(rdb, domain.Indexes, log)
	defer store.Close()

	eventPublisher, _, closeEvents, err := utils.InitializeEvents(cfg, rdb, log)
	if err != nil {
		log.Error("Failed to initialize change transport", "transport", cfg.Relay.Transport, "error", err)
		os.Exit(1)
	}
	defer closeEvents()

	// Initialize services
	batches := services.NewBatchFetcher(store, cfg.Query.BatchSize, log)
	auctionManager := services.NewAuctionManager(store, eventPublisher, cfg.Lifecycle.CascadeDeleteBids, log)
	bidEngine := services.NewBidEngine(store, eventPublisher, batches, cfg.Bidding.MaxAttempts, cfg.Bidding.RetryBackoff, log)
	queries := services.NewQueryService(store, batches, cfg.Query.DefaultPageSize, cfg.Query.MaxPageSize, log)
	profiles := services.NewProfileService(store, eventPublisher, log)
	auctionManager.SetRetry(cfg.Lifecycle.MaxAttempts, cfg.Lifecycle.RetryBackoff)
	profiles.SetRetry(cfg.Lifecycle.MaxAttempts, cfg.Lifecycle.RetryBackoff)

	// Only the elected instance sweeps for ended auctions
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
	sweeper := services.NewAuctionSweeper(store, eventPublisher, leaderElection, cfg.Instance.ID, cfg.Lifecycle.SweepSchedule, log)
	if err := sweeper.Start(ctx); err != nil {
		log.Error("Failed to start auction sweeper", "error", err)
		os.Exit(1)
	}

	var db *sql.DB
	var auditHandler *handlers.AuditHandler
	if cfg.MySQL.ArchiveEnabled {
		db, err = utils.InitializeMysql(initCtx, cfg.MySQL)
		if err != nil {
			log.Error("Failed to connect to MySQL", "error", err)
			os.Exit(1)
		}
		if err := mysql.Migrate(db); err != nil {
			log.Error("Failed to migrate archive schema", "error", err)
			os.Exit(1)
		}
		log.Info("Connected to MySQL archive")
		// writes come from cmd/archive-service; the API only reads the archive
		auditHandler = handlers.NewAuditHandler(mysql.NewMySQLBidArchive(db), mysql.NewMySQLAuctionArchive(db))
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORS.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			handlers.HeaderUserID,
			handlers.HeaderUserEmail,
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	api := e.Group("/api/v1")
	handlers.NewAuctionHandler(auctionManager, queries, log).RegisterRoutes(api)
	handlers.NewBidHandler(bidEngine, profiles, log).RegisterRoutes(api)
	handlers.NewProfileHandler(profiles, queries, bidEngine, log).RegisterRoutes(api)
	if auditHandler != nil {
		auditHandler.RegisterRoutes(api)
	}

	e.GET("/health", func(c echo.Context) error {
		status := http.StatusOK
		storeStatus := "ok"
		if err := store.Ping(c.Request().Context()); err != nil {
			status = http.StatusServiceUnavailable
			storeStatus = "unavailable"
		}
		return c.JSON(status, map[string]interface{}{
			"status":    storeStatus,
			"service":   "marketplace-api",
			"instance":  cfg.Instance.ID,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting marketplace API server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down marketplace API...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	cancel()
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}

	log.Info("Marketplace API stopped")
}
