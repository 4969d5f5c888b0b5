package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-marketplace/internal/config"
	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/infrastructure/mysql"
	"auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer logger.Sync(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
	defer initCancel()

	rdb, err := utils.InitializeRedis(initCtx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	db, err := utils.InitializeMysql(initCtx, cfg.MySQL)
	if err != nil {
		log.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := mysql.Migrate(db); err != nil {
		log.Error("Failed to migrate archive schema", "error", err)
		os.Exit(1)
	}

	store := redis.NewDocumentStore(rdb, domain.Indexes, log)
	defer store.Close()

	_, eventSubscriber, closeEvents, err := utils.InitializeEvents(cfg, rdb, log)
	if err != nil {
		log.Error("Failed to initialize change transport", "transport", cfg.Relay.Transport, "error", err)
		os.Exit(1)
	}
	defer closeEvents()

	// read-only use: these services never commit, so they get no publisher
	batches := services.NewBatchFetcher(store, cfg.Query.BatchSize, log)
	auctionManager := services.NewAuctionManager(store, nil, cfg.Lifecycle.CascadeDeleteBids, log)
	bidEngine := services.NewBidEngine(store, nil, batches, cfg.Bidding.MaxAttempts, cfg.Bidding.RetryBackoff, log)

	archiver := services.NewArchiver(
		mysql.NewMySQLBidArchive(db),
		mysql.NewMySQLAuctionArchive(db),
		auctionManager,
		bidEngine,
		log,
	)

	go func() {
		if err := archiver.Start(ctx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Archive service failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down archive service...")
	cancel()
	log.Info("Archive service stopped")
}
