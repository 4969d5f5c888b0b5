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

	"auction-marketplace/internal/api/handlers"
	"auction-marketplace/internal/api/middleware"
	"auction-marketplace/internal/config"
	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/infrastructure/websocket"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"

	"github.com/gorilla/mux"
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

	store := redis.NewDocumentStore(rdb, domain.Indexes, log)
	defer store.Close()

	eventPublisher, eventSubscriber, closeEvents, err := utils.InitializeEvents(cfg, rdb, log)
	if err != nil {
		log.Error("Failed to initialize change transport", "transport", cfg.Relay.Transport, "error", err)
		os.Exit(1)
	}
	defer closeEvents()

	batches := services.NewBatchFetcher(store, cfg.Query.BatchSize, log)
	auctionManager := services.NewAuctionManager(store, eventPublisher, cfg.Lifecycle.CascadeDeleteBids, log)
	bidEngine := services.NewBidEngine(store, eventPublisher, batches, cfg.Bidding.MaxAttempts, cfg.Bidding.RetryBackoff, log)
	profiles := services.NewProfileService(store, eventPublisher, log)
	auctionManager.SetRetry(cfg.Lifecycle.MaxAttempts, cfg.Lifecycle.RetryBackoff)
	profiles.SetRetry(cfg.Lifecycle.MaxAttempts, cfg.Lifecycle.RetryBackoff)

	// Changes committed by any instance reach local sockets through the relay
	relay := services.NewChangeRelay(auctionManager, bidEngine, profiles, log)
	go func() {
		if err := relay.Start(ctx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Change relay stopped", "error", err)
		}
	}()

	connManager := websocket.NewConnectionManager(log)
	wsHandler := websocket.NewWebSocketHandler(bidEngine, auctionManager, profiles, relay, connManager, log)

	router := mux.NewRouter()
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins, log))
	handlers.NewLiveHandlers(wsHandler).RegisterRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Live.Host, cfg.Live.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting live service", "address", server.Addr, "transport", cfg.Relay.Transport)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down live service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// hijacked websocket connections are not tracked by Shutdown
	if err := connManager.CloseAll(); err != nil {
		log.Error("Failed to close websocket connections", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	cancel()

	log.Info("Live service stopped")
}
