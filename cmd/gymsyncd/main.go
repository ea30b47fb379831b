package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"

	"gym-status-client/config"
	"gym-status-client/internal/api"
	"gym-status-client/internal/db"
	"gym-status-client/internal/feed"
	"gym-status-client/internal/fetch"
	"gym-status-client/internal/history"
	"gym-status-client/internal/mirror"
	"gym-status-client/internal/notification"
	"gym-status-client/internal/token"
	"gym-status-client/internal/watch"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "gymsync ", log.LstdFlags)

	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		logger.Println(".env file loaded")
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Upstream.BaseURL == "" {
		logger.Fatalf("upstream.base_url must be configured")
	}

	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys are not configured; browser push delivery is disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Open the durable token store
	tokens, err := token.OpenBolt(cfg.Tokens.Path)
	if err != nil {
		logger.Fatalf("failed to open token store at %s: %v", cfg.Tokens.Path, err)
	}
	defer tokens.Close()

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := fetch.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.HTTPProxy, tokens)

	// A failed token refresh ends the session for every consumer at once.
	onSessionExpired := func() {
		logger.Println("Session expired; clearing stored credentials")
		if err := tokens.Clear(); err != nil {
			logger.Printf("failed to clear token store: %v", err)
		}
	}

	equipmentMirror := mirror.New(cfg.Upstream.FlashDelay)
	defer equipmentMirror.Close()

	historyStore := history.NewGormStore(gormDB)

	var notifier watch.Notifier
	if webpushOptions != nil {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
		notifier = pool
		logger.Printf("notification worker pool started with %d workers", cfg.WorkerPool.Size)
	}

	watcher := watch.New(client, cfg.Watcher.Interval, time.Duration(cfg.Watcher.WindowSeconds)*time.Second, notifier, onSessionExpired)
	go watcher.Run(ctx)
	defer watcher.Stop()

	engine := feed.New(client, equipmentMirror, historyStore, onSessionExpired)
	switch cfg.Upstream.Transport {
	case "push":
		engine.UseFeed(feed.NewPushFeed(engine, client))
		logger.Println("equipment feed: server-sent events")
	default:
		engine.UseFeed(feed.NewPollFeed(engine, cfg.Upstream.PollInterval))
		logger.Printf("equipment feed: polling every %s", cfg.Upstream.PollInterval)
	}
	go engine.Run(ctx)

	// Initialize router
	handler := api.NewHandler(engine, equipmentMirror, watcher, historyStore, webpushOptions)
	router := api.NewRouter(handler, cfg.Server.RateLimitPerSec, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
