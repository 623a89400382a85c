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

	"github.com/mohamedkhairy/squeeze-scanner/internal/alert"
	"github.com/mohamedkhairy/squeeze-scanner/internal/api"
	"github.com/mohamedkhairy/squeeze-scanner/internal/cache"
	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/data"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/notify"
	"github.com/mohamedkhairy/squeeze-scanner/internal/pubsub"
	"github.com/mohamedkhairy/squeeze-scanner/internal/scanner"
	"github.com/mohamedkhairy/squeeze-scanner/internal/scheduler"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/internal/subscription"
	"github.com/mohamedkhairy/squeeze-scanner/internal/wsgateway"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting squeeze scanner",
		logger.String("provider", cfg.MarketData.Provider),
		logger.String("exchange", cfg.MarketData.Exchange),
		logger.String("interval", cfg.MarketData.Interval),
		logger.Duration("scan_interval", cfg.Scanner.ScanInterval),
		logger.Int("port", cfg.API.Port),
	)

	ctx := context.Background()

	// Initialize Redis client (optional)
	var redisClient storage.RedisClient
	if cfg.Redis.Enabled() {
		redisClient, err = pubsub.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis client", logger.ErrorField(err))
		}
		defer redisClient.Close()
	}

	// Initialize push log (optional)
	var pushLog storage.PushLogStorage
	if cfg.Database.Enabled() {
		pgLog, err := storage.NewPostgresPushLogStorage(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to initialize push log storage", logger.ErrorField(err))
		}
		defer pgLog.Close()
		pushLog = pgLog
	}

	// Market data
	fetcher, universe := newMarketData(cfg)

	// Durable snapshot
	var snapshotStore cache.SnapshotStore = &cache.FileSnapshotStore{Path: cfg.Scanner.SnapshotPath}
	if cfg.Scanner.SnapshotBackend == "redis" {
		snapshotStore = cache.NewRedisSnapshotStore(redisClient, cfg.Redis.KeyPrefix+"snapshot", cfg.Scanner.SnapshotTTL)
	}
	snapshots := cache.NewSnapshotCache(snapshotStore, cache.SnapshotOptions{
		TTL:          cfg.Scanner.SnapshotTTL,
		StaleDefault: cfg.Scanner.StaleDefault,
	})
	if err := snapshots.Load(ctx); err != nil {
		if errors.Is(err, models.ErrSnapshotExpired) {
			logger.Info("Persisted snapshot expired, starting cold")
		} else {
			logger.Warn("Failed to restore snapshot, starting cold", logger.ErrorField(err))
		}
	}

	orch := scanner.NewOrchestrator(scanner.ConfigFrom(cfg), fetcher, universe, snapshots)

	// Notification gate
	var stateStore alert.StateStore = &alert.FileStateStore{Path: cfg.Push.StatePath}
	if cfg.Push.StateBackend == "redis" {
		stateStore = alert.NewRedisStateStore(redisClient, cfg.Redis.KeyPrefix+"notification_state", cfg.Push.StateRetention)
	}
	gate := alert.NewGate(alert.GateConfigFrom(cfg.Push), stateStore, nil)
	if err := gate.Load(ctx); err != nil {
		logger.Warn("Failed to restore notification state, starting cold", logger.ErrorField(err))
	}

	// Channels and subscriptions
	router := channel.NewRouter()
	var subs subscription.Store = subscription.NewMemoryStore()
	if redisClient != nil {
		subs = subscription.NewRedisStore(redisClient, cfg.Redis.KeyPrefix+"subs:")
	}

	// Transports
	var notifiers notify.MultiNotifier
	if cfg.Push.LogNotifier {
		notifiers = append(notifiers, notify.LogNotifier{})
	}
	var hub *wsgateway.Hub
	if cfg.WSGateway.Enabled {
		hub = wsgateway.NewHub(cfg.WSGateway, wsgateway.NewAuthManager(cfg.WSGateway.JWTSecret), subs, router)
		if err := hub.Start(); err != nil {
			logger.Fatal("Failed to start WebSocket hub", logger.ErrorField(err))
		}
		notifiers = append(notifiers, hub)
	}
	if cfg.Push.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Push.WebhookURL, cfg.Push.WebhookTimeout))
	}
	if len(notifiers) == 0 {
		logger.Warn("No notification transport configured, falling back to log notifier")
		notifiers = append(notifiers, notify.LogNotifier{})
	}

	// Scheduler and post-scan hooks
	dispatcherConfig := alert.DispatcherConfigFrom(cfg.Push)
	sched := scheduler.NewScheduler(scheduler.Config{Interval: cfg.Scanner.ScanInterval}, orch)
	orch.SetRefresher(sched)
	sched.RegisterHook(alert.NewDispatcher(dispatcherConfig, router, subs, gate, notifiers, pushLog))
	if redisClient != nil {
		sched.RegisterHook(alert.NewEventPublisher(redisClient, cfg.Redis.EventChannel, router, dispatcherConfig.Triggers))
	}

	// HTTP surface
	deps := api.RouterDeps{
		Scans:         orch,
		Trigger:       sched,
		Channels:      router,
		Subscriptions: subs,
		PushLog:       pushLog,
	}
	if hub != nil {
		deps.WebSocket = hub
	}
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: api.NewRouter(cfg.API, deps),
	}

	go func() {
		logger.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", logger.ErrorField(err))
		}
	}()

	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", logger.ErrorField(err))
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down squeeze scanner")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", logger.ErrorField(err))
	}

	// waits for the in-flight scan and its hooks
	sched.Stop()
	orch.WaitRefresh()
	if hub != nil {
		hub.Stop()
	}
	if err := gate.Persist(shutdownCtx); err != nil {
		logger.Error("Failed to persist notification state", logger.ErrorField(err))
	}

	logger.Info("Squeeze scanner stopped")
}

func newMarketData(cfg *config.Config) (data.Fetcher, data.UniverseSupplier) {
	fallback := cfg.MarketData.FallbackSymbols
	if len(cfg.MarketData.Symbols) > 0 {
		return fetcherFor(cfg, cfg.MarketData.Symbols), data.StaticUniverse(cfg.MarketData.Symbols)
	}

	switch cfg.MarketData.Provider {
	case "http":
		f := data.NewHTTPFetcher(cfg.MarketData)
		return f, &data.FallbackUniverse{Primary: f, Fallback: fallback}
	default:
		f := data.NewMockFetcher(cfg.MarketData.MockSeed, fallback)
		return f, &data.FallbackUniverse{Primary: f, Fallback: fallback}
	}
}

func fetcherFor(cfg *config.Config, symbols []string) data.Fetcher {
	if cfg.MarketData.Provider == "http" {
		return data.NewHTTPFetcher(cfg.MarketData)
	}
	return data.NewMockFetcher(cfg.MarketData.MockSeed, symbols)
}
