package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/internal/subscription"
)

// RouterDeps are the collaborators mounted by NewRouter. Trigger, PushLog
// and WebSocket are optional.
type RouterDeps struct {
	Scans         ScanService
	Trigger       ScanTrigger
	Channels      *channel.Router
	Subscriptions subscription.Store
	PushLog       storage.PushLogStorage
	WebSocket     http.Handler
}

// NewRouter builds the HTTP handler with every route and the middleware chain
func NewRouter(cfg config.APIConfig, deps RouterDeps) http.Handler {
	if deps.Scans == nil || deps.Channels == nil || deps.Subscriptions == nil {
		panic("router dependencies cannot be nil")
	}

	snapshotHandler := NewSnapshotHandler(deps.Scans, deps.Trigger)
	channelHandler := NewChannelHandler(deps.Channels)
	subscriptionHandler := NewSubscriptionHandler(deps.Subscriptions, deps.Channels)
	pushHandler := NewPushHandler(deps.PushLog)

	router := mux.NewRouter()

	// Route-aware middleware runs after matching so metrics see the template
	router.Use(
		mux.MiddlewareFunc(LoggingMiddleware()),
		mux.MiddlewareFunc(AuthMiddleware(cfg.JWTSecret)),
	)

	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Snapshot endpoints
	v1.HandleFunc("/snapshot", snapshotHandler.GetSnapshot).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}", snapshotHandler.GetSymbol).Methods("GET")
	v1.HandleFunc("/scan", snapshotHandler.TriggerScan).Methods("POST")

	// Channel and subscription endpoints
	v1.HandleFunc("/channels", channelHandler.ListChannels).Methods("GET")
	v1.HandleFunc("/users/{userId}/subscriptions", subscriptionHandler.ListSubscriptions).Methods("GET")
	v1.HandleFunc("/users/{userId}/subscriptions", subscriptionHandler.Subscribe).Methods("POST")
	v1.HandleFunc("/users/{userId}/subscriptions/{channelId}", subscriptionHandler.Subscribe).Methods("PUT")
	v1.HandleFunc("/users/{userId}/subscriptions/{channelId}", subscriptionHandler.Unsubscribe).Methods("DELETE")

	// Push history
	v1.HandleFunc("/pushes", pushHandler.ListPushes).Methods("GET")

	// Health check endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := deps.Scans.Latest(); !ok {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	if deps.WebSocket != nil {
		router.Handle("/ws", deps.WebSocket)
	}

	middlewares := ChainMiddleware(
		CORSMiddleware(cfg.CORSOrigins),
		TracingMiddleware(),
		ErrorHandlingMiddleware(),
		RateLimitMiddleware(cfg.RateLimitRPS),
	)
	return middlewares(router)
}
