package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/scanner"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/internal/subscription"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// ScanService is the scan collaborator behind the snapshot endpoints.
type ScanService interface {
	Ranked(ctx context.Context) (models.RankedSnapshot, bool, error)
	Latest() (models.RankedSnapshot, bool)
	Analyze(ctx context.Context, symbol string) (models.ScanResult, bool, error)
}

// ScanTrigger runs an out-of-band scan; it reports models.ErrScanInProgress
// when a scan is already running.
type ScanTrigger interface {
	RunOnce(ctx context.Context) (bool, error)
}

// SnapshotHandler serves the ranked snapshot and single-symbol analysis
type SnapshotHandler struct {
	scans   ScanService
	trigger ScanTrigger
}

// NewSnapshotHandler creates a new snapshot handler. trigger may be nil.
func NewSnapshotHandler(scans ScanService, trigger ScanTrigger) *SnapshotHandler {
	return &SnapshotHandler{scans: scans, trigger: trigger}
}

// GetSnapshot handles GET /api/v1/snapshot
//
// With stale=true (the default) a stale snapshot is served while a refresh
// runs in the background; with stale=false only a fresh one is served.
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	allowStale := true
	if v := r.URL.Query().Get("stale"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "stale must be true or false")
			return
		}
		allowStale = b
	}

	snap, stale, err := h.scans.Ranked(r.Context())
	if err != nil {
		logger.WithContext(r.Context()).Warn("Snapshot unavailable", logger.ErrorField(err))
		respondWithError(w, http.StatusServiceUnavailable, "Snapshot not available yet")
		return
	}
	if stale && !allowStale {
		respondWithError(w, http.StatusServiceUnavailable, "Snapshot is stale, refresh in progress")
		return
	}

	w.Header().Set("X-Snapshot-Stale", strconv.FormatBool(stale))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snap,
		"stale":    stale,
		"count":    len(snap.List),
	})
}

// GetSymbol handles GET /api/v1/symbols/{symbol}
func (h *SnapshotHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	result, cached, err := h.scans.Analyze(r.Context(), symbol)
	switch {
	case errors.Is(err, models.ErrInvalidSymbol):
		respondWithError(w, http.StatusBadRequest, "Invalid symbol")
		return
	case errors.Is(err, scanner.ErrNoUsableData), errors.Is(err, models.ErrNoData):
		respondWithError(w, http.StatusNotFound, "No market data for symbol")
		return
	case err != nil:
		logger.WithContext(r.Context()).Warn("Symbol analysis failed",
			logger.String("symbol", symbol),
			logger.ErrorField(err),
		)
		respondWithError(w, http.StatusBadGateway, "Market data unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"result": result,
		"cached": cached,
	})
}

// TriggerScan handles POST /api/v1/scan
func (h *SnapshotHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		respondWithError(w, http.StatusNotImplemented, "Manual scans are disabled")
		return
	}

	// the scan outlives the request
	_, err := h.trigger.RunOnce(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, models.ErrScanInProgress):
		respondWithError(w, http.StatusConflict, "Scan already in progress")
		return
	case err != nil:
		respondWithError(w, http.StatusBadGateway, "Scan failed: "+err.Error())
		return
	}

	snap, _ := h.scans.Latest()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"generatedAt": snap.GeneratedAt,
		"count":       len(snap.List),
	})
}

// ChannelHandler serves the channel catalog
type ChannelHandler struct {
	router *channel.Router
}

// NewChannelHandler creates a new channel handler
func NewChannelHandler(router *channel.Router) *ChannelHandler {
	return &ChannelHandler{router: router}
}

// ListChannels handles GET /api/v1/channels
func (h *ChannelHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.router.Channels()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"channels": channels,
		"count":    len(channels),
	})
}

// SubscriptionHandler manages user channel subscriptions
type SubscriptionHandler struct {
	subs   subscription.Store
	router *channel.Router
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subs subscription.Store, router *channel.Router) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, router: router}
}

// ListSubscriptions handles GET /api/v1/users/{userId}/subscriptions
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUser(w, r)
	if !ok {
		return
	}

	ids, err := h.subs.GetUserSubscriptions(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve subscriptions")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   userID,
		"channels": ids,
	})
}

// Subscribe handles POST /api/v1/users/{userId}/subscriptions, with the
// channel in the path or as {"channel": "..."} / {"channels": [...]}.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUser(w, r)
	if !ok {
		return
	}
	ids, ok := h.channelIDs(w, r)
	if !ok {
		return
	}

	for _, id := range ids {
		if err := h.subs.Subscribe(r.Context(), userID, id); err != nil {
			respondWithSubscriptionError(w, err)
			return
		}
	}

	logger.WithContext(r.Context()).Info("User subscribed",
		logger.String("user_id", userID),
		logger.Strings("channels", ids),
	)
	h.ListSubscriptions(w, r)
}

// Unsubscribe handles DELETE /api/v1/users/{userId}/subscriptions/{channelId}
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authorizeUser(w, r)
	if !ok {
		return
	}
	ids, ok := h.channelIDs(w, r)
	if !ok {
		return
	}

	for _, id := range ids {
		if err := h.subs.Unsubscribe(r.Context(), userID, id); err != nil {
			respondWithSubscriptionError(w, err)
			return
		}
	}
	h.ListSubscriptions(w, r)
}

func (h *SubscriptionHandler) channelIDs(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	var ids []string
	if id := mux.Vars(r)["channelId"]; id != "" {
		ids = []string{id}
	} else {
		var body struct {
			Channel  string   `json:"channel"`
			Channels []string `json:"channels"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return nil, false
		}
		if body.Channel != "" {
			ids = append(ids, body.Channel)
		}
		ids = append(ids, body.Channels...)
	}

	if len(ids) == 0 {
		respondWithError(w, http.StatusBadRequest, "channel or channels field required")
		return nil, false
	}
	for _, id := range ids {
		if _, ok := h.router.Get(id); !ok {
			respondWithError(w, http.StatusNotFound, "Unknown channel: "+id)
			return nil, false
		}
	}
	return ids, true
}

// PushHandler serves the push log
type PushHandler struct {
	pushLog storage.PushLogStorage
}

// NewPushHandler creates a new push handler
func NewPushHandler(pushLog storage.PushLogStorage) *PushHandler {
	return &PushHandler{pushLog: pushLog}
}

// ListPushes handles GET /api/v1/pushes
func (h *PushHandler) ListPushes(w http.ResponseWriter, r *http.Request) {
	if h.pushLog == nil {
		respondWithError(w, http.StatusNotImplemented, "Push log is not configured")
		return
	}

	q := r.URL.Query()
	filter := storage.PushFilter{
		UserID: q.Get("user"),
		Ticker: strings.ToUpper(q.Get("ticker")),
		Status: models.PushStatus(q.Get("status")),
		Limit:  100,
	}
	if authed, ok := UserIDFromContext(r.Context()); ok {
		filter.UserID = authed
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if v := q.Get("start_time"); v != "" {
		if start, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartTime = start
		}
	}
	if v := q.Get("end_time"); v != "" {
		if end, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndTime = end
		}
	}

	pushes, err := h.pushLog.GetPushes(r.Context(), filter)
	if err != nil {
		logger.WithContext(r.Context()).Warn("Failed to read push log", logger.ErrorField(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve pushes")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"pushes": pushes,
		"count":  len(pushes),
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// authorizeUser returns the path user. An authenticated caller may only
// address itself.
func authorizeUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(mux.Vars(r)["userId"])
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return "", false
	}
	if authed, ok := UserIDFromContext(r.Context()); ok && authed != userID {
		respondWithError(w, http.StatusForbidden, "Cannot access another user's subscriptions")
		return "", false
	}
	return userID, true
}

func respondWithSubscriptionError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrInvalidUserID) || errors.Is(err, models.ErrInvalidChannelID) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Failed to update subscriptions")
}

