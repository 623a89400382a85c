package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/notify"
	"github.com/mohamedkhairy/squeeze-scanner/internal/subscription"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// maxClientMessage bounds inbound frames; client messages are tiny.
const maxClientMessage = 4096

// Hub owns the WebSocket connections and delivers notifications to the
// connections of a user. It implements notify.Notifier.
type Hub struct {
	config   config.WSGatewayConfig
	registry *ConnectionRegistry
	auth     *AuthManager
	subs     subscription.Store
	router   *channel.Router
	upgrader websocket.Upgrader

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	stats   HubStats
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal    int64
	ConnectionsActive   int64
	ConnectionsRejected int64
	NotificationsSent   int64
	NotificationsFailed int64
	LastNotifyTime      time.Time
	mu                  sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WSGatewayConfig, auth *AuthManager, subs subscription.Store, router *channel.Router) *Hub {
	if auth == nil || subs == nil || router == nil {
		panic("hub dependencies cannot be nil")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.ReadTimeout {
		cfg.PingInterval = cfg.ReadTimeout * 9 / 10
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:   cfg,
		registry: NewConnectionRegistry(),
		auth:     auth,
		subs:     subs,
		router:   router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the connection health monitor
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return fmt.Errorf("hub is already running")
	}
	h.running = true

	logger.Info("Starting WebSocket hub",
		logger.Int("max_connections", h.config.MaxConnections),
		logger.Duration("ping_interval", h.config.PingInterval),
	)

	h.wg.Add(1)
	go h.monitorConnections()
	return nil
}

// Stop closes every connection and waits for the pumps to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping WebSocket hub", logger.Int("connections", h.registry.Count()))
	h.cancel()
	for _, conn := range h.registry.GetAll() {
		h.Unregister(conn)
	}
	h.wg.Wait()
	logger.Info("WebSocket hub stopped")
}

// IsRunning returns whether the hub accepts connections
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// ServeHTTP authenticates and upgrades a client connection
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.IsRunning() {
		http.Error(w, "Gateway not running", http.StatusServiceUnavailable)
		return
	}
	if h.registry.Count() >= h.config.MaxConnections {
		h.recordRejected()
		logger.Warn("Max connections reached, rejecting new connection",
			logger.Int("max_connections", h.config.MaxConnections),
		)
		http.Error(w, "Max connections reached", http.StatusServiceUnavailable)
		return
	}

	userID, err := h.auth.Authenticate(r)
	if err != nil {
		h.recordRejected()
		logger.Warn("Rejecting unauthenticated connection",
			logger.String("remote_addr", r.RemoteAddr),
			logger.ErrorField(err),
		)
		http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection", logger.ErrorField(err))
		return
	}

	conn := NewConnection(uuid.NewString(), userID, ws)
	h.Register(conn)

	logger.Info("WebSocket connection established",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", userID),
		logger.String("remote_addr", r.RemoteAddr),
	)
}

// Register registers a new connection and starts its pumps
func (h *Hub) Register(conn *Connection) {
	h.registry.Add(conn)
	logger.WSConnectionsActive.Inc()

	h.stats.mu.Lock()
	h.stats.ConnectionsTotal++
	h.stats.mu.Unlock()

	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)
}

// Unregister removes and closes a connection
func (h *Hub) Unregister(conn *Connection) {
	if h.registry.Remove(conn.ID) {
		logger.WSConnectionsActive.Dec()
		logger.Debug("Connection unregistered",
			logger.String("connection_id", conn.ID),
			logger.String("user_id", conn.UserID),
			logger.Int("total_connections", h.registry.Count()),
		)
	}
	conn.Close()
}

// Notify delivers msg to every open connection of userID. It succeeds when
// at least one connection accepted the message.
func (h *Hub) Notify(ctx context.Context, userID string, msg notify.Message) error {
	conns := h.registry.GetByUser(userID)
	if len(conns) == 0 {
		h.recordNotify(false)
		return fmt.Errorf("%w: user %s has no open connection", notify.ErrRecipientUnavailable, userID)
	}

	var errs []error
	for _, conn := range conns {
		if err := conn.Deliver(msg, h.config.WriteTimeout); err != nil {
			errs = append(errs, err)
			continue
		}
		h.recordNotify(true)
		return nil
	}
	h.recordNotify(false)
	return errors.Join(errs...)
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()
	return HubStats{
		ConnectionsTotal:    h.stats.ConnectionsTotal,
		ConnectionsActive:   int64(h.registry.Count()),
		ConnectionsRejected: h.stats.ConnectionsRejected,
		NotificationsSent:   h.stats.NotificationsSent,
		NotificationsFailed: h.stats.NotificationsFailed,
		LastNotifyTime:      h.stats.LastNotifyTime,
	}
}

// writePump is the only writer of conn.Conn.
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			conn.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case <-conn.Done():
			return

		case message := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("WebSocket write failed",
					logger.String("connection_id", conn.ID),
					logger.ErrorField(err),
				)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump parses client messages until the connection fails.
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadLimit(maxClientMessage)
	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		return conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read failed",
					logger.String("connection_id", conn.ID),
					logger.ErrorField(err),
				)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}

		ctx, cancel := context.WithTimeout(h.ctx, h.config.WriteTimeout)
		h.handleClientMessage(ctx, conn, &msg)
		cancel()
	}
}

// monitorConnections drops connections whose pongs stopped arriving.
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.ReadTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			staleThreshold := h.config.ReadTimeout * 2
			for _, conn := range h.registry.GetAll() {
				if idle := now.Sub(conn.GetLastPong()); idle > staleThreshold {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.String("user_id", conn.UserID),
						logger.Duration("idle_time", idle),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

func (h *Hub) recordRejected() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.ConnectionsRejected++
}

func (h *Hub) recordNotify(ok bool) {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	if ok {
		h.stats.NotificationsSent++
		h.stats.LastNotifyTime = time.Now()
		return
	}
	h.stats.NotificationsFailed++
}
