package wsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/squeeze-scanner/internal/notify"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// sendQueueSize is the per-connection outbound buffer.
const sendQueueSize = 64

// Connection represents a WebSocket connection with a client
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	lastPong  time.Time
	createdAt time.Time
}

// NewConnection creates a new WebSocket connection
func NewConnection(id string, userID string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Connection{
		ID:        id,
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, sendQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		createdAt: now,
		lastPong:  now,
	}
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// UpdateLastPong updates the last pong time
func (c *Connection) UpdateLastPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// GetLastPong returns the last pong time
func (c *Connection) GetLastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// Deliver queues a notification. A closed connection or a queue that stays
// full for the wait period reports the recipient unavailable.
func (c *Connection) Deliver(msg notify.Message, wait time.Duration) error {
	data, err := json.Marshal(ServerMessage{Type: ServerTypeNotification, Data: msg})
	if err != nil {
		return fmt.Errorf("%w: %v", notify.ErrContent, err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return fmt.Errorf("%w: connection %s closed", notify.ErrRecipientUnavailable, c.ID)
	default:
	}

	select {
	case c.Send <- data:
		logger.WSMessagesTotal.WithLabelValues("out", string(ServerTypeNotification)).Inc()
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("%w: connection %s closed", notify.ErrRecipientUnavailable, c.ID)
	case <-timer.C:
		return fmt.Errorf("%w: connection %s send queue full", notify.ErrRecipientUnavailable, c.ID)
	}
}

// reply queues a protocol reply without waiting; replies are dropped when
// the queue is full.
func (c *Connection) reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-c.ctx.Done():
	case c.Send <- data:
		logger.WSMessagesTotal.WithLabelValues("out", string(msg.Type)).Inc()
	default:
		logger.Debug("Dropping reply, send queue full",
			logger.String("connection_id", c.ID),
			logger.String("type", string(msg.Type)),
		)
	}
}

// SendError queues an error reply
func (c *Connection) SendError(code string, message string) {
	c.reply(ServerMessage{Type: ServerTypeError, Code: code, Message: message})
}

// SendSuccess queues a success reply
func (c *Connection) SendSuccess(action string, data interface{}) {
	c.reply(ServerMessage{
		Type: ServerTypeSuccess,
		Data: map[string]interface{}{
			"action": action,
			"data":   data,
		},
	})
}
