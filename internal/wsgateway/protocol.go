package wsgateway

import (
	"context"
	"fmt"

	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// MessageType represents the type of a client message
type MessageType string

const (
	MessageTypeSubscribe     MessageType = "subscribe"
	MessageTypeUnsubscribe   MessageType = "unsubscribe"
	MessageTypeSubscriptions MessageType = "subscriptions"
	MessageTypeChannels      MessageType = "channels"
	MessageTypePing          MessageType = "ping"
)

// ServerType represents the type of a server message
type ServerType string

const (
	ServerTypeSuccess      ServerType = "success"
	ServerTypeError        ServerType = "error"
	ServerTypePong         ServerType = "pong"
	ServerTypeNotification ServerType = "notification"
)

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type     string   `json:"type"`
	Channel  string   `json:"channel,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// ServerMessage represents a message to the client
type ServerMessage struct {
	Type    ServerType  `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// channelIDs returns the channels named by msg.
func (m *ClientMessage) channelIDs() []string {
	if m.Channel != "" {
		return append([]string{m.Channel}, m.Channels...)
	}
	return m.Channels
}

// handleClientMessage applies one client message. Subscription changes go
// to the subscription store so they outlive the connection.
func (h *Hub) handleClientMessage(ctx context.Context, c *Connection, msg *ClientMessage) {
	logger.WSMessagesTotal.WithLabelValues("in", msg.Type).Inc()

	switch MessageType(msg.Type) {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		ids := msg.channelIDs()
		if len(ids) == 0 {
			c.SendError("invalid_request", "channel or channels field required")
			return
		}
		for _, id := range ids {
			if _, ok := h.router.Get(id); !ok {
				c.SendError("unknown_channel", fmt.Sprintf("unknown channel: %s", id))
				return
			}
		}

		subscribe := MessageType(msg.Type) == MessageTypeSubscribe
		for _, id := range ids {
			var err error
			if subscribe {
				err = h.subs.Subscribe(ctx, c.UserID, id)
			} else {
				err = h.subs.Unsubscribe(ctx, c.UserID, id)
			}
			if err != nil {
				logger.Warn("Failed to update subscription",
					logger.String("connection_id", c.ID),
					logger.String("user_id", c.UserID),
					logger.String("channel", id),
					logger.ErrorField(err),
				)
				c.SendError("subscription_failed", err.Error())
				return
			}
		}

		action := "unsubscribed"
		if subscribe {
			action = "subscribed"
		}
		logger.Debug("Client subscription changed",
			logger.String("connection_id", c.ID),
			logger.String("user_id", c.UserID),
			logger.String("action", action),
			logger.Strings("channels", ids),
		)
		c.SendSuccess(action, map[string]interface{}{"channels": ids})

	case MessageTypeSubscriptions:
		ids, err := h.subs.GetUserSubscriptions(ctx, c.UserID)
		if err != nil {
			c.SendError("subscription_failed", err.Error())
			return
		}
		c.SendSuccess("subscriptions", map[string]interface{}{"channels": ids})

	case MessageTypeChannels:
		c.SendSuccess("channels", map[string]interface{}{"channels": h.router.Channels()})

	case MessageTypePing:
		c.reply(ServerMessage{Type: ServerTypePong})

	default:
		c.SendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}
