package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

var (
	// ErrRecipientBlocked is returned when the recipient refuses messages;
	// retrying cannot help.
	ErrRecipientBlocked = errors.New("recipient blocked delivery")
	// ErrRecipientUnavailable is returned when the recipient cannot be
	// reached right now.
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	// ErrContent is returned when the message itself was rejected.
	ErrContent = errors.New("message rejected")
)

// Action is an optional button attached to a message.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Message is an outbound notification.
type Message struct {
	Ticker   string   `json:"ticker,omitempty"`
	Trigger  string   `json:"trigger,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Text     string   `json:"text"`
	Actions  []Action `json:"actions,omitempty"`
}

// Notifier delivers a message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg Message) error
}

// IsPermanent reports whether a delivery error will not improve on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRecipientBlocked) || errors.Is(err, ErrContent)
}

// IsBlocked reports whether err means the recipient blocked delivery.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrRecipientBlocked)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct{}

// Notify logs the message
func (LogNotifier) Notify(ctx context.Context, userID string, msg Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrContent)
	}
	logger.WithContext(ctx).Info("Notification",
		logger.String("user_id", userID),
		logger.String("ticker", msg.Ticker),
		logger.String("trigger", msg.Trigger),
		logger.Strings("channels", msg.Channels),
		logger.String("text", msg.Text),
	)
	return nil
}

// MultiNotifier delivers through every notifier. It succeeds when at least
// one notifier succeeds; otherwise it returns all the failures joined.
type MultiNotifier []Notifier

// Notify delivers msg through every notifier
func (m MultiNotifier) Notify(ctx context.Context, userID string, msg Message) error {
	if len(m) == 0 {
		return fmt.Errorf("%w: no notifier configured", ErrRecipientUnavailable)
	}
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, userID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) < len(m) {
		return nil
	}
	return errors.Join(errs...)
}
