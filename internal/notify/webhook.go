package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier posts each message as JSON to a bot transport endpoint.
// 403 and 410 mean the recipient blocked delivery, 400 and 422 a rejected
// message; anything else non-2xx is transient.
type WebhookNotifier struct {
	url  string
	http *http.Client
}

type webhookPayload struct {
	UserID  string  `json:"userId"`
	Message Message `json:"message"`
	SentAt  string  `json:"sentAt"`
}

// NewWebhookNotifier creates a webhook notifier
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{url: url, http: &http.Client{Timeout: timeout}}
}

// Notify posts the message
func (w *WebhookNotifier) Notify(ctx context.Context, userID string, msg Message) error {
	body, err := json.Marshal(webhookPayload{
		UserID:  userID,
		Message: msg,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContent, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecipientUnavailable, err)
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d: %s", ErrRecipientBlocked, resp.StatusCode, detail)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d: %s", ErrContent, resp.StatusCode, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRecipientUnavailable, resp.StatusCode, detail)
	}
}
