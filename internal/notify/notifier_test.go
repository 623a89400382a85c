package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(ctx context.Context, userID string, msg Message) error {
	s.calls++
	return s.err
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(ErrRecipientBlocked))
	assert.True(t, IsPermanent(ErrContent))
	assert.False(t, IsPermanent(ErrRecipientUnavailable))
	assert.False(t, IsPermanent(errors.New("timeout")))
	assert.False(t, IsPermanent(nil))
	assert.True(t, IsBlocked(errors.Join(ErrRecipientUnavailable, ErrRecipientBlocked)))
}

func TestLogNotifier(t *testing.T) {
	n := LogNotifier{}
	assert.NoError(t, n.Notify(context.Background(), "u1", Message{Text: "BTC squeeze"}))
	assert.ErrorIs(t, n.Notify(context.Background(), "u1", Message{Text: " "}), ErrContent)
}

func TestMultiNotifier(t *testing.T) {
	ctx := context.Background()
	ok := &stubNotifier{}
	down := &stubNotifier{err: ErrRecipientUnavailable}
	blocked := &stubNotifier{err: ErrRecipientBlocked}

	assert.NoError(t, MultiNotifier{down, ok}.Notify(ctx, "u1", Message{Text: "x"}))
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, 1, down.calls)

	err := MultiNotifier{down, blocked}.Notify(ctx, "u1", Message{Text: "x"})
	assert.ErrorIs(t, err, ErrRecipientUnavailable)
	assert.ErrorIs(t, err, ErrRecipientBlocked)
	assert.True(t, IsPermanent(err))

	assert.ErrorIs(t, MultiNotifier{}.Notify(ctx, "u1", Message{Text: "x"}), ErrRecipientUnavailable)
}

func TestWebhookNotifier(t *testing.T) {
	status := http.StatusOK
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	ctx := context.Background()
	msg := Message{Ticker: "ABC", Text: "ABC reversal", Actions: []Action{{Label: "Analyze", Data: "analyze:ABC"}}}

	require.NoError(t, n.Notify(ctx, "u42", msg))
	assert.Equal(t, "u42", got.UserID)
	assert.Equal(t, msg, got.Message)

	status = http.StatusForbidden
	assert.ErrorIs(t, n.Notify(ctx, "u42", msg), ErrRecipientBlocked)

	status = http.StatusBadRequest
	assert.ErrorIs(t, n.Notify(ctx, "u42", msg), ErrContent)

	status = http.StatusServiceUnavailable
	err := n.Notify(ctx, "u42", msg)
	assert.ErrorIs(t, err, ErrRecipientUnavailable)
	assert.False(t, IsPermanent(err))
}

func TestWebhookNotifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewWebhookNotifier(url, 200*time.Millisecond).Notify(context.Background(), "u1", Message{Text: "x"})
	assert.ErrorIs(t, err, ErrRecipientUnavailable)
}
