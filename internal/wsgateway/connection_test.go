package wsgateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/notify"
)

func TestConnection_DeliverQueuesNotification(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)

	require.NoError(t, conn.Deliver(notify.Message{Ticker: "SOL", Text: "Reversal: SOL"}, 10*time.Millisecond))

	var msg struct {
		Type ServerType     `json:"type"`
		Data notify.Message `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-conn.Send, &msg))
	assert.Equal(t, ServerTypeNotification, msg.Type)
	assert.Equal(t, "SOL", msg.Data.Ticker)
}

func TestConnection_DeliverFullQueue(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)
	for i := 0; i < sendQueueSize; i++ {
		conn.Send <- []byte("{}")
	}

	err := conn.Deliver(notify.Message{Text: "x"}, 5*time.Millisecond)
	assert.ErrorIs(t, err, notify.ErrRecipientUnavailable)

	// replies are dropped rather than blocking
	conn.SendError("code", "message")
	assert.Len(t, conn.Send, sendQueueSize)
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)
	conn.Close()
	conn.Close()

	select {
	case <-conn.Done():
	default:
		t.Fatal("expected Done to be closed")
	}

	err := conn.Deliver(notify.Message{Text: "x"}, time.Second)
	assert.ErrorIs(t, err, notify.ErrRecipientUnavailable)
}

func TestConnection_UpdateLastPong(t *testing.T) {
	conn := NewConnection("conn-1", "user-1", nil)
	conn.lastPong = time.Now().Add(-time.Hour)
	before := conn.GetLastPong()

	conn.UpdateLastPong()
	assert.True(t, conn.GetLastPong().After(before))
}
