package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

func TestCompose_ReversalMessage(t *testing.T) {
	item := withReversal(ranked("SOL", 82), models.ReversalUp, models.StrengthStrong)
	item.Signal.PositionBias = models.BiasLong
	item.Signal.PositionDelta = 0.12
	tr := models.Trigger{Kind: models.TriggerReversal, Priority: 1, Item: item}
	ev := channel.BuildEvent(item)
	router := channel.NewRouter()

	msg := Compose(tr, ev, router.Route(ev))

	assert.Equal(t, "SOL", msg.Ticker)
	assert.Equal(t, "REVERSAL_EVENT", msg.Trigger)
	assert.Contains(t, msg.Text, "Reversal: SOL (SOLUSDT)")
	assert.Contains(t, msg.Text, "Score 82.0")
	assert.Contains(t, msg.Text, "Long/short reversal up, strong")
	assert.Contains(t, msg.Text, "Taker bias long (+0.120)")
	assert.Contains(t, msg.Text, "Risk extreme, confidence ***")
	assert.Equal(t, channel.StrongReversal, msg.Channels[0])
	assert.Equal(t, "analyze:SOLUSDT", msg.Actions[0].Data)
	assert.Equal(t, "snapshot", msg.Actions[1].Data)
}

func TestCompose_ScoreJumpShowsPreviousScore(t *testing.T) {
	prev := ranked("ETH", 61)
	item := ranked("ETH", 67.3)
	tr := models.Trigger{Kind: models.TriggerScoreJump, Priority: 3, Item: item, Previous: &prev}

	msg := Compose(tr, channel.BuildEvent(item), nil)

	assert.Contains(t, msg.Text, "Score jump: ETH")
	assert.Contains(t, msg.Text, "Score 61.0 -> 67.3")
	assert.NotContains(t, msg.Text, "reversal")
	assert.NotContains(t, msg.Text, "Taker bias")
	assert.Empty(t, msg.Channels)
}
