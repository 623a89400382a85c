package alert

import (
	"fmt"
	"strings"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/notify"
)

var triggerTitles = map[models.TriggerKind]string{
	models.TriggerReversal:  "Reversal",
	models.TriggerNewEntry:  "New squeeze candidate",
	models.TriggerScoreJump: "Score jump",
}

// Compose builds the outbound message of a trigger routed to channels.
func Compose(t models.Trigger, ev models.SqueezeEvent, channels []channel.Channel) notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (%s)\n", triggerTitles[t.Kind], ev.Ticker, t.Item.PairSymbol)

	score := fmt.Sprintf("Score %.1f", ev.Score)
	if t.Previous != nil && t.Kind == models.TriggerScoreJump {
		score = fmt.Sprintf("Score %.1f -> %.1f", t.Previous.Score, ev.Score)
	}
	b.WriteString(score)
	b.WriteString("\n")

	if ev.Reversal != models.ReversalNone {
		fmt.Fprintf(&b, "Long/short reversal %s, %s\n", ev.Reversal, ev.ReversalStrength)
	}
	if ev.PositionBias != models.BiasNeutral && ev.PositionBias != "" {
		fmt.Fprintf(&b, "Taker bias %s (%+.3f)\n", ev.PositionBias, ev.PositionDelta)
	}
	fmt.Fprintf(&b, "Risk %s, confidence %s", ev.RiskLevel, strings.Repeat("*", ev.ConfidenceStars))

	return notify.Message{
		Ticker:   ev.Ticker,
		Trigger:  string(t.Kind),
		Channels: channel.IDs(channels),
		Text:     b.String(),
		Actions: []notify.Action{
			{Label: "Analyze", Data: "analyze:" + t.Item.PairSymbol},
			{Label: "Ranked list", Data: "snapshot"},
		},
	}
}
