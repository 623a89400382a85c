package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

func ranked(ticker string, score float64) models.CacheItem {
	return models.CacheItem{
		Ticker:     ticker,
		PairSymbol: ticker + "USDT",
		Score:      score,
		Signal:     models.Signal{ReversalStrength: models.StrengthNone, PositionBias: models.BiasNeutral},
	}
}

func withReversal(item models.CacheItem, r models.Reversal, s models.Strength) models.CacheItem {
	item.Signal.Reversal = r
	item.Signal.ReversalStrength = s
	return item
}

func TestDetectTriggers_NewEntry(t *testing.T) {
	prev := []models.CacheItem{ranked("BTC", 65)}
	next := []models.CacheItem{ranked("BTC", 65), ranked("XYZ", 70)}

	triggers := DetectTriggers(prev, next, DefaultTriggerConfig())
	require.Len(t, triggers, 1)
	assert.Equal(t, models.TriggerNewEntry, triggers[0].Kind)
	assert.Equal(t, 2, triggers[0].Priority)
	assert.Equal(t, "XYZ", triggers[0].Ticker())
	assert.Nil(t, triggers[0].Previous)
}

func TestDetectTriggers_Thresholds(t *testing.T) {
	tests := []struct {
		name string
		prev []models.CacheItem
		next models.CacheItem
		want models.TriggerKind
	}{
		{name: "weak new entry", next: ranked("A", 59.9)},
		{name: "new entry at threshold", next: ranked("A", 60), want: models.TriggerNewEntry},
		{name: "jump", prev: []models.CacheItem{ranked("A", 58)}, next: ranked("A", 62), want: models.TriggerScoreJump},
		{name: "small rise", prev: []models.CacheItem{ranked("A", 60)}, next: ranked("A", 63.9)},
		{name: "jump below strong", prev: []models.CacheItem{ranked("A", 40)}, next: ranked("A", 55)},
		{name: "drop", prev: []models.CacheItem{ranked("A", 80)}, next: ranked("A", 70)},
		{
			name: "reversal appears",
			prev: []models.CacheItem{ranked("A", 50)},
			next: withReversal(ranked("A", 30), models.ReversalUp, models.StrengthWeak),
			want: models.TriggerReversal,
		},
		{
			name: "reversal flips",
			prev: []models.CacheItem{withReversal(ranked("A", 50), models.ReversalUp, models.StrengthMedium)},
			next: withReversal(ranked("A", 50), models.ReversalDown, models.StrengthMedium),
			want: models.TriggerReversal,
		},
		{
			name: "reversal unchanged",
			prev: []models.CacheItem{withReversal(ranked("A", 50), models.ReversalUp, models.StrengthMedium)},
			next: withReversal(ranked("A", 52), models.ReversalUp, models.StrengthStrong),
		},
		{
			name: "reversal outranks jump",
			prev: []models.CacheItem{ranked("A", 60)},
			next: withReversal(ranked("A", 70), models.ReversalUp, models.StrengthStrong),
			want: models.TriggerReversal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triggers := DetectTriggers(tt.prev, []models.CacheItem{tt.next}, DefaultTriggerConfig())
			if tt.want == "" {
				assert.Empty(t, triggers)
				return
			}
			require.Len(t, triggers, 1)
			assert.Equal(t, tt.want, triggers[0].Kind)
			assert.Equal(t, tt.want.Priority(), triggers[0].Priority)
		})
	}
}

func TestDetectTriggers_OrderAndDedupe(t *testing.T) {
	prev := []models.CacheItem{ranked("JMP", 60), ranked("REV", 40)}
	next := []models.CacheItem{
		ranked("JMP", 68),
		ranked("NEW2", 65),
		ranked("NEW1", 75),
		withReversal(ranked("REV", 45), models.ReversalUp, models.StrengthMedium),
		ranked("NEW1", 99),
	}

	triggers := DetectTriggers(prev, next, DefaultTriggerConfig())
	require.Len(t, triggers, 4)

	var tickers []string
	for _, tr := range triggers {
		tickers = append(tickers, tr.Ticker())
	}
	assert.Equal(t, []string{"REV", "NEW1", "NEW2", "JMP"}, tickers)
	assert.Equal(t, 75.0, triggers[1].Item.Score, "first occurrence of a ticker wins")
	require.NotNil(t, triggers[3].Previous)
	assert.Equal(t, 60.0, triggers[3].Previous.Score)
}

func TestDetectTriggers_EmptyLists(t *testing.T) {
	assert.Empty(t, DetectTriggers(nil, nil, DefaultTriggerConfig()))
	assert.Empty(t, DetectTriggers([]models.CacheItem{ranked("A", 90)}, nil, DefaultTriggerConfig()))
}

func TestSortTriggers_TieBreaksOnTicker(t *testing.T) {
	triggers := []models.Trigger{
		{Kind: models.TriggerNewEntry, Priority: 2, Item: ranked("B", 70)},
		{Kind: models.TriggerNewEntry, Priority: 2, Item: ranked("A", 70)},
		{Kind: models.TriggerScoreJump, Priority: 3, Item: ranked("C", 90)},
	}
	SortTriggers(triggers)
	assert.Equal(t, "A", triggers[0].Ticker())
	assert.Equal(t, "B", triggers[1].Ticker())
	assert.Equal(t, "C", triggers[2].Ticker())
}
