package alert

import (
	"sort"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// TriggerConfig holds the list-diff thresholds
type TriggerConfig struct {
	StrongScore    float64 // Minimum new score for NEW_ENTRY and SCORE_JUMP (default: 60)
	ScoreJumpDelta float64 // Minimum score increase for SCORE_JUMP (default: 4)
}

// DefaultTriggerConfig returns default configuration
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{StrongScore: 60, ScoreJumpDelta: 4}
}

// DetectTriggers diffs two ranked lists and returns at most one trigger
// per ticker, the most urgent one, ordered by priority then score.
//
//   - REVERSAL_EVENT: a reversal appeared or changed direction
//   - NEW_ENTRY: the ticker is new and scores at least StrongScore
//   - SCORE_JUMP: the score rose by ScoreJumpDelta to at least StrongScore
func DetectTriggers(prev, next []models.CacheItem, cfg TriggerConfig) []models.Trigger {
	before := make(map[string]models.CacheItem, len(prev))
	for _, item := range prev {
		before[item.Ticker] = item
	}

	triggers := make([]models.Trigger, 0)
	seen := make(map[string]bool, len(next))
	for _, item := range next {
		if item.Ticker == "" || seen[item.Ticker] {
			continue
		}
		seen[item.Ticker] = true

		old, existed := before[item.Ticker]
		var previous *models.CacheItem
		if existed {
			o := old
			previous = &o
		}

		kind, ok := classify(item, previous, cfg)
		if !ok {
			continue
		}
		triggers = append(triggers, models.Trigger{
			Kind:     kind,
			Priority: kind.Priority(),
			Item:     item,
			Previous: previous,
		})
	}

	SortTriggers(triggers)
	return triggers
}

// classify returns the most urgent trigger kind of item.
func classify(item models.CacheItem, prev *models.CacheItem, cfg TriggerConfig) (models.TriggerKind, bool) {
	rev := item.Signal.Reversal
	if rev != models.ReversalNone && (prev == nil || prev.Signal.Reversal != rev) {
		return models.TriggerReversal, true
	}
	if item.Score < cfg.StrongScore {
		return "", false
	}
	if prev == nil {
		return models.TriggerNewEntry, true
	}
	if item.Score-prev.Score >= cfg.ScoreJumpDelta {
		return models.TriggerScoreJump, true
	}
	return "", false
}

// SortTriggers orders triggers by priority, then score descending, then
// ticker.
func SortTriggers(triggers []models.Trigger) {
	sort.SliceStable(triggers, func(i, j int) bool {
		a, b := triggers[i], triggers[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.Item.Score != b.Item.Score {
			return a.Item.Score > b.Item.Score
		}
		return a.Item.Ticker < b.Item.Ticker
	})
}
