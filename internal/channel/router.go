package channel

import (
	"sort"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// Channel ids.
const (
	StrongReversal    = "strong_reversal"
	HighRisk          = "high_risk"
	HighConfidence    = "high_confidence"
	LongAcceleration  = "long_acceleration"
	ShortAcceleration = "short_acceleration"
	SqueezeRadar      = "squeeze_radar"
)

// accelerationDelta is the one-sided position delta that counts as a
// clear bias without a reversal.
const accelerationDelta = 0.05

// NoPriority is returned by MinPriority for an empty match.
const NoPriority = 1 << 30

// Channel is a static routing rule. Lower priority numbers are more urgent.
type Channel struct {
	ID          string                            `json:"id"`
	DisplayName string                            `json:"displayName"`
	Priority    int                               `json:"priority"`
	Match       func(ev models.SqueezeEvent) bool `json:"-"`
}

// DefaultChannels returns the built-in channel catalog.
func DefaultChannels() []Channel {
	return []Channel{
		{
			ID:          StrongReversal,
			DisplayName: "Strong reversal",
			Priority:    1,
			Match: func(ev models.SqueezeEvent) bool {
				return ev.ReversalStrength == models.StrengthStrong
			},
		},
		{
			ID:          HighRisk,
			DisplayName: "High risk",
			Priority:    2,
			Match: func(ev models.SqueezeEvent) bool {
				return ev.RiskLevel == models.RiskHigh || ev.RiskLevel == models.RiskExtreme
			},
		},
		{
			ID:          HighConfidence,
			DisplayName: "High confidence",
			Priority:    2,
			Match: func(ev models.SqueezeEvent) bool {
				return ev.ConfidenceStars == 3
			},
		},
		{
			ID:          LongAcceleration,
			DisplayName: "Long bias acceleration",
			Priority:    3,
			Match: func(ev models.SqueezeEvent) bool {
				return ev.Reversal == models.ReversalNone &&
					ev.PositionBias == models.BiasLong && ev.PositionDelta >= accelerationDelta
			},
		},
		{
			ID:          ShortAcceleration,
			DisplayName: "Short bias acceleration",
			Priority:    3,
			Match: func(ev models.SqueezeEvent) bool {
				return ev.Reversal == models.ReversalNone &&
					ev.PositionBias == models.BiasShort && ev.PositionDelta <= -accelerationDelta
			},
		},
		{
			ID:          SqueezeRadar,
			DisplayName: "Squeeze radar",
			Priority:    4,
			Match:       func(ev models.SqueezeEvent) bool { return true },
		},
	}
}

// Router maps events to the channels whose predicates hold.
type Router struct {
	channels []Channel
	byID     map[string]Channel
}

// NewRouter creates a router over channels; with none it uses
// DefaultChannels.
func NewRouter(channels ...Channel) *Router {
	if len(channels) == 0 {
		channels = DefaultChannels()
	}
	r := &Router{
		channels: make([]Channel, 0, len(channels)),
		byID:     make(map[string]Channel, len(channels)),
	}
	for _, ch := range channels {
		if ch.ID == "" || ch.Match == nil {
			continue
		}
		if _, dup := r.byID[ch.ID]; dup {
			continue
		}
		r.channels = append(r.channels, ch)
		r.byID[ch.ID] = ch
	}
	sortChannels(r.channels)
	return r
}

// Route evaluates every predicate independently and returns the matching
// channels, most urgent first.
func (r *Router) Route(ev models.SqueezeEvent) []Channel {
	matched := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		if ch.Match(ev) {
			matched = append(matched, ch)
		}
	}
	return matched
}

// Channels returns the catalog, most urgent first.
func (r *Router) Channels() []Channel {
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Get returns a channel by id.
func (r *Router) Get(id string) (Channel, bool) {
	ch, ok := r.byID[id]
	return ch, ok
}

// IDs returns the ids of channels.
func IDs(channels []Channel) []string {
	ids := make([]string, len(channels))
	for i, ch := range channels {
		ids[i] = ch.ID
	}
	return ids
}

// MinPriority returns the most urgent priority among channels, or
// NoPriority when there are none.
func MinPriority(channels []Channel) int {
	best := NoPriority
	for _, ch := range channels {
		if ch.Priority < best {
			best = ch.Priority
		}
	}
	return best
}

func sortChannels(channels []Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		if channels[i].Priority != channels[j].Priority {
			return channels[i].Priority < channels[j].Priority
		}
		return channels[i].ID < channels[j].ID
	})
}
