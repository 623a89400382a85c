package models

import "time"

// RiskLevel grades an event for routing.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

// SqueezeEvent is built per ranked item for one routing decision.
type SqueezeEvent struct {
	Ticker           string    `json:"ticker"`
	Score            float64   `json:"score"`
	Reversal         Reversal  `json:"reversal"`
	ReversalStrength Strength  `json:"reversalStrength"`
	PositionBias     Bias      `json:"positionBias"`
	PositionDelta    float64   `json:"positionDelta"`
	RiskLevel        RiskLevel `json:"riskLevel"`
	ConfidenceStars  int       `json:"confidenceStars"`
}

// TriggerKind names the list change that produced a push candidate.
type TriggerKind string

const (
	TriggerNewEntry  TriggerKind = "NEW_ENTRY"
	TriggerScoreJump TriggerKind = "SCORE_JUMP"
	TriggerReversal  TriggerKind = "REVERSAL_EVENT"
)

// Priority of a trigger kind; lower is more urgent.
func (k TriggerKind) Priority() int {
	switch k {
	case TriggerReversal:
		return 1
	case TriggerNewEntry:
		return 2
	case TriggerScoreJump:
		return 3
	default:
		return 99
	}
}

// Trigger is a push candidate detected from a list diff.
type Trigger struct {
	Kind     TriggerKind `json:"kind"`
	Priority int         `json:"priority"`
	Item     CacheItem   `json:"item"`
	Previous *CacheItem  `json:"previous,omitempty"`
}

// Ticker of the triggering item.
func (t Trigger) Ticker() string {
	return t.Item.Ticker
}

// UserWindow is a user's rolling push counter.
type UserWindow struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}

// NotificationState is the persisted anti-spam state.
type NotificationState struct {
	LastNotifiedAt map[string]time.Time  `json:"lastNotifiedAt"`
	UserPushCount  map[string]UserWindow `json:"userPushCount"`
}

// NewNotificationState returns an empty state.
func NewNotificationState() *NotificationState {
	return &NotificationState{
		LastNotifiedAt: make(map[string]time.Time),
		UserPushCount:  make(map[string]UserWindow),
	}
}

// Prune drops cooldown entries older than retention and user windows past resetAt.
func (s *NotificationState) Prune(now time.Time, retention time.Duration) {
	if s.LastNotifiedAt == nil {
		s.LastNotifiedAt = make(map[string]time.Time)
	}
	if s.UserPushCount == nil {
		s.UserPushCount = make(map[string]UserWindow)
	}
	for key, at := range s.LastNotifiedAt {
		if now.Sub(at) > retention {
			delete(s.LastNotifiedAt, key)
		}
	}
	for user, w := range s.UserPushCount {
		if !now.Before(w.ResetAt) {
			delete(s.UserPushCount, user)
		}
	}
}

// Clone returns a deep copy.
func (s *NotificationState) Clone() *NotificationState {
	out := NewNotificationState()
	for k, v := range s.LastNotifiedAt {
		out.LastNotifiedAt[k] = v
	}
	for k, v := range s.UserPushCount {
		out.UserPushCount[k] = v
	}
	return out
}

// PushStatus is the outcome of one delivery attempt.
type PushStatus string

const (
	PushSent    PushStatus = "sent"
	PushFailed  PushStatus = "failed"
	PushBlocked PushStatus = "blocked"
)

// PushRecord is one delivery attempt written to the push log.
type PushRecord struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Ticker    string      `json:"ticker"`
	Trigger   TriggerKind `json:"trigger"`
	Channels  []string    `json:"channels"`
	Status    PushStatus  `json:"status"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Validate validates a PushRecord
func (r *PushRecord) Validate() error {
	if r.UserID == "" {
		return ErrInvalidUserID
	}
	if r.Ticker == "" {
		return ErrInvalidSymbol
	}
	if r.CreatedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}
