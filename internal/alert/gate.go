package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// GateConfig holds the anti-spam limits
type GateConfig struct {
	TickerCooldown time.Duration // Global per-ticker fan-out cooldown (default: 4h)
	PairCooldown   time.Duration // Per user and ticker cooldown (default: 4h)
	UserWindow     time.Duration // Rolling user window (default: 4h)
	UserCeiling    int           // Admissions per user window (default: 3)
	PriorityCutoff int           // Max event priority admitted over the ceiling (default: 1)
	Retention      time.Duration // Cooldown entries older than this are pruned on load (default: 7d)
}

// DefaultGateConfig returns default configuration
func DefaultGateConfig() GateConfig {
	return GateConfig{
		TickerCooldown: 4 * time.Hour,
		PairCooldown:   4 * time.Hour,
		UserWindow:     4 * time.Hour,
		UserCeiling:    3,
		PriorityCutoff: 1,
		Retention:      7 * 24 * time.Hour,
	}
}

// GateConfigFrom builds the gate configuration from the push config.
func GateConfigFrom(cfg config.PushConfig) GateConfig {
	return GateConfig{
		TickerCooldown: cfg.TickerCooldown,
		PairCooldown:   cfg.PairCooldown,
		UserWindow:     cfg.UserWindow,
		UserCeiling:    cfg.UserCeiling,
		PriorityCutoff: cfg.PriorityCutoff,
		Retention:      cfg.StateRetention,
	}
}

func (c GateConfig) withDefaults() GateConfig {
	d := DefaultGateConfig()
	if c.TickerCooldown <= 0 {
		c.TickerCooldown = d.TickerCooldown
	}
	if c.PairCooldown <= 0 {
		c.PairCooldown = d.PairCooldown
	}
	if c.UserWindow <= 0 {
		c.UserWindow = d.UserWindow
	}
	if c.UserCeiling <= 0 {
		c.UserCeiling = d.UserCeiling
	}
	if c.PriorityCutoff <= 0 {
		c.PriorityCutoff = d.PriorityCutoff
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	return c
}

// Outcome of an admission check.
type Outcome string

const (
	OutcomeAdmitted         Outcome = "admitted"
	OutcomePriorityOverride Outcome = "priority_override"
	OutcomePairCooldown     Outcome = "suppressed_pair"
	OutcomeRateLimited      Outcome = "suppressed_rate"
)

// Decision is the result of Gate.Admit.
type Decision struct {
	Admitted bool
	Outcome  Outcome
	// Count is the user's window count after the decision.
	Count int
}

// Gate is the anti-spam state machine. A ticker is cooling for
// TickerCooldown after a fan-out attempt; a (user, ticker) pair for
// PairCooldown after an admission. Each user has a lazily reset window
// admitting UserCeiling deliveries; over the ceiling only events whose
// priority is at or under PriorityCutoff get through. The dispatcher passes
// the more urgent of the trigger priority and the matched channel priority.
type Gate struct {
	config GateConfig
	store  StateStore
	now    func() time.Time

	mu    sync.Mutex
	state *models.NotificationState

	// serializes persistence so saves land in mutation order
	saveMu sync.Mutex
}

// NewGate creates a gate with empty state. store may be nil for a purely
// in-memory gate.
func NewGate(config GateConfig, store StateStore, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		config: config.withDefaults(),
		store:  store,
		now:    now,
		state:  models.NewNotificationState(),
	}
}

// Load restores persisted state and prunes expired entries. Missing or
// unreadable state leaves the gate cold; only read failures are returned.
func (g *Gate) Load(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	state, err := g.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load notification state: %w", err)
	}

	state.Prune(g.now(), g.config.Retention)

	g.mu.Lock()
	g.state = state
	g.mu.Unlock()

	logger.Info("Restored notification state",
		logger.Int("cooldowns", len(state.LastNotifiedAt)),
		logger.Int("user_windows", len(state.UserPushCount)),
	)
	return nil
}

// TickerCoolingDown reports whether ticker had a fan-out attempt within
// TickerCooldown.
func (g *Gate) TickerCoolingDown(ticker string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.within(tickerKey(ticker), g.config.TickerCooldown)
}

// MarkTicker starts the global cooldown of ticker.
func (g *Gate) MarkTicker(ticker string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.LastNotifiedAt[tickerKey(ticker)] = g.now()
}

// Admit decides whether userID may receive a notification about ticker
// at the given event priority. An admission records the
// pair cooldown and increments the user's window in one step.
func (g *Gate) Admit(userID, ticker string, priority int) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	pair := pairKey(userID, ticker)
	if g.within(pair, g.config.PairCooldown) {
		return Decision{Outcome: OutcomePairCooldown, Count: g.state.UserPushCount[userID].Count}
	}

	w, ok := g.state.UserPushCount[userID]
	if !ok || !now.Before(w.ResetAt) {
		w = models.UserWindow{ResetAt: now.Add(g.config.UserWindow)}
	}

	outcome := OutcomeAdmitted
	if w.Count >= g.config.UserCeiling {
		if priority > g.config.PriorityCutoff {
			return Decision{Outcome: OutcomeRateLimited, Count: w.Count}
		}
		outcome = OutcomePriorityOverride
	}

	w.Count++
	g.state.UserPushCount[userID] = w
	g.state.LastNotifiedAt[pair] = now
	return Decision{Admitted: true, Outcome: outcome, Count: w.Count}
}

// Persist saves a copy of the current state.
func (g *Gate) Persist(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	if err := g.store.Save(ctx, g.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist notification state: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (g *Gate) Snapshot() *models.NotificationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}

// must hold mu
func (g *Gate) within(key string, d time.Duration) bool {
	at, ok := g.state.LastNotifiedAt[key]
	return ok && g.now().Sub(at) < d
}

func tickerKey(ticker string) string {
	return "ticker:" + ticker
}

func pairKey(userID, ticker string) string {
	return "pair:" + userID + ":" + ticker
}
