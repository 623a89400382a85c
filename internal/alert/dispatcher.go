package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/mohamedkhairy/squeeze-scanner/internal/channel"
	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/notify"
	"github.com/mohamedkhairy/squeeze-scanner/internal/storage"
	"github.com/mohamedkhairy/squeeze-scanner/internal/subscription"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// DispatcherConfig holds configuration for the push dispatcher
type DispatcherConfig struct {
	Triggers         TriggerConfig
	MaxPerCycle      int           // Triggers fanned out per scan (default: 3)
	DeliveryAttempts int           // Tries per recipient for transient errors (default: 2)
	RetryInitial     time.Duration // First retry wait (default: 200ms)
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Triggers:         DefaultTriggerConfig(),
		MaxPerCycle:      3,
		DeliveryAttempts: 2,
		RetryInitial:     200 * time.Millisecond,
	}
}

// DispatcherConfigFrom builds the dispatcher configuration from the push config.
func DispatcherConfigFrom(cfg config.PushConfig) DispatcherConfig {
	d := DefaultDispatcherConfig()
	return DispatcherConfig{
		Triggers: TriggerConfig{
			StrongScore:    cfg.StrongScore,
			ScoreJumpDelta: cfg.ScoreJumpDelta,
		},
		MaxPerCycle:      cfg.MaxPerCycle,
		DeliveryAttempts: cfg.DeliveryAttempts,
		RetryInitial:     d.RetryInitial,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	d := DefaultDispatcherConfig()
	if c.Triggers.StrongScore <= 0 {
		c.Triggers.StrongScore = d.Triggers.StrongScore
	}
	if c.Triggers.ScoreJumpDelta <= 0 {
		c.Triggers.ScoreJumpDelta = d.Triggers.ScoreJumpDelta
	}
	if c.MaxPerCycle <= 0 {
		c.MaxPerCycle = d.MaxPerCycle
	}
	if c.DeliveryAttempts <= 0 {
		c.DeliveryAttempts = d.DeliveryAttempts
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = d.RetryInitial
	}
	return c
}

// DispatcherStats holds statistics about the dispatcher
type DispatcherStats struct {
	Cycles             int64
	TriggersDetected   int64
	TriggersDispatched int64
	TickerSuppressed   int64
	Capped             int64
	Sent               int64
	Failed             int64
	Blocked            int64
	GateSuppressed     int64
	LastCycleTime      time.Time
	mu                 sync.RWMutex
}

// Dispatcher turns ranked-list diffs into throttled notifications. It is
// registered as a scheduler hook.
type Dispatcher struct {
	config   DispatcherConfig
	router   *channel.Router
	subs     subscription.Store
	gate     *Gate
	notifier notify.Notifier
	pushLog  storage.PushLogStorage
	now      func() time.Time
	stats    DispatcherStats
}

// NewDispatcher creates a new dispatcher. pushLog may be nil.
func NewDispatcher(
	config DispatcherConfig,
	router *channel.Router,
	subs subscription.Store,
	gate *Gate,
	notifier notify.Notifier,
	pushLog storage.PushLogStorage,
) *Dispatcher {
	if router == nil || subs == nil || gate == nil || notifier == nil {
		panic("dispatcher dependencies cannot be nil")
	}
	return &Dispatcher{
		config:   config.withDefaults(),
		router:   router,
		subs:     subs,
		gate:     gate,
		notifier: notifier,
		pushLog:  pushLog,
		now:      gate.now,
	}
}

// Name returns the hook name
func (d *Dispatcher) Name() string { return "push_dispatcher" }

// OnScan detects triggers between prev and next, applies the global ticker
// cooldown, caps the survivors and fans each out to its subscribers.
// Per-recipient failures are isolated; state is persisted after every
// survivor and once more after the batch.
func (d *Dispatcher) OnScan(ctx context.Context, prev, next []models.CacheItem) error {
	log := logger.WithContext(ctx)

	triggers := DetectTriggers(prev, next, d.config.Triggers)
	for _, t := range triggers {
		logger.TriggersTotal.WithLabelValues(string(t.Kind)).Inc()
	}

	survivors := make([]models.Trigger, 0, len(triggers))
	suppressed := 0
	for _, t := range triggers {
		if d.gate.TickerCoolingDown(t.Ticker()) {
			suppressed++
			logger.NotificationsTotal.WithLabelValues("suppressed_ticker").Inc()
			log.Debug("Ticker cooling down, trigger suppressed",
				logger.String("ticker", t.Ticker()),
				logger.String("trigger", string(t.Kind)),
			)
			continue
		}
		survivors = append(survivors, t)
	}

	SortTriggers(survivors)
	capped := 0
	if len(survivors) > d.config.MaxPerCycle {
		capped = len(survivors) - d.config.MaxPerCycle
		survivors = survivors[:d.config.MaxPerCycle]
	}

	var persistErr error
	for _, t := range survivors {
		d.dispatch(ctx, t)
		if err := d.gate.Persist(ctx); err != nil {
			persistErr = err
			log.Warn("Failed to persist notification state", logger.ErrorField(err))
		}
	}
	if err := d.gate.Persist(ctx); err != nil {
		persistErr = err
	}

	d.stats.mu.Lock()
	d.stats.Cycles++
	d.stats.TriggersDetected += int64(len(triggers))
	d.stats.TriggersDispatched += int64(len(survivors))
	d.stats.TickerSuppressed += int64(suppressed)
	d.stats.Capped += int64(capped)
	d.stats.LastCycleTime = d.now()
	d.stats.mu.Unlock()

	log.Info("Push cycle completed",
		logger.Int("triggers", len(triggers)),
		logger.Int("ticker_suppressed", suppressed),
		logger.Int("dispatched", len(survivors)),
		logger.Int("capped", capped),
	)
	return persistErr
}

// GetStats returns current dispatcher statistics
func (d *Dispatcher) GetStats() DispatcherStats {
	d.stats.mu.RLock()
	defer d.stats.mu.RUnlock()
	return DispatcherStats{
		Cycles:             d.stats.Cycles,
		TriggersDetected:   d.stats.TriggersDetected,
		TriggersDispatched: d.stats.TriggersDispatched,
		TickerSuppressed:   d.stats.TickerSuppressed,
		Capped:             d.stats.Capped,
		Sent:               d.stats.Sent,
		Failed:             d.stats.Failed,
		Blocked:            d.stats.Blocked,
		GateSuppressed:     d.stats.GateSuppressed,
		LastCycleTime:      d.stats.LastCycleTime,
	}
}

// dispatch fans one trigger out. The global ticker cooldown starts with
// the attempt, whether or not anyone receives it.
func (d *Dispatcher) dispatch(ctx context.Context, t models.Trigger) {
	log := logger.WithContext(ctx)
	ticker := t.Ticker()
	d.gate.MarkTicker(ticker)

	ev := channel.BuildEvent(t.Item)
	matched := d.router.Route(ev)
	if len(matched) == 0 {
		return
	}

	users, err := d.subs.GetSubscribers(ctx, channel.IDs(matched))
	if err != nil {
		log.Warn("Failed to resolve subscribers",
			logger.String("ticker", ticker),
			logger.ErrorField(err),
		)
		return
	}

	for _, userID := range users {
		userChannels := d.userChannels(ctx, userID, matched)
		if len(userChannels) == 0 {
			continue
		}

		decision := d.gate.Admit(userID, ticker, min(t.Priority, channel.MinPriority(userChannels)))
		if !decision.Admitted {
			logger.NotificationsTotal.WithLabelValues(string(decision.Outcome)).Inc()
			d.stats.mu.Lock()
			d.stats.GateSuppressed++
			d.stats.mu.Unlock()
			log.Debug("Notification suppressed",
				logger.String("user_id", userID),
				logger.String("ticker", ticker),
				logger.String("outcome", string(decision.Outcome)),
			)
			continue
		}

		msg := Compose(t, ev, userChannels)
		err := d.deliver(ctx, userID, msg)
		d.record(ctx, t, userID, userChannels, err)
	}
}

// userChannels narrows matched to the channels userID subscribes to. When
// the user's subscriptions cannot be read every matched channel counts.
func (d *Dispatcher) userChannels(ctx context.Context, userID string, matched []channel.Channel) []channel.Channel {
	subscribed, err := d.subs.GetUserSubscriptions(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to read user subscriptions",
			logger.String("user_id", userID),
			logger.ErrorField(err),
		)
		return matched
	}
	set := make(map[string]bool, len(subscribed))
	for _, id := range subscribed {
		set[id] = true
	}
	out := make([]channel.Channel, 0, len(matched))
	for _, ch := range matched {
		if set[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

// deliver notifies one recipient, retrying transient errors.
func (d *Dispatcher) deliver(ctx context.Context, userID string, msg notify.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.RetryInitial
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.config.DeliveryAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := d.notifier.Notify(ctx, userID, msg)
		if err != nil && notify.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	return err
}

func (d *Dispatcher) record(ctx context.Context, t models.Trigger, userID string, channels []channel.Channel, err error) {
	log := logger.WithContext(ctx)
	status := models.PushSent
	switch {
	case err == nil:
	case notify.IsBlocked(err):
		status = models.PushBlocked
	default:
		status = models.PushFailed
	}

	logger.NotificationsTotal.WithLabelValues(string(status)).Inc()
	d.stats.mu.Lock()
	switch status {
	case models.PushSent:
		d.stats.Sent++
	case models.PushBlocked:
		d.stats.Blocked++
	default:
		d.stats.Failed++
	}
	d.stats.mu.Unlock()

	if err != nil {
		log.Warn("Notification delivery failed",
			logger.String("user_id", userID),
			logger.String("ticker", t.Ticker()),
			logger.String("status", string(status)),
			logger.ErrorField(err),
		)
	}

	if d.pushLog == nil {
		return
	}
	rec := &models.PushRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Ticker:    t.Ticker(),
		Trigger:   t.Kind,
		Channels:  channel.IDs(channels),
		Status:    status,
		CreatedAt: d.now().UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if werr := d.pushLog.WritePush(ctx, rec); werr != nil {
		log.Warn("Failed to write push log", logger.ErrorField(fmt.Errorf("push %s: %w", rec.ID, werr)))
	}
}
