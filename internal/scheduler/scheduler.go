package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// Scanner is the scan collaborator driven by the scheduler.
type Scanner interface {
	// Scan produces a new ranked snapshot.
	Scan(ctx context.Context) (models.RankedSnapshot, error)
	// Latest returns the current snapshot, if any, without scanning.
	Latest() (models.RankedSnapshot, bool)
}

// Config holds configuration for the scheduler
type Config struct {
	Interval time.Duration // Time between scans (default: 4h)
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{Interval: 4 * time.Hour}
}

// Stats holds statistics about the scheduler
type Stats struct {
	Cycles       int64
	Failures     int64
	SkippedTicks int64
	HookFailures int64
	LastRunAt    time.Time
	LastDuration time.Duration
	mu           sync.RWMutex
}

// Scheduler runs scans on a fixed interval, once immediately on start. At
// most one scan is in flight; a tick that finds a scan running is skipped.
// Stop prevents future ticks and waits for the in-flight scan to finish.
//
// Hooks receive the list handed to the previous cycle's hooks, not the
// scanner's latest snapshot, so a scan run outside the scheduler cannot
// swallow a transition.
type Scheduler struct {
	config  Config
	scanner Scanner
	flight  flight

	// guarded by flight
	lastList []models.CacheItem
	seeded   bool

	hooks   []Hook
	hooksMu sync.RWMutex

	ctx     context.Context
	cancel  context.CancelFunc
	loopWg  sync.WaitGroup
	scanWg  sync.WaitGroup
	mu      sync.RWMutex
	running bool

	stats Stats
}

// NewScheduler creates a new scheduler
func NewScheduler(config Config, scanner Scanner) *Scheduler {
	if scanner == nil {
		panic("scanner cannot be nil")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Scheduler{
		config:  config,
		scanner: scanner,
	}
}

// RegisterHook adds a hook; hooks run in registration order.
func (s *Scheduler) RegisterHook(h Hook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	logger.Info("Starting scheduler", logger.Duration("interval", s.config.Interval))

	s.loopWg.Add(1)
	go s.run(s.ctx)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	logger.Info("Stopping scheduler")
	s.loopWg.Wait()
	s.scanWg.Wait()
	logger.Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// State reports whether a scan is in flight.
func (s *Scheduler) State() State {
	return s.flight.current()
}

// RunOnce runs a scan now if none is in flight. It reports whether a scan
// ran; a skipped call returns models.ErrScanInProgress.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if !s.flight.begin() {
		s.recordSkip()
		return false, models.ErrScanInProgress
	}
	defer s.flight.end()
	return true, s.cycle(ctx)
}

// GetStats returns current scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return Stats{
		Cycles:       s.stats.Cycles,
		Failures:     s.stats.Failures,
		SkippedTicks: s.stats.SkippedTicks,
		HookFailures: s.stats.HookFailures,
		LastRunAt:    s.stats.LastRunAt,
		LastDuration: s.stats.LastDuration,
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.loopWg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run initial scan immediately
	s.tick()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick launches a scan in the background unless one is in flight. The
// scan gets its own context so Stop never interrupts it.
func (s *Scheduler) tick() {
	if !s.flight.begin() {
		s.recordSkip()
		return
	}

	s.scanWg.Add(1)
	go func() {
		defer s.scanWg.Done()
		defer s.flight.end()

		if err := s.cycle(context.Background()); err != nil {
			logger.Warn("Scheduled scan failed", logger.ErrorField(err))
		}
	}()
}

// cycle runs one scan and the hooks. The caller holds the flight.
func (s *Scheduler) cycle(ctx context.Context) (err error) {
	if logger.GetTraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, logger.NewTraceID())
	}
	log := logger.WithContext(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
		}
		s.recordCycle(start, time.Since(start), err)
	}()

	prev := s.previousList()

	snap, err := s.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	log.Info("Scan cycle completed",
		logger.Int("previous", len(prev)),
		logger.Int("current", len(snap.List)),
		logger.Duration("duration", time.Since(start)),
	)

	s.runHooks(ctx, prev, snap.List)
	s.lastList = snap.List
	return nil
}

// previousList returns the list the last cycle's hooks saw. The first cycle
// starts from the scanner's restored snapshot.
func (s *Scheduler) previousList() []models.CacheItem {
	if !s.seeded {
		s.seeded = true
		if snap, ok := s.scanner.Latest(); ok {
			s.lastList = snap.List
		}
	}
	return s.lastList
}

func (s *Scheduler) runHooks(ctx context.Context, prev, next []models.CacheItem) {
	s.hooksMu.RLock()
	hooks := make([]Hook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, h := range hooks {
		if err := s.runHook(ctx, h, prev, next); err != nil {
			logger.HookErrors.WithLabelValues(h.Name()).Inc()
			s.stats.mu.Lock()
			s.stats.HookFailures++
			s.stats.mu.Unlock()
			logger.WithContext(ctx).Error("Scan hook failed",
				logger.String("hook", h.Name()),
				logger.ErrorField(err),
			)
		}
	}
}

func (s *Scheduler) runHook(ctx context.Context, h Hook, prev, next []models.CacheItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return h.OnScan(ctx, prev, next)
}

func (s *Scheduler) recordSkip() {
	logger.SchedulerSkippedTicks.Inc()
	logger.Warn("Scan already in progress, skipping")

	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.SkippedTicks++
}

func (s *Scheduler) recordCycle(at time.Time, d time.Duration, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()
	s.stats.Cycles++
	s.stats.LastRunAt = at
	s.stats.LastDuration = d
	if err != nil {
		s.stats.Failures++
	}
}
