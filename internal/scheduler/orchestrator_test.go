package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/cache"
	"github.com/mohamedkhairy/squeeze-scanner/internal/data"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/scanner"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scanEnv struct {
	orch  *scanner.Orchestrator
	mock  *data.MockFetcher
	clock *stepClock
}

func newScanEnv(t *testing.T, symbols []string) *scanEnv {
	t.Helper()
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	snapshots := cache.NewSnapshotCache(
		&cache.FileSnapshotStore{Path: filepath.Join(t.TempDir(), "ranked_snapshot.json")},
		cache.SnapshotOptions{TTL: 4 * time.Hour, Now: clock.Now},
	)
	mock := data.NewMockFetcher(42, symbols)
	for _, s := range symbols {
		mock.SetProfile(s, data.ProfileNeutral)
	}

	cfg := scanner.DefaultConfig()
	cfg.Now = clock.Now
	cfg.FeatureCacheTTL = 10 * time.Minute
	return &scanEnv{
		orch:  scanner.NewOrchestrator(cfg, mock, data.StaticUniverse(symbols), snapshots),
		mock:  mock,
		clock: clock,
	}
}

func hasPair(list []models.CacheItem, pair string) bool {
	for _, it := range list {
		if it.PairSymbol == pair {
			return true
		}
	}
	return false
}

// enteredIn returns the hook calls in which pair appeared for the first time.
func enteredIn(h *recordingHook, pair string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []int
	for i, c := range h.calls {
		if !hasPair(c[0], pair) && hasPair(c[1], pair) {
			out = append(out, i)
		}
	}
	return out
}

func TestScheduler_OutOfBandRefreshKeepsEntryTransition(t *testing.T) {
	env := newScanEnv(t, []string{"BTCUSDT", "XYZUSDT"})
	env.mock.SetProfile("BTCUSDT", data.ProfileSqueeze)

	s := NewScheduler(DefaultConfig(), env.orch)
	hook := &recordingHook{name: "recorder"}
	s.RegisterHook(hook)
	ctx := context.Background()

	_, err := s.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, hook.calls, 1)
	assert.False(t, hasPair(hook.calls[0][1], "XYZUSDT"))

	// XYZ starts squeezing; a stale read refreshes the snapshot without
	// going through the scheduler
	env.mock.SetProfile("XYZUSDT", data.ProfileSqueeze)
	env.clock.Advance(20 * time.Minute)
	_, stale, err := env.orch.Ranked(ctx)
	require.NoError(t, err)
	require.True(t, stale)
	env.orch.WaitRefresh()

	latest, ok := env.orch.Latest()
	require.True(t, ok)
	require.True(t, hasPair(latest.List, "XYZUSDT"))
	assert.Equal(t, 1, hook.count())

	env.clock.Advance(40 * time.Minute)
	_, err = s.RunOnce(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, hook.count())
	assert.Equal(t, []int{1}, enteredIn(hook, "XYZUSDT"))
}

func TestScheduler_RefreshThroughSchedulerRunsHooks(t *testing.T) {
	env := newScanEnv(t, []string{"BTCUSDT", "XYZUSDT"})
	env.mock.SetProfile("BTCUSDT", data.ProfileSqueeze)

	s := NewScheduler(DefaultConfig(), env.orch)
	env.orch.SetRefresher(s)
	hook := &recordingHook{name: "recorder"}
	s.RegisterHook(hook)
	ctx := context.Background()

	// a cold read scans through the scheduler
	snap, stale, err := env.orch.Ranked(ctx)
	require.NoError(t, err)
	assert.False(t, stale)
	assert.True(t, hasPair(snap.List, "BTCUSDT"))
	require.Equal(t, 1, hook.count())

	env.mock.SetProfile("XYZUSDT", data.ProfileSqueeze)
	env.clock.Advance(20 * time.Minute)
	_, stale, err = env.orch.Ranked(ctx)
	require.NoError(t, err)
	require.True(t, stale)
	env.orch.WaitRefresh()

	require.Equal(t, 2, hook.count())
	assert.Equal(t, []int{1}, enteredIn(hook, "XYZUSDT"))

	env.clock.Advance(40 * time.Minute)
	_, err = s.RunOnce(ctx)
	require.NoError(t, err)

	require.Equal(t, 3, hook.count())
	assert.Equal(t, []int{1}, enteredIn(hook, "XYZUSDT"))
	assert.Equal(t, int64(3), s.GetStats().Cycles)
}
