package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// fakeScanner returns a scripted list per scan and can block a scan until
// released.
type fakeScanner struct {
	mu      sync.Mutex
	lists   [][]models.CacheItem
	latest  *models.RankedSnapshot
	scans   atomic.Int32
	err     error
	block   chan struct{}
	started chan struct{}
	traces  []string
}

func (f *fakeScanner) Scan(ctx context.Context) (models.RankedSnapshot, error) {
	n := int(f.scans.Add(1))
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.traces = append(f.traces, logger.GetTraceID(ctx))
	if f.err != nil {
		return models.RankedSnapshot{}, f.err
	}
	var list []models.CacheItem
	if n-1 < len(f.lists) {
		list = f.lists[n-1]
	}
	snap := models.RankedSnapshot{GeneratedAt: time.Now(), List: list}
	f.latest = &snap
	return snap, nil
}

func (f *fakeScanner) Latest() (models.RankedSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return models.RankedSnapshot{}, false
	}
	return *f.latest, true
}

type recordingHook struct {
	name  string
	mu    sync.Mutex
	calls [][2][]models.CacheItem
	err   error
	panic bool
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) OnScan(ctx context.Context, prev, next []models.CacheItem) error {
	if h.panic {
		panic("hook exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, [2][]models.CacheItem{prev, next})
	return h.err
}

func (h *recordingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func item(ticker string, score float64) models.CacheItem {
	return models.CacheItem{Ticker: ticker, PairSymbol: ticker + "USDT", Score: score}
}

func TestScheduler_RunOncePassesPreviousAndNewLists(t *testing.T) {
	scanner := &fakeScanner{lists: [][]models.CacheItem{
		{item("BTC", 70)},
		{item("BTC", 75), item("XYZ", 70)},
	}}
	s := NewScheduler(DefaultConfig(), scanner)
	hook := &recordingHook{name: "recorder"}
	s.RegisterHook(hook)

	ctx := context.Background()
	ran, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	require.Len(t, hook.calls, 2)
	assert.Empty(t, hook.calls[0][0])
	assert.Equal(t, []models.CacheItem{item("BTC", 70)}, hook.calls[0][1])
	assert.Equal(t, []models.CacheItem{item("BTC", 70)}, hook.calls[1][0])
	assert.Len(t, hook.calls[1][1], 2)

	stats := s.GetStats()
	assert.Equal(t, int64(2), stats.Cycles)
	assert.Equal(t, int64(0), stats.Failures)
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_SingleFlight(t *testing.T) {
	scanner := &fakeScanner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(DefaultConfig(), scanner)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()

	<-scanner.started
	assert.Equal(t, StateRunning, s.State())

	// overlapping attempt is skipped, not queued
	ran, err := s.RunOnce(context.Background())
	assert.False(t, ran)
	assert.ErrorIs(t, err, models.ErrScanInProgress)

	close(scanner.block)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), scanner.scans.Load())
	assert.Equal(t, int64(1), s.GetStats().SkippedTicks)
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_HookFailuresAreIsolated(t *testing.T) {
	scanner := &fakeScanner{lists: [][]models.CacheItem{{item("BTC", 70)}}}
	s := NewScheduler(DefaultConfig(), scanner)

	failing := &recordingHook{name: "failing", err: errors.New("dispatch failed")}
	panicking := &recordingHook{name: "panicking", panic: true}
	last := &recordingHook{name: "last"}
	s.RegisterHook(failing)
	s.RegisterHook(panicking)
	s.RegisterHook(last)

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, last.count())
	assert.Equal(t, int64(2), s.GetStats().HookFailures)
}

func TestScheduler_ScanFailureSkipsHooks(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("universe unavailable")}
	s := NewScheduler(DefaultConfig(), scanner)
	hook := &recordingHook{name: "recorder"}
	s.RegisterHook(hook)

	ran, err := s.RunOnce(context.Background())
	assert.True(t, ran)
	assert.Error(t, err)
	assert.Equal(t, 0, hook.count())
	assert.Equal(t, int64(1), s.GetStats().Failures)
	assert.Equal(t, StateIdle, s.State())
}

func TestScheduler_CycleCarriesTraceID(t *testing.T) {
	scanner := &fakeScanner{}
	s := NewScheduler(DefaultConfig(), scanner)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = s.RunOnce(logger.WithTraceID(context.Background(), "fixed"))
	require.NoError(t, err)

	require.Len(t, scanner.traces, 2)
	assert.NotEmpty(t, scanner.traces[0])
	assert.Equal(t, "fixed", scanner.traces[1])
}

func TestScheduler_StartRunsImmediatelyAndOnInterval(t *testing.T) {
	scanner := &fakeScanner{}
	s := NewScheduler(Config{Interval: 20 * time.Millisecond}, scanner)
	hook := &recordingHook{name: "recorder"}
	s.RegisterHook(hook)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	assert.Eventually(t, func() bool { return scanner.scans.Load() >= 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return scanner.scans.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())

	stopped := scanner.scans.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, scanner.scans.Load())
	assert.GreaterOrEqual(t, hook.count(), 3)
}

func TestScheduler_StopLetsInFlightScanFinish(t *testing.T) {
	scanner := &fakeScanner{block: make(chan struct{}), started: make(chan struct{}, 8)}
	s := NewScheduler(Config{Interval: 10 * time.Millisecond}, scanner)
	hook := &recordingHook{name: "recorder"}
	s.RegisterHook(hook)

	require.NoError(t, s.Start())
	<-scanner.started

	// ticks during the blocked scan are skipped
	assert.Eventually(t, func() bool { return s.GetStats().SkippedTicks >= 2 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight scan finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(scanner.block)
	<-stopped

	assert.Equal(t, int32(1), scanner.scans.Load())
	assert.Equal(t, 1, hook.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "unknown", State(7).String())
}

func TestFlight_Transitions(t *testing.T) {
	var f flight
	assert.Equal(t, StateIdle, f.current())
	assert.True(t, f.begin())
	assert.False(t, f.begin())
	assert.Equal(t, StateRunning, f.current())
	f.end()
	assert.Equal(t, StateIdle, f.current())
	assert.True(t, f.begin())
}

func TestHookFunc(t *testing.T) {
	called := false
	h := NewHookFunc("fn", func(ctx context.Context, prev, next []models.CacheItem) error {
		called = true
		return nil
	})
	assert.Equal(t, "fn", h.Name())
	require.NoError(t, h.OnScan(context.Background(), nil, nil))
	assert.True(t, called)
}
