package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/mohamedkhairy/squeeze-scanner/internal/cache"
	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/data"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/internal/signal"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// Config holds configuration for the orchestrator
type Config struct {
	Exchange        string
	Interval        string
	LookbackDays    int
	Concurrency     int           // Per-symbol worker cap (default: 4)
	TopN            int           // Ranked list length (default: 20)
	ScanCacheTTL    time.Duration // Fresh TTL of the scan-level cache (default: 15m)
	FeatureCacheTTL time.Duration // Fresh TTL of the per-symbol cache (default: 30m)
	StaleDefault    time.Duration
	CacheCapacity   int
	LooseFilter     bool

	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Exchange:        "binance",
		Interval:        "4h",
		LookbackDays:    30,
		Concurrency:     4,
		TopN:            20,
		ScanCacheTTL:    15 * time.Minute,
		FeatureCacheTTL: 30 * time.Minute,
		StaleDefault:    time.Hour,
		CacheCapacity:   1000,
	}
}

// ConfigFrom builds an orchestrator configuration from the service config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Exchange:        cfg.MarketData.Exchange,
		Interval:        cfg.MarketData.Interval,
		LookbackDays:    cfg.MarketData.LookbackDays,
		Concurrency:     cfg.Scanner.Concurrency,
		TopN:            cfg.Scanner.TopN,
		ScanCacheTTL:    cfg.Scanner.ScanCacheTTL,
		FeatureCacheTTL: cfg.Scanner.FeatureCacheTTL,
		StaleDefault:    cfg.Scanner.StaleDefault,
		CacheCapacity:   cfg.Scanner.CacheCapacity,
		LooseFilter:     cfg.Scanner.LooseFilter,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Exchange == "" {
		c.Exchange = d.Exchange
	}
	if c.Interval == "" {
		c.Interval = d.Interval
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = d.LookbackDays
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.ScanCacheTTL <= 0 {
		c.ScanCacheTTL = d.ScanCacheTTL
	}
	if c.FeatureCacheTTL <= 0 {
		c.FeatureCacheTTL = d.FeatureCacheTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Stats holds statistics about scans
type Stats struct {
	Scans          int64
	LastScanAt     time.Time
	LastDuration   time.Duration
	LastUniverse   int
	LastCandidates int
	LastFailures   int
	mu             sync.RWMutex
}

// ErrNoUsableData is returned for a symbol whose every series failed.
var ErrNoUsableData = errors.New("no usable series")

// Refresher runs a scan under an external single-flight guard, such as the
// scheduler. A scan already in flight returns models.ErrScanInProgress.
type Refresher interface {
	RunOnce(ctx context.Context) (bool, error)
}

// Orchestrator produces ranked snapshots from the instrument universe.
type Orchestrator struct {
	config    Config
	params    signal.Params
	fetcher   data.Fetcher
	universe  data.UniverseSupplier
	snapshots *cache.SnapshotCache

	features *cache.Cache[models.ScanResult]
	scans    *cache.Cache[models.RankedSnapshot]

	// serializes full scans
	scanMu     sync.Mutex
	refreshing atomic.Bool
	refreshWg  sync.WaitGroup

	refresher   Refresher
	refresherMu sync.RWMutex

	stats Stats
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	cfg Config,
	fetcher data.Fetcher,
	universe data.UniverseSupplier,
	snapshots *cache.SnapshotCache,
) *Orchestrator {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if universe == nil {
		panic("universe cannot be nil")
	}
	if snapshots == nil {
		panic("snapshots cannot be nil")
	}

	cfg = cfg.withDefaults()
	return &Orchestrator{
		config:    cfg,
		params:    signal.DefaultParams(cfg.LookbackDays, cfg.Interval),
		fetcher:   fetcher,
		universe:  universe,
		snapshots: snapshots,
		features: cache.New[models.ScanResult](cache.Options{
			Name:         "features",
			Capacity:     cfg.CacheCapacity,
			StaleDefault: cfg.StaleDefault,
			Now:          cfg.Now,
		}),
		scans: cache.New[models.RankedSnapshot](cache.Options{
			Name:         "scan",
			Capacity:     16,
			StaleDefault: cfg.StaleDefault,
			Now:          cfg.Now,
		}),
	}
}

// Scan runs one full scan: resolve the universe, score every symbol under
// the concurrency cap, filter, rank and write the durable snapshot.
// Per-symbol failures shrink the candidate set; only a universe failure
// fails the scan.
func (o *Orchestrator) Scan(ctx context.Context) (models.RankedSnapshot, error) {
	o.scanMu.Lock()
	defer o.scanMu.Unlock()
	return o.scanLocked(ctx)
}

// SetRefresher routes the scans started by Ranked through r, so they share
// its single-flight guard and its post-scan hooks.
func (o *Orchestrator) SetRefresher(r Refresher) {
	o.refresherMu.Lock()
	defer o.refresherMu.Unlock()
	o.refresher = r
}

func (o *Orchestrator) getRefresher() Refresher {
	o.refresherMu.RLock()
	defer o.refresherMu.RUnlock()
	return o.refresher
}

func (o *Orchestrator) scanLocked(ctx context.Context) (models.RankedSnapshot, error) {
	log := logger.WithContext(ctx)
	start := time.Now()

	symbols, err := o.universe.Symbols(ctx)
	if err != nil {
		logger.ScansTotal.WithLabelValues("error").Inc()
		return models.RankedSnapshot{}, fmt.Errorf("failed to resolve universe: %w", err)
	}

	results, failures := o.scoreAll(ctx, symbols)
	if err := ctx.Err(); err != nil {
		// a cancelled scan must not replace the current snapshot
		logger.ScansTotal.WithLabelValues("error").Inc()
		return models.RankedSnapshot{}, fmt.Errorf("scan interrupted: %w", err)
	}
	ranked := o.rank(results)

	snap := models.RankedSnapshot{
		GeneratedAt: o.config.Now().UTC(),
		Exchange:    o.config.Exchange,
		Interval:    o.config.Interval,
		List:        make([]models.CacheItem, 0, len(ranked)),
		Flow:        flowOf(ranked),
	}
	for _, r := range ranked {
		snap.List = append(snap.List, signal.ToCacheItem(r))
	}

	o.scans.Set(o.scanKey(), snap, o.config.ScanCacheTTL)
	if err := o.snapshots.Set(ctx, snap); err != nil {
		// the in-memory snapshot is still current
		log.Warn("Failed to persist ranked snapshot", logger.ErrorField(err))
	}

	duration := time.Since(start)
	logger.ScanDuration.Observe(duration.Seconds())
	logger.ScansTotal.WithLabelValues("ok").Inc()
	logger.ScanCandidates.Set(float64(len(snap.List)))
	o.updateStats(start, duration, len(symbols), len(snap.List), failures)

	log.Info("Scan completed",
		logger.Int("universe", len(symbols)),
		logger.Int("scored", len(results)),
		logger.Int("candidates", len(snap.List)),
		logger.Int("failures", failures),
		logger.Duration("duration", duration),
	)
	return snap, nil
}

// scoreAll scores symbols under the concurrency cap and returns the
// successful results in universe order and the failure count.
func (o *Orchestrator) scoreAll(ctx context.Context, symbols []string) ([]models.ScanResult, int) {
	slots := make([]*models.ScanResult, len(symbols))
	var failures atomic.Int64

	p := pool.New().WithMaxGoroutines(o.config.Concurrency)
	for i, symbol := range symbols {
		p.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					failures.Add(1)
					logger.SymbolErrors.WithLabelValues("panic").Inc()
					logger.WithContext(ctx).Error("Recovered panic while scanning symbol",
						logger.String("symbol", symbol),
						logger.Any("panic", r),
					)
				}
			}()

			result, _, err := o.analyze(ctx, symbol, true)
			if err != nil {
				failures.Add(1)
				logger.SymbolErrors.WithLabelValues("fetch").Inc()
				logger.WithContext(ctx).Warn("Symbol excluded from scan",
					logger.String("symbol", symbol),
					logger.ErrorField(err),
				)
				return
			}
			slots[i] = &result
		})
	}
	p.Wait()

	results := make([]models.ScanResult, 0, len(symbols))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, int(failures.Load())
}

// rank applies the hard filter and keeps the top N by score.
func (o *Orchestrator) rank(results []models.ScanResult) []models.ScanResult {
	admitted := make([]models.ScanResult, 0, len(results))
	for _, r := range results {
		if signal.PassesFilter(r.Breakdown, o.config.LooseFilter) {
			admitted = append(admitted, r)
		}
	}
	sort.SliceStable(admitted, func(i, j int) bool {
		return admitted[i].Score > admitted[j].Score
	})
	if len(admitted) > o.config.TopN {
		admitted = admitted[:o.config.TopN]
	}
	return admitted
}

// Ranked returns the current ranked snapshot from the scan-level cache.
// A stale hit is served immediately while one background scan refreshes
// it. On a miss the durable snapshot is served if present, otherwise a
// scan runs inline, detached from ctx cancellation. The second result
// reports staleness.
func (o *Orchestrator) Ranked(ctx context.Context) (models.RankedSnapshot, bool, error) {
	snap, stale, ok := o.scans.GetWithStaleInfo(o.scanKey())
	if ok {
		if stale {
			o.refreshInBackground(ctx)
		}
		return snap, stale, nil
	}

	if snap, stale, ok := o.snapshots.CurrentWithStaleInfo(); ok {
		if stale {
			o.refreshInBackground(ctx)
		}
		return snap, stale, nil
	}

	snap, err := o.scanNow(context.WithoutCancel(ctx))
	if err != nil {
		return models.RankedSnapshot{}, false, err
	}
	return snap, false, nil
}

// scanNow runs a cold-start scan through the refresher when one is set.
func (o *Orchestrator) scanNow(ctx context.Context) (models.RankedSnapshot, error) {
	r := o.getRefresher()
	if r == nil {
		return o.Scan(ctx)
	}
	if _, err := r.RunOnce(ctx); err != nil {
		return models.RankedSnapshot{}, err
	}
	snap, ok := o.Latest()
	if !ok {
		return models.RankedSnapshot{}, models.ErrNoData
	}
	return snap, nil
}

// Latest returns the durable snapshot without triggering a scan.
func (o *Orchestrator) Latest() (models.RankedSnapshot, bool) {
	return o.snapshots.Current(true)
}

// Analyze scores one symbol through the feature cache. It never touches
// the ranked snapshot. The second result reports a cache hit.
func (o *Orchestrator) Analyze(ctx context.Context, symbol string) (models.ScanResult, bool, error) {
	symbol = data.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.ScanResult{}, false, models.ErrInvalidSymbol
	}
	return o.analyze(ctx, symbol, false)
}

// WaitRefresh blocks until a background refresh started by Ranked ends.
func (o *Orchestrator) WaitRefresh() {
	o.refreshWg.Wait()
}

// GetStats returns current scan statistics
func (o *Orchestrator) GetStats() Stats {
	o.stats.mu.RLock()
	defer o.stats.mu.RUnlock()

	return Stats{
		Scans:          o.stats.Scans,
		LastScanAt:     o.stats.LastScanAt,
		LastDuration:   o.stats.LastDuration,
		LastUniverse:   o.stats.LastUniverse,
		LastCandidates: o.stats.LastCandidates,
		LastFailures:   o.stats.LastFailures,
	}
}

func (o *Orchestrator) refreshInBackground(ctx context.Context) {
	if !o.refreshing.CompareAndSwap(false, true) {
		return
	}
	traceID := logger.GetTraceID(ctx)
	if traceID == "" {
		traceID = logger.NewTraceID()
	}
	refreshCtx := logger.WithTraceID(context.Background(), traceID)

	o.refreshWg.Add(1)
	go func() {
		defer o.refreshWg.Done()
		defer o.refreshing.Store(false)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Recovered panic in background refresh", logger.Any("panic", r))
			}
		}()

		if err := o.refresh(refreshCtx); err != nil {
			logger.WithContext(refreshCtx).Warn("Background refresh failed", logger.ErrorField(err))
		}
	}()
}

// refresh runs one background scan, skipping it when a scan is in flight.
func (o *Orchestrator) refresh(ctx context.Context) error {
	if r := o.getRefresher(); r != nil {
		_, err := r.RunOnce(ctx)
		if errors.Is(err, models.ErrScanInProgress) {
			return nil
		}
		return err
	}
	if !o.scanMu.TryLock() {
		logger.WithContext(ctx).Debug("Scan in progress, skipping background refresh")
		return nil
	}
	defer o.scanMu.Unlock()
	_, err := o.scanLocked(ctx)
	return err
}

// analyze returns the scored result of one symbol and whether it came
// from the feature cache. A stale entry is recomputed; ad-hoc lookups
// fall back to it when the recompute fails.
func (o *Orchestrator) analyze(ctx context.Context, symbol string, freshOnly bool) (models.ScanResult, bool, error) {
	cached, stale, ok := o.features.GetWithStaleInfo(o.featureKey(symbol))
	if ok && !stale {
		return cached, true, nil
	}

	result, err := o.compute(ctx, symbol)
	if err != nil {
		if ok && !freshOnly {
			return cached, true, nil
		}
		return models.ScanResult{}, false, err
	}
	return result, false, nil
}

func (o *Orchestrator) compute(ctx context.Context, symbol string) (models.ScanResult, error) {
	series, err := o.fetchSeries(ctx, symbol)
	if err != nil {
		return models.ScanResult{}, err
	}
	result := signal.Evaluate(symbol, signal.ComputeFeatures(series, o.params))
	o.features.Set(o.featureKey(symbol), result, o.config.FeatureCacheTTL)
	return result, nil
}

// fetchSeries fetches every series of symbol. A failed series is left
// empty and surfaces as a missing input; the symbol fails only when no
// series could be fetched.
func (o *Orchestrator) fetchSeries(ctx context.Context, symbol string) (signal.Series, error) {
	var (
		series   signal.Series
		failed   int
		firstErr error
	)
	for _, kind := range data.AllKinds {
		points, err := o.fetcher.FetchSeries(ctx, data.SeriesRequest{
			Kind:     kind,
			Symbol:   symbol,
			Exchange: o.config.Exchange,
			Interval: o.config.Interval,
			Limit:    o.params.Periods,
		})
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			logger.WithContext(ctx).Debug("Series unavailable",
				logger.String("symbol", symbol),
				logger.String("kind", string(kind)),
				logger.ErrorField(err),
			)
			continue
		}

		switch kind {
		case data.KindOpenInterest:
			series.OpenInterest = data.Values(points)
		case data.KindFundingRate:
			series.Funding = data.Values(points)
		case data.KindLongShort:
			series.LongShort = data.Values(points)
		case data.KindTakerVolume:
			series.TakerBuy, series.TakerSell = data.BuySell(points)
		case data.KindBasis:
			series.Basis = data.Values(points)
		}
	}

	if failed == len(data.AllKinds) {
		return signal.Series{}, fmt.Errorf("%s: %w: %v", symbol, ErrNoUsableData, firstErr)
	}
	return series, nil
}

func (o *Orchestrator) updateStats(at time.Time, d time.Duration, universe, candidates, failures int) {
	o.stats.mu.Lock()
	defer o.stats.mu.Unlock()
	o.stats.Scans++
	o.stats.LastScanAt = at
	o.stats.LastDuration = d
	o.stats.LastUniverse = universe
	o.stats.LastCandidates = candidates
	o.stats.LastFailures = failures
}

func (o *Orchestrator) scanKey() string {
	return "scan:" + o.config.Exchange + ":" + o.config.Interval
}

func (o *Orchestrator) featureKey(symbol string) string {
	return "features:" + o.config.Exchange + ":" + o.config.Interval + ":" + symbol
}
