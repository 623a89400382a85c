package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Scan pipeline
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "squeeze_scan_duration_seconds",
			Help:    "Duration of full universe scans in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_scans_total",
			Help: "Total number of scans by outcome",
		},
		[]string{"outcome"},
	)

	ScanCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "squeeze_scan_candidates",
			Help: "Number of instruments in the latest ranked snapshot",
		},
	)

	SymbolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_symbol_errors_total",
			Help: "Per-symbol scan failures",
		},
		[]string{"reason"},
	)

	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_fetch_retries_total",
			Help: "Market data fetch retries by series kind",
		},
		[]string{"kind"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	// Scheduler
	SchedulerSkippedTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "squeeze_scheduler_skipped_ticks_total",
			Help: "Ticks skipped because a scan was already running",
		},
	)

	HookErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_hook_errors_total",
			Help: "Scan hook failures by hook",
		},
		[]string{"hook"},
	)

	// Push pipeline
	TriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_triggers_total",
			Help: "Push triggers detected by kind",
		},
		[]string{"kind"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_notifications_total",
			Help: "Notification outcomes",
		},
		[]string{"outcome"},
	)

	// WebSocket gateway
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "squeeze_ws_connections_active",
			Help: "Open WebSocket connections",
		},
	)

	WSMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "squeeze_ws_messages_total",
			Help: "WebSocket messages by direction and type",
		},
		[]string{"direction", "type"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"service", "error_type"},
	)
)
