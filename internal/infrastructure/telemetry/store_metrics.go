// Package telemetry provides Prometheus metrics for the storefront.
package telemetry

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by callers
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared"
)

// MetricsConfig holds configuration for StoreMetrics.
type MetricsConfig struct {
	// Namespace is the prefix of every metric name. Default: "storefront"
	Namespace string
	// DurationBuckets are the histogram buckets for latencies in seconds
	DurationBuckets []float64
	// RuntimeCollectors adds the Go runtime and process collectors
	RuntimeCollectors bool
}

// StoreMetrics holds every collector the storefront reports.
// A nil *StoreMetrics is valid and records nothing, so components can be
// built without metrics in tests.
type StoreMetrics struct {
	registry *prometheus.Registry

	imageResolutions *prometheus.CounterVec
	imageChecks      *prometheus.HistogramVec
	imageCache       *prometheus.CounterVec
	imageCacheSize   prometheus.Gauge
	imageInFlight    prometheus.Gauge
	imageRefreshes   *prometheus.CounterVec

	productLoads  *prometheus.CounterVec
	productWrites *prometheus.CounterVec
	syncSignals   *prometheus.CounterVec

	payments *prometheus.CounterVec

	dbQueries     *prometheus.CounterVec
	dbDuration    *prometheus.HistogramVec
	dbSlowQueries *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewStoreMetrics creates the collectors on a private registry
func NewStoreMetrics(cfg MetricsConfig) *StoreMetrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "storefront"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.DefBuckets
	}

	m := &StoreMetrics{registry: prometheus.NewRegistry()}
	ns := cfg.Namespace

	m.imageResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "image", Name: "resolutions_total",
		Help: "Image resolutions by winning strategy.",
	}, []string{"strategy"})
	m.imageChecks = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "image", Name: "check_duration_seconds",
		Help:    "Duration of image load checks.",
		Buckets: cfg.DurationBuckets,
	}, []string{"tier", "outcome"})
	m.imageCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "image", Name: "cache_requests_total",
		Help: "Proxy cache lookups by result (hit, miss, shared).",
	}, []string{"result"})
	m.imageCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "image", Name: "cache_entries",
		Help: "Resolved images currently cached.",
	})
	m.imageInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "image", Name: "cache_in_flight",
		Help: "Resolutions currently in flight.",
	})
	m.imageRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "image", Name: "refreshes_total",
		Help: "Displayed image refreshes by trigger.",
	}, []string{"trigger"})

	m.productLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "catalog", Name: "loads_total",
		Help: "Product loads by source that served them.",
	}, []string{"source"})
	m.productWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "catalog", Name: "writes_total",
		Help: "Product writes by operation and outcome.",
	}, []string{"operation", "outcome"})
	m.syncSignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "catalog", Name: "sync_signals_total",
		Help: "Cross-instance product signals by direction (sent, received).",
	}, []string{"direction"})

	m.payments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "checkout", Name: "payments_total",
		Help: "Checkout payment outcomes.",
	}, []string{"outcome"})

	m.dbQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "db", Name: "queries_total",
		Help: "Database queries by operation and outcome.",
	}, []string{"operation", "outcome"})
	m.dbDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "db", Name: "query_duration_seconds",
		Help:    "Database query latency.",
		Buckets: cfg.DurationBuckets,
	}, []string{"operation"})
	m.dbSlowQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "db", Name: "slow_queries_total",
		Help: "Queries slower than the configured threshold, by table.",
	}, []string{"table"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: cfg.DurationBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(
		m.imageResolutions, m.imageChecks, m.imageCache, m.imageCacheSize, m.imageInFlight, m.imageRefreshes,
		m.productLoads, m.productWrites, m.syncSignals,
		m.payments,
		m.dbQueries, m.dbDuration, m.dbSlowQueries,
		m.httpRequests, m.httpDuration,
	)
	if cfg.RuntimeCollectors {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the private registry
func (m *StoreMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *StoreMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// Image metrics
// =============================================================================

// RecordResolution counts a resolution won by strategy
func (m *StoreMetrics) RecordResolution(strategy string) {
	if m == nil {
		return
	}
	m.imageResolutions.WithLabelValues(strategy).Inc()
}

// ObserveCheck records one image check
func (m *StoreMetrics) ObserveCheck(tier string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.imageChecks.WithLabelValues(tier, outcome(ok)).Observe(d.Seconds())
}

// RecordCacheLookup counts a proxy cache lookup; result is CacheHit, CacheMiss or CacheShared
func (m *StoreMetrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.imageCache.WithLabelValues(result).Inc()
}

// SetCacheStats publishes the proxy cache size and in-flight count
func (m *StoreMetrics) SetCacheStats(size, inFlight int) {
	if m == nil {
		return
	}
	m.imageCacheSize.Set(float64(size))
	m.imageInFlight.Set(float64(inFlight))
}

// RecordRefresh counts a displayed image refresh
func (m *StoreMetrics) RecordRefresh(trigger string, images int) {
	if m == nil {
		return
	}
	m.imageRefreshes.WithLabelValues(trigger).Add(float64(images))
}

// =============================================================================
// Catalog metrics
// =============================================================================

// RecordProductLoad counts a load served by source ("primary", "legacy", "none")
func (m *StoreMetrics) RecordProductLoad(source string) {
	if m == nil {
		return
	}
	m.productLoads.WithLabelValues(source).Inc()
}

// RecordProductWrite counts a product write
func (m *StoreMetrics) RecordProductWrite(operation string, ok bool) {
	if m == nil {
		return
	}
	m.productWrites.WithLabelValues(operation, outcome(ok)).Inc()
}

// RecordSyncSignal counts a cross-instance signal; direction is "sent" or "received"
func (m *StoreMetrics) RecordSyncSignal(direction string) {
	if m == nil {
		return
	}
	m.syncSignals.WithLabelValues(direction).Inc()
}

// =============================================================================
// Checkout metrics
// =============================================================================

// RecordPayment counts a settled payment ("successful", "failed", "timeout", "rejected")
func (m *StoreMetrics) RecordPayment(result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
}

// =============================================================================
// Database metrics
// =============================================================================

// RecordQuery records one database statement. slow marks it for the slow query counter.
func (m *StoreMetrics) RecordQuery(operation, table string, d time.Duration, ok, slow bool) {
	if m == nil {
		return
	}
	m.dbQueries.WithLabelValues(operation, outcome(ok)).Inc()
	m.dbDuration.WithLabelValues(operation).Observe(d.Seconds())
	if slow {
		if table == "" {
			table = "unknown"
		}
		m.dbSlowQueries.WithLabelValues(table).Inc()
	}
}

// RegisterDBStats exports the connection pool statistics of db
func (m *StoreMetrics) RegisterDBStats(db *sql.DB, name string) error {
	if m == nil || db == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// =============================================================================
// HTTP metrics
// =============================================================================

// ObserveHTTPRequest records one served request
func (m *StoreMetrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
