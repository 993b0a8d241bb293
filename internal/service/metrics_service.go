package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// MetricsService owns the Prometheus registry for HTTP traffic, the result
// cache and allocation runs.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	catalogLoad     *prometheus.HistogramVec
	runDuration     prometheus.Histogram
	runsTotal       *prometheus.CounterVec
	placed          prometheus.Counter
	shortfall       prometheus.Counter
	failures        prometheus.Counter

	cacheHitCount    uint64
	cacheMissCount   uint64
	requestCount     uint64
	runCount         uint64
	runFailedCount   uint64
	runDurationTotal uint64
	placedCount      uint64
	shortfallCount   uint64
	failureCount     uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetable_cache_latency_seconds",
			Help:    "Latency of result cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetable_cache_write_seconds",
			Help:    "Latency of result cache writes",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timetable_cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_cache_hits_total",
			Help: "Total result cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_cache_misses_total",
			Help: "Total result cache misses",
		}),
		catalogLoad: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timetable_catalog_load_seconds",
			Help:    "Duration of catalog loads by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetable_allocation_duration_seconds",
			Help:    "Duration of allocation runs",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_allocation_runs_total",
			Help: "Allocation runs by final status",
		}, []string{"status"}),
		placed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_assignments_placed_total",
			Help: "Sessions committed by allocation runs",
		}),
		shortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_shortfall_sessions_total",
			Help: "Required sessions left unplaced by allocation runs",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timetable_resolution_failures_total",
			Help: "Registrations aborted because subject, teacher or group could not be resolved",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses, m.catalogLoad, m.runDuration, m.runsTotal,
		m.placed, m.shortfall, m.failures, goroutines)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the private registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a cache hit or miss and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCatalogLoad records how long loading the catalog from source took.
func (m *MetricsService) ObserveCatalogLoad(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.catalogLoad.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveRun records the outcome of one allocation run.
func (m *MetricsService) ObserveRun(status models.TimetableRunStatus, placed, shortfall, failures int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.placed.Add(float64(placed))
	m.shortfall.Add(float64(shortfall))
	m.failures.Add(float64(failures))

	atomic.AddUint64(&m.runCount, 1)
	if status == models.TimetableRunFailed {
		atomic.AddUint64(&m.runFailedCount, 1)
	}
	atomic.AddUint64(&m.runDurationTotal, uint64(duration.Nanoseconds()))
	atomic.AddUint64(&m.placedCount, uint64(placed))
	atomic.AddUint64(&m.shortfallCount, uint64(shortfall))
	atomic.AddUint64(&m.failureCount, uint64(failures))
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SchedulerMetrics {
	if m == nil {
		return models.SchedulerMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	runs := atomic.LoadUint64(&m.runCount)
	runDuration := atomic.LoadUint64(&m.runDurationTotal)

	var cacheRatio float64
	if hits+misses > 0 {
		cacheRatio = float64(hits) / float64(hits+misses)
	}
	var avgRunMs float64
	if runs > 0 {
		avgRunMs = float64(runDuration) / float64(runs) / float64(time.Millisecond)
	}

	return models.SchedulerMetrics{
		RunsTotal:            runs,
		RunsFailed:           atomic.LoadUint64(&m.runFailedCount),
		AssignmentsPlaced:    atomic.LoadUint64(&m.placedCount),
		ShortfallSessions:    atomic.LoadUint64(&m.shortfallCount),
		ResolutionFailures:   atomic.LoadUint64(&m.failureCount),
		AverageRunDurationMs: avgRunMs,
		CacheHitRatio:        cacheRatio,
		CacheHits:            hits,
		CacheMisses:          misses,
		RequestsTotal:        atomic.LoadUint64(&m.requestCount),
		Goroutines:           runtime.NumGoroutine(),
		GeneratedAt:          time.Now().UTC(),
	}
}
