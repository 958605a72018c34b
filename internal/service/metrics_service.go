package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the gateway.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	assignmentTotal *prometheus.CounterVec
	reconcileTotal  *prometheus.CounterVec
	evidenceHandles prometheus.Gauge
	worklistSize    prometheus.Gauge
}

// NewMetricsService registers the gateway collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of calls to the trámites backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Requested status transitions by target and outcome",
	}, []string{"target", "outcome"})

	assignmentTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_operations_total",
		Help: "Assignment operations by final state",
	}, []string{"state"})

	reconcileTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "history_reconciliations_total",
		Help: "Assigned-by backfill attempts by outcome",
	}, []string{"outcome"})

	evidenceHandles := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "evidence_handles_open",
		Help: "Transient evidence handles not yet consumed or revoked",
	})

	worklistSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "worklist_records",
		Help: "Trámites currently held in the worklist",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, backendDuration, cacheLatency, cacheWrite, cacheLookups,
		transitionTotal, assignmentTotal, reconcileTotal, evidenceHandles, worklistSize, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		backendDuration: backendDuration,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		transitionTotal: transitionTotal,
		assignmentTotal: assignmentTotal,
		reconcileTotal:  reconcileTotal,
		evidenceHandles: evidenceHandles,
		worklistSize:    worklistSize,
	}
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records inbound request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveBackendCall records one outbound backend call. Status 0 means the transport failed.
func (m *MetricsService) ObserveBackendCall(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(operation, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransition counts a requested transition; outcome is "ok" or an error code.
func (m *MetricsService) RecordTransition(target, outcome string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(target, outcome).Inc()
}

// RecordAssignment counts an assignment operation reaching state.
func (m *MetricsService) RecordAssignment(state string) {
	if m == nil {
		return
	}
	m.assignmentTotal.WithLabelValues(state).Inc()
}

// RecordReconciliation counts a backfill attempt.
func (m *MetricsService) RecordReconciliation(outcome string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(outcome).Inc()
}

// SetEvidenceHandles reports the number of open evidence handles.
func (m *MetricsService) SetEvidenceHandles(n int) {
	if m == nil {
		return
	}
	m.evidenceHandles.Set(float64(n))
}

// SetWorklistSize reports the number of records held.
func (m *MetricsService) SetWorklistSize(n int) {
	if m == nil {
		return
	}
	m.worklistSize.Set(float64(n))
}
