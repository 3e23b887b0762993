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
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	staleResponses   *prometheus.CounterVec
	deletes          *prometheus.CounterVec
	profileLookups   *prometheus.CounterVec
	auditWrites      *prometheus.HistogramVec
	activeSessions   prometheus.Gauge
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

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_upstream_request_duration_seconds",
		Help:    "Duration of calls to the school backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity", "operation", "outcome"})

	staleResponses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_stale_responses_total",
		Help: "Listing responses discarded because a newer fetch was dispatched",
	}, []string{"entity"})

	deletes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_deletes_total",
		Help: "Confirmed deletes by outcome",
	}, []string{"entity", "outcome"})

	profileLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_profile_lookups_total",
		Help: "Current user profile lookups by source",
	}, []string{"source"})

	auditWrites := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_audit_write_seconds",
		Help:    "Duration of audit log inserts",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_active_sessions",
		Help: "Console sessions currently held in memory",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, upstreamDuration, staleResponses, deletes, profileLookups, auditWrites, activeSessions, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		upstreamDuration: upstreamDuration,
		staleResponses:   staleResponses,
		deletes:          deletes,
		profileLookups:   profileLookups,
		auditWrites:      auditWrites,
		activeSessions:   activeSessions,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records gateway request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveUpstream records one backend call. Status 0 means the call never got
// a response.
func (m *MetricsService) ObserveUpstream(entity, operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(entity, operation, outcomeLabel(status)).Observe(duration.Seconds())
}

// ObserveStaleResponse counts a discarded out-of-order listing response.
func (m *MetricsService) ObserveStaleResponse(entity string) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(entity).Inc()
}

// ObserveDelete counts a settled delete.
func (m *MetricsService) ObserveDelete(entity string, ok bool) {
	if m == nil {
		return
	}
	outcome := "deleted"
	if !ok {
		outcome = "failed"
	}
	m.deletes.WithLabelValues(entity, outcome).Inc()
}

// RecordProfileLookup counts where a profile came from: cache, upstream or error.
func (m *MetricsService) RecordProfileLookup(source string) {
	if m == nil {
		return
	}
	m.profileLookups.WithLabelValues(source).Inc()
}

// ObserveAuditWrite records audit insert timing.
func (m *MetricsService) ObserveAuditWrite(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.auditWrites.WithLabelValues(outcome).Observe(duration.Seconds())
}

// SetActiveSessions publishes the live session count.
func (m *MetricsService) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func outcomeLabel(status int) string {
	switch {
	case status == 0:
		return "transport_error"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "ok"
	}
}
