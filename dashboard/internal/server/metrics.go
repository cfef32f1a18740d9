package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Juauvitorsm/painel-empresas/pkg/api/client"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the dashboard's prometheus collectors. It also observes the
// outbound calls made by the API client.
type Metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	apiCalls       *prometheus.CounterVec
	apiLatency     *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg, reusing any already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "painel",
			Subsystem: "dashboard",
			Name:      "http_requests_total",
			Help:      "Count of processed dashboard requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "painel",
			Subsystem: "dashboard",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of dashboard handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "painel",
			Subsystem: "dashboard",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "painel",
			Subsystem: "api_client",
			Name:      "requests_total",
			Help:      "Count of requests sent to the company API",
		}, []string{"method", "path", "status", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "painel",
			Subsystem: "api_client",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of company API requests",
			Buckets:   histogramBuckets,
		}, []string{"method", "path"}),
	}
	m.requestTotal = registerCounter(reg, m.requestTotal)
	m.requestLatency = registerHistogram(reg, m.requestLatency)
	m.rateLimitHits = registerCounter(reg, m.rateLimitHits)
	m.apiCalls = registerCounter(reg, m.apiCalls)
	m.apiLatency = registerHistogram(reg, m.apiLatency)
	return m
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
	}
	return h
}

func (m *Metrics) recordRequest(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) recordRateLimitHit(route, key string) {
	m.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

// ObserveAPICall implements client.Observer.
func (m *Metrics) ObserveAPICall(method, path string, status int, kind client.FailureKind, duration time.Duration) {
	path = apiPathLabel(path)
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	m.apiCalls.With(prometheus.Labels{
		"method":  method,
		"path":    path,
		"status":  strconv.Itoa(status),
		"outcome": outcome,
	}).Inc()
	m.apiLatency.With(prometheus.Labels{"method": method, "path": path}).Observe(duration.Seconds())
}

var _ client.Observer = (*Metrics)(nil)

// apiPathLabel folds record ids so /api/empresas/7 is counted as /api/empresas/:id.
func apiPathLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.Atoi(p); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
