package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CodesSent       *prometheus.CounterVec
	Verifications   *prometheus.CounterVec
	Entitlements    *prometheus.CounterVec
	SweptRecords    *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CodesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_codes_sent_total",
			Help: "Login codes requested, by delivery result.",
		}, []string{"result"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Code verifications by result reason and proof path.",
		}, []string{"result", "path"}),
		Entitlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entitlement_resolutions_total",
			Help: "Entitlement resolutions by outcome.",
		}, []string{"outcome"}),
		SweptRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_swept_records_total",
			Help: "Expired records removed by the background sweeper.",
		}, []string{"store"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.RequestsTotal,
		m.RequestDuration,
		m.CodesSent,
		m.Verifications,
		m.Entitlements,
		m.SweptRecords,
	)
	return m
}

func (m *Metrics) CodeSent(result string) {
	if m == nil {
		return
	}
	m.CodesSent.WithLabelValues(result).Inc()
}

func (m *Metrics) Verified(result, path string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result, path).Inc()
}

func (m *Metrics) EntitlementResolved(outcome string) {
	if m == nil {
		return
	}
	m.Entitlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Swept(store string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptRecords.WithLabelValues(store).Add(float64(n))
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
