package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/identity-service/internal/domain"
)

// Metrics exposes the service's prometheus instruments. A nil *Metrics is
// safe to call, so tests and trimmed-down wiring can omit it.
type Metrics struct {
	identitiesIssued *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	batchItems       *prometheus.CounterVec
	allocateLatency  prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpErrors       *prometheus.CounterVec
}

// NewMetrics registers the instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		identitiesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_issued_total",
			Help: "Identities issued, by issuer.",
		}, []string{"issuer"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_transitions_total",
			Help: "Committed lifecycle transitions, by target status.",
		}, []string{"status"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_batch_items_total",
			Help: "Processed batch items, by outcome.",
		}, []string{"outcome"}),
		allocateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "identity_allocate_duration_seconds",
			Help:    "Latency of number allocation including the counter increment.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests, by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "HTTP error responses, by route, method and error code.",
		}, []string{"route", "method", "code"}),
	}
	reg.MustRegister(
		m.identitiesIssued,
		m.transitions,
		m.batchItems,
		m.allocateLatency,
		m.httpRequests,
		m.httpErrors,
	)
	return m
}

// RecordIssued counts one issued identity.
func (m *Metrics) RecordIssued(issuerID string) {
	if m == nil {
		return
	}
	m.identitiesIssued.WithLabelValues(issuerID).Inc()
}

// RecordTransition counts one committed transition.
func (m *Metrics) RecordTransition(status domain.IdentityStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(status)).Inc()
}

// RecordBatchItem counts one processed batch item.
func (m *Metrics) RecordBatchItem(outcome string) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(outcome).Inc()
}

// ObserveAllocate records allocation latency.
func (m *Metrics) ObserveAllocate(d time.Duration) {
	if m == nil {
		return
	}
	m.allocateLatency.Observe(d.Seconds())
}

// RecordRequest counts one HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// RecordError counts one HTTP error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}
