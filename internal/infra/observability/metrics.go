package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus metrics of the statement service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can serve it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	settlements     *prometheus.CounterVec
	autopayRuns     *prometheus.CounterVec
	botUpdates      *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers
// all application metrics in it. A private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in
// tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faturas_request_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_settlements_total",
				Help: "Settlement attempts by outcome.",
			},
			[]string{"outcome"},
		),
		autopayRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_autopay_total",
				Help: "Automated settlement and reminder outcomes.",
			},
			[]string{"outcome"},
		),
		botUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_bot_updates_total",
				Help: "Inbound chat updates by kind.",
			},
			[]string{"kind"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faturas_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrSettlement increments the settlement counter for an outcome
// (success, insufficient_funds, already_settled, error).
func (m *Metrics) IncrSettlement(outcome string) {
	m.settlements.WithLabelValues(outcome).Inc()
}

// IncrAutoPay increments the automation counter for an outcome.
func (m *Metrics) IncrAutoPay(outcome string) {
	m.autopayRuns.WithLabelValues(outcome).Inc()
}

// IncrBotUpdate increments the chat update counter by kind
// (command, callback, unknown).
func (m *Metrics) IncrBotUpdate(kind string) {
	m.botUpdates.WithLabelValues(kind).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// SettlementCount reads back the current value of the settlement
// counter for one outcome. Used by tests.
func (m *Metrics) SettlementCount(outcome string) float64 {
	return counterValue(m.settlements, outcome)
}

// ExternalErrorCount reads back the upstream error counter for one
// service. Used by tests.
func (m *Metrics) ExternalErrorCount(service string) float64 {
	return counterValue(m.externalErrors, service)
}

func counterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	out := &dto.Metric{}
	if err := counter.Write(out); err != nil {
		return 0
	}
	if out.Counter != nil && out.Counter.Value != nil {
		return *out.Counter.Value
	}
	return 0
}
