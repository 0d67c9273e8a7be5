package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the routing counters on a private registry so that several
// routers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
	routeDuration prometheus.Histogram
}

// NewMetrics registers the BallotBot metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbot_queries_total",
			Help: "Routed queries by response type tag.",
		}, []string{"type"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbot_cache_lookups_total",
			Help: "Cache lookups by cache name and result (hit or miss).",
		}, []string{"cache", "result"}),
		llmCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbot_llm_calls_total",
			Help: "Completion calls by outcome (ok or error).",
		}, []string{"outcome"}),
		routeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ballotbot_route_duration_seconds",
			Help:    "Time spent routing one query.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveQuery counts one routed query and its latency.
func (m *Metrics) ObserveQuery(typ string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(typ).Inc()
	m.routeDuration.Observe(elapsed.Seconds())
}

// CacheLookup counts one cache lookup.
func (m *Metrics) CacheLookup(cacheName string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cacheName, result).Inc()
}

// LLMCall counts one completion call.
func (m *Metrics) LLMCall(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
