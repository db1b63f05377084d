package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	queries         *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	commits         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	syncedResources prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_queries_total",
				Help:      "Count of availability queries by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "availability_query_duration_seconds",
				Help:      "Latency of availability queries.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "booking_commits_total",
				Help:      "Count of booking commits by outcome.",
			},
			[]string{"outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Count of API requests by route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_cache_lookups_total",
				Help:      "Count of service catalog cache lookups by result.",
			},
			[]string{"result"},
		),
		syncedResources: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "synced_resources",
				Help:      "Number of staff members loaded by the last salon sync.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.queries, m.queryDuration, m.commits, m.httpRequests, m.cacheLookups, m.syncedResources)
	}
	return m
}

func (m *Metrics) ObserveQuery(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(operation, outcome).Inc()
	m.queryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCommit(outcome string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncHTTP(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetSyncedResources(n int) {
	if m == nil {
		return
	}
	m.syncedResources.Set(float64(n))
}
