// Package metrics holds the Prometheus collectors of the stores and adapters.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics of a cqldata process.
type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
	CacheRequests *prometheus.CounterVec
	LogWrites     *prometheus.CounterVec
	Statements    prometheus.GaugeFunc
}

// New creates the collectors and registers them on reg. statements, when not nil,
// reports the size of the prepared statement table.
func New(reg prometheus.Registerer, statements func() float64) *Metrics {
	m := &Metrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cqldata",
			Name:      "query_duration_seconds",
			Help:      "Duration of store round trips by table and operation.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"table", "op"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqldata",
			Name:      "query_errors_total",
			Help:      "Store round trips that returned an error.",
		}, []string{"table", "op"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqldata",
			Name:      "cache_requests_total",
			Help:      "Cache lookups by result (hit, miss, create).",
		}, []string{"result"}),
		LogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqldata",
			Name:      "log_writes_total",
			Help:      "Log writes by level and whether the level gate let them through.",
		}, []string{"level", "persisted"}),
	}
	collectors := []prometheus.Collector{m.QueryDuration, m.QueryErrors, m.CacheRequests, m.LogWrites}
	if statements != nil {
		m.Statements = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cqldata",
			Name:      "prepared_statements",
			Help:      "Distinct CQL statements memoized by the statement cache.",
		}, statements)
		collectors = append(collectors, m.Statements)
	}
	if reg != nil {
		reg.MustRegister(collectors...)
	}
	return m
}

// ObserveQuery records one round trip started at start.
func (m *Metrics) ObserveQuery(table string, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.QueryErrors.WithLabelValues(table, op).Inc()
	}
}

// CacheResult counts a cache lookup; result is "hit", "miss" or "create".
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// LogWrite counts a log write attempt.
func (m *Metrics) LogWrite(level string, persisted bool) {
	if m == nil {
		return
	}
	p := "false"
	if persisted {
		p = "true"
	}
	m.LogWrites.WithLabelValues(level, p).Inc()
}
