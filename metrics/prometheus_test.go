package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveQuery("files", "get", time.Now(), errors.New("x"))
	m.CacheResult("hit")
	m.LogWrite("debug", false)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, func() float64 { return 3 })

	m.ObserveQuery("files", "get", time.Now(), nil)
	m.ObserveQuery("files", "get", time.Now(), errors.New("boom"))
	m.CacheResult("miss")
	m.CacheResult("miss")
	m.LogWrite("info", true)

	if got := testutil.ToFloat64(m.QueryErrors.WithLabelValues("files", "get")); got != 1 {
		t.Errorf("query errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LogWrites.WithLabelValues("info", "true")); got != 1 {
		t.Errorf("log writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Statements); got != 3 {
		t.Errorf("statements = %v, want 3", got)
	}
}
