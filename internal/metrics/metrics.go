// Package metrics exposes Prometheus instrumentation for filesystem operations.
package metrics

import (
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bucketfs"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Collector records operation counts, latencies and listed pages.
// A nil *Collector is valid and records nothing.
type Collector struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	pages      prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Filesystem operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Filesystem operation latency, including every backend call it issued.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_pages_total",
			Help:      "List pages fetched from the storage backend.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.operations, c.durations, c.pages)
	}
	return c
}

// Observe records one finished operation.
func (c *Collector) Observe(op string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(op, Outcome(err)).Inc()
	c.durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// PageListed counts one fetched list page.
func (c *Collector) PageListed() {
	if c == nil {
		return
	}
	c.pages.Inc()
}

// Outcome classifies err into an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errs.IsNotFound(err):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
