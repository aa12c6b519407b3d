// Package metrics exposes Prometheus metrics for the matching engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the matching engine's Prometheus collectors.
type Metrics struct {
	CyclesRun        *prometheus.CounterVec
	MatchesCommitted prometheus.Counter
	MirrorFailures   prometheus.Counter
	CycleDuration    prometheus.Histogram
}

// New creates and registers all matching metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		CyclesRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "organlink_match_cycles_total",
			Help: "Match cycles executed, labeled by outcome.",
		}, []string{"outcome"}),
		MatchesCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "organlink_matches_committed_total",
			Help: "Matches committed to the local store and ledger.",
		}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "organlink_mirror_failures_total",
			Help: "External trust ledger mirror calls that failed.",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "organlink_match_cycle_duration_seconds",
			Help:    "Wall time of one match cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveCycle(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.CyclesRun.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncMatches() {
	if m == nil {
		return
	}
	m.MatchesCommitted.Inc()
}

func (m *Metrics) IncMirrorFailures() {
	if m == nil {
		return
	}
	m.MirrorFailures.Inc()
}
