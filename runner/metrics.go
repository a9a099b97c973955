package runner

import (
	"time"

	"github.com/brimdata/semq/compiler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the runner's Prometheus collectors.  A nil *Metrics records
// nothing.
type Metrics struct {
	rounds       prometheus.Counter
	fetches      *prometheus.CounterVec
	cacheHits    prometheus.Counter
	translations *prometheus.CounterVec
	duration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rounds: factory.NewCounter(prometheus.CounterOpts{
			Name: "semq_fetch_rounds_total",
			Help: "Number of fetch rounds run by translations.",
		}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semq_fetches_total",
			Help: "Number of imports and schemas fetched.",
		}, []string{"kind", "outcome"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "semq_fetch_cache_hits_total",
			Help: "Number of fetches answered from the cache.",
		}),
		translations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "semq_translations_total",
			Help: "Number of finished translations.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "semq_translation_seconds",
			Help:    "Time to finish a translation, including fetches.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) round() {
	if m != nil {
		m.rounds.Inc()
	}
}

func (m *Metrics) fetched(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) observe(elapsed time.Duration, resp *compiler.Response) {
	if m == nil {
		return
	}
	outcome := "translated"
	if resp.Translated == nil {
		outcome = "failed"
	}
	m.translations.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// RoundsCounter exposes the fetch round counter for tests and dashboards.
func (m *Metrics) RoundsCounter() prometheus.Counter {
	return m.rounds
}
