package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "currency_rates"

const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Metrics groups the collectors of the rate acquisition pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec
	RatesFlushed     *prometheus.CounterVec
	FlushDuration    *prometheus.HistogramVec
	BackfillInserted prometheus.Counter
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Rate requests sent to external providers by outcome",
		}, []string{"provider", "outcome"}),
		RatesFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_total",
			Help:      "Exchange rates written to storage by batch flushes",
		}, []string{"policy"}),
		FlushDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_duration_seconds",
			Help:      "Duration of batch flushes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"policy"}),
		BackfillInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_inserted_total",
			Help:      "Rows inserted by historical backfills",
		}),
	}
}

func (m *Metrics) ProviderRequest(provider, outcome string) {
	if m == nil {
		return
	}

	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Flushed(policy string, count int, seconds float64) {
	if m == nil {
		return
	}

	m.RatesFlushed.WithLabelValues(policy).Add(float64(count))
	m.FlushDuration.WithLabelValues(policy).Observe(seconds)
}

func (m *Metrics) Backfilled(inserted int64) {
	if m == nil {
		return
	}

	m.BackfillInserted.Add(float64(inserted))
}
