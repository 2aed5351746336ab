package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "positions"

// Metrics records retry and aggregation activity.
type Metrics struct {
	retryAttempts     *prometheus.CounterVec
	retryExhausted    *prometheus.CounterVec
	aggregateDuration *prometheus.HistogramVec
	poolFailures      prometheus.Counter
	unitsInFlight     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retries scheduled after a failed call, by operation.",
		}, []string{"op"}),
		retryExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Calls that failed after every retry, by operation.",
		}, []string{"op"}),
		aggregateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_duration_seconds",
			Help:      "Wall time of one wallet aggregation, by outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"status"}),
		poolFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_failures_total",
			Help:      "Pools dropped from a result after failing.",
		}),
		unitsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_units_in_flight",
			Help:      "Pool units currently being aggregated.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.retryAttempts, m.retryExhausted, m.aggregateDuration, m.poolFailures, m.unitsInFlight)
	}
	return m
}

func (m *Metrics) OnRetry(op string, _ int, _ time.Duration, _ error) {
	m.retryAttempts.WithLabelValues(op).Inc()
}

func (m *Metrics) OnExhausted(op string, _ int, _ error) {
	m.retryExhausted.WithLabelValues(op).Inc()
}

func (m *Metrics) PoolUnitStarted() {
	m.unitsInFlight.Inc()
}

func (m *Metrics) PoolUnitFinished() {
	m.unitsInFlight.Dec()
}

func (m *Metrics) PoolFailed(string) {
	m.poolFailures.Inc()
}

func (m *Metrics) AggregateFinished(status string, elapsed time.Duration) {
	m.aggregateDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
