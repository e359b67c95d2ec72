package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	AnomaliesTotal      prometheus.Counter
	AnomalyScore        prometheus.Histogram
	TrackedIdentities   prometheus.Gauge
	RebuildDuration     prometheus.Histogram
	RebuildQueueDrops   prometheus.Counter
	PersistenceFailures *prometheus.CounterVec
	InvalidActionsTotal prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_decisions_total",
			Help: "Total admission decisions by outcome",
		}, []string{"outcome", "category"}),
		AnomaliesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_anomalies_total",
			Help: "Total evaluations that crossed the anomaly threshold",
		}),
		AnomalyScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_anomaly_score",
			Help:    "Distribution of computed anomaly scores",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.75, 0.9, 1.0, 1.3},
		}),
		TrackedIdentities: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_tracked_identities",
			Help: "Current number of identities with recorded history",
		}),
		RebuildDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_baseline_rebuild_duration_seconds",
			Help:    "Latency of baseline recomputations",
			Buckets: prometheus.DefBuckets,
		}),
		RebuildQueueDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_rebuild_queue_drops_total",
			Help: "Rebuild requests dropped because the worker queue was full",
		}),
		PersistenceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_baseline_persistence_failures_total",
			Help: "Baseline gateway failures by operation (non-fatal)",
		}, []string{"op"}),
		InvalidActionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_invalid_actions_total",
			Help: "Actions rejected at the boundary as malformed",
		}),
	}
}

func (m *Metrics) RecordDecision(allowed bool, category string) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	m.DecisionsTotal.WithLabelValues(outcome, category).Inc()
}

func (m *Metrics) ObserveScore(score float64) {
	m.AnomalyScore.Observe(score)
}

func (m *Metrics) IncrementAnomalies() {
	m.AnomaliesTotal.Inc()
}

func (m *Metrics) SetTrackedIdentities(count int) {
	m.TrackedIdentities.Set(float64(count))
}

func (m *Metrics) ObserveRebuildDuration(seconds float64) {
	m.RebuildDuration.Observe(seconds)
}

func (m *Metrics) IncRebuildQueueDrops() {
	m.RebuildQueueDrops.Inc()
}

func (m *Metrics) IncPersistenceFailures(op string) {
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) IncInvalidActions() {
	m.InvalidActionsTotal.Inc()
}
