package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var reconcileTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "gati_reconcile_total",
		Help: "Total number of completed reconciliation attempt sequences by resource kind and result.",
	},
	[]string{"kind", "result"},
)

var reconcileRetriesTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "gati_reconcile_retries_total",
		Help: "Total number of reconciliation retries by resource kind.",
	},
	[]string{"kind"},
)

var reconcileDuration = promauto.With(prometheus.DefaultRegisterer).NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gati_reconcile_duration_seconds",
		Help:    "Duration of a full reconciliation attempt sequence, including retries.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind"},
)

var inflightReconciles = promauto.With(prometheus.DefaultRegisterer).NewGauge(
	prometheus.GaugeOpts{
		Name: "gati_inflight_reconciles",
		Help: "Number of reconciliations currently in flight.",
	},
)

// RecordReconcile records the outcome ("success" or "failure") and duration
// in seconds of a full reconciliation attempt sequence.
func RecordReconcile(kind, result string, seconds float64) {
	reconcileTotal.WithLabelValues(kind, result).Inc()
	reconcileDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordRetry increments the retry counter for a kind.
func RecordRetry(kind string) {
	reconcileRetriesTotal.WithLabelValues(kind).Inc()
}

// InflightInc marks a reconciliation as started.
func InflightInc() {
	inflightReconciles.Inc()
}

// InflightDec marks a reconciliation as finished.
func InflightDec() {
	inflightReconciles.Dec()
}
