package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	planPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workload_service",
		Subsystem: "persistence",
		Name:      "last_plan_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workload plan persisted to Postgres.",
	})
	actualPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "workload_service",
		Subsystem: "persistence",
		Name:      "last_actual_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workload actual persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(planPersistGauge, actualPersistGauge)
}

// RecordPlanPersisted updates the plan persistence watermark gauge.
func RecordPlanPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	planPersistGauge.Set(float64(ts.Unix()))
}

// RecordActualPersisted updates the actual persistence watermark gauge.
func RecordActualPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	actualPersistGauge.Set(float64(ts.Unix()))
}
