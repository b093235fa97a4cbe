package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/instrumetriq/tier-inspector/internal/models"
)

const (
	// OutcomeSuccess labels inspections that produced a report.
	OutcomeSuccess = "success"
	// OutcomeError labels inspections halted by a fatal condition.
	OutcomeError = "error"
)

var (
	inspectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tier_inspector",
			Name:      "inspections_total",
			Help:      "Total number of snapshot inspections, partitioned by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	inspectionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tier_inspector",
			Name:      "inspection_seconds",
			Help:      "Inspection latency in seconds, excluding table loading.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"tier"},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tier_inspector",
			Name:      "anomalies_total",
			Help:      "Recoverable data anomalies found during inspections, by tier and kind.",
		},
		[]string{"tier", "kind"},
	)

	tableRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tier_inspector",
			Name:      "last_table_records",
			Help:      "Record count of the most recently inspected table per tier.",
		},
		[]string{"tier"},
	)
)

// Register attaches tier-inspector collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		inspectionsTotal,
		inspectionDurationSeconds,
		anomaliesTotal,
		tableRecords,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInspection records an inspection duration and outcome label.
func ObserveInspection(tier string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	inspectionsTotal.WithLabelValues(tier, label).Inc()
	if duration < 0 {
		duration = 0
	}
	inspectionDurationSeconds.WithLabelValues(tier).Observe(duration.Seconds())
}

// ObserveReport records the anomaly tallies and table size of a finished report.
func ObserveReport(report models.Report) {
	tableRecords.WithLabelValues(report.Tier).Set(float64(report.Basics.Records))
	for _, a := range report.Anomalies {
		anomaliesTotal.WithLabelValues(report.Tier, string(a.Kind)).Add(float64(a.Count))
	}
}
