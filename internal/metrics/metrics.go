// Package metrics exposes Loom's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	casesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "cases_started_total",
			Help:      "Total number of investigation cases started.",
		},
	)

	casesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "cases_finished_total",
			Help:      "Total number of cases reaching a terminal status, partitioned by status.",
		},
		[]string{"status"},
	)

	caseDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "loom",
			Name:      "case_duration_seconds",
			Help:      "End-to-end case pipeline latency in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	toolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loom",
			Name:      "tool_executions_total",
			Help:      "Total tool adapter executions, partitioned by tool and result status.",
		},
		[]string{"tool", "status"},
	)
)

// Register attaches Loom collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		casesStarted,
		casesFinished,
		caseDurationSeconds,
		toolExecutions,
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

// CaseStarted records a case entering the pipeline.
func CaseStarted() {
	casesStarted.Inc()
}

// CaseFinished records a terminal transition and the full pipeline duration.
func CaseFinished(status string, duration time.Duration) {
	casesFinished.WithLabelValues(status).Inc()
	if duration < 0 {
		duration = 0
	}
	caseDurationSeconds.Observe(duration.Seconds())
}

// ToolExecuted records one adapter execution outcome.
func ToolExecuted(tool, status string) {
	toolExecutions.WithLabelValues(tool, status).Inc()
}
