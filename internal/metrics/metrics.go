// Package metrics exposes the Prometheus collectors for the triage engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that produced a run.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses that failed before a run was stored.
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "analyses_total",
			Help:      "Total number of analysis runs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analyzeDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Name:      "analyze_seconds",
			Help:      "Analysis latency in seconds, including retrieval and enhancement.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 12},
		},
	)

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "decisions_total",
			Help:      "Total number of recorded decisions, partitioned by final action.",
		},
		[]string{"final_action"},
	)

	issuesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Name:      "issues_created_total",
			Help:      "Total number of created issues, partitioned by classified type.",
		},
		[]string{"issue_type"},
	)
)

// Register attaches triage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analyzeDurationSeconds,
		decisionsTotal,
		issuesCreatedTotal,
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

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analyzeDurationSeconds.Observe(duration.Seconds())
}

// IncDecision counts a recorded decision by its final action.
func IncDecision(finalAction string) {
	decisionsTotal.WithLabelValues(finalAction).Inc()
}

// IncIssueCreated counts a created issue by its classified type.
func IncIssueCreated(issueType string) {
	issuesCreatedTotal.WithLabelValues(issueType).Inc()
}
