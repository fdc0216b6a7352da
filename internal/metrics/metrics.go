package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_submissions_total",
		Help: "Submissions by outcome (accepted, consent_denied, validation_failed, rate_limited).",
	}, []string{"outcome", "data_type"})

	CheckFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_privacy_check_failures_total",
		Help: "Validator check failures by check name.",
	}, []string{"check"})

	RiskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cohort_submission_risk_score",
		Help:    "Risk scores of rejected submissions.",
		Buckets: []float64{10, 20, 30, 40, 50, 75, 100},
	})

	GroupSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cohort_quasi_group_size",
		Help:    "Distinct-segment group sizes observed at submission time.",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
	})

	ReportsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_reports_generated_total",
		Help: "Generated reports by type.",
	}, []string{"report_type"})

	SuppressedGroupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cohort_report_groups_suppressed_total",
		Help: "Report slices dropped at query time for falling below the anonymity threshold.",
	})
)
