package metrics

import (
	"time"

	"github.com/chriskillpack/human360/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "human360_analyses_total",
			Help: "Total number of portrait analyses by backend and outcome",
		},
		[]string{"backend", "status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "human360_analysis_duration_seconds",
			Help:    "Duration of the model call for a portrait analysis in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"backend"},
	)

	ReportFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "human360_report_fields_total",
			Help: "Expected report fields seen by validation status",
		},
		[]string{"field", "status"},
	)
)

// ObserveAnalysis records the outcome of one analysis. v is nil for a failed
// analysis.
func ObserveAnalysis(backend string, took time.Duration, v report.Validation, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	AnalysesTotal.WithLabelValues(backend, status).Inc()
	AnalysisDuration.WithLabelValues(backend).Observe(took.Seconds())

	for _, fr := range v {
		ReportFields.WithLabelValues(fr.Key, string(fr.Status)).Inc()
	}
}
