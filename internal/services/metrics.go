package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "emspulse",
		Name:      "reports_generated_total",
		Help:      "Number of report artifacts rendered and stored.",
	})

	reportGenerationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "emspulse",
		Name:      "report_generation_seconds",
		Help:      "End-to-end merge, summarize and render duration.",
		Buckets:   prometheus.DefBuckets,
	})

	reportStamps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emspulse",
		Name:      "report_stamps_total",
		Help:      "Review and approval stamps applied to stored reports.",
	}, []string{"kind"})

	mergedRowCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "emspulse",
		Name:      "merged_rows_per_report",
		Help:      "Merged dataset row count per generated report.",
		Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
	})
)
