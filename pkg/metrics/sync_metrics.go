package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tenantLabels = []string{"company", "division"}

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tallysync_runs_total",
		Help: "Completed sync runs per tenant.",
	}, tenantLabels)

	SyncRecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tallysync_records_processed_total",
		Help: "Records upserted into the normalized schema per tenant.",
	}, tenantLabels)

	SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tallysync_errors_total",
		Help: "Rejected, conflicted and failed rows per tenant.",
	}, tenantLabels)

	SyncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tallysync_run_duration_seconds",
		Help:    "Wall-clock duration of sync runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, tenantLabels)
)
