package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a product write request.
const (
	OutcomeCommitted        = "committed"
	OutcomeValidationFailed = "validation_failed"
	OutcomeCommitFailed     = "commit_failed"
)

// Sale document transitions produced by the sync engine.
const (
	TransitionMarkedSold = "marked_sold"
	TransitionRefreshed  = "refreshed"
	TransitionReverted   = "reverted"
	TransitionDeleted    = "deleted"
)

var (
	ProductWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "product_writes_total",
			Help: "Product create/update/delete requests by outcome",
		},
		[]string{"op", "outcome"},
	)

	SaleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_transitions_total",
			Help: "Sale document writes committed together with a product write",
		},
		[]string{"transition"},
	)

	ReconcileJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_jobs_total",
			Help: "Duplicate-sale reconciliation jobs by queue",
		},
		[]string{"queue"},
	)

	ReconcileDuplicatesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_duplicates_deleted_total",
			Help: "Stray sale documents removed by reconciliation",
		},
	)

	ReconcileFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_failures_total",
			Help: "Reconciliation runs that failed and were skipped",
		},
	)

	OwnerContributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "owner_contributions_total",
			Help: "Contribution events applied to owners",
		},
	)

	SnapshotsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_received_total",
			Help: "Collection snapshots delivered to the dashboard feed",
		},
		[]string{"collection"},
	)

	DashboardComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_compute_duration_seconds",
			Help:    "Time spent deriving dashboard views from a snapshot",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)
)

func RecordProductWrite(op, outcome string) {
	ProductWritesTotal.WithLabelValues(op, outcome).Inc()
}

func RecordSaleTransition(transition string) {
	SaleTransitionsTotal.WithLabelValues(transition).Inc()
}

func RecordReconcileJob(queue string) {
	ReconcileJobsTotal.WithLabelValues(queue).Inc()
}

func RecordDuplicatesDeleted(n int) {
	ReconcileDuplicatesDeleted.Add(float64(n))
}

func RecordReconcileFailure() {
	ReconcileFailuresTotal.Inc()
}

func RecordSnapshot(collection string) {
	SnapshotsReceivedTotal.WithLabelValues(collection).Inc()
}

// ObserveDashboard records how long a view took since start.
func ObserveDashboard(view string, start time.Time) {
	DashboardComputeDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
