package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transfer metrics
	TransfersCommitted prometheus.Counter
	TransfersRejected  *prometheus.CounterVec
	TransferDuration   prometheus.Histogram

	// Group metrics
	GroupsCommitted prometheus.Counter
	GroupsFailed    prometheus.Counter
	GroupSize       prometheus.Histogram

	// Idempotency metrics
	IdempotentReplays    prometheus.Counter
	IdempotencyConflicts prometheus.Counter

	// Reaper metrics
	ReaperSweeps    prometheus.Counter
	ReaperVoided    prometheus.Counter
	ReaperLostRaces prometheus.Counter
	SweepDuration   prometheus.Histogram

	// Database metrics
	DBRetries prometheus.Counter
	DBErrors  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		TransfersCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_transfers_committed_total",
			Help: "Total number of transfers committed",
		}),
		TransfersRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerd_transfers_rejected_total",
				Help: "Total number of transfers rejected by error class",
			},
			[]string{"class"},
		),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerd_transfer_duration_seconds",
			Help:    "Duration of transfer group processing",
			Buckets: prometheus.DefBuckets,
		}),

		GroupsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_groups_committed_total",
			Help: "Total number of transfer groups committed",
		}),
		GroupsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_groups_failed_total",
			Help: "Total number of transfer groups that failed atomically",
		}),
		GroupSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerd_group_size",
			Help:    "Number of transfers per submitted group",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),

		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_idempotent_replays_total",
			Help: "Total number of transfers served from the idempotency guard",
		}),
		IdempotencyConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_idempotency_conflicts_total",
			Help: "Total number of id reuses with a differing payload",
		}),

		ReaperSweeps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_reaper_sweeps_total",
			Help: "Total number of reaper sweeps",
		}),
		ReaperVoided: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_reaper_voided_total",
			Help: "Total number of pending transfers voided on timeout",
		}),
		ReaperLostRaces: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_reaper_lost_races_total",
			Help: "Total number of sweeps that lost the race to a live resolve",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerd_reaper_sweep_duration_seconds",
			Help:    "Duration of reaper sweeps",
			Buckets: prometheus.DefBuckets,
		}),

		DBRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledgerd_db_retries_total",
			Help: "Total number of retried database transactions",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerd_db_errors_total",
				Help: "Total database errors by failure reason",
			},
			[]string{"reason"},
		),
	}
}
