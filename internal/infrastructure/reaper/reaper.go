package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/finvoice/ledgerd/internal/usecase"
)

// Reaper runs the timeout sweep on a fixed interval.
type Reaper struct {
	sweeper   Sweeper
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

// Sweeper voids one batch of expired pending transfers.
type Sweeper interface {
	SweepExpired(ctx context.Context, batchSize int) (int, error)
}

// Config for Reaper.
type Config struct {
	Sweeper   Sweeper
	Logger    *slog.Logger
	BatchSize int           // Number of expired transfers to void per sweep
	Interval  time.Duration // Polling interval
}

// New creates a new Reaper.
func New(cfg Config) *Reaper {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = usecase.DefaultSweepBatchSize
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Reaper{
		sweeper:   cfg.Sweeper,
		logger:    cfg.Logger,
		batchSize: cfg.BatchSize,
		interval:  cfg.Interval,
	}
}

// Start begins the sweep loop. It runs continuously until the context
// is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	r.logger.Info("timeout reaper started",
		slog.Int("batch_size", r.batchSize),
		slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Sweep immediately on start
	if _, err := r.sweeper.SweepExpired(ctx, r.batchSize); err != nil {
		r.logger.Error("sweep failed on start", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("timeout reaper shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.sweeper.SweepExpired(ctx, r.batchSize); err != nil {
				r.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
