package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/finvoice/ledgerd/internal/infrastructure/metrics"
)

// PostgreSQL error codes for retryable errors.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// Retrier implements usecase.Retrier with exponential backoff. Group
// execution acquires row locks in sorted id order, so deadlocks and
// serialization failures are rare; when one does happen the whole group
// re-runs against a fresh snapshot.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

// NewRetrier creates a retrier with default settings. A nil metrics
// value disables counting.
func NewRetrier(m *metrics.Metrics) *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: 50 * time.Millisecond,
		maxInterval:     1 * time.Second,
		maxElapsedTime:  10 * time.Second,
		metrics:         m,
		logger:          slog.Default(),
	}
}

// Retry executes an operation, re-running it on retryable database
// errors up to maxRetries times.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			// Only count database-side failures; business rejections
			// also travel through here and are not errors of ours.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				r.countError("permanent")
			}

			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			r.countError("retries_exhausted")

			return backoff.Permanent(err)
		}

		r.countRetry()
		r.logger.Warn("retryable database error, retrying",
			"error", err,
			"retry", retryCount,
		)

		return err
	}, backoff.WithContext(b, ctx))
}

func (r *Retrier) countRetry() {
	if r.metrics != nil {
		r.metrics.DBRetries.Inc()
	}
}

func (r *Retrier) countError(reason string) {
	if r.metrics != nil {
		r.metrics.DBErrors.WithLabelValues(reason).Inc()
	}
}

// isRetryableError checks if a PostgreSQL error should trigger a retry.
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return false
}
