package postgres

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvoice/ledgerd/internal/infrastructure/metrics"
)

func newFastRetrier() *Retrier {
	return &Retrier{
		maxRetries:      3,
		initialInterval: time.Millisecond,
		maxInterval:     time.Millisecond,
		maxElapsedTime:  time.Second,
		logger:          slog.Default(),
	}
}

// newRetrierMetrics builds unregistered counters so tests can assert on
// them without touching the default registry.
func newRetrierMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		DBRetries: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_db_retries_total"}),
		DBErrors:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_db_errors_total"}, []string{"reason"}),
	}
}

func TestRetrierPermanentErrorRunsOnce(t *testing.T) {
	r := newFastRetrier()

	attempts := 0
	sentinel := errors.New("bad request")

	err := r.Retry(context.Background(), func() error {
		attempts++
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestRetrierRetriesDeadlock(t *testing.T) {
	r := newFastRetrier()

	attempts := 0

	err := r.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: pgErrDeadlock}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	r := newFastRetrier()

	attempts := 0

	err := r.Retry(context.Background(), func() error {
		attempts++
		return &pgconn.PgError{Code: pgErrSerializationFailure}
	})

	require.Error(t, err)
	// Initial attempt plus maxRetries retries.
	assert.Equal(t, r.maxRetries+1, attempts)
}

func TestRetrierCountsRetries(t *testing.T) {
	r := newFastRetrier()
	r.metrics = newRetrierMetrics()

	attempts := 0

	err := r.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: pgErrDeadlock}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.DBRetries))
}

func TestRetrierCountsExhaustionAndPermanentFailures(t *testing.T) {
	r := newFastRetrier()
	r.metrics = newRetrierMetrics()

	err := r.Retry(context.Background(), func() error {
		return &pgconn.PgError{Code: pgErrSerializationFailure}
	})
	require.Error(t, err)
	assert.Equal(t, float64(r.maxRetries), testutil.ToFloat64(r.metrics.DBRetries))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.DBErrors.WithLabelValues("retries_exhausted")))

	err = r.Retry(context.Background(), func() error {
		return &pgconn.PgError{Code: "23505"}
	})
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.DBErrors.WithLabelValues("permanent")))

	// Business errors travelling through the retrier are not database
	// errors and must not be counted.
	err = r.Retry(context.Background(), func() error {
		return errors.New("domain rejection")
	})
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.DBErrors.WithLabelValues("permanent")))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&pgconn.PgError{Code: pgErrDeadlock}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: pgErrSerializationFailure}))
	assert.False(t, isRetryableError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryableError(errors.New("plain error")))
}
