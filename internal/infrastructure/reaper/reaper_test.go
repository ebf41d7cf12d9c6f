package reaper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	s.calls.Add(1)
	return 0, s.err
}

func TestReaperSweepsOnInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	r := New(Config{Sweeper: sweeper, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := r.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// One immediate sweep plus at least a few ticks.
	assert.GreaterOrEqual(t, sweeper.calls.Load(), int32(3))
}

func TestReaperKeepsRunningOnSweepError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	r := New(Config{Sweeper: sweeper, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = r.Start(ctx)

	assert.GreaterOrEqual(t, sweeper.calls.Load(), int32(2))
}

func TestReaperStopsOnCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	r := New(Config{Sweeper: sweeper, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
