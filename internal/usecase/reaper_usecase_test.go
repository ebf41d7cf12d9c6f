package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/usecase"
	"github.com/finvoice/ledgerd/internal/usecase/mocks"
)

func newReaperFixture(t *testing.T) (*fixture, *usecase.TimeoutReaper) {
	t.Helper()

	f := newFixture(t)
	reaper := usecase.NewTimeoutReaper(f.transfers, f.processor, mocks.NewMockIDGenerator(), nil, nil)

	return f, reaper
}

// ageOut makes the sweep see a pending transfer whose timeout elapsed
// long ago. The committed row itself is untouched; only the expiry scan
// is steered.
func ageOut(t *testing.T, f *fixture, id string, age time.Duration) {
	t.Helper()

	stored, err := f.transfers.GetByID(context.Background(), tenantID, id)
	require.NoError(t, err)
	stored.CreatedAt = stored.CreatedAt.Add(-age)

	f.transfers.ListExpiredPendingFunc = func(ctx context.Context, now time.Time, limit int) ([]*domain.Transfer, error) {
		return []*domain.Transfer{stored}, nil
	}
}

func TestSweepVoidsExpiredPending(t *testing.T) {
	f, reaper := newReaperFixture(t)

	pending := transferReq("acc-a", "acc-b", 100)
	pending.IsPending = true
	pending.Timeout = time.Second
	require.True(t, f.submit(t, pending)[0].Committed)

	ageOut(t, f, pending.ID, time.Minute)

	voided, err := reaper.SweepExpired(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, voided)

	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPending.IsZero())
	assert.True(t, a.DebitsPosted.IsZero())

	orig, err := f.transfers.GetByID(context.Background(), tenantID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoided, orig.Status)
	require.NotNil(t, orig.ResolvedByID)

	// The synthesized void is itself a committed transfer.
	voider, err := f.transfers.GetByID(context.Background(), tenantID, *orig.ResolvedByID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindVoidPending, voider.Kind)
	assert.True(t, voider.Amount.Equal(decimal.NewFromInt(100)))
}

func TestSweepSkipsLostRace(t *testing.T) {
	f, reaper := newReaperFixture(t)

	pending := transferReq("acc-a", "acc-b", 100)
	pending.IsPending = true
	pending.Timeout = time.Second
	f.submit(t, pending)

	// A live post wins before the sweep runs.
	post := transferReq("acc-a", "acc-b", 100)
	post.PendingID = &pending.ID
	post.Resolve = domain.ResolvePost
	require.True(t, f.submit(t, post)[0].Committed)

	expired := []*domain.Transfer{{
		TenantID:        tenantID,
		ID:              pending.ID,
		CausedByEventID: pending.CausedByEventID,
		GroupingID:      pending.GroupingID,
		DebitAccountID:  pending.DebitAccountID,
		CreditAccountID: pending.CreditAccountID,
		LedgerID:        pending.LedgerID,
		Code:            pending.Code,
		Amount:          pending.Amount,
		Kind:            domain.KindPending,
		Status:          domain.StatusPending,
		Timeout:         pending.Timeout,
		CreatedAt:       time.Now().UTC().Add(-time.Minute),
	}}
	f.transfers.ListExpiredPendingFunc = func(ctx context.Context, now time.Time, limit int) ([]*domain.Transfer, error) {
		return expired, nil
	}

	voided, err := reaper.SweepExpired(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, voided)

	// The live post's effect stands.
	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPosted.Equal(decimal.NewFromInt(100)))
	assert.True(t, a.DebitsPending.IsZero())
}

func TestSweepEmptyBatch(t *testing.T) {
	_, reaper := newReaperFixture(t)

	voided, err := reaper.SweepExpired(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, voided)
}
