package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/usecase"
	"github.com/finvoice/ledgerd/internal/usecase/mocks"
)

const (
	tenantID = "tenant-1"
	ledgerA  = "ledger-1"
	ledgerB  = "ledger-2"
)

type fixture struct {
	processor *usecase.TransferProcessor
	accounts  *mocks.MockAccountRepository
	transfers *mocks.MockTransferRepository
	store     *mocks.MockIdempotencyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accounts := mocks.NewMockAccountRepository()
	transfers := mocks.NewMockTransferRepository()
	ledgers := mocks.NewMockLedgerRepository()
	tenants := mocks.NewMockTenantRepository()
	store := mocks.NewMockIdempotencyStore()

	tenants.Seed(&domain.Tenant{ID: tenantID, Name: "test tenant"})
	ledgers.Seed(&domain.Ledger{TenantID: tenantID, ID: ledgerA, Currency: "USD", Scale: 2})
	ledgers.Seed(&domain.Ledger{TenantID: tenantID, ID: ledgerB, Currency: "EUR", Scale: 2})

	for _, acc := range []struct{ id, ledger string }{
		{"acc-a", ledgerA},
		{"acc-b", ledgerA},
		{"acc-c", ledgerA},
		{"acc-d", ledgerB},
	} {
		accounts.Seed(&domain.Account{TenantID: tenantID, ID: acc.id, LedgerID: acc.ledger})
	}

	processor := usecase.NewTransferProcessor(
		mocks.NewMockTransactionManager(),
		accounts, transfers, ledgers, tenants,
		usecase.NewIdempotencyGuard(store, time.Hour),
		mocks.NewMockRetrier(),
		domain.CodeRange{},
		nil, nil,
	)

	return &fixture{
		processor: processor,
		accounts:  accounts,
		transfers: transfers,
		store:     store,
	}
}

func transferReq(debit, credit string, amount int64) domain.CreateTransfer {
	return domain.CreateTransfer{
		ID:              ulid.Make().String(),
		CausedByEventID: "evt-1",
		GroupingID:      "grp-1",
		DebitAccountID:  debit,
		CreditAccountID: credit,
		LedgerID:        ledgerA,
		Code:            10,
		Amount:          decimal.NewFromInt(amount),
	}
}

func (f *fixture) submit(t *testing.T, reqs ...domain.CreateTransfer) []domain.TransferResult {
	t.Helper()

	results, err := f.processor.CreateTransfers(context.Background(), tenantID, [][]domain.CreateTransfer{reqs})
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	return results
}

func (f *fixture) account(t *testing.T, id string) *domain.Account {
	t.Helper()

	acc, err := f.accounts.GetByID(context.Background(), tenantID, id)
	require.NoError(t, err)

	return acc
}

func requireRejected(t *testing.T, result domain.TransferResult, code int) {
	t.Helper()

	require.False(t, result.Committed)
	require.NotNil(t, result.ErrorCode)
	require.Equal(t, code, *result.ErrorCode)
}

func TestPlainTransferPostsCounters(t *testing.T) {
	f := newFixture(t)

	results := f.submit(t, transferReq("acc-a", "acc-b", 100))
	require.True(t, results[0].Committed)

	assert.True(t, f.account(t, "acc-a").DebitsPosted.Equal(decimal.NewFromInt(100)))
	assert.True(t, f.account(t, "acc-b").CreditsPosted.Equal(decimal.NewFromInt(100)))

	stored, err := f.transfers.GetByID(context.Background(), tenantID, results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindTransfer, stored.Kind)
	assert.Equal(t, domain.StatusPosted, stored.Status)
}

func TestPendingRoundTripPost(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 100)
	pending.IsPending = true
	pending.Timeout = time.Minute

	results := f.submit(t, pending)
	require.True(t, results[0].Committed)

	assert.True(t, f.account(t, "acc-a").DebitsPending.Equal(decimal.NewFromInt(100)))
	assert.True(t, f.account(t, "acc-a").DebitsPosted.IsZero())

	post := transferReq("acc-a", "acc-b", 100)
	post.PendingID = &pending.ID
	post.Resolve = domain.ResolvePost

	results = f.submit(t, post)
	require.True(t, results[0].Committed)

	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPending.IsZero())
	assert.True(t, a.DebitsPosted.Equal(decimal.NewFromInt(100)))

	b := f.account(t, "acc-b")
	assert.True(t, b.CreditsPending.IsZero())
	assert.True(t, b.CreditsPosted.Equal(decimal.NewFromInt(100)))

	orig, err := f.transfers.GetByID(context.Background(), tenantID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPosted, orig.Status)
	require.NotNil(t, orig.ResolvedByID)
	assert.Equal(t, post.ID, *orig.ResolvedByID)
}

func TestVoidPendingReleasesReservation(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 75)
	pending.IsPending = true
	f.submit(t, pending)

	void := transferReq("acc-a", "acc-b", 75)
	void.PendingID = &pending.ID
	void.Resolve = domain.ResolveVoid

	results := f.submit(t, void)
	require.True(t, results[0].Committed)

	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPending.IsZero())
	assert.True(t, a.DebitsPosted.IsZero())

	orig, err := f.transfers.GetByID(context.Background(), tenantID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoided, orig.Status)
}

func TestSecondResolveRejected(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 50)
	pending.IsPending = true
	f.submit(t, pending)

	post := transferReq("acc-a", "acc-b", 50)
	post.PendingID = &pending.ID
	post.Resolve = domain.ResolvePost
	require.True(t, f.submit(t, post)[0].Committed)

	void := transferReq("acc-a", "acc-b", 50)
	void.PendingID = &pending.ID
	void.Resolve = domain.ResolveVoid

	requireRejected(t, f.submit(t, void)[0], domain.CodeAlreadyResolved)

	// The losing void must not have moved any counters.
	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPosted.Equal(decimal.NewFromInt(50)))
	assert.True(t, a.DebitsPending.IsZero())
}

func TestDoubleResolveInOneGroup(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 20)
	pending.IsPending = true
	f.submit(t, pending)

	post := transferReq("acc-a", "acc-b", 20)
	post.PendingID = &pending.ID
	post.Resolve = domain.ResolvePost

	void := transferReq("acc-a", "acc-b", 20)
	void.PendingID = &pending.ID
	void.Resolve = domain.ResolveVoid

	results := f.submit(t, post, void)
	requireRejected(t, results[0], domain.CodeGroupFailed)
	requireRejected(t, results[1], domain.CodeAlreadyResolved)

	// Group failed as a whole, so the reservation still stands.
	assert.True(t, f.account(t, "acc-a").DebitsPending.Equal(decimal.NewFromInt(20)))
}

func TestGroupAtomicity(t *testing.T) {
	f := newFixture(t)

	good := transferReq("acc-a", "acc-b", 100)
	bad := transferReq("acc-c", "acc-c", 100)

	results := f.submit(t, good, bad)
	requireRejected(t, results[0], domain.CodeGroupFailed)
	requireRejected(t, results[1], domain.CodeSameAccount)

	assert.True(t, f.account(t, "acc-a").DebitsPosted.IsZero())

	_, err := f.transfers.GetByID(context.Background(), tenantID, good.ID)
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestIndependentGroups(t *testing.T) {
	f := newFixture(t)

	good := transferReq("acc-a", "acc-b", 40)
	bad := transferReq("acc-c", "acc-c", 40)

	results, err := f.processor.CreateTransfers(context.Background(), tenantID, [][]domain.CreateTransfer{
		{bad}, {good},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	requireRejected(t, results[0], domain.CodeSameAccount)
	require.True(t, results[1].Committed)

	assert.True(t, f.account(t, "acc-a").DebitsPosted.Equal(decimal.NewFromInt(40)))
}

func TestReversalSwapsAccounts(t *testing.T) {
	f := newFixture(t)

	orig := transferReq("acc-a", "acc-b", 100)
	require.True(t, f.submit(t, orig)[0].Committed)

	reversal := transferReq("acc-b", "acc-a", 100)
	reversal.RevertsID = &orig.ID
	require.True(t, f.submit(t, reversal)[0].Committed)

	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPosted.Equal(decimal.NewFromInt(100)))
	assert.True(t, a.CreditsPosted.Equal(decimal.NewFromInt(100)))

	second := transferReq("acc-b", "acc-a", 100)
	second.RevertsID = &orig.ID
	requireRejected(t, f.submit(t, second)[0], domain.CodeAlreadyReverted)
}

func TestReversalRequiresMirroredRequest(t *testing.T) {
	f := newFixture(t)

	orig := transferReq("acc-a", "acc-b", 100)
	f.submit(t, orig)

	unswapped := transferReq("acc-a", "acc-b", 100)
	unswapped.RevertsID = &orig.ID
	requireRejected(t, f.submit(t, unswapped)[0], domain.CodeAccountMismatch)

	wrongAmount := transferReq("acc-b", "acc-a", 99)
	wrongAmount.RevertsID = &orig.ID
	requireRejected(t, f.submit(t, wrongAmount)[0], domain.CodeAmountMismatch)
}

func TestResolveRequiresMirroredRequest(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 100)
	pending.IsPending = true
	f.submit(t, pending)

	wrongAmount := transferReq("acc-a", "acc-b", 60)
	wrongAmount.PendingID = &pending.ID
	wrongAmount.Resolve = domain.ResolvePost
	requireRejected(t, f.submit(t, wrongAmount)[0], domain.CodeAmountMismatch)

	wrongAccounts := transferReq("acc-a", "acc-c", 100)
	wrongAccounts.PendingID = &pending.ID
	wrongAccounts.Resolve = domain.ResolvePost
	requireRejected(t, f.submit(t, wrongAccounts)[0], domain.CodeAccountMismatch)

	// Nothing resolved; the reservation is still intact.
	assert.True(t, f.account(t, "acc-a").DebitsPending.Equal(decimal.NewFromInt(100)))
	assert.True(t, f.account(t, "acc-a").DebitsPosted.IsZero())
}

func TestReversalOfResolverRejected(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 100)
	pending.IsPending = true
	f.submit(t, pending)

	void := transferReq("acc-a", "acc-b", 100)
	void.PendingID = &pending.ID
	void.Resolve = domain.ResolveVoid
	require.True(t, f.submit(t, void)[0].Committed)

	// The resolver row carries posted status; a reversal against it would
	// mint a movement that undoes nothing.
	reversal := transferReq("acc-b", "acc-a", 100)
	reversal.RevertsID = &void.ID
	requireRejected(t, f.submit(t, reversal)[0], domain.CodeNotReversible)

	a := f.account(t, "acc-a")
	assert.True(t, a.DebitsPending.IsZero())
	assert.True(t, a.DebitsPosted.IsZero())
	assert.True(t, a.CreditsPosted.IsZero())
}

func TestReversalOfPendingRejected(t *testing.T) {
	f := newFixture(t)

	pending := transferReq("acc-a", "acc-b", 30)
	pending.IsPending = true
	f.submit(t, pending)

	reversal := transferReq("acc-b", "acc-a", 30)
	reversal.RevertsID = &pending.ID
	requireRejected(t, f.submit(t, reversal)[0], domain.CodeNotPosted)
}

func TestAdjustmentPostsCounters(t *testing.T) {
	f := newFixture(t)

	orig := transferReq("acc-a", "acc-b", 100)
	f.submit(t, orig)

	adj := transferReq("acc-b", "acc-a", 5)
	adj.AdjustsID = &orig.ID

	results := f.submit(t, adj)
	require.True(t, results[0].Committed)

	b := f.account(t, "acc-b")
	assert.True(t, b.DebitsPosted.Equal(decimal.NewFromInt(5)))
	assert.True(t, b.CreditsPosted.Equal(decimal.NewFromInt(100)))

	stored, err := f.transfers.GetByID(context.Background(), tenantID, adj.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindAdjustment, stored.Kind)
}

func TestCrossLedgerRejected(t *testing.T) {
	f := newFixture(t)

	req := transferReq("acc-a", "acc-d", 100)

	requireRejected(t, f.submit(t, req)[0], domain.CodeLedgerMismatch)
	assert.True(t, f.account(t, "acc-a").DebitsPosted.IsZero())
}

func TestLinkedTransferNotFound(t *testing.T) {
	f := newFixture(t)

	missing := ulid.Make().String()
	post := transferReq("acc-a", "acc-b", 100)
	post.PendingID = &missing
	post.Resolve = domain.ResolvePost

	requireRejected(t, f.submit(t, post)[0], domain.CodeLinkedTransferNotFound)
}

func TestAdjustmentOfMissingTransfer(t *testing.T) {
	f := newFixture(t)

	missing := ulid.Make().String()
	adj := transferReq("acc-a", "acc-b", 5)
	adj.AdjustsID = &missing

	requireRejected(t, f.submit(t, adj)[0], domain.CodeLinkedTransferNotFound)
	assert.True(t, f.account(t, "acc-a").DebitsPosted.IsZero())
}

func TestIdempotentReplay(t *testing.T) {
	f := newFixture(t)

	req := transferReq("acc-a", "acc-b", 100)

	first := f.submit(t, req)
	require.True(t, first[0].Committed)

	second := f.submit(t, req)
	require.True(t, second[0].Committed)
	assert.Equal(t, req.ID, second[0].ID)

	// The replay must not have been applied a second time.
	assert.True(t, f.account(t, "acc-a").DebitsPosted.Equal(decimal.NewFromInt(100)))
}

func TestIdempotencyPayloadConflict(t *testing.T) {
	f := newFixture(t)

	req := transferReq("acc-a", "acc-b", 100)
	require.True(t, f.submit(t, req)[0].Committed)

	mutated := req
	mutated.Amount = decimal.NewFromInt(200)

	requireRejected(t, f.submit(t, mutated)[0], domain.CodeIdempotencyConflict)
	assert.True(t, f.account(t, "acc-a").DebitsPosted.Equal(decimal.NewFromInt(100)))
}

func TestRejectedOutcomeIsReplayed(t *testing.T) {
	f := newFixture(t)

	req := transferReq("acc-c", "acc-c", 10)

	requireRejected(t, f.submit(t, req)[0], domain.CodeSameAccount)
	requireRejected(t, f.submit(t, req)[0], domain.CodeSameAccount)
}

func TestStorageErrorRejectsWholeGroup(t *testing.T) {
	f := newFixture(t)

	f.accounts.GetByIDsForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Account, error) {
		return nil, errors.New("connection reset")
	}

	req := transferReq("acc-a", "acc-b", 100)
	requireRejected(t, f.submit(t, req)[0], domain.CodeStorageUnavailable)

	// Storage outcomes are never cached; a retry after recovery succeeds.
	f.accounts.GetByIDsForUpdateFunc = nil
	require.True(t, f.submit(t, req)[0].Committed)
}

func TestUnknownTenant(t *testing.T) {
	f := newFixture(t)

	_, err := f.processor.CreateTransfers(context.Background(), "nobody", [][]domain.CreateTransfer{
		{transferReq("acc-a", "acc-b", 100)},
	})
	require.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestGetTransfersByIDParallelSlice(t *testing.T) {
	f := newFixture(t)

	req := transferReq("acc-a", "acc-b", 100)
	f.submit(t, req)

	missing := ulid.Make().String()

	out, err := f.processor.GetTransfersByID(context.Background(), tenantID, []string{missing, req.ID})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Nil(t, out[0])
	require.NotNil(t, out[1])
	assert.Equal(t, req.ID, out[1].ID)
}

func TestGetTransfersForAccountInInterval(t *testing.T) {
	f := newFixture(t)

	req := transferReq("acc-a", "acc-b", 100)
	f.submit(t, req)

	now := time.Now().UTC()

	transfers, err := f.processor.GetTransfersForAccountInInterval(
		context.Background(), tenantID, "acc-a", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, req.ID, transfers[0].ID)

	_, err = f.processor.GetTransfersForAccountInInterval(
		context.Background(), tenantID, "acc-a", now, now.Add(-time.Hour))
	require.ErrorIs(t, err, domain.ErrInvalidInterval)

	_, err = f.processor.GetTransfersForAccountInInterval(
		context.Background(), tenantID, "acc-a", now, now.Add(usecase.MaxQueryInterval+time.Hour))
	require.ErrorIs(t, err, domain.ErrIntervalTooLarge)

	_, err = f.processor.GetTransfersForAccountInInterval(
		context.Background(), tenantID, "acc-missing", now.Add(-time.Hour), now)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
