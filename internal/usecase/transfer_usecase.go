package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/infrastructure/metrics"
)

// TransferProcessor is the transfer state machine. It validates batches
// of transfer groups, computes balance deltas, resolves links between
// transfers and commits or rolls back each inner group atomically.
type TransferProcessor struct {
	txManager    TransactionManager
	accountRepo  AccountRepository
	transferRepo TransferRepository
	ledgerRepo   LedgerRepository
	tenantRepo   TenantRepository
	guard        *IdempotencyGuard
	retrier      Retrier
	codes        domain.CodeRange
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewTransferProcessor creates a new TransferProcessor.
func NewTransferProcessor(
	txManager TransactionManager,
	accountRepo AccountRepository,
	transferRepo TransferRepository,
	ledgerRepo LedgerRepository,
	tenantRepo TenantRepository,
	guard *IdempotencyGuard,
	retrier Retrier,
	codes domain.CodeRange,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TransferProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	return &TransferProcessor{
		txManager:    txManager,
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		ledgerRepo:   ledgerRepo,
		tenantRepo:   tenantRepo,
		guard:        guard,
		retrier:      retrier,
		codes:        codes,
		metrics:      m,
		logger:       logger,
	}
}

// CreateTransfers processes an ordered sequence of inner groups. Every
// transfer inside one group commits together or none do; groups are
// independent of one another. The returned slice carries one result per
// submitted transfer, in submission order. Only a structurally
// malformed outer request (unknown tenant) yields a top-level error.
func (p *TransferProcessor) CreateTransfers(ctx context.Context, tenantID string, groups [][]domain.CreateTransfer) ([]domain.TransferResult, error) {
	if _, err := p.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	var results []domain.TransferResult
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}

		results = append(results, p.processGroup(ctx, tenantID, group)...)
	}

	return results, nil
}

func (p *TransferProcessor) processGroup(ctx context.Context, tenantID string, group []domain.CreateTransfer) []domain.TransferResult {
	start := time.Now()
	results := make([]domain.TransferResult, len(group))

	if p.metrics != nil {
		p.metrics.GroupSize.Observe(float64(len(group)))
		defer func() {
			p.metrics.TransferDuration.Observe(time.Since(start).Seconds())
		}()
	}

	// 1. Idempotency guard: replays reuse their stored result; an id
	// reused with a different payload is a conflict and fails the group.
	fresh := make([]int, 0, len(group))

	for i := range group {
		cached, err := p.guard.Check(ctx, tenantID, &group[i])
		switch {
		case errors.Is(err, domain.ErrIdempotencyConflict):
			if p.metrics != nil {
				p.metrics.IdempotencyConflicts.Inc()
			}

			return p.rejectGroup(results, group, i, domain.ErrIdempotencyConflict)
		case err != nil:
			return p.rejectGroup(results, group, i, err)
		case cached != nil:
			results[i] = *cached

			if p.metrics != nil {
				p.metrics.IdempotentReplays.Inc()
			}
		default:
			fresh = append(fresh, i)
		}
	}

	if len(fresh) == 0 {
		return results
	}

	// 2. Pure validation of every not-yet-seen transfer; any violation
	// fails the whole group before any storage mutation.
	for _, i := range fresh {
		if violations := domain.ValidateCreateTransfer(&group[i], p.codes); len(violations) > 0 {
			results = p.rejectGroup(results, group, i, violations[0].Err)
			p.recordResult(ctx, tenantID, &group[i], results[i])

			return results
		}
	}

	// 3-5. Referential checks, delta computation and atomic application
	// inside a single transaction. Deadlocks and serialization failures
	// retry the whole group.
	offender := -1

	err := p.retrier.Retry(ctx, func() error {
		var execErr error
		offender, execErr = p.executeGroup(ctx, tenantID, group, fresh)

		return execErr
	})
	if err != nil {
		if domain.ClassOf(err) == domain.ClassStorage {
			// Storage outcomes are retryable and never cached.
			p.logger.Error("transfer group failed on storage",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()))

			return p.rejectGroup(results, group, -1, domain.ErrStorageUnavailable)
		}

		results = p.rejectGroup(results, group, offender, err)
		if offender >= 0 {
			p.recordResult(ctx, tenantID, &group[offender], results[offender])
		}

		return results
	}

	for _, i := range fresh {
		results[i] = domain.CommittedResult(group[i].ID)
		p.recordResult(ctx, tenantID, &group[i], results[i])
	}

	if p.metrics != nil {
		p.metrics.GroupsCommitted.Inc()
		p.metrics.TransfersCommitted.Add(float64(len(fresh)))
	}

	return results
}

// executeGroup runs steps 3-5 of the state machine inside one
// transaction. On a business rejection it returns the offending group
// index and a sentinel error; the transaction is rolled back either way.
func (p *TransferProcessor) executeGroup(ctx context.Context, tenantID string, group []domain.CreateTransfer, fresh []int) (int, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := p.txManager.Begin(txCtx)
	if err != nil {
		return -1, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Lock linked transfers first, then accounts, both in ascending id
	// order. Every writer (live traffic and the reaper) follows the same
	// discipline, so concurrent groups cannot deadlock.
	linked, err := p.lockLinkedTransfers(txCtx, tx, tenantID, group, fresh)
	if err != nil {
		return -1, err
	}

	for _, i := range fresh {
		if lid := group[i].LinkedID(); lid != nil {
			if _, ok := linked[*lid]; !ok {
				return i, domain.ErrLinkedTransferNotFound
			}
		}
	}

	for _, i := range fresh {
		if _, err := p.ledgerRepo.GetByID(txCtx, tenantID, group[i].LedgerID); err != nil {
			if errors.Is(err, domain.ErrLedgerNotFound) {
				return i, domain.ErrLedgerNotFound
			}

			return -1, err
		}
	}

	accounts, err := p.lockAccounts(txCtx, tx, tenantID, group, fresh, linked)
	if err != nil {
		return -1, err
	}

	// 4. Compute deltas for every transfer against the locked snapshot.
	now := time.Now().UTC()

	var (
		inserts  []*domain.Transfer
		resolves []statusUpdate
		reverts  []revertUpdate
	)

	for _, i := range fresh {
		req := &group[i]

		debit := accounts[req.DebitAccountID]
		credit := accounts[req.CreditAccountID]

		if debit == nil || credit == nil {
			return i, domain.ErrAccountNotFound
		}

		if debit.LedgerID != req.LedgerID || credit.LedgerID != req.LedgerID {
			return i, domain.ErrLedgerMismatch
		}

		transfer := &domain.Transfer{
			TenantID:         tenantID,
			ID:               req.ID,
			CausedByEventID:  req.CausedByEventID,
			GroupingID:       req.GroupingID,
			DebitAccountID:   req.DebitAccountID,
			CreditAccountID:  req.CreditAccountID,
			LedgerID:         req.LedgerID,
			Code:             req.Code,
			Amount:           req.Amount,
			Remarks:          req.Remarks,
			Kind:             req.Kind(),
			LinkedTransferID: req.LinkedID(),
			Timeout:          req.Timeout,
			Status:           domain.StatusPosted,
			CreatedAt:        now,
		}

		switch transfer.Kind {
		case domain.KindTransfer, domain.KindAdjustment:
			debit.AddPostedDebit(req.Amount)
			credit.AddPostedCredit(req.Amount)

		case domain.KindPending:
			transfer.Status = domain.StatusPending
			debit.AddPendingDebit(req.Amount)
			credit.AddPendingCredit(req.Amount)

		case domain.KindPostPending, domain.KindVoidPending:
			orig := linked[*req.PendingID]
			if err := checkResolvable(req, orig); err != nil {
				return i, err
			}

			origDebit := accounts[orig.DebitAccountID]
			origCredit := accounts[orig.CreditAccountID]

			if origDebit == nil || origCredit == nil {
				return i, domain.ErrAccountNotFound
			}

			status := domain.StatusPosted
			if transfer.Kind == domain.KindVoidPending {
				status = domain.StatusVoided

				if err := origDebit.ReleaseDebit(orig.Amount); err != nil {
					return i, err
				}
				if err := origCredit.ReleaseCredit(orig.Amount); err != nil {
					return i, err
				}
			} else {
				if err := origDebit.PostDebit(orig.Amount); err != nil {
					return i, err
				}
				if err := origCredit.PostCredit(orig.Amount); err != nil {
					return i, err
				}
			}

			resolves = append(resolves, statusUpdate{id: orig.ID, status: status, resolvedBy: req.ID})

			// Mark the snapshot so a second resolve in the same group
			// is rejected.
			orig.Status = status
			orig.ResolvedByID = &transfer.ID

		case domain.KindReversal:
			orig := linked[*req.RevertsID]
			if err := checkRevertible(req, orig); err != nil {
				return i, err
			}

			debit.AddPostedDebit(req.Amount)
			credit.AddPostedCredit(req.Amount)

			reverts = append(reverts, revertUpdate{id: orig.ID, by: req.ID})
			orig.RevertedByID = &transfer.ID
		}

		inserts = append(inserts, transfer)
	}

	// 5. Apply everything; the commit below makes it all-or-nothing.
	for k, transfer := range inserts {
		if err := p.transferRepo.Create(txCtx, tx, transfer); err != nil {
			return fresh[k], err
		}
	}

	for _, r := range resolves {
		if err := p.transferRepo.MarkResolved(txCtx, tx, tenantID, r.id, r.status, r.resolvedBy); err != nil {
			return -1, err
		}
	}

	for _, r := range reverts {
		if err := p.transferRepo.MarkReverted(txCtx, tx, tenantID, r.id, r.by); err != nil {
			return -1, err
		}
	}

	for _, id := range sortedAccountIDs(accounts) {
		if err := p.accountRepo.UpdateBalances(txCtx, tx, accounts[id], now); err != nil {
			return -1, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return -1, err
	}

	return -1, nil
}

type statusUpdate struct {
	id         string
	status     domain.TransferStatus
	resolvedBy string
}

type revertUpdate struct {
	id string
	by string
}

func (p *TransferProcessor) lockLinkedTransfers(ctx context.Context, tx Transaction, tenantID string, group []domain.CreateTransfer, fresh []int) (map[string]*domain.Transfer, error) {
	seen := make(map[string]bool)

	var ids []string
	for _, i := range fresh {
		if lid := group[i].LinkedID(); lid != nil && !seen[*lid] {
			seen[*lid] = true
			ids = append(ids, *lid)
		}
	}

	linked := make(map[string]*domain.Transfer, len(ids))
	if len(ids) == 0 {
		return linked, nil
	}

	sort.Strings(ids)

	rows, err := p.transferRepo.GetByIDsForUpdate(ctx, tx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	for _, t := range rows {
		linked[t.ID] = t
	}

	return linked, nil
}

func (p *TransferProcessor) lockAccounts(ctx context.Context, tx Transaction, tenantID string, group []domain.CreateTransfer, fresh []int, linked map[string]*domain.Transfer) (map[string]*domain.Account, error) {
	seen := make(map[string]bool)

	var ids []string

	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, i := range fresh {
		add(group[i].DebitAccountID)
		add(group[i].CreditAccountID)
	}

	for _, t := range linked {
		add(t.DebitAccountID)
		add(t.CreditAccountID)
	}

	sort.Strings(ids)

	rows, err := p.accountRepo.GetByIDsForUpdate(ctx, tx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	accounts := make(map[string]*domain.Account, len(rows))
	for _, a := range rows {
		accounts[a.ID] = a
	}

	return accounts, nil
}

func checkResolvable(req *domain.CreateTransfer, orig *domain.Transfer) error {
	if orig.Kind != domain.KindPending {
		return domain.ErrNotPending
	}

	if orig.Status != domain.StatusPending || orig.IsResolved() {
		return domain.ErrAlreadyResolved
	}

	if orig.LedgerID != req.LedgerID {
		return domain.ErrLedgerMismatch
	}

	if !req.Amount.Equal(orig.Amount) {
		return domain.ErrAmountMismatch
	}

	if req.DebitAccountID != orig.DebitAccountID || req.CreditAccountID != orig.CreditAccountID {
		return domain.ErrAccountMismatch
	}

	return nil
}

func checkRevertible(req *domain.CreateTransfer, orig *domain.Transfer) error {
	// Resolver rows carry StatusPosted but represent a resolution, not a
	// movement that can be mirrored back.
	if orig.Kind == domain.KindPostPending || orig.Kind == domain.KindVoidPending {
		return domain.ErrNotReversible
	}

	if orig.Status != domain.StatusPosted {
		return domain.ErrNotPosted
	}

	if orig.RevertedByID != nil {
		return domain.ErrAlreadyReverted
	}

	if orig.LedgerID != req.LedgerID {
		return domain.ErrLedgerMismatch
	}

	if !req.Amount.Equal(orig.Amount) {
		return domain.ErrAmountMismatch
	}

	// A reversal mirrors the original: accounts swapped, same amount.
	if req.DebitAccountID != orig.CreditAccountID || req.CreditAccountID != orig.DebitAccountID {
		return domain.ErrAccountMismatch
	}

	return nil
}

// rejectGroup fails every not-yet-resolved transfer in the group. The
// offender carries its specific error, its siblings carry ErrGroupFailed;
// results already served from the guard are left untouched.
func (p *TransferProcessor) rejectGroup(results []domain.TransferResult, group []domain.CreateTransfer, offender int, err error) []domain.TransferResult {
	for i := range group {
		if results[i].ID != "" {
			continue
		}

		if i == offender || offender < 0 {
			results[i] = domain.RejectedResult(group[i].ID, err)
		} else {
			results[i] = domain.RejectedResult(group[i].ID, domain.ErrGroupFailed)
		}
	}

	if p.metrics != nil {
		p.metrics.GroupsFailed.Inc()
		p.metrics.TransfersRejected.WithLabelValues(string(domain.ClassOf(err))).Inc()
	}

	return results
}

// recordResult caches a processing outcome in the idempotency guard.
// Guard unavailability is logged, not fatal: the transfers table primary
// key still rejects a duplicate commit.
func (p *TransferProcessor) recordResult(ctx context.Context, tenantID string, req *domain.CreateTransfer, result domain.TransferResult) {
	if err := p.guard.Record(ctx, tenantID, req, result); err != nil {
		p.logger.Warn("failed to record idempotency result",
			slog.String("transfer_id", req.ID),
			slog.String("error", err.Error()))
	}
}

func sortedAccountIDs(accounts map[string]*domain.Account) []string {
	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// GetTransfersByID retrieves transfers by id. The returned slice is
// parallel to ids; a nil entry means not found.
func (p *TransferProcessor) GetTransfersByID(ctx context.Context, tenantID string, ids []string) ([]*domain.Transfer, error) {
	if _, err := p.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	found, err := p.transferRepo.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Transfer, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	out := make([]*domain.Transfer, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}

	return out, nil
}

// GetTransfersForAccountInInterval lists an account's transfers inside a
// bounded time interval.
func (p *TransferProcessor) GetTransfersForAccountInInterval(ctx context.Context, tenantID, accountID string, from, to time.Time) ([]*domain.Transfer, error) {
	if from.After(to) {
		return nil, domain.ErrInvalidInterval
	}

	if to.Sub(from) > MaxQueryInterval {
		return nil, domain.ErrIntervalTooLarge
	}

	if _, err := p.accountRepo.GetByID(ctx, tenantID, accountID); err != nil {
		return nil, err
	}

	return p.transferRepo.ListByAccountInInterval(ctx, tenantID, accountID, from, to, MaxListLimit)
}
