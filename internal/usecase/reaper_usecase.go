package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/infrastructure/metrics"
)

// TimeoutReaper finds pending transfers whose timeout has elapsed and
// drives them through the processor's void path. Because each void goes
// through CreateTransfers, the reaper shares the processor's locking and
// idempotency discipline with live traffic.
type TimeoutReaper struct {
	transferRepo TransferRepository
	processor    *TransferProcessor
	idGen        IDGenerator
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewTimeoutReaper creates a new TimeoutReaper.
func NewTimeoutReaper(
	transferRepo TransferRepository,
	processor *TransferProcessor,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TimeoutReaper {
	if logger == nil {
		logger = slog.Default()
	}

	return &TimeoutReaper{
		transferRepo: transferRepo,
		processor:    processor,
		idGen:        idGen,
		metrics:      m,
		logger:       logger,
	}
}

// SweepExpired voids one batch of expired pending transfers. It returns
// the number of transfers voided. A sweep that loses the race to a
// concurrent live resolve simply skips the loser and moves on.
func (r *TimeoutReaper) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	start := time.Now()

	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}

	if r.metrics != nil {
		r.metrics.ReaperSweeps.Inc()
		defer func() {
			r.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		}()
	}

	expired, err := r.transferRepo.ListExpiredPending(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return 0, err
	}

	voided := 0

	for _, victim := range expired {
		results, err := r.processor.CreateTransfers(ctx, victim.TenantID, [][]domain.CreateTransfer{
			{r.voidRequest(victim)},
		})
		if err != nil {
			r.logger.Error("reaper void submission failed",
				slog.String("transfer_id", victim.ID),
				slog.String("error", err.Error()))

			continue
		}

		result := results[0]

		switch {
		case result.Committed:
			voided++

			if r.metrics != nil {
				r.metrics.ReaperVoided.Inc()
			}

			r.logger.Info("voided expired pending transfer",
				slog.String("tenant_id", victim.TenantID),
				slog.String("transfer_id", victim.ID))
		case result.ErrorCode != nil && *result.ErrorCode == domain.CodeAlreadyResolved:
			// A live post or void got the account locks first.
			if r.metrics != nil {
				r.metrics.ReaperLostRaces.Inc()
			}
		default:
			r.logger.Warn("reaper void rejected",
				slog.String("transfer_id", victim.ID),
				slog.Any("error_code", result.ErrorCode))
		}
	}

	return voided, nil
}

// voidRequest synthesizes the resolve-pending(void) instruction for an
// expired transfer. The request mirrors the victim so the processor's
// consistency checks pass.
func (r *TimeoutReaper) voidRequest(victim *domain.Transfer) domain.CreateTransfer {
	pendingID := victim.ID

	return domain.CreateTransfer{
		ID:              r.idGen.Generate(),
		CausedByEventID: victim.CausedByEventID,
		GroupingID:      victim.GroupingID,
		DebitAccountID:  victim.DebitAccountID,
		CreditAccountID: victim.CreditAccountID,
		LedgerID:        victim.LedgerID,
		Code:            victim.Code,
		Amount:          victim.Amount,
		Remarks:         "pending transfer expired",
		PendingID:       &pendingID,
		Resolve:         domain.ResolveVoid,
	}
}
