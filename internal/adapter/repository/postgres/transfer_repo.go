package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	pool *pgxpool.Pool
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(pool *pgxpool.Pool) *TransferRepository {
	return &TransferRepository{pool: pool}
}

const transferColumns = `tenant_id, id, caused_by_event_id, grouping_id,
	debit_account_id, credit_account_id, ledger_id, code, amount, remarks,
	kind, linked_transfer_id, timeout_seconds, status,
	resolved_by_id, reverted_by_id, created_at`

// Create inserts a transfer. A duplicate id surfaces as
// domain.ErrIdempotencyConflict; the primary key is the backstop for the
// idempotency guard.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		transfer.TenantID, transfer.ID, transfer.CausedByEventID, transfer.GroupingID,
		transfer.DebitAccountID, transfer.CreditAccountID, transfer.LedgerID,
		transfer.Code, decimalToNumeric(transfer.Amount), transfer.Remarks,
		string(transfer.Kind), transfer.LinkedTransferID,
		int64(transfer.Timeout/time.Second), string(transfer.Status),
		transfer.ResolvedByID, transfer.RevertedByID,
		timeToPgTimestamptz(transfer.CreatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrIdempotencyConflict
		}

		return err
	}

	return nil
}

// GetByID retrieves a transfer by ID.
func (r *TransferRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Transfer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)

	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}

		return nil, err
	}

	return transfer, nil
}

// GetByIDs retrieves transfers by IDs; missing ids are simply absent
// from the result.
func (r *TransferRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Transfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// GetByIDsForUpdate retrieves transfers with FOR UPDATE locks in
// ascending id order.
func (r *TransferRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Transfer, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`,
		tenantID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// MarkResolved finalizes a pending transfer as posted or voided.
func (r *TransferRepository) MarkResolved(ctx context.Context, tx usecase.Transaction, tenantID, id string, status domain.TransferStatus, resolvedByID string) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		UPDATE transfers
		SET status = $3, resolved_by_id = $4
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, string(status), resolvedByID,
	)

	return err
}

// MarkReverted records the reversal link on the original transfer.
func (r *TransferRepository) MarkReverted(ctx context.Context, tx usecase.Transaction, tenantID, id, revertedByID string) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		UPDATE transfers
		SET reverted_by_id = $3
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, revertedByID,
	)

	return err
}

// ListByAccountInInterval lists transfers touching an account inside a
// time interval, oldest first.
func (r *TransferRepository) ListByAccountInInterval(ctx context.Context, tenantID, accountID string, from, to time.Time, limit int) ([]*domain.Transfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE tenant_id = $1
		  AND (debit_account_id = $2 OR credit_account_id = $2)
		  AND created_at >= $3 AND created_at < $4
		ORDER BY created_at, id
		LIMIT $5`,
		tenantID, accountID,
		timeToPgTimestamptz(from), timeToPgTimestamptz(to),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// ListExpiredPending lists pending transfers whose timeout has elapsed,
// across all tenants, oldest first.
func (r *TransferRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Transfer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE status = 'pending'
		  AND timeout_seconds > 0
		  AND created_at + make_interval(secs => timeout_seconds) <= $1
		ORDER BY created_at
		LIMIT $2`,
		timeToPgTimestamptz(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransfers(rows)
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		transfer       domain.Transfer
		amount         pgtype.Numeric
		remarks        pgtype.Text
		timeoutSeconds int64
		createdAt      pgtype.Timestamptz
	)

	err := row.Scan(
		&transfer.TenantID, &transfer.ID, &transfer.CausedByEventID, &transfer.GroupingID,
		&transfer.DebitAccountID, &transfer.CreditAccountID, &transfer.LedgerID,
		&transfer.Code, &amount, &remarks,
		&transfer.Kind, &transfer.LinkedTransferID, &timeoutSeconds, &transfer.Status,
		&transfer.ResolvedByID, &transfer.RevertedByID, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	transfer.Amount = numericToDecimal(amount)
	transfer.Remarks = remarks.String
	transfer.Timeout = time.Duration(timeoutSeconds) * time.Second
	transfer.CreatedAt = createdAt.Time

	return &transfer, nil
}

func scanTransfers(rows pgx.Rows) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer

	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}

		transfers = append(transfers, transfer)
	}

	return transfers, rows.Err()
}
