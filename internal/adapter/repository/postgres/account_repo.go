package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `tenant_id, id, ledger_id,
	debits_pending, debits_posted, credits_pending, credits_posted,
	created_at, updated_at`

// Create creates a new account with zeroed counters.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.TenantID, account.ID, account.LedgerID,
		decimalToNumeric(account.DebitsPending), decimalToNumeric(account.DebitsPosted),
		decimalToNumeric(account.CreditsPending), decimalToNumeric(account.CreditsPosted),
		timeToPgTimestamptz(account.CreatedAt), timeToPgTimestamptz(account.UpdatedAt),
	)

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// GetByIDsForUpdate retrieves multiple accounts with FOR UPDATE locks.
// The ORDER BY keeps lock acquisition in ascending id order.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Account, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`,
		tenantID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// UpdateBalances persists the four balance counters of an account.
func (r *AccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, account *domain.Account, updatedAt time.Time) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx, `
		UPDATE accounts
		SET debits_pending = $3, debits_posted = $4,
		    credits_pending = $5, credits_posted = $6,
		    updated_at = $7
		WHERE tenant_id = $1 AND id = $2`,
		account.TenantID, account.ID,
		decimalToNumeric(account.DebitsPending), decimalToNumeric(account.DebitsPosted),
		decimalToNumeric(account.CreditsPending), decimalToNumeric(account.CreditsPosted),
		timeToPgTimestamptz(updatedAt),
	)

	return err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account                                                    domain.Account
		debitsPending, debitsPosted, creditsPending, creditsPosted pgtype.Numeric
		createdAt, updatedAt                                       pgtype.Timestamptz
	)

	err := row.Scan(
		&account.TenantID, &account.ID, &account.LedgerID,
		&debitsPending, &debitsPosted, &creditsPending, &creditsPosted,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.DebitsPending = numericToDecimal(debitsPending)
	account.DebitsPosted = numericToDecimal(debitsPosted)
	account.CreditsPending = numericToDecimal(creditsPending)
	account.CreditsPosted = numericToDecimal(creditsPosted)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time

	return &account, nil
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
