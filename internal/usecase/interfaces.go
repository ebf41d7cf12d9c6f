package usecase

import (
	"context"
	"time"

	"github.com/finvoice/ledgerd/internal/domain"
)

// AccountRepository defines data access for account balance counters.
type AccountRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Account, error)
	// GetByIDsForUpdate locks the accounts for the duration of the
	// transaction. IDs must already be sorted ascending; the query
	// preserves that order in its locking.
	GetByIDsForUpdate(ctx context.Context, tx Transaction, tenantID string, ids []string) ([]*domain.Account, error)
	UpdateBalances(ctx context.Context, tx Transaction, account *domain.Account, updatedAt time.Time) error
}

// TransferRepository defines data access for transfers.
type TransferRepository interface {
	Create(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Transfer, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Transfer, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, tenantID string, ids []string) ([]*domain.Transfer, error)
	MarkResolved(ctx context.Context, tx Transaction, tenantID, id string, status domain.TransferStatus, resolvedByID string) error
	MarkReverted(ctx context.Context, tx Transaction, tenantID, id, revertedByID string) error
	ListByAccountInInterval(ctx context.Context, tenantID, accountID string, from, to time.Time, limit int) ([]*domain.Transfer, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Transfer, error)
}

// LedgerRepository resolves ledger ids to currency/scale.
type LedgerRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Ledger, error)
}

// TenantRepository establishes the isolation context.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier retries an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique time-ordered IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore persists per-transfer results for replay detection.
// Get returns nil with no error when the key is absent.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
