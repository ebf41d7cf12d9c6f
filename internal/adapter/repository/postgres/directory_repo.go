package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finvoice/ledgerd/internal/domain"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Create creates a new ledger.
func (r *LedgerRepository) Create(ctx context.Context, ledger *domain.Ledger) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ledgers (tenant_id, id, currency, scale, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		ledger.TenantID, ledger.ID, ledger.Currency, ledger.Scale,
		timeToPgTimestamptz(ledger.CreatedAt),
	)

	return err
}

// GetByID retrieves a ledger by ID.
func (r *LedgerRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ledger, error) {
	var (
		ledger    domain.Ledger
		createdAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, id, currency, scale, created_at
		FROM ledgers
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&ledger.TenantID, &ledger.ID, &ledger.Currency, &ledger.Scale, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLedgerNotFound
		}

		return nil, err
	}

	ledger.CreatedAt = createdAt.Time

	return &ledger, nil
}

// TenantRepository implements usecase.TenantRepository.
type TenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

// Create creates a new tenant.
func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tenants (id, name, created_at)
		VALUES ($1, $2, $3)`,
		tenant.ID, tenant.Name, timeToPgTimestamptz(tenant.CreatedAt),
	)

	return err
}

// GetByID retrieves a tenant by ID.
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var (
		tenant    domain.Tenant
		createdAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM tenants
		WHERE id = $1`,
		id,
	).Scan(&tenant.ID, &tenant.Name, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}

		return nil, err
	}

	tenant.CreatedAt = createdAt.Time

	return &tenant, nil
}
