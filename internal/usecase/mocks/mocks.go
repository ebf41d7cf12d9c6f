package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/finvoice/ledgerd/internal/domain"
	"github.com/finvoice/ledgerd/internal/usecase"
)

// The mocks below default to map-backed in-memory behavior so tests can
// drive the processor end to end; every method can be overridden with a
// Func field for error injection. Reads hand out copies and writes store
// copies, mirroring how rows move in and out of the database.

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	GetByIDFunc           func(ctx context.Context, tenantID, id string) (*domain.Account, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Account, error)
	UpdateBalancesFunc    func(ctx context.Context, tx usecase.Transaction, account *domain.Account, updatedAt time.Time) error
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// Seed stores an account directly, bypassing any override.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.TenantID+"/"+account.ID] = cloneAccount(account)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[tenantID+"/"+id]; ok {
		return cloneAccount(acc), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, tenantID, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if acc, ok := m.accounts[tenantID+"/"+id]; ok {
			accounts = append(accounts, cloneAccount(acc))
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, account *domain.Account, updatedAt time.Time) error {
	if m.UpdateBalancesFunc != nil {
		return m.UpdateBalancesFunc(ctx, tx, account, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneAccount(account)
	stored.UpdatedAt = updatedAt
	m.accounts[account.TenantID+"/"+account.ID] = stored
	return nil
}

// MockTransferRepository is a mock implementation of TransferRepository.
type MockTransferRepository struct {
	mu        sync.RWMutex
	transfers map[string]*domain.Transfer

	CreateFunc             func(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error
	GetByIDsForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Transfer, error)
	ListExpiredPendingFunc func(ctx context.Context, now time.Time, limit int) ([]*domain.Transfer, error)
}

func NewMockTransferRepository() *MockTransferRepository {
	return &MockTransferRepository{
		transfers: make(map[string]*domain.Transfer),
	}
}

func (m *MockTransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, transfer)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := transfer.TenantID + "/" + transfer.ID
	if _, ok := m.transfers[key]; ok {
		return domain.ErrIdempotencyConflict
	}
	m.transfers[key] = cloneTransfer(transfer)
	return nil
}

func (m *MockTransferRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transfers[tenantID+"/"+id]; ok {
		return cloneTransfer(t), nil
	}
	return nil, domain.ErrTransferNotFound
}

func (m *MockTransferRepository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var transfers []*domain.Transfer
	for _, id := range ids {
		if t, ok := m.transfers[tenantID+"/"+id]; ok {
			transfers = append(transfers, cloneTransfer(t))
		}
	}
	return transfers, nil
}

func (m *MockTransferRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, tenantID string, ids []string) ([]*domain.Transfer, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, tenantID, ids)
	}
	return m.GetByIDs(ctx, tenantID, ids)
}

func (m *MockTransferRepository) MarkResolved(ctx context.Context, tx usecase.Transaction, tenantID, id string, status domain.TransferStatus, resolvedByID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[tenantID+"/"+id]
	if !ok {
		return domain.ErrTransferNotFound
	}
	t.Status = status
	t.ResolvedByID = &resolvedByID
	return nil
}

func (m *MockTransferRepository) MarkReverted(ctx context.Context, tx usecase.Transaction, tenantID, id, revertedByID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[tenantID+"/"+id]
	if !ok {
		return domain.ErrTransferNotFound
	}
	t.RevertedByID = &revertedByID
	return nil
}

func (m *MockTransferRepository) ListByAccountInInterval(ctx context.Context, tenantID, accountID string, from, to time.Time, limit int) ([]*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var transfers []*domain.Transfer
	for _, t := range m.transfers {
		if t.TenantID != tenantID {
			continue
		}
		if t.DebitAccountID != accountID && t.CreditAccountID != accountID {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		transfers = append(transfers, cloneTransfer(t))
		if len(transfers) == limit {
			break
		}
	}
	return transfers, nil
}

func (m *MockTransferRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Transfer, error) {
	if m.ListExpiredPendingFunc != nil {
		return m.ListExpiredPendingFunc(ctx, now, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var transfers []*domain.Transfer
	for _, t := range m.transfers {
		expiresAt, ok := t.ExpiresAt()
		if !ok || expiresAt.After(now) {
			continue
		}
		transfers = append(transfers, cloneTransfer(t))
		if len(transfers) == limit {
			break
		}
	}
	return transfers, nil
}

// MockLedgerRepository is a mock implementation of LedgerRepository.
type MockLedgerRepository struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.Ledger

	GetByIDFunc func(ctx context.Context, tenantID, id string) (*domain.Ledger, error)
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{
		ledgers: make(map[string]*domain.Ledger),
	}
}

func (m *MockLedgerRepository) Seed(ledger *domain.Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[ledger.TenantID+"/"+ledger.ID] = ledger
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Ledger, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, tenantID, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.ledgers[tenantID+"/"+id]; ok {
		return l, nil
	}
	return nil, domain.ErrLedgerNotFound
}

// MockTenantRepository is a mock implementation of TenantRepository.
type MockTenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant

	GetByIDFunc func(ctx context.Context, id string) (*domain.Tenant, error)
}

func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{
		tenants: make(map[string]*domain.Tenant),
	}
}

func (m *MockTenantRepository) Seed(tenant *domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.ID] = tenant
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tenants[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTenantNotFound
}

// MockTransaction is a no-op transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockRetrier runs the operation exactly once.
type MockRetrier struct {
	RetryFunc func(ctx context.Context, operation func() error) error
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	return operation()
}

// MockIDGenerator generates ULIDs unless overridden.
type MockIDGenerator struct {
	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	return ulid.Make().String()
}

// MockIdempotencyStore is an in-memory IdempotencyStore.
type MockIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string][]byte

	GetFunc func(ctx context.Context, key string) ([]byte, error)
	SetFunc func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		entries: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[key], nil
}

func (m *MockIdempotencyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func cloneTransfer(t *domain.Transfer) *domain.Transfer {
	c := *t
	if t.LinkedTransferID != nil {
		v := *t.LinkedTransferID
		c.LinkedTransferID = &v
	}
	if t.ResolvedByID != nil {
		v := *t.ResolvedByID
		c.ResolvedByID = &v
	}
	if t.RevertedByID != nil {
		v := *t.RevertedByID
		c.RevertedByID = &v
	}
	return &c
}
