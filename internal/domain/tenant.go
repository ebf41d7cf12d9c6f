package domain

import "time"

// Tenant establishes the isolation context for all engine data.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Ledger is a partition of accounts sharing one currency and scale.
// Transfers are confined within a ledger.
type Ledger struct {
	TenantID  string
	ID        string
	Currency  string
	Scale     int32
	CreatedAt time.Time
}
