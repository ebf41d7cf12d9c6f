package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database
	// transaction. This prevents long-running transactions from blocking
	// account rows.
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long cached transfer results are retained.
	// It must cover realistic client retry windows.
	IdempotencyKeyTTL = 24 * time.Hour

	// MaxQueryInterval bounds interval queries over an account's transfers.
	MaxQueryInterval = 2 * 365 * 24 * time.Hour

	// MaxListLimit caps the number of transfers returned per interval query.
	MaxListLimit = 1000

	// DefaultSweepBatchSize is how many expired pending transfers one
	// reaper sweep picks up.
	DefaultSweepBatchSize = 100
)
