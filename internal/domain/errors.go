package domain

import "errors"

var (
	// Validation errors (malformed single-transfer fields).
	ErrInvalidID            = errors.New("transfer id must be a valid ULID")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrSameAccount          = errors.New("cannot transfer to same account")
	ErrMultipleLinks        = errors.New("at most one of pending_id, reverts_id, adjusts_id may be set")
	ErrPendingWithLink      = errors.New("a linking transfer cannot itself be pending")
	ErrTimeoutNotPending    = errors.New("timeout is only valid on a pending transfer")
	ErrInvalidTimeout       = errors.New("timeout must not be negative")
	ErrMissingResolveAction = errors.New("resolving a pending transfer requires an explicit post or void action")
	ErrStrayResolveAction   = errors.New("resolve action is only valid with pending_id")
	ErrCodeOutOfRange       = errors.New("transfer code outside allowed range")
	ErrIntervalTooLarge     = errors.New("query interval exceeds maximum")
	ErrInvalidInterval      = errors.New("interval start must not be after interval end")

	// Referential errors (unknown account/ledger/linked transfer).
	ErrTenantNotFound         = errors.New("tenant not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrLedgerNotFound         = errors.New("ledger not found")
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrLinkedTransferNotFound = errors.New("linked transfer not found")

	// Conflict errors (idempotency reuse, double resolution, double reversal).
	ErrIdempotencyConflict = errors.New("transfer id reused with a different payload")
	ErrAlreadyResolved     = errors.New("pending transfer already resolved")
	ErrNotPending          = errors.New("referenced transfer is not pending")
	ErrAlreadyReverted     = errors.New("transfer already reverted")
	ErrNotPosted           = errors.New("reversal requires a posted transfer")
	ErrNotReversible       = errors.New("resolving transfers cannot be reverted")
	ErrGroupFailed         = errors.New("another transfer in the group failed")

	// Consistency errors (client logic bugs).
	ErrLedgerMismatch   = errors.New("accounts must belong to the transfer's ledger")
	ErrAmountMismatch   = errors.New("amount must equal the linked transfer's amount")
	ErrAccountMismatch  = errors.New("accounts must match the linked transfer's accounts")
	ErrCounterUnderflow = errors.New("account counter would go negative")

	// Storage errors (retryable, the affected group is guaranteed unapplied).
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ErrorClass groups engine errors by retry semantics.
type ErrorClass string

const (
	ClassValidation  ErrorClass = "validation"
	ClassReferential ErrorClass = "referential"
	ClassConflict    ErrorClass = "conflict"
	ClassConsistency ErrorClass = "consistency"
	ClassStorage     ErrorClass = "storage"
)

// Wire codes: 1-99 general, 100-199 validation, 200-299 referential,
// 300-399 conflict, 400-499 consistency, 500-599 storage.
const (
	CodeGroupFailed = 1

	CodeInvalidID            = 100
	CodeInvalidAmount        = 101
	CodeSameAccount          = 102
	CodeMultipleLinks        = 103
	CodePendingWithLink      = 104
	CodeTimeoutNotPending    = 105
	CodeMissingResolveAction = 106
	CodeStrayResolveAction   = 107
	CodeCodeOutOfRange       = 108
	CodeInvalidTimeout       = 109

	CodeAccountNotFound        = 200
	CodeLedgerNotFound         = 201
	CodeLinkedTransferNotFound = 202
	CodeTenantNotFound         = 203

	CodeIdempotencyConflict = 300
	CodeAlreadyResolved     = 301
	CodeNotPending          = 302
	CodeAlreadyReverted     = 303
	CodeNotPosted           = 304
	CodeNotReversible       = 305

	CodeLedgerMismatch   = 400
	CodeAmountMismatch   = 401
	CodeAccountMismatch  = 402
	CodeCounterUnderflow = 499

	CodeStorageUnavailable = 500
)

var errorCodes = map[error]int{
	ErrGroupFailed:            CodeGroupFailed,
	ErrInvalidID:              CodeInvalidID,
	ErrInvalidAmount:          CodeInvalidAmount,
	ErrSameAccount:            CodeSameAccount,
	ErrMultipleLinks:          CodeMultipleLinks,
	ErrPendingWithLink:        CodePendingWithLink,
	ErrTimeoutNotPending:      CodeTimeoutNotPending,
	ErrMissingResolveAction:   CodeMissingResolveAction,
	ErrStrayResolveAction:     CodeStrayResolveAction,
	ErrCodeOutOfRange:         CodeCodeOutOfRange,
	ErrInvalidTimeout:         CodeInvalidTimeout,
	ErrAccountNotFound:        CodeAccountNotFound,
	ErrLedgerNotFound:         CodeLedgerNotFound,
	ErrLinkedTransferNotFound: CodeLinkedTransferNotFound,
	ErrTenantNotFound:         CodeTenantNotFound,
	ErrIdempotencyConflict:    CodeIdempotencyConflict,
	ErrAlreadyResolved:        CodeAlreadyResolved,
	ErrNotPending:             CodeNotPending,
	ErrAlreadyReverted:        CodeAlreadyReverted,
	ErrNotPosted:              CodeNotPosted,
	ErrNotReversible:          CodeNotReversible,
	ErrLedgerMismatch:         CodeLedgerMismatch,
	ErrAmountMismatch:         CodeAmountMismatch,
	ErrAccountMismatch:        CodeAccountMismatch,
	ErrCounterUnderflow:       CodeCounterUnderflow,
	ErrStorageUnavailable:     CodeStorageUnavailable,
}

// CodeOf maps an engine error to its wire code. Unknown errors map to
// CodeStorageUnavailable so callers treat them as retryable.
func CodeOf(err error) int {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeStorageUnavailable
}

// ClassOf derives the error class from an error's wire code.
func ClassOf(err error) ErrorClass {
	code := CodeOf(err)
	switch {
	case code < 200:
		return ClassValidation
	case code < 300:
		return ClassReferential
	case code < 400:
		return ClassConflict
	case code < 500:
		return ClassConsistency
	default:
		return ClassStorage
	}
}
