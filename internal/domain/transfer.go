package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferKind is the closed set of mutually exclusive transfer kinds.
type TransferKind string

const (
	KindTransfer    TransferKind = "transfer"
	KindPending     TransferKind = "pending"
	KindPostPending TransferKind = "post_pending"
	KindVoidPending TransferKind = "void_pending"
	KindReversal    TransferKind = "reversal"
	KindAdjustment  TransferKind = "adjustment"
)

// TransferStatus is the lifecycle sub-state of a committed transfer.
// Only pending transfers ever leave the status they were created with.
type TransferStatus string

const (
	StatusPosted  TransferStatus = "posted"
	StatusPending TransferStatus = "pending"
	StatusVoided  TransferStatus = "voided"
)

// ResolveAction says how a resolving transfer settles the pending
// transfer it references. Intent is always explicit; it is never
// inferred from the absence of a later post.
type ResolveAction string

const (
	ResolvePost ResolveAction = "post"
	ResolveVoid ResolveAction = "void"
)

// Transfer is a committed money movement between two accounts of one
// ledger. Immutable after creation except for the pending lifecycle
// fields (Status, ResolvedByID) and the reversal marker (RevertedByID).
type Transfer struct {
	TenantID         string
	ID               string
	CausedByEventID  string
	GroupingID       string
	DebitAccountID   string
	CreditAccountID  string
	LedgerID         string
	Code             int32
	Amount           decimal.Decimal
	Remarks          string
	Kind             TransferKind
	LinkedTransferID *string
	Timeout          time.Duration
	Status           TransferStatus
	ResolvedByID     *string
	RevertedByID     *string
	CreatedAt        time.Time
}

// IsResolved reports whether a pending transfer has been posted or voided.
func (t *Transfer) IsResolved() bool {
	return t.ResolvedByID != nil
}

// ExpiresAt returns the instant an unresolved pending transfer times
// out, and false when the transfer carries no timeout.
func (t *Transfer) ExpiresAt() (time.Time, bool) {
	if t.Status != StatusPending || t.Timeout <= 0 {
		return time.Time{}, false
	}

	return t.CreatedAt.Add(t.Timeout), true
}

// CreateTransfer is a single client-submitted transfer instruction.
// The ID doubles as the idempotency key and must be a time-ordered ULID.
type CreateTransfer struct {
	ID              string
	CausedByEventID string
	GroupingID      string
	DebitAccountID  string
	CreditAccountID string
	LedgerID        string
	Code            int32
	Amount          decimal.Decimal
	Remarks         string
	IsPending       bool
	Timeout         time.Duration
	PendingID       *string
	RevertsID       *string
	AdjustsID       *string
	Resolve         ResolveAction
}

// Kind derives the tagged transfer kind from the request's flags. The
// validator guarantees at most one linking field is set.
func (c *CreateTransfer) Kind() TransferKind {
	switch {
	case c.PendingID != nil:
		if c.Resolve == ResolveVoid {
			return KindVoidPending
		}

		return KindPostPending
	case c.RevertsID != nil:
		return KindReversal
	case c.AdjustsID != nil:
		return KindAdjustment
	case c.IsPending:
		return KindPending
	default:
		return KindTransfer
	}
}

// LinkedID returns the referenced transfer id for linking kinds.
func (c *CreateTransfer) LinkedID() *string {
	switch {
	case c.PendingID != nil:
		return c.PendingID
	case c.RevertsID != nil:
		return c.RevertsID
	case c.AdjustsID != nil:
		return c.AdjustsID
	default:
		return nil
	}
}

// TransferResult is the per-transfer outcome of a batch submission.
type TransferResult struct {
	ID           string
	Committed    bool
	ErrorCode    *int
	ErrorMessage *string
}

// RejectedResult builds a failed result for a transfer id.
func RejectedResult(id string, err error) TransferResult {
	code := CodeOf(err)
	msg := err.Error()

	return TransferResult{
		ID:           id,
		Committed:    false,
		ErrorCode:    &code,
		ErrorMessage: &msg,
	}
}

// CommittedResult builds a successful result for a transfer id.
func CommittedResult(id string) TransferResult {
	return TransferResult{ID: id, Committed: true}
}
