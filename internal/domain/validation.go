package domain

import (
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// CodeRange bounds the opaque business code carried by transfers.
type CodeRange struct {
	Min int32
	Max int32
}

// Contains reports whether code falls inside the range. A zero range
// accepts everything.
func (r CodeRange) Contains(code int32) bool {
	if r.Min == 0 && r.Max == 0 {
		return true
	}

	return code >= r.Min && code <= r.Max
}

// FieldViolation names the request field that failed validation.
type FieldViolation struct {
	Field string
	Err   error
}

// ValidateCreateTransfer performs the pure structural checks on a single
// transfer instruction. Referential checks (account existence, ledger
// membership, linked transfer state) need storage reads and belong to
// the processor.
func ValidateCreateTransfer(c *CreateTransfer, codes CodeRange) []FieldViolation {
	var violations []FieldViolation

	if _, err := ulid.ParseStrict(c.ID); err != nil {
		violations = append(violations, FieldViolation{Field: "id", Err: ErrInvalidID})
	}

	if c.Amount.LessThanOrEqual(decimal.Zero) {
		violations = append(violations, FieldViolation{Field: "amount", Err: ErrInvalidAmount})
	}

	if c.DebitAccountID == c.CreditAccountID {
		violations = append(violations, FieldViolation{Field: "credit_account_id", Err: ErrSameAccount})
	}

	links := 0
	for _, l := range []*string{c.PendingID, c.RevertsID, c.AdjustsID} {
		if l != nil {
			links++
		}
	}

	if links > 1 {
		violations = append(violations, FieldViolation{Field: "pending_id", Err: ErrMultipleLinks})
	}

	if links > 0 && c.IsPending {
		violations = append(violations, FieldViolation{Field: "is_pending", Err: ErrPendingWithLink})
	}

	// A negative timeout would read as "no timeout" everywhere downstream,
	// leaving the reservation unreapable.
	switch {
	case c.Timeout < 0:
		violations = append(violations, FieldViolation{Field: "timeout", Err: ErrInvalidTimeout})
	case c.Timeout != 0 && !c.IsPending:
		violations = append(violations, FieldViolation{Field: "timeout", Err: ErrTimeoutNotPending})
	}

	switch {
	case c.PendingID != nil && c.Resolve != ResolvePost && c.Resolve != ResolveVoid:
		violations = append(violations, FieldViolation{Field: "resolve", Err: ErrMissingResolveAction})
	case c.PendingID == nil && c.Resolve != "":
		violations = append(violations, FieldViolation{Field: "resolve", Err: ErrStrayResolveAction})
	}

	if !codes.Contains(c.Code) {
		violations = append(violations, FieldViolation{Field: "code", Err: ErrCodeOutOfRange})
	}

	return violations
}
