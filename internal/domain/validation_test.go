package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

func validRequest() CreateTransfer {
	return CreateTransfer{
		ID:              ulid.Make().String(),
		CausedByEventID: "evt-1",
		GroupingID:      "grp-1",
		DebitAccountID:  "acc-1",
		CreditAccountID: "acc-2",
		LedgerID:        "ledger-1",
		Code:            10,
		Amount:          decimal.NewFromInt(100),
	}
}

func TestValidateCreateTransfer(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *CreateTransfer)
		wantErr error
	}{
		{
			name:   "valid plain transfer",
			mutate: func(c *CreateTransfer) {},
		},
		{
			name: "valid pending transfer with timeout",
			mutate: func(c *CreateTransfer) {
				c.IsPending = true
				c.Timeout = time.Minute
			},
		},
		{
			name: "valid resolve with explicit action",
			mutate: func(c *CreateTransfer) {
				c.PendingID = strptr("p1")
				c.Resolve = ResolveVoid
			},
		},
		{
			name:    "malformed id",
			mutate:  func(c *CreateTransfer) { c.ID = "not-a-ulid" },
			wantErr: ErrInvalidID,
		},
		{
			name:    "zero amount",
			mutate:  func(c *CreateTransfer) { c.Amount = decimal.Zero },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(c *CreateTransfer) { c.Amount = decimal.NewFromInt(-5) },
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "same debit and credit account",
			mutate:  func(c *CreateTransfer) { c.CreditAccountID = c.DebitAccountID },
			wantErr: ErrSameAccount,
		},
		{
			name: "two linking fields",
			mutate: func(c *CreateTransfer) {
				c.PendingID = strptr("p1")
				c.RevertsID = strptr("t1")
				c.Resolve = ResolvePost
			},
			wantErr: ErrMultipleLinks,
		},
		{
			name: "linking transfer cannot be pending",
			mutate: func(c *CreateTransfer) {
				c.RevertsID = strptr("t1")
				c.IsPending = true
			},
			wantErr: ErrPendingWithLink,
		},
		{
			name:    "timeout without pending",
			mutate:  func(c *CreateTransfer) { c.Timeout = time.Minute },
			wantErr: ErrTimeoutNotPending,
		},
		{
			name: "negative timeout on pending",
			mutate: func(c *CreateTransfer) {
				c.IsPending = true
				c.Timeout = -time.Minute
			},
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative timeout without pending",
			mutate:  func(c *CreateTransfer) { c.Timeout = -time.Second },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "resolve without action",
			mutate:  func(c *CreateTransfer) { c.PendingID = strptr("p1") },
			wantErr: ErrMissingResolveAction,
		},
		{
			name:    "resolve action without pending id",
			mutate:  func(c *CreateTransfer) { c.Resolve = ResolvePost },
			wantErr: ErrStrayResolveAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			violations := ValidateCreateTransfer(&req, CodeRange{})

			if tt.wantErr == nil {
				if len(violations) != 0 {
					t.Fatalf("expected no violations, got %v", violations)
				}
				return
			}

			if len(violations) == 0 {
				t.Fatalf("expected violation %v, got none", tt.wantErr)
			}
			if !errors.Is(violations[0].Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, violations[0].Err)
			}
		})
	}
}

func TestValidateCodeRange(t *testing.T) {
	codes := CodeRange{Min: 1, Max: 999}

	req := validRequest()
	req.Code = 1000

	violations := ValidateCreateTransfer(&req, codes)
	if len(violations) != 1 || !errors.Is(violations[0].Err, ErrCodeOutOfRange) {
		t.Fatalf("expected code out of range, got %v", violations)
	}

	req.Code = 999
	if violations := ValidateCreateTransfer(&req, codes); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}
