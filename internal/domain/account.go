package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the four balance counters for one (tenant, account) pair.
// All four counters are always >= 0; the processor is the only writer.
type Account struct {
	TenantID       string
	ID             string
	LedgerID       string
	DebitsPending  decimal.Decimal
	DebitsPosted   decimal.Decimal
	CreditsPending decimal.Decimal
	CreditsPosted  decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AddPostedDebit records a finalized debit.
func (a *Account) AddPostedDebit(amount decimal.Decimal) {
	a.DebitsPosted = a.DebitsPosted.Add(amount)
}

// AddPostedCredit records a finalized credit.
func (a *Account) AddPostedCredit(amount decimal.Decimal) {
	a.CreditsPosted = a.CreditsPosted.Add(amount)
}

// AddPendingDebit reserves a debit.
func (a *Account) AddPendingDebit(amount decimal.Decimal) {
	a.DebitsPending = a.DebitsPending.Add(amount)
}

// AddPendingCredit reserves a credit.
func (a *Account) AddPendingCredit(amount decimal.Decimal) {
	a.CreditsPending = a.CreditsPending.Add(amount)
}

// PostDebit moves a reserved debit into the posted counter.
func (a *Account) PostDebit(amount decimal.Decimal) error {
	next := a.DebitsPending.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: debits_pending on account %s", ErrCounterUnderflow, a.ID)
	}

	a.DebitsPending = next
	a.DebitsPosted = a.DebitsPosted.Add(amount)

	return nil
}

// PostCredit moves a reserved credit into the posted counter.
func (a *Account) PostCredit(amount decimal.Decimal) error {
	next := a.CreditsPending.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: credits_pending on account %s", ErrCounterUnderflow, a.ID)
	}

	a.CreditsPending = next
	a.CreditsPosted = a.CreditsPosted.Add(amount)

	return nil
}

// ReleaseDebit drops a reserved debit without posting it.
func (a *Account) ReleaseDebit(amount decimal.Decimal) error {
	next := a.DebitsPending.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: debits_pending on account %s", ErrCounterUnderflow, a.ID)
	}

	a.DebitsPending = next

	return nil
}

// ReleaseCredit drops a reserved credit without posting it.
func (a *Account) ReleaseCredit(amount decimal.Decimal) error {
	next := a.CreditsPending.Sub(amount)
	if next.IsNegative() {
		return fmt.Errorf("%w: credits_pending on account %s", ErrCounterUnderflow, a.ID)
	}

	a.CreditsPending = next

	return nil
}
