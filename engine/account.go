package engine

import (
	"github.com/shopspring/decimal"
)

// Account holds one client's balances and lock flag. Total and Held are
// stored; Available is always derived as Total − Held, which keeps the
// total == available + held invariant algebraic rather than enforced.
//
// Accounts know nothing about transaction identity. The engine validates
// amounts and ordering before calling in; the account only enforces
// fund-movement legality for a single client.
type Account struct {
	ClientID ClientID
	Total    decimal.Decimal
	Held     decimal.Decimal
	Locked   bool
}

// NewAccount creates an unlocked account with zero balances.
func NewAccount(client ClientID) *Account {
	return &Account{ClientID: client}
}

// Available returns the funds the client may withdraw now.
func (a *Account) Available() decimal.Decimal {
	return a.Total.Sub(a.Held)
}

// Deposit credits the account. There is no upper bound; the only failure
// is a locked account.
func (a *Account) Deposit(tx TxID, amount decimal.Decimal) error {
	if a.Locked {
		return &AccountLockedError{Client: a.ClientID, Tx: tx}
	}
	a.Total = a.Total.Add(amount)
	return nil
}

// Withdraw debits the account. Available funds gate the withdrawal, not
// total: held funds stay frozen until their dispute settles.
func (a *Account) Withdraw(tx TxID, amount decimal.Decimal) error {
	if a.Locked {
		return &AccountLockedError{Client: a.ClientID, Tx: tx}
	}
	if a.Available().LessThan(amount) {
		return &InsufficientFundsError{
			Client:    a.ClientID,
			Tx:        tx,
			Available: a.Available().String(),
			Requested: amount.String(),
		}
	}
	a.Total = a.Total.Sub(amount)
	return nil
}

// Dispute freezes funds provisionally: held rises, total is unchanged, so
// available drops by the disputed amount. The amount was validated when
// the original transaction was recorded, so there is no failure condition
// here. Balances may go negative; that is defined behavior, not an error.
func (a *Account) Dispute(amount decimal.Decimal) {
	a.Held = a.Held.Add(amount)
}

// Resolve releases a dispute's freeze, returning the funds to available.
func (a *Account) Resolve(amount decimal.Decimal) {
	a.Held = a.Held.Sub(amount)
}

// Chargeback reverses the disputed transaction: the frozen funds leave
// the account entirely and the account is locked for good. This is the
// only operation that removes funds without client initiation and the
// only one that sets the lock.
func (a *Account) Chargeback(amount decimal.Decimal) {
	a.Held = a.Held.Sub(amount)
	a.Total = a.Total.Sub(amount)
	a.Locked = true
}
