package engine

import (
	"fmt"
)

// Error types for account operations and engine routing rejections.
// All of them are recoverable: the engine records the rejection and
// continues with the remaining stream.

// AccountLockedError is returned when a deposit or withdrawal is
// attempted against a locked account.
type AccountLockedError struct {
	Client ClientID
	Tx     TxID
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account %d is locked, transaction %d not processed", e.Client, e.Tx)
}

// InsufficientFundsError is returned when a withdrawal exceeds the
// account's available funds. Held funds are never available.
type InsufficientFundsError struct {
	Client    ClientID
	Tx        TxID
	Available string
	Requested string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for client %d: transaction %d requested %s, available %s",
		e.Client, e.Tx, e.Requested, e.Available)
}

// UnknownClientError is returned when a withdrawal references a client
// that has never deposited. Withdrawals are not account-creating events.
type UnknownClientError struct {
	Client ClientID
	Tx     TxID
}

func (e *UnknownClientError) Error() string {
	return fmt.Sprintf("transaction %d references unknown client %d", e.Tx, e.Client)
}

// UnknownTransactionError is returned when a dispute-family transaction
// references a TxID that was never recorded.
type UnknownTransactionError struct {
	Type TransactionType
	Tx   TxID
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("%s references unknown transaction %d", e.Type, e.Tx)
}

// InvalidTransitionError is returned when a dispute-family transaction
// arrives in a state the lifecycle table does not allow, such as a
// resolve without a prior dispute or any operation on a terminal record.
type InvalidTransitionError struct {
	Type  TransactionType
	Tx    TxID
	State DisputeState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to transaction %d in state %s", e.Type, e.Tx, e.State)
}

// MissingAmountError is returned when a deposit or withdrawal arrives
// without an amount.
type MissingAmountError struct {
	Type TransactionType
	Tx   TxID
}

func (e *MissingAmountError) Error() string {
	return fmt.Sprintf("%s transaction %d is missing an amount", e.Type, e.Tx)
}

// NegativeAmountError is returned when a deposit or withdrawal carries a
// negative amount. Input amounts are assumed non-negative.
type NegativeAmountError struct {
	Type   TransactionType
	Tx     TxID
	Amount string
}

func (e *NegativeAmountError) Error() string {
	return fmt.Sprintf("%s transaction %d has negative amount %s", e.Type, e.Tx, e.Amount)
}

// DuplicateTransactionError is returned when a deposit or withdrawal
// reuses a TxID that already has a ledger record. TxIDs are globally
// unique.
type DuplicateTransactionError struct {
	Type TransactionType
	Tx   TxID
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("%s reuses transaction id %d", e.Type, e.Tx)
}

// RowError marks a single malformed record produced by a Source. The
// engine skips the record, reports it, and keeps consuming the stream;
// any other source error aborts processing.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *RowError) Unwrap() error {
	return e.Err
}
