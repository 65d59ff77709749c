package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ClientID identifies a single client account.
type ClientID uint16

// TxID identifies a deposit or withdrawal. Dispute-family transactions
// reference an existing TxID rather than introducing their own.
// Uniqueness is global, not per client.
type TxID uint32

// TransactionType enumerates the recognized transaction kinds.
type TransactionType int

const (
	TypeUnknown TransactionType = iota
	TypeDeposit
	TypeWithdrawal
	TypeDispute
	TypeResolve
	TypeChargeback
)

// String returns the lowercase wire token for the transaction type.
func (t TransactionType) String() string {
	switch t {
	case TypeDeposit:
		return "deposit"
	case TypeWithdrawal:
		return "withdrawal"
	case TypeDispute:
		return "dispute"
	case TypeResolve:
		return "resolve"
	case TypeChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// ParseTransactionType parses a wire token into a TransactionType.
// Tokens are matched case-insensitively.
func ParseTransactionType(token string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "deposit":
		return TypeDeposit, nil
	case "withdrawal":
		return TypeWithdrawal, nil
	case "dispute":
		return TypeDispute, nil
	case "resolve":
		return TypeResolve, nil
	case "chargeback":
		return TypeChargeback, nil
	default:
		return TypeUnknown, fmt.Errorf("unrecognized transaction type %q", token)
	}
}

// IsDisputeFamily reports whether the type references an existing
// transaction instead of moving new funds.
func (t TransactionType) IsDisputeFamily() bool {
	return t == TypeDispute || t == TypeResolve || t == TypeChargeback
}

// Transaction is an immutable input record. Amount is present only for
// deposits and withdrawals; dispute-family transactions carry none.
type Transaction struct {
	Type   TransactionType
	Client ClientID
	Tx     TxID
	Amount *decimal.Decimal
}

// DisputeState tracks where a recorded transaction sits in the dispute
// lifecycle. Transitions are strictly one-directional:
//
//	None → Disputed → {Resolved, ChargedBack}
//
// Resolved and ChargedBack are terminal.
type DisputeState int

const (
	DisputeNone DisputeState = iota
	DisputeDisputed
	DisputeResolved
	DisputeChargedBack
)

// String returns a human-readable name for the dispute state.
func (s DisputeState) String() string {
	switch s {
	case DisputeNone:
		return "none"
	case DisputeDisputed:
		return "disputed"
	case DisputeResolved:
		return "resolved"
	case DisputeChargedBack:
		return "charged_back"
	default:
		return "invalid"
	}
}

// transition returns the state reached by applying a dispute-family
// operation, or false when the transition is not in the table.
func (s DisputeState) transition(op TransactionType) (DisputeState, bool) {
	switch s {
	case DisputeNone:
		if op == TypeDispute {
			return DisputeDisputed, true
		}
	case DisputeDisputed:
		switch op {
		case TypeResolve:
			return DisputeResolved, true
		case TypeChargeback:
			return DisputeChargedBack, true
		}
	}
	return s, false
}

// TransactionRecord is the engine-owned ledger entry for a successfully
// applied deposit or withdrawal, carrying its dispute lifecycle state.
// Transactions rejected at the account level leave no record and can
// therefore never be disputed.
type TransactionRecord struct {
	Transaction  Transaction
	DisputeState DisputeState
}

// Source yields transactions in arrival order. It is the only input seam
// the engine depends on; concrete sources may read from a file, a network
// stream, or an in-memory fixture.
//
// Next returns io.EOF once the stream is exhausted. A non-nil *RowError
// marks a single malformed record that the engine skips and reports;
// any other error aborts processing.
type Source interface {
	Next(ctx context.Context) (Transaction, error)
}

// SliceSource is an in-memory Source, primarily for tests and fixtures.
type SliceSource struct {
	txs []Transaction
	pos int
}

// NewSliceSource creates a Source over the given transactions.
func NewSliceSource(txs ...Transaction) *SliceSource {
	return &SliceSource{txs: txs}
}

// Next implements Source.
func (s *SliceSource) Next(ctx context.Context) (Transaction, error) {
	if s.pos >= len(s.txs) {
		return Transaction{}, io.EOF
	}
	tx := s.txs[s.pos]
	s.pos++
	return tx, nil
}
