// Package engine processes an ordered stream of financial transactions
// (deposits, withdrawals, disputes, resolves, chargebacks) and maintains
// a consistent per-client ledger of available, held, and total funds.
//
// The engine owns two keyed collections: client → Account and
// transaction id → TransactionRecord. Deposits and withdrawals mutate an
// account and, on success, leave a record behind; dispute-family
// transactions reference a recorded transaction by id and walk it
// through the None → Disputed → {Resolved, ChargedBack} lifecycle.
//
// No individual transaction can abort a run. Account-level failures
// (locked account, insufficient funds) and routing rejections (unknown
// client or transaction id, invalid lifecycle transition, missing
// amount) are collected as rejections and processing continues, so the
// emitted report always reflects the full stream. All amounts use
// decimal arithmetic to avoid floating point drift.
//
// Example usage:
//
//	eng := engine.New()
//	if err := eng.Process(ctx, source); err != nil {
//	    log.Fatal(err) // context cancellation or a broken source
//	}
//	for _, rej := range eng.Rejections() {
//	    fmt.Fprintln(os.Stderr, rej)
//	}
//	report := eng.Report()
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/payflow/telemetry"
)

// Engine routes transactions to account operations and maintains the
// dispute lifecycle per transaction id. It is strictly sequential:
// transactions are applied one at a time in arrival order, which the
// order-dependent dispute lifecycle requires.
type Engine struct {
	accounts   map[ClientID]*Account
	records    map[TxID]*TransactionRecord
	rejections []error
	applied    int
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		accounts: make(map[ClientID]*Account),
		records:  make(map[TxID]*TransactionRecord),
	}
}

// Process consumes the source until exhaustion, applying each
// transaction in order. Malformed rows (*RowError) are recorded as
// rejections and skipped. Process returns an error only for context
// cancellation or a source failure; everything else is collected in
// Rejections.
func (e *Engine) Process(ctx context.Context, src Source) error {
	timer := telemetry.StartTimer(ctx, "engine.process")
	defer timer.End()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tx, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				e.reject(rowErr)
				continue
			}
			return fmt.Errorf("transaction source failed: %w", err)
		}

		_ = e.Apply(tx)
	}
}

// Apply routes a single transaction. The returned error is the
// rejection, if any; it has already been collected and never needs to
// stop the caller's loop.
func (e *Engine) Apply(tx Transaction) error {
	var err error
	switch tx.Type {
	case TypeDeposit:
		err = e.applyDeposit(tx)
	case TypeWithdrawal:
		err = e.applyWithdrawal(tx)
	case TypeDispute, TypeResolve, TypeChargeback:
		err = e.applyDisputeFamily(tx)
	default:
		err = fmt.Errorf("unrecognized transaction type for transaction %d", tx.Tx)
	}

	if err != nil {
		e.reject(err)
		return err
	}
	e.applied++
	return nil
}

// applyDeposit creates the account lazily and credits it. A record is
// written only on success: a deposit bounced off a locked account never
// happened as far as the dispute lifecycle is concerned.
func (e *Engine) applyDeposit(tx Transaction) error {
	amount, err := e.fundAmount(tx)
	if err != nil {
		return err
	}
	if _, exists := e.records[tx.Tx]; exists {
		return &DuplicateTransactionError{Type: tx.Type, Tx: tx.Tx}
	}

	account := e.account(tx.Client)
	if err := account.Deposit(tx.Tx, amount); err != nil {
		return err
	}

	e.records[tx.Tx] = &TransactionRecord{Transaction: tx, DisputeState: DisputeNone}
	return nil
}

// applyWithdrawal debits an existing account. A withdrawal against an
// unknown client is a rejection, not an account-creating event.
func (e *Engine) applyWithdrawal(tx Transaction) error {
	amount, err := e.fundAmount(tx)
	if err != nil {
		return err
	}
	if _, exists := e.records[tx.Tx]; exists {
		return &DuplicateTransactionError{Type: tx.Type, Tx: tx.Tx}
	}

	account, ok := e.accounts[tx.Client]
	if !ok {
		return &UnknownClientError{Client: tx.Client, Tx: tx.Tx}
	}
	if err := account.Withdraw(tx.Tx, amount); err != nil {
		return err
	}

	e.records[tx.Tx] = &TransactionRecord{Transaction: tx, DisputeState: DisputeNone}
	return nil
}

// applyDisputeFamily joins the incoming reference to its recorded
// transaction by TxID alone; the client and amount come from the stored
// record, never from the incoming row (which carries no amount). The
// lifecycle table decides whether the operation is legal; terminal
// records ignore everything.
//
// Resolve and chargeback are not gated by the account lock: they are
// terminal lifecycle events on an already-disputed transaction, not new
// client-initiated fund movements.
func (e *Engine) applyDisputeFamily(tx Transaction) error {
	record, ok := e.records[tx.Tx]
	if !ok {
		return &UnknownTransactionError{Type: tx.Type, Tx: tx.Tx}
	}

	next, ok := record.DisputeState.transition(tx.Type)
	if !ok {
		return &InvalidTransitionError{Type: tx.Type, Tx: tx.Tx, State: record.DisputeState}
	}

	account := e.account(record.Transaction.Client)
	amount := *record.Transaction.Amount

	switch tx.Type {
	case TypeDispute:
		account.Dispute(amount)
	case TypeResolve:
		account.Resolve(amount)
	case TypeChargeback:
		account.Chargeback(amount)
	}

	record.DisputeState = next
	return nil
}

// fundAmount validates the amount on a deposit or withdrawal.
func (e *Engine) fundAmount(tx Transaction) (decimal.Decimal, error) {
	if tx.Amount == nil {
		return decimal.Zero, &MissingAmountError{Type: tx.Type, Tx: tx.Tx}
	}
	if tx.Amount.IsNegative() {
		return decimal.Zero, &NegativeAmountError{Type: tx.Type, Tx: tx.Tx, Amount: tx.Amount.String()}
	}
	return *tx.Amount, nil
}

// account returns the client's account, creating it lazily with zero
// balances on first reference.
func (e *Engine) account(client ClientID) *Account {
	if acc, ok := e.accounts[client]; ok {
		return acc
	}
	acc := NewAccount(client)
	e.accounts[client] = acc
	return acc
}

// reject collects a non-fatal rejection.
func (e *Engine) reject(err error) {
	e.rejections = append(e.rejections, err)
}

// Account returns the account for a client, if it exists.
func (e *Engine) Account(client ClientID) (*Account, bool) {
	acc, ok := e.accounts[client]
	return acc, ok
}

// Record returns the ledger record for a transaction id, if it exists.
func (e *Engine) Record(tx TxID) (*TransactionRecord, bool) {
	rec, ok := e.records[tx]
	return rec, ok
}

// Rejections returns every rejection collected so far, in arrival
// order. The returned slice is a copy; mutating it does not touch
// engine state.
func (e *Engine) Rejections() []error {
	return slices.Clone(e.rejections)
}

// Applied returns the number of successfully applied transactions.
func (e *Engine) Applied() int {
	return e.applied
}
