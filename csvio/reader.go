// Package csvio reads transaction streams from CSV and writes the final
// account report, either as CSV or as a styled terminal table.
//
// The expected input format is a header row (type, client, tx, amount)
// followed by one transaction per row. Whitespace around headers and
// fields is ignored and type tokens are matched case-insensitively.
// The amount column is required for deposits and withdrawals and is
// ignored for dispute-family rows, which reference an existing
// transaction and carry no amount of their own.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/payflow/engine"
)

// Source reads transactions from CSV, implementing engine.Source.
// Malformed rows surface as *engine.RowError so the engine can skip
// them without losing the rest of the stream.
type Source struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

// NewSource creates a Source over r. The header row is consumed on the
// first call to Next.
func NewSource(r io.Reader) *Source {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Dispute-family rows commonly omit the trailing amount cell.
	reader.FieldsPerRecord = -1

	return &Source{reader: reader}
}

// Next returns the next transaction in the stream, io.EOF at the end,
// or a *engine.RowError for a row that cannot be parsed.
func (s *Source) Next(ctx context.Context) (engine.Transaction, error) {
	if s.columns == nil {
		if err := s.readHeader(); err != nil {
			return engine.Transaction{}, err
		}
	}

	record, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return engine.Transaction{}, io.EOF
		}
		// Only per-row parse failures are skippable; an I/O fault from
		// the underlying reader would repeat forever and must abort.
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.line++
			return engine.Transaction{}, &engine.RowError{Line: s.line, Err: err}
		}
		return engine.Transaction{}, fmt.Errorf("failed to read record: %w", err)
	}
	s.line++

	tx, err := s.parseRecord(record)
	if err != nil {
		return engine.Transaction{}, &engine.RowError{Line: s.line, Err: err}
	}
	return tx, nil
}

// readHeader consumes the header row and maps column names to indices.
// Header cells are trimmed; exporters routinely pad them with spaces.
func (s *Source) readHeader() error {
	header, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read header row: %w", err)
	}
	s.line = 1

	s.columns = make(map[string]int, len(header))
	for i, name := range header {
		s.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"type", "client", "tx"} {
		if _, ok := s.columns[required]; !ok {
			return fmt.Errorf("header is missing required column %q", required)
		}
	}
	return nil
}

func (s *Source) parseRecord(record []string) (engine.Transaction, error) {
	typeToken, err := s.field(record, "type")
	if err != nil {
		return engine.Transaction{}, err
	}
	txType, err := engine.ParseTransactionType(typeToken)
	if err != nil {
		return engine.Transaction{}, err
	}

	clientField, err := s.field(record, "client")
	if err != nil {
		return engine.Transaction{}, err
	}
	client, err := strconv.ParseUint(clientField, 10, 16)
	if err != nil {
		return engine.Transaction{}, fmt.Errorf("invalid client id %q: %w", clientField, err)
	}

	txField, err := s.field(record, "tx")
	if err != nil {
		return engine.Transaction{}, err
	}
	txID, err := strconv.ParseUint(txField, 10, 32)
	if err != nil {
		return engine.Transaction{}, fmt.Errorf("invalid transaction id %q: %w", txField, err)
	}

	tx := engine.Transaction{
		Type:   txType,
		Client: engine.ClientID(client),
		Tx:     engine.TxID(txID),
	}

	// Dispute-family rows carry no amount; whatever is in the column is
	// ignored rather than rejected.
	if txType.IsDisputeFamily() {
		return tx, nil
	}

	amountField, _ := s.field(record, "amount")
	if amountField == "" {
		return engine.Transaction{}, fmt.Errorf("%s row is missing an amount", txType)
	}
	amount, err := decimal.NewFromString(amountField)
	if err != nil {
		return engine.Transaction{}, fmt.Errorf("invalid amount %q: %w", amountField, err)
	}
	tx.Amount = &amount

	return tx, nil
}

// field returns the trimmed value of a named column, or an error when
// the row is too short to contain it.
func (s *Source) field(record []string, name string) (string, error) {
	idx, ok := s.columns[name]
	if !ok || idx >= len(record) {
		return "", fmt.Errorf("row is missing column %q", name)
	}
	return strings.TrimSpace(record[idx]), nil
}
