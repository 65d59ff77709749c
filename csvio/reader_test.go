package csvio_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/payflow/csvio"
	"github.com/robinvdvleuten/payflow/engine"
)

func readAll(t *testing.T, input string) ([]engine.Transaction, []error) {
	t.Helper()

	src := csvio.NewSource(strings.NewReader(input))

	var txs []engine.Transaction
	var errs []error
	for {
		tx, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return txs, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		txs = append(txs, tx)
	}
}

func TestSourceBasicStream(t *testing.T) {
	input := `type,client,tx,amount
deposit,1,1,1.0
withdrawal,1,2,0.5
dispute,1,1,
resolve,1,1,
`
	txs, errs := readAll(t, input)
	assert.Equal(t, 0, len(errs))
	assert.Equal(t, 4, len(txs))

	assert.Equal(t, engine.TypeDeposit, txs[0].Type)
	assert.Equal(t, engine.ClientID(1), txs[0].Client)
	assert.Equal(t, engine.TxID(1), txs[0].Tx)
	assert.Equal(t, "1", txs[0].Amount.String())

	assert.Equal(t, engine.TypeWithdrawal, txs[1].Type)
	assert.Equal(t, "0.5", txs[1].Amount.String())

	assert.Equal(t, engine.TypeDispute, txs[2].Type)
	assert.Zero(t, txs[2].Amount)

	assert.Equal(t, engine.TypeResolve, txs[3].Type)
}

func TestSourceTrimsWhitespace(t *testing.T) {
	// Exporters pad headers and cells with spaces; both are trimmed.
	input := "type, client, tx, amount\n" +
		"  deposit ,  1 ,  1 ,  2.50 \n" +
		"DISPUTE, 1, 1\n"

	txs, errs := readAll(t, input)
	assert.Equal(t, 0, len(errs))
	assert.Equal(t, 2, len(txs))
	assert.Equal(t, engine.TypeDeposit, txs[0].Type)
	assert.Equal(t, "2.5", txs[0].Amount.String())
	assert.Equal(t, engine.TypeDispute, txs[1].Type)
}

func TestSourceDisputeRowMayOmitAmountColumn(t *testing.T) {
	input := "type,client,tx,amount\n" +
		"deposit,1,1,1.0\n" +
		"chargeback,1,1\n"

	txs, errs := readAll(t, input)
	assert.Equal(t, 0, len(errs))
	assert.Equal(t, 2, len(txs))
	assert.Equal(t, engine.TypeChargeback, txs[1].Type)
	assert.Zero(t, txs[1].Amount)
}

func TestSourcePreservesDecimalPrecision(t *testing.T) {
	input := "type,client,tx,amount\n" +
		"deposit,1,1,1.2345\n" +
		"deposit,2,2,0.0001\n"

	txs, errs := readAll(t, input)
	assert.Equal(t, 0, len(errs))
	assert.Equal(t, "1.2345", txs[0].Amount.String())
	assert.Equal(t, "0.0001", txs[1].Amount.String())
}

func TestSourceMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"UnknownType", "transfer,1,1,1.0"},
		{"BadClient", "deposit,abc,1,1.0"},
		{"ClientOutOfRange", "deposit,70000,1,1.0"},
		{"BadTx", "deposit,1,abc,1.0"},
		{"BadAmount", "deposit,1,1,notanumber"},
		{"MissingAmount", "deposit,1,1,"},
		{"ShortRow", "deposit,1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "type,client,tx,amount\n" + tt.row + "\n" + "deposit,2,99,3.0\n"

			txs, errs := readAll(t, input)

			// The bad row is reported as a RowError and the stream continues.
			assert.Equal(t, 1, len(errs))
			var rowErr *engine.RowError
			assert.True(t, errors.As(errs[0], &rowErr))
			assert.Equal(t, 2, rowErr.Line)

			assert.Equal(t, 1, len(txs))
			assert.Equal(t, engine.TxID(99), txs[0].Tx)
		})
	}
}

// faultyReader yields its data and then a persistent non-EOF error, as
// a failing disk or a broken stdin pipe would.
type faultyReader struct {
	data io.Reader
	err  error
}

func (r *faultyReader) Read(p []byte) (int, error) {
	n, err := r.data.Read(p)
	if errors.Is(err, io.EOF) {
		return n, r.err
	}
	return n, err
}

func TestSourceReaderFailureAborts(t *testing.T) {
	readFailure := errors.New("disk read error")
	src := csvio.NewSource(&faultyReader{
		data: strings.NewReader("type,client,tx,amount\ndeposit,1,1,1.0\n"),
		err:  readFailure,
	})

	tx, err := src.Next(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, engine.TxID(1), tx.Tx)

	// The I/O fault is not a skippable row; it must surface as a fatal
	// error so callers stop instead of retrying forever.
	_, err = src.Next(context.Background())
	assert.True(t, errors.Is(err, readFailure))

	var rowErr *engine.RowError
	assert.False(t, errors.As(err, &rowErr))
}

func TestProcessAbortsOnReaderFailure(t *testing.T) {
	readFailure := errors.New("disk read error")
	src := csvio.NewSource(&faultyReader{
		data: strings.NewReader("type,client,tx,amount\ndeposit,1,1,1.0\n"),
		err:  readFailure,
	})

	eng := engine.New()
	err := eng.Process(context.Background(), src)
	assert.True(t, errors.Is(err, readFailure))

	// The rows read before the fault were still applied.
	assert.Equal(t, 1, eng.Applied())
	assert.Equal(t, 0, len(eng.Rejections()))
}

func TestSourceQuotingErrorIsSkippableRow(t *testing.T) {
	input := "type,client,tx,amount\n" +
		"deposit,\"unclosed,1,1.0\n"

	txs, errs := readAll(t, input)

	assert.Equal(t, 0, len(txs))
	assert.Equal(t, 1, len(errs))

	var rowErr *engine.RowError
	assert.True(t, errors.As(errs[0], &rowErr))
}

func TestSourceMissingRequiredColumn(t *testing.T) {
	src := csvio.NewSource(strings.NewReader("client,amount\n1,1.0\n"))

	_, err := src.Next(context.Background())
	assert.Error(t, err)

	var rowErr *engine.RowError
	assert.False(t, errors.As(err, &rowErr))
}

func TestSourceEmptyInput(t *testing.T) {
	src := csvio.NewSource(strings.NewReader(""))

	_, err := src.Next(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestSourceHeaderOnly(t *testing.T) {
	src := csvio.NewSource(strings.NewReader("type,client,tx,amount\n"))

	_, err := src.Next(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestSourceThroughEngine(t *testing.T) {
	input := `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
withdrawal, 2, 5, 3.0
`
	eng := engine.New()
	err := eng.Process(context.Background(), csvio.NewSource(strings.NewReader(input)))
	assert.NoError(t, err)

	// The oversized withdrawal for client 2 is the only rejection.
	assert.Equal(t, 1, len(eng.Rejections()))

	report := eng.Report()
	assert.Equal(t, 2, len(report))
	assert.Equal(t, "1.5", report[0].Available.String())
	assert.Equal(t, "1.5", report[0].Total.String())
	assert.Equal(t, "2", report[1].Available.String())
	assert.Equal(t, "2", report[1].Total.String())
}
