package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/payflow/engine"
)

const sampleCSV = `type,client,tx,amount
deposit,1,1,1.0
deposit,2,2,2.0
withdrawal,1,3,0.5
dispute,2,2,
chargeback,2,2,
dispute,1,999,
`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	inputFile := filepath.Join(t.TempDir(), "transactions.csv")
	assert.NoError(t, os.WriteFile(inputFile, []byte(sampleCSV), 0600))

	s := New("127.0.0.1", 0, inputFile)
	s.Version = "test"
	s.CommitSHA = "abc1234"
	assert.NoError(t, s.reloadEngine(context.Background()))

	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	recorder := httptest.NewRecorder()
	s.router().ServeHTTP(recorder, req)
	return recorder
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, resp.Code)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "abc1234", body["commit"])
}

func TestHandleAccounts(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/api/accounts")
	assert.Equal(t, http.StatusOK, resp.Code)

	var snapshots []engine.AccountSnapshot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snapshots))
	assert.Equal(t, 2, len(snapshots))

	// Client 1: deposit 1.0, withdrawal 0.5.
	assert.Equal(t, engine.ClientID(1), snapshots[0].Client)
	assert.Equal(t, "0.5", snapshots[0].Total.String())
	assert.False(t, snapshots[0].Locked)

	// Client 2: deposit charged back, account locked and empty.
	assert.Equal(t, engine.ClientID(2), snapshots[1].Client)
	assert.Equal(t, "0", snapshots[1].Total.String())
	assert.True(t, snapshots[1].Locked)
}

func TestHandleAccount(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/api/accounts/1")
	assert.Equal(t, http.StatusOK, resp.Code)

	var snapshot engine.AccountSnapshot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snapshot))
	assert.Equal(t, engine.ClientID(1), snapshot.Client)
	assert.Equal(t, "0.5", snapshot.Available.String())

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/accounts/77").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/accounts/notanumber").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/accounts/70000").Code)
}

func TestHandleTransaction(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/api/transactions/2")
	assert.Equal(t, http.StatusOK, resp.Code)

	var record TransactionResponse
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &record))
	assert.Equal(t, engine.TxID(2), record.Tx)
	assert.Equal(t, "deposit", record.Type)
	assert.Equal(t, engine.ClientID(2), record.Client)
	assert.Equal(t, "charged_back", record.DisputeState)
	assert.NotZero(t, record.Amount)
	assert.Equal(t, "2", *record.Amount)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/transactions/999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/transactions/abc").Code)
}

func TestHandleRejections(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/api/rejections")
	assert.Equal(t, http.StatusOK, resp.Code)

	var rejections []string
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &rejections))

	// The dispute of unknown transaction 999 is the only rejection.
	assert.Equal(t, 1, len(rejections))
}

func TestReloadSwapsEngine(t *testing.T) {
	s := newTestServer(t)

	// Rewrite the file and reload; the old state must be gone.
	updated := "type,client,tx,amount\ndeposit,9,1,4.0\n"
	assert.NoError(t, os.WriteFile(s.inputFile, []byte(updated), 0600))
	assert.NoError(t, s.reloadEngine(context.Background()))

	resp := get(t, s, "/api/accounts")
	var snapshots []engine.AccountSnapshot
	assert.NoError(t, json.Unmarshal(resp.Body.Bytes(), &snapshots))
	assert.Equal(t, 1, len(snapshots))
	assert.Equal(t, engine.ClientID(9), snapshots[0].Client)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, resp.Body.Len() > 0)
}
