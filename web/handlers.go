package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/robinvdvleuten/payflow/engine"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payflow_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payflow_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	reloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payflow_reload_duration_seconds",
		Help:    "Time spent rebuilding the engine from the input file",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	accountsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payflow_accounts",
		Help: "Number of accounts in the current report",
	})

	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payflow_transactions_total",
		Help: "Transactions seen across reloads, labeled by outcome",
	}, []string{"outcome"})
)

// observeReload records metrics for a completed engine rebuild.
func observeReload(eng *engine.Engine, elapsed time.Duration) {
	reloadDuration.Observe(elapsed.Seconds())
	accountsGauge.Set(float64(len(eng.Report())))
	transactionsTotal.WithLabelValues("applied").Add(float64(eng.Applied()))
	transactionsTotal.WithLabelValues("rejected").Add(float64(len(eng.Rejections())))
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument is middleware recording request counts and latencies per
// route template. The SSE endpoint is skipped; its connections are
// long-lived and would distort the latency histogram.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		if endpoint == "/api/events" {
			next.ServeHTTP(w, r)
			return
		}

		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		timer.ObserveDuration()
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(recorder.status)).Inc()
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Version,
		"commit":  s.CommitSHA,
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.engine().Report())
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["client"]
	client, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid client id")
		return
	}

	account, ok := s.engine().Account(engine.ClientID(client))
	if !ok {
		respondWithError(w, http.StatusNotFound, "Account not found")
		return
	}
	respondWithJSON(w, http.StatusOK, account.Snapshot())
}

// TransactionResponse is the JSON view of a ledger record.
type TransactionResponse struct {
	Tx           engine.TxID     `json:"tx"`
	Type         string          `json:"type"`
	Client       engine.ClientID `json:"client"`
	Amount       *string         `json:"amount,omitempty"`
	DisputeState string          `json:"dispute_state"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["tx"]
	txID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	record, ok := s.engine().Record(engine.TxID(txID))
	if !ok {
		respondWithError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	resp := TransactionResponse{
		Tx:           record.Transaction.Tx,
		Type:         record.Transaction.Type.String(),
		Client:       record.Transaction.Client,
		DisputeState: record.DisputeState.String(),
	}
	if record.Transaction.Amount != nil {
		amount := record.Transaction.Amount.String()
		resp.Amount = &amount
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRejections(w http.ResponseWriter, r *http.Request) {
	rejections := s.engine().Rejections()

	messages := make([]string, 0, len(rejections))
	for _, rejection := range rejections {
		messages = append(messages, rejection.Error())
	}
	respondWithJSON(w, http.StatusOK, messages)
}
