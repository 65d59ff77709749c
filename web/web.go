// Package web provides an HTTP server for inspecting a processed
// transaction file: account balances, per-transaction dispute state,
// and the rejection log, plus Prometheus metrics.
//
// SECURITY WARNING: This server has no authentication and should only be
// bound to localhost (127.0.0.1). Do not expose it to untrusted networks.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robinvdvleuten/payflow/csvio"
	"github.com/robinvdvleuten/payflow/engine"
	"github.com/robinvdvleuten/payflow/telemetry"
)

// Server serves a single transaction file. The engine is rebuilt from
// scratch on every (re)load; nothing persists across loads.
type Server struct {
	Host         string
	Port         int
	Version      string
	CommitSHA    string
	WatchEnabled bool

	mu        sync.RWMutex
	eng       *engine.Engine
	inputFile string

	// SSE clients for broadcasting reload events
	sseClients map[chan string]struct{}
	sseMu      sync.Mutex
}

// New creates a server for the given transaction file.
func New(host string, port int, inputFile string) *Server {
	return &Server{
		Host:      host,
		Port:      port,
		inputFile: inputFile,
	}
}

// Start loads the transaction file, optionally starts the file watcher,
// and serves HTTP until the process exits.
func (s *Server) Start(ctx context.Context) error {
	collector := telemetry.FromContext(ctx)
	timer := collector.Start(fmt.Sprintf("web.start %s:%d", s.Host, s.Port))
	defer timer.End()

	if s.inputFile == "" {
		return fmt.Errorf("transaction file is required")
	}

	s.sseClients = make(map[chan string]struct{})

	loadTimer := timer.Child(fmt.Sprintf("web.load %s", filepath.Base(s.inputFile)))
	if err := s.reloadEngine(ctx); err != nil {
		loadTimer.End()
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	loadTimer.End()

	if s.WatchEnabled {
		if err := s.startWatcher(ctx); err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	return http.ListenAndServe(addr, s.router())
}

// router wires the API routes. Every route goes through the metrics
// middleware so request counts and latencies land in /metrics.
func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts", s.handleAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/accounts/{client}", s.handleAccount).Methods(http.MethodGet)
	r.HandleFunc("/api/transactions/{tx}", s.handleTransaction).Methods(http.MethodGet)
	r.HandleFunc("/api/rejections", s.handleRejections).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleSSE).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// reloadEngine rebuilds the engine from the input file and swaps it in.
func (s *Server) reloadEngine(ctx context.Context) error {
	started := time.Now()

	file, err := os.Open(s.inputFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	eng := engine.New()
	if err := eng.Process(ctx, csvio.NewSource(file)); err != nil {
		return err
	}

	s.mu.Lock()
	s.eng = eng
	s.mu.Unlock()

	observeReload(eng, time.Since(started))
	return nil
}

// engine returns the current engine under a read lock.
func (s *Server) engine() *engine.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng
}

// startWatcher watches the input file and reloads the engine when it
// changes, broadcasting an SSE event afterwards.
func (s *Server) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory rather than the file itself; atomic saves
	// replace the file and would silently drop a file-level watch.
	if err := watcher.Add(filepath.Dir(s.inputFile)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.inputFile, err)
	}

	go s.runWatcher(ctx, watcher)

	return nil
}

// runWatcher processes file system events with debouncing.
func (s *Server) runWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	// Debounce timer - editors often write files in multiple steps
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Name != s.inputFile {
				continue
			}
			// React to write/create/remove/rename events
			// (Remove/Rename are common in atomic saves)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(debounceDelay, func() {
				s.handleFileChange(ctx)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		}
	}
}

// handleFileChange reloads the engine and notifies SSE clients.
func (s *Server) handleFileChange(ctx context.Context) {
	if err := s.reloadEngine(ctx); err != nil {
		log.Printf("Failed to reload transactions: %v", err)
		return
	}

	s.broadcast("reload")
}

// handleSSE handles Server-Sent Events connections for real-time updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan string, 10)

	s.sseMu.Lock()
	s.sseClients[clientChan] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, clientChan)
		s.sseMu.Unlock()
		close(clientChan)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	_, _ = fmt.Fprintf(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-clientChan:
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}
}

// broadcast sends an event to all connected SSE clients.
func (s *Server) broadcast(event string) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()

	for clientChan := range s.sseClients {
		select {
		case clientChan <- event:
		default:
			// Client buffer full, skip
		}
	}
}
