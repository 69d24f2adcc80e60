package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/logger"
	"LedgerRouter/internal/metrics"
	"LedgerRouter/internal/router"
)

const (
	// maxBodySize is the maximum request body size in bytes.
	maxBodySize = 4 << 20 // 4 MB
)

// Querier answers key-image batches.
type Querier interface {
	Query(ctx context.Context, keyImages []ledger.KeyImage) (*router.Batch, error)
	Status() []router.ShardStatus
}

// Server is the HTTP API server.
type Server struct {
	addr    string           // addr is the HTTP listen address
	querier Querier          // querier answers key-image batches
	metrics *metrics.Metrics // metrics is exposed on /metrics when set
	server  *http.Server     // server is the underlying HTTP server
}

// New creates a new HTTP API server.
func New(addr string, querier Querier, m *metrics.Metrics) *Server {
	return &Server{
		addr:    addr,
		querier: querier,
		metrics: m,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/key-images", s.handleKeyImages)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleKeyImages handles POST /v1/key-images requests.
func (s *Server) handleKeyImages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if len(body) > maxBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	keyImages, err := parseQueryRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := s.querier.Query(r.Context(), keyImages)
	if err != nil {
		status := queryErrorStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("query failed", "error", err)
		}

		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newQueryResponse(batch))
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleStatus handles GET /status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	shards := s.querier.Status()

	connected := 0
	list := make([]shardStatusJSON, len(shards))

	for i, sh := range shards {
		list[i] = shardStatusJSON{ID: sh.ID, Address: sh.Address, Connected: sh.Connected}

		if sh.Connected {
			connected++
		}
	}

	writeJSON(w, http.StatusOK, statusJSON{
		Shards:    len(shards),
		Connected: connected,
		ShardList: list,
	})
}

// queryErrorStatus maps a Query error to an HTTP status.
func queryErrorStatus(err error) int {
	switch {
	case errors.Is(err, router.ErrEmptyBatch), errors.Is(err, router.ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, router.ErrNoShards):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
