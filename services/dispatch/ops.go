package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsServer exposes health, metrics and the current batch report over HTTP
// while a long convergence run is in flight.
type OpsServer struct {
	server *http.Server
	logger *log.Logger
	report atomic.Pointer[BatchReport]
}

// NewOpsServer builds the ops listener. middleware is optional (typically
// the telemetry request middleware).
func NewOpsServer(addr string, logger *log.Logger, middleware func(http.Handler) http.Handler) (*OpsServer, error) {
	if addr == "" {
		return nil, errors.New("address is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &OpsServer{logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/batch", s.handleBatch)

	var handler http.Handler = r
	if middleware != nil {
		handler = middleware(r)
	}
	s.server = &http.Server{Addr: addr, Handler: handler}
	return s, nil
}

// Start serves until ctx is cancelled. Listen failures are logged, not
// fatal: the batch proceeds without the ops endpoint.
func (s *OpsServer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	go func() {
		s.logger.Printf("INFO ops listener on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("ERROR ops listener: %v", err)
		}
	}()
}

// SetReport publishes the finished report on /v1/batch.
func (s *OpsServer) SetReport(report *BatchReport) {
	s.report.Store(report)
}

func (s *OpsServer) handleBatch(w http.ResponseWriter, _ *http.Request) {
	report := s.report.Load()
	if report == nil {
		http.Error(w, "no batch report yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
