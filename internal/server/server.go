// Package server is the HTTP key and message server. It also exposes host details, benchmark
// jobs, a websocket prime stream and Prometheus metrics.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/securemsg/internal/benchmark"
	"github.com/user/securemsg/internal/keys"
	"github.com/user/securemsg/internal/keyserver"
	"github.com/user/securemsg/internal/metrics"
	"github.com/user/securemsg/internal/observability/logger"
	"github.com/user/securemsg/internal/prime"
	"github.com/user/securemsg/pkg/sysinfo"
)

const (
	maxBody         = 1 << 20
	shutdownTimeout = 10 * time.Second

	// maxBenchmarkBits bounds client-chosen sizes, which also become metric labels.
	maxBenchmarkBits = 8192
)

// Options configures a Server. Zero values get sensible defaults.
type Options struct {
	Addr string
	// Store defaults to an in-memory store without message expiry.
	Store Store
	// Primes backs the prime stream. Nil means a generator with one worker per CPU.
	Primes *prime.Generator
	// JobWorkers is the number of benchmark jobs run at once. Default 1.
	JobWorkers int
}

type Server struct {
	addr       string
	router     *mux.Router
	store      Store
	primes     *prime.Generator
	jobStore   *JobStore
	workerPool *WorkerPool
	sysInfo    *sysinfo.SystemInfo
	upgrader   websocket.Upgrader
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a server and starts its benchmark worker pool. Call Close when done.
func New(ctx context.Context, opts Options) (*Server, error) {
	info, err := sysinfo.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect system info: %w", err)
	}

	store := opts.Store
	if store == nil {
		store = NewMemoryStore(0)
	}
	primes := opts.Primes
	if primes == nil {
		primes = prime.NewGenerator(0)
	}
	if opts.JobWorkers < 1 {
		opts.JobWorkers = 1
	}

	sctx, cancel := context.WithCancel(context.Background())
	jobStore := NewJobStore()
	s := &Server{
		addr:       opts.Addr,
		router:     mux.NewRouter(),
		store:      store,
		primes:     primes,
		jobStore:   jobStore,
		workerPool: NewWorkerPool(opts.JobWorkers, jobStore),
		sysInfo:    info,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log:    logger.With(logger.Component("server")),
		ctx:    sctx,
		cancel: cancel,
	}

	if err := s.setupRoutes(); err != nil {
		cancel()
		return nil, err
	}
	s.workerPool.Start()
	return s, nil
}

func (s *Server) setupRoutes() error {
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.router.Use(s.recoverPanics, s.instrument)

	s.router.HandleFunc("/Key/{email}", s.handlePutKey).Methods(http.MethodPut)
	s.router.HandleFunc("/Key/{email}", s.handleGetKey).Methods(http.MethodGet)
	s.router.HandleFunc("/Message/{email}", s.handlePutMessage).Methods(http.MethodPut)
	s.router.HandleFunc("/Message/{email}", s.handleGetMessage).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/system-info", s.handleSystemInfo).Methods(http.MethodGet)
	api.HandleFunc("/primes/stream", s.handlePrimeStream).Methods(http.MethodGet)
	api.HandleFunc("/benchmarks", s.handleCreateBenchmark).Methods(http.MethodPost)
	api.HandleFunc("/benchmarks", s.handleListBenchmarks).Methods(http.MethodGet)
	api.HandleFunc("/benchmarks/{id}", s.handleGetBenchmark).Methods(http.MethodGet)
	api.HandleFunc("/benchmarks/{id}/progress", s.handleBenchmarkProgress).Methods(http.MethodGet)
	api.HandleFunc("/benchmarks/{id}/terminate", s.handleTerminateBenchmark).Methods(http.MethodPost)

	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return nil
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("key server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops running jobs and streams and releases the store.
func (s *Server) Close() error {
	s.cancel()
	s.workerPool.Stop()
	return s.store.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	return dec.Decode(v)
}

func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	var rec keyserver.KeyRecord
	if err := decodeBody(w, r, &rec); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if _, err := keys.DecodeString(rec.Key); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(rec.Email) == "" {
		rec.Email = email
	}

	if err := s.store.PutKey(r.Context(), email, rec); err != nil {
		s.log.Error("store key", logger.Email(email), logger.Err(err))
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}
	s.log.Info("key published", logger.Email(email))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	rec, err := s.store.GetKey(r.Context(), email)
	if s.storeError(w, err, "key", email) {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePutMessage(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	var msg keyserver.Message
	if err := decodeBody(w, r, &msg); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if _, err := base64.StdEncoding.DecodeString(msg.Content); err != nil || msg.Content == "" {
		http.Error(w, "content must be non-empty base64", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(msg.Email) == "" {
		msg.Email = email
	}

	if err := s.store.PutMessage(r.Context(), email, msg); err != nil {
		s.log.Error("store message", logger.Email(email), logger.Err(err))
		http.Error(w, "store failure", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]
	msg, err := s.store.GetMessage(r.Context(), email)
	if s.storeError(w, err, "message", email) {
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// storeError writes the response for a failed lookup and reports whether it did.
func (s *Server) storeError(w http.ResponseWriter, err error, what, email string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound):
		http.Error(w, what+" not found", http.StatusNotFound)
	default:
		s.log.Error("load "+what, logger.Email(email), logger.Err(err))
		http.Error(w, "store failure", http.StatusInternalServerError)
	}
	return true
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sysInfo)
}

func (s *Server) handleCreateBenchmark(w http.ResponseWriter, r *http.Request) {
	var config benchmark.Config
	if err := decodeBody(w, r, &config); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(config.Operations) == 0 {
		config.Operations = []string{benchmark.OpPrime}
	}
	if len(config.Sizes) == 0 {
		http.Error(w, "at least one size is required", http.StatusBadRequest)
		return
	}
	for _, size := range config.Sizes {
		if size > maxBenchmarkBits {
			http.Error(w, fmt.Sprintf("sizes must not exceed %d bits", maxBenchmarkBits), http.StatusBadRequest)
			return
		}
	}
	config.ShowProgress = false

	job := &BenchmarkJob{
		ID:        uuid.NewString(),
		Config:    config,
		Status:    JobQueued,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
		Progress:  make(chan benchmark.ProgressUpdate, 100),
	}
	s.jobStore.Add(job)

	if err := s.workerPool.Submit(job); err != nil {
		s.jobStore.Remove(job.ID)
		http.Error(w, "server is busy, please try again later", http.StatusServiceUnavailable)
		return
	}

	s.log.Info("benchmark queued",
		zap.String("job_id", job.ID),
		zap.Strings("operations", config.Operations),
		zap.Ints("sizes", config.Sizes),
		zap.Int("iterations", config.Iterations),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": JobQueued,
	})
}

func (s *Server) handleListBenchmarks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobStore.List())
}

func (s *Server) handleGetBenchmark(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobStore.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "benchmark not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleTerminateBenchmark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, terminated := s.jobStore.Terminate(id)
	if !found {
		http.Error(w, "benchmark not found", http.StatusNotFound)
		return
	}
	if !terminated {
		http.Error(w, "benchmark already finished", http.StatusConflict)
		return
	}
	s.workerPool.TerminateJob(id)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  JobTerminated,
		"message": "benchmark termination initiated",
	})
}

func (s *Server) handleBenchmarkProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.jobStore.Get(id)
	if !ok {
		http.Error(w, "benchmark not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	progress := job.Progress
	for {
		select {
		case update, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			if err := conn.WriteJSON(map[string]any{
				"status":     JobRunning,
				"completed":  false,
				"current":    update.Current,
				"total":      update.Total,
				"percentage": update.Percentage,
				"rate":       update.Rate,
				"operation":  update.Operation,
				"size":       update.Size,
			}); err != nil {
				return
			}
		case <-ticker.C:
			current, exists := s.jobStore.Get(id)
			if !exists {
				return
			}
			if current.Status != JobQueued && current.Status != JobRunning {
				_ = conn.WriteJSON(map[string]any{
					"status":    current.Status,
					"completed": true,
				})
				return
			}
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		}
	}
}
