// Package http serves a coordinator's dispatch hub to remote workers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clgrpell/pkg/clgrperrors"
	"clgrpell/pkg/rpc"
	"clgrpell/pkg/types"
)

const (
	contentTypeJSON        = "application/json"
	defaultListen          = ":7070"
	defaultPollTimeout     = time.Second * 30
	defaultShutdownTimeout = time.Second * 5
)

type iHubAPI interface {
	Workers() int
	Next(ctx context.Context, w types.WorkerID) (types.ShardIndex, error)
	Report(ctx context.Context, r types.Report) error
}

type iLedgerAPI interface {
	Summary() types.Summary
	Shards() []types.ShardState
}

type Options struct {
	Listen      string
	Advertise   string
	PollTimeout time.Duration
}

// Server exposes the worker side of a Hub: registration, long-polled
// assignments and completion reports.
type Server struct {
	hub         iHubAPI
	ledger      iLedgerAPI
	job         rpc.Job
	pollTimeout time.Duration
	logger      *slog.Logger

	mu         sync.Mutex
	registered int
	stopped    int
	done       chan struct{}

	httpServer *http.Server
	URL        string
	addr       string
}

// NewServer creates a new server instance
func NewServer(hub iHubAPI, ledger iLedgerAPI, job rpc.Job, opts Options, logger *slog.Logger) *Server {
	if opts.Listen == "" {
		opts.Listen = defaultListen
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	job.Workers = hub.Workers()
	return &Server{
		hub:         hub,
		ledger:      ledger,
		job:         job,
		pollTimeout: opts.PollTimeout,
		logger:      logger.With("run", job.RunID),
		done:        make(chan struct{}),
		URL:         opts.Advertise,
		addr:        opts.Listen,
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if s.URL == "" {
		s.URL = "http://" + advertiseAddr(ln.Addr())
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.logger.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// Done is closed once every worker has picked up its stop sentinel.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/job", s.handleJob)
	r.Get("/api/shards", s.handleShards)
	r.Post("/api/workers", s.handleRegister)
	r.Get("/api/workers/{id}/assignment", s.handleAssignment)
	r.Post("/api/workers/{id}/reports", s.handleReport)

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, rpc.NewOKResponse())
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, rpc.JobResponse{Response: rpc.NewSuccessResponse(), Job: s.job})
}

func (s *Server) handleShards(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, rpc.ShardsResponse{
		Response: rpc.NewSuccessResponse(),
		Summary:  s.ledger.Summary(),
		Shards:   s.ledger.Shards(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.registered >= s.hub.Workers() {
		s.mu.Unlock()
		s.writeJSON(w, http.StatusConflict, rpc.NewErrorResponse(clgrperrors.ErrNoWorkerSlot.Error()))
		return
	}
	s.registered++
	id := types.WorkerID(s.registered)
	s.mu.Unlock()

	s.logger.Info("worker registered", "worker", id, "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusOK, rpc.RegisterResponse{
		Response: rpc.NewSuccessResponse(),
		WorkerID: id,
		Job:      s.job,
	})
}

// handleAssignment waits up to the poll timeout for the worker's next
// index and answers 204 when none arrived.
func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workerID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.pollTimeout)
	defer cancel()

	index, err := s.hub.Next(ctx, id)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		s.writeJSON(w, http.StatusServiceUnavailable, rpc.NewErrorResponse(err.Error()))
		return
	}

	if index == types.NoMoreWork {
		s.markStopped(id)
	}
	s.writeJSON(w, http.StatusOK, rpc.AssignmentResponse{Response: rpc.NewSuccessResponse(), Index: index})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.workerID(w, r)
	if !ok {
		return
	}

	var report types.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		s.writeJSON(w, http.StatusBadRequest, rpc.NewErrorResponse(err.Error()))
		return
	}
	if report.Worker == 0 {
		report.Worker = id
	}
	if report.Worker != id {
		s.writeJSON(w, http.StatusBadRequest, rpc.NewErrorResponse(
			fmt.Sprintf("report from worker %d posted for worker %d", report.Worker, id)))
		return
	}

	if err := s.hub.Report(r.Context(), report); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, rpc.NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, rpc.NewSuccessResponse())
}

// workerID parses the {id} path parameter and checks it was registered.
func (s *Server) workerID(w http.ResponseWriter, r *http.Request) (types.WorkerID, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, rpc.NewErrorResponse("Invalid worker id"))
		return 0, false
	}

	s.mu.Lock()
	registered := s.registered
	s.mu.Unlock()
	if n < 1 || n > registered {
		s.writeJSON(w, http.StatusNotFound, rpc.NewErrorResponse(fmt.Sprintf("worker %d is not registered", n)))
		return 0, false
	}
	return types.WorkerID(n), true
}

func (s *Server) markStopped(id types.WorkerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped++
	s.logger.Debug("worker stopped", "worker", id, "stopped", s.stopped)
	if s.stopped == s.hub.Workers() {
		close(s.done)
	}
}

// advertiseAddr turns a wildcard listen address into one a worker on the
// same host can dial.
func advertiseAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return addr.String()
	}
	return net.JoinHostPort("localhost", strconv.Itoa(tcp.Port))
}
