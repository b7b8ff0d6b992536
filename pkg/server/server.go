package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/systemstart/cirun/pkg/api"
	"github.com/systemstart/cirun/pkg/processing"
)

const (
	maxEventBytes   = 1 << 20
	shutdownTimeout = 10 * time.Second

	// DefaultMaxRuns is how many run records a server keeps. Older finished
	// runs are forgotten first; running ones are never dropped.
	DefaultMaxRuns = 1000
)

// Run states reported by the API. Finished runs report the result status.
const (
	StateRunning = "running"
	StateError   = "error"
)

// Run is the server's record of one dispatched run.
type Run struct {
	ID        string                `json:"id"`
	Workflow  string                `json:"workflow"`
	Event     api.Event             `json:"event"`
	State     string                `json:"state"`
	CreatedAt time.Time             `json:"createdAt"`
	Result    *processing.RunResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Server receives trigger events over HTTP and runs matching workflows in the
// background.
type Server struct {
	registry *Registry
	opts     processing.RunOptions
	runCtx   context.Context

	mu      sync.Mutex
	runs    map[string]*Run
	order   []string
	maxRuns int

	wg sync.WaitGroup
}

// New creates a server dispatching to the workflows of registry. Runs are
// bound to ctx, not to the request that created them.
func New(ctx context.Context, registry *Registry, opts processing.RunOptions) *Server {
	return &Server{
		registry: registry,
		opts:     opts,
		runCtx:   ctx,
		runs:     make(map[string]*Run),
		maxRuns:  DefaultMaxRuns,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Post("/events", s.handleEvent)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/runs/{id}/logs/{index}", s.handleGetLog)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", addr, err)
	case <-ctx.Done():
	}

	slog.Info("shutting down webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// Wait blocks until every dispatched run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Runs returns the run records in creation order.
func (s *Server) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.runs[id])
	}
	return out
}

// Run returns one run record.
func (s *Server) Run(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *r, true
}

// Dispatch starts a run for every workflow whose trigger matches ev and
// returns the ids of the created runs.
func (s *Server) Dispatch(ev api.Event) []string {
	ids := []string{}
	for _, w := range s.registry.Workflows() {
		if !w.On.Matches(ev) {
			continue
		}
		ids = append(ids, s.start(w, ev))
	}
	slog.Info("event dispatched", "event", ev.Kind, "branch", ev.Branch, "runs", len(ids))
	return ids
}

func (s *Server) start(w *api.Workflow, ev api.Event) string {
	id := uuid.NewString()
	run := &Run{ID: id, Workflow: w.DisplayName(), Event: ev, State: StateRunning, CreatedAt: time.Now()}

	s.mu.Lock()
	s.runs[id] = run
	s.order = append(s.order, id)
	s.prune()
	s.mu.Unlock()

	opts := s.opts
	opts.RunID = id

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := processing.RunWorkflow(s.runCtx, w, ev, opts)
		s.finish(id, res, err)
	}()
	return id
}

// prune drops the oldest finished runs beyond maxRuns. Callers hold s.mu.
func (s *Server) prune() {
	excess := len(s.order) - s.maxRuns
	if excess <= 0 {
		return
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.runs[id].State != StateRunning {
			delete(s.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *Server) finish(id string, res *processing.RunResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.runs[id]
	if err != nil {
		slog.Error("run could not be executed", "runId", id, "workflow", run.Workflow, "error", err)
		run.State = StateError
		run.Error = err.Error()
		return
	}
	run.State = string(res.Status)
	run.Result = res
}

type eventResponse struct {
	Runs []string `json:"runs"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev api.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		http.Error(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := ev.Validate(); err != nil {
		http.Error(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return
	}

	ids := s.Dispatch(ev)
	status := http.StatusAccepted
	if len(ids) == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, eventResponse{Runs: ids})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Runs())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.Run(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	run, ok := s.Run(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid step index", http.StatusBadRequest)
		return
	}
	if s.opts.Logs == nil || run.Result == nil {
		http.Error(w, "log not available", http.StatusNotFound)
		return
	}

	for _, rec := range run.Result.Steps {
		if rec.Index != index || rec.LogPath == "" {
			continue
		}
		data, err := s.opts.Logs.Read(rec.LogPath, rec.LogDigest)
		if err != nil {
			slog.Error("failed to read step log", "runId", run.ID, "step", rec.Name, "error", err)
			http.Error(w, "log unreadable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(data)
		return
	}
	http.Error(w, "log not available", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
