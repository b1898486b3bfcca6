package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvandessel/dyngraph/internal/ratelimit"
	"github.com/nvandessel/dyngraph/internal/store"
)

// API clients may burst to apiBurst requests and then sustain apiRate per second.
const (
	apiRate  = 10.0
	apiBurst = 30
)

// Server browses the stored steps of one run.
type Server struct {
	store      store.RunStore
	runID      string
	gatherer   prometheus.Gatherer
	title      string
	limiter    *ratelimit.Limiter
	httpServer *http.Server
	listener   net.Listener
	mu         sync.Mutex
	addr       string
}

// NewServer creates a viewer for runID. A nil gatherer disables /metrics.
func NewServer(rs store.RunStore, runID string, gatherer prometheus.Gatherer) *Server {
	return &Server{
		store:    rs,
		runID:    runID,
		gatherer: gatherer,
		title:    DefaultTitle,
		limiter:  ratelimit.NewLimiter(apiRate, apiBurst),
	}
}

// Addr returns the address the server is listening on (e.g., "localhost:PORT").
// Returns empty string if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the viewer routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /step/{t}", s.handleStepPage)
	mux.Handle("GET /api/run", s.limited(s.handleRun))
	mux.Handle("GET /api/steps", s.limited(s.handleSteps))
	mux.Handle("GET /api/step/{t}", s.limited(s.handleStep))
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return ratelimit.Middleware(s.limiter, h)
}

// ListenAndServe listens on addr ("" picks a free localhost port) and blocks
// until the context is cancelled. A clean shutdown returns nil.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled or the
// listener fails. It returns once the server has fully shut down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpServer
	s.mu.Unlock()

	served := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
		case <-served:
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(ln)
	close(served)
	<-stopped
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type indexData struct {
	Title string
	Run   *store.Run
	Steps []store.StepSummary
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), s.runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	steps, err := s.store.ListSteps(r.Context(), s.runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	tmpl, err := template.ParseFS(templates, "templates/index.html.tmpl")
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, indexData{Title: s.title, Run: run, Steps: steps}); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleStepPage(w http.ResponseWriter, r *http.Request) {
	step, ok := stepParam(w, r)
	if !ok {
		return
	}
	snap, err := s.store.LoadStep(r.Context(), s.runID, step)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	run, err := s.store.GetRun(r.Context(), s.runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	page, err := RenderHTML(snap, s.title, serverNav(step, run.LastStep))
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), s.runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.store.ListSteps(r.Context(), s.runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, steps)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	step, ok := stepParam(w, r)
	if !ok {
		return
	}
	snap, err := s.store.LoadStep(r.Context(), s.runID, step)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, snap)
}

// serverNav links step pages served under /step/.
func serverNav(step, lastStep int) PageNav {
	var nav PageNav
	if step > 0 {
		nav.Prev = "/step/" + strconv.Itoa(step-1)
	}
	if step < lastStep {
		nav.Next = "/step/" + strconv.Itoa(step+1)
	}
	return nav
}

func stepParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(r.PathValue("t"))
	if err != nil || step < 0 {
		http.Error(w, "invalid step: "+r.PathValue("t"), http.StatusBadRequest)
		return 0, false
	}
	return step, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, store.ErrStepNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
