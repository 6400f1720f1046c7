package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/ritzau/mfa-dashboard/pkg/chart"
	"github.com/ritzau/mfa-dashboard/pkg/dashboard"
	"github.com/ritzau/mfa-dashboard/pkg/logging"
	"github.com/ritzau/mfa-dashboard/pkg/metrics"
	"github.com/ritzau/mfa-dashboard/pkg/pubsub"
)

//go:embed static/*
var staticFiles embed.FS

// errorResponse is the JSON body of every failed API call
type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the dashboard page and its JSON API
type Server struct {
	router    *mux.Router
	runner    *dashboard.Runner
	publisher *pubsub.SSEPublisher
	metrics   *metrics.Registry
}

// NewServer creates a server for runner. The publisher's topics are configured for replay.
func NewServer(runner *dashboard.Runner, publisher *pubsub.SSEPublisher, registry *metrics.Registry) *Server {
	// workbook_status: new subscribers only need the current state
	publisher.ConfigureTopic(pubsub.TopicWorkbookStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})
	// dashboard: the latest revision tells a fresh page whether it is stale
	publisher.ConfigureTopic(pubsub.TopicDashboard, pubsub.TopicConfig{
		BufferSize: 1,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		runner:    runner,
		publisher: publisher,
		metrics:   registry,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware)
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/render", s.handleRender).Methods("GET")
	s.router.HandleFunc("/api/links", s.handleLinks).Methods("GET")
	s.router.HandleFunc("/api/emissions/{sector}", s.handleEmissions).Methods("GET")
	s.router.HandleFunc("/api/charts/{sector:[^/.]+}.png", s.handleChart).Methods("GET")
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")

	// Serve static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		logging.Fatal("failed to open embedded static files", "error", err)
	}
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(staticFS)))
}

// Handler returns the routed handler, for tests and custom listeners
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		rec := &logging.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, path, rec.Status)
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicDashboard && topic != pubsub.TopicWorkbookStatus {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("unknown topic %q", topic))
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.DebugContext(r.Context(), "SSE client went away", "topic", topic, "error", err)
			return
		}
		flush(w)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	factor, ok := s.factor(w, r)
	if !ok {
		return
	}

	model, err := s.runner.Recompute(factor)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, r, model)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	factor, ok := s.factor(w, r)
	if !ok {
		return
	}

	links, err := s.runner.Links(factor)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, r, links)
}

func (s *Server) handleEmissions(w http.ResponseWriter, r *http.Request) {
	factor, ok := s.factor(w, r)
	if !ok {
		return
	}

	table, err := s.runner.Emissions(mux.Vars(r)["sector"], factor)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}
	writeJSON(w, r, table)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	factor, ok := s.factor(w, r)
	if !ok {
		return
	}

	spec, err := s.runner.Histogram(mux.Vars(r)["sector"], factor)
	if err != nil {
		writeDashboardError(w, r, err)
		return
	}

	// Render fully before writing so a plotting failure can still produce an error status
	var buf bytes.Buffer
	if err := chart.WritePNG(&buf, spec); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := buf.WriteTo(w); err != nil {
		logging.WarnContext(r.Context(), "failed to write chart", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.runner.Status())
}

// factor reads the optional factor query parameter, writing a 400 when it is invalid
func (s *Server) factor(w http.ResponseWriter, r *http.Request) (float64, bool) {
	raw := r.URL.Query().Get("factor")
	if raw == "" {
		return s.runner.DefaultFactor(), true
	}

	factor, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("%w: %q", dashboard.ErrInvalidFactor, raw))
		return 0, false
	}
	if err := dashboard.ValidateFactor(factor); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return 0, false
	}
	return factor, true
}

func writeDashboardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrInvalidFactor):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, dashboard.ErrUnknownSector):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, dashboard.ErrNotLoaded):
		writeError(w, r, http.StatusServiceUnavailable, err)
	default:
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Error: err.Error()}); encErr != nil {
		logging.WarnContext(r.Context(), "failed to write error response", "error", encErr)
	}
}

// writeJSON encodes v before writing so an unencodable value becomes a 500
func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logging.ErrorContext(r.Context(), "failed to encode response", "error", err)
		writeError(w, r, http.StatusInternalServerError, fmt.Errorf("encoding response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := buf.WriteTo(w); err != nil {
		logging.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

// Start serves on port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// Open SSE streams end when the publisher closes
		s.publisher.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
