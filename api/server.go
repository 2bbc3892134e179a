// Package api provides the HTTP REST API server for hemicycle.
//
// It serves the generated ballots, deputy and group profiles from an
// in-memory snapshot, triggers background refreshes and streams refresh
// events over WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"

	"github.com/seenimoa/hemicycle/internal/config"
	"github.com/seenimoa/hemicycle/internal/export"
	"github.com/seenimoa/hemicycle/internal/logging"
	"github.com/seenimoa/hemicycle/internal/pipeline"
	"github.com/seenimoa/hemicycle/pkg/utils"
)

// Paging bounds of GET /api/v1/ballots.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Refresher regenerates the dataset. *pipeline.Pipeline implements it.
type Refresher interface {
	Run(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error)
}

// Options configures a Server.
type Options struct {
	Config    *config.Config
	Exporter  *export.Exporter // initial snapshot source; may be nil
	Refresher Refresher        // nil disables POST /refresh
	Version   string
}

// Server is the HTTP API server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	refresher Refresher
	version   string
	wsHub     *WSHub

	mu       sync.RWMutex
	snapshot *Snapshot

	refreshMu sync.Mutex
	refreshWG sync.WaitGroup
	baseCtx   context.Context
}

// NewServer creates a configured API server. The initial snapshot is read
// from the exporter's data directory; an empty directory gives an empty
// snapshot.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("api: config is required")
	}

	snap := NewSnapshot(nil)
	if opts.Exporter != nil {
		ds, err := opts.Exporter.Load()
		switch {
		case err == nil:
			snap = NewSnapshot(ds)
		case errors.Is(err, export.ErrNoData):
			slog.Info("no exported data yet, serving an empty snapshot", "data_dir", opts.Exporter.DataDir)
		default:
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		cfg:       opts.Config,
		refresher: opts.Refresher,
		version:   version,
		wsHub:     NewWSHub(),
		snapshot:  snap,
		baseCtx:   context.Background(),
	}
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// Snapshot returns the snapshot currently served.
func (s *Server) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot swaps the served snapshot.
func (s *Server) SetSnapshot(snap *Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully and waits for a running refresh to stop.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.baseCtx = ctx
	go s.wsHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	s.refreshWG.Wait()
	return err
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/ballots", s.handleBallots)
		r.Get("/ballots/{id}", s.handleBallot)

		r.Get("/deputies", s.handleDeputies)
		r.Get("/deputies/{id}", s.handleDeputy)

		r.Get("/groups", s.handleGroups)
		r.Get("/groups/{id}", s.handleGroup)

		r.Post("/refresh", s.handleRefresh)

		r.Get("/config", s.handleGetConfig)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs each request with its request id through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.AppendCtx(r.Context(), slog.String("request_id", middleware.GetReqID(r.Context())))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		slog.DebugContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// ════════════════════════════════════════════════════════════════════
// Request / Response types
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BallotPage is the body of GET /api/v1/ballots.
type BallotPage struct {
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	Months  []string            `json:"months"`
	Ballots []export.IndexEntry `json:"scrutins"`
}

// RefreshAccepted is the body of a started refresh.
type RefreshAccepted struct {
	Status string `json:"status"`
}

// RefreshSummary is the data of a refresh_complete event.
type RefreshSummary struct {
	RunID      string  `json:"run_id,omitempty"`
	Ballots    int     `json:"ballots"`
	Votes      int     `json:"votes"`
	Deputies   int     `json:"deputies"`
	Groups     int     `json:"groups"`
	DurationMS float64 `json:"duration_ms"`
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Snapshot()
	data := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"ballots":    len(snap.Index.Ballots),
		"deputies":   len(snap.Deputies),
		"groups":     len(snap.Groups),
		"ws_clients": s.wsHub.ClientCount(),
		"time_paris": utils.NowParis().Format(time.RFC3339),
	}
	if !snap.GeneratedAt.IsZero() {
		data["generated_at"] = snap.GeneratedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) handleBallots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"), DefaultPageSize)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	month := q.Get("month")
	if month != "" && !utils.IsMonth(month) {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	snap := s.Snapshot()
	items := snap.FilterBallots(q.Get("theme"), month)
	page := BallotPage{
		Total:   len(items),
		Limit:   limit,
		Offset:  offset,
		Months:  snap.Index.Months,
		Ballots: []export.IndexEntry{},
	}
	if offset < len(items) {
		end := min(offset+limit, len(items))
		page.Ballots = items[offset:end]
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: page})
}

func (s *Server) handleBallot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, ok := s.Snapshot().Ballot(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("ballot %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: b})
}

func (s *Server) handleDeputies(w http.ResponseWriter, r *http.Request) {
	deps := s.Snapshot().DeputiesOf(r.URL.Query().Get("group"))
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: deps})
}

func (s *Server) handleDeputy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, ok := s.Snapshot().Deputy(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("deputy %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: d})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.Snapshot().Groups})
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g, ok := s.Snapshot().Group(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("group %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: g})
}

// handleRefresh starts a background regeneration. Only one refresh runs at
// a time; a concurrent request gets 409.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh is not configured")
		return
	}
	if !s.refreshMu.TryLock() {
		writeError(w, http.StatusConflict, "a refresh is already running")
		return
	}

	reqID := middleware.GetReqID(r.Context())
	s.refreshWG.Add(1)
	go func() {
		defer s.refreshWG.Done()
		defer s.refreshMu.Unlock()
		ctx := logging.AppendCtx(s.baseCtx, slog.String("request_id", reqID))
		s.runRefresh(ctx)
	}()

	writeJSON(w, http.StatusAccepted, APIResponse{Success: true, Data: RefreshAccepted{Status: "started"}})
}

func (s *Server) runRefresh(ctx context.Context) {
	s.wsHub.Broadcast(WSMessage{Type: EventRefreshStarted})

	res, err := s.refresher.Run(ctx, func(stage, detail string) {
		s.wsHub.Broadcast(WSMessage{
			Type: EventRefreshProgress,
			Data: map[string]string{"stage": stage, "detail": detail},
		})
	})
	if err != nil {
		slog.ErrorContext(ctx, "refresh failed", "error", err)
		s.wsHub.Broadcast(WSMessage{Type: EventRefreshFailed, Data: map[string]string{"error": err.Error()}})
		return
	}

	s.SetSnapshot(NewSnapshot(res.Dataset))
	s.wsHub.Broadcast(WSMessage{Type: EventRefreshComplete, Data: RefreshSummary{
		RunID:      res.RunID,
		Ballots:    res.Ballots,
		Votes:      res.Votes,
		Deputies:   res.Deputies,
		Groups:     res.Groups,
		DurationMS: float64(res.Duration.Microseconds()) / 1000,
	}})
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
