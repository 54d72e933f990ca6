package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/source"
)

// Server provides the REST API handlers over a shared board.
type Server struct {
	state    *board.State
	fetcher  source.Fetcher
	validate *validator.Validate
	log      *slog.Logger
}

// NewServer creates a new API server.
func NewServer(state *board.State, fetcher source.Fetcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		state:    state,
		fetcher:  fetcher,
		validate: validator.New(),
		log:      logger,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)
	mux.HandleFunc("GET /api/v1/board", s.getBoard)
	mux.HandleFunc("POST /api/v1/board/reload", s.reloadBoard)
	mux.HandleFunc("GET /api/v1/preferences", s.getPreferences)
	mux.HandleFunc("PUT /api/v1/preferences", s.updatePreferences)

	return corsMiddleware(s.loggingMiddleware(mux))
}

// Reload refetches the board. Used on startup and by the periodic reloader.
func (s *Server) Reload(ctx context.Context) error {
	return s.state.Load(ctx, s.fetcher)
}

// ReloadEvery refetches the board every interval until ctx is done.
func (s *Server) ReloadEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Reload(ctx)
		}
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	body   *bytes.Buffer
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status >= http.StatusBadRequest {
		rw.body.Write(b)
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK, body: &bytes.Buffer{}}

		next.ServeHTTP(rw, r)

		msg := fmt.Sprintf("%s %s - %d %dB in %s", r.Method, r.RequestURI, rw.status, rw.size, time.Since(start))
		if rw.status >= http.StatusBadRequest {
			s.log.Error(msg, "response_body", strings.TrimSpace(rw.body.String()))
		} else {
			s.log.Info(msg)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeSnapshot reports a board that failed to load as a bad gateway.
func writeSnapshot(w http.ResponseWriter, snap board.Snapshot) {
	status := http.StatusOK
	if snap.Error != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, snap)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getBoard(w http.ResponseWriter, r *http.Request) {
	var g board.Grouping
	var so board.Sorting
	var err error

	q := r.URL.Query()
	if v := q.Get("group"); v != "" {
		if g, err = board.ParseGrouping(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if v := q.Get("sort"); v != "" {
		if so, err = board.ParseSorting(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	writeSnapshot(w, s.state.View(g, so))
}

func (s *Server) reloadBoard(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		s.log.Warn("reload failed", "error", err)
	}
	writeSnapshot(w, s.state.Snapshot())
}

type preferences struct {
	Grouping string `json:"grouping"`
	Sorting  string `json:"sorting"`
}

type preferencesRequest struct {
	Grouping string `json:"grouping" validate:"omitempty,oneof=status username priority"`
	Sorting  string `json:"sorting" validate:"omitempty,oneof=priority title"`
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	g, so := s.state.Criteria()
	writeJSON(w, http.StatusOK, preferences{Grouping: string(g), Sorting: string(so)})
}

func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.Grouping == "" && req.Sorting == "" {
		writeError(w, http.StatusBadRequest, "grouping or sorting is required")
		return
	}

	err := s.state.SetCriteria(r.Context(), board.Grouping(req.Grouping), board.Sorting(req.Sorting))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeSnapshot(w, s.state.Snapshot())
}

// validationMessage turns validator errors into a short client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s must be one of [%s], got %q",
			strings.ToLower(fe.Field()), fe.Param(), fe.Value()))
	}
	return strings.Join(parts, "; ")
}
