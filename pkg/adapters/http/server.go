package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/ifgate/internal/logging"
	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/orchestrator"
	"github.com/aretw0/ifgate/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service defines the session use cases served over HTTP.
type Service interface {
	CreateSession(ctx context.Context, gameID string) (orchestrator.CreateResult, error)
	SendCommand(ctx context.Context, sessionID, command string) (orchestrator.CommandResult, error)
	Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error)
	TerminateSession(ctx context.Context, sessionID string) error
	Games() ([]ports.Game, error)
	ActiveSessions() int
}

// Server holds the handlers of the HTTP API.
type Server struct {
	svc     Service
	logger  *slog.Logger
	version string
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for request and error logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(version)
	}
}

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc Service, opts ...Option) http.Handler {
	s := &Server{
		svc:     svc,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/games", s.ListGames)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/command", s.SendCommand)
			r.Get("/transcript", s.GetTranscript)
			r.Delete("/", s.TerminateSession)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type createSessionRequest struct {
	GameName *string `json:"gameName"`
}

type sendCommandRequest struct {
	Command *string `json:"command"`
}

// Interaction is one transcript entry as served by the API.
type Interaction struct {
	Seq       int       `json:"seq"`
	Command   string    `json:"command"`
	Response  string    `json:"response"`
	Partial   bool      `json:"partial,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptResponse is the body of GET /sessions/{id}/transcript.
type TranscriptResponse struct {
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	TotalPages   int           `json:"totalPages"`
	TotalTurns   int           `json:"totalTurns"`
	Interactions []Interaction `json:"interactions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.GameName == nil || strings.TrimSpace(*body.GameName) == "" {
		s.writeError(w, http.StatusBadRequest, "gameName is required")
		return
	}

	res, err := s.svc.CreateSession(r.Context(), *body.GameName)
	if err != nil {
		s.fail(w, r, "Failed to create session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// SendCommand handles POST /sessions/{sessionID}/command.
func (s *Server) SendCommand(w http.ResponseWriter, r *http.Request) {
	var body sendCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Command == nil {
		s.writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	res, err := s.svc.SendCommand(r.Context(), chi.URLParam(r, "sessionID"), *body.Command)
	if err != nil {
		s.fail(w, r, "Failed to send command", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GetTranscript handles GET /sessions/{sessionID}/transcript.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	page, ok := positiveQuery(r, "page")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "page must be an integer >= 1")
		return
	}
	limit, ok := positiveQuery(r, "limit")
	if !ok || limit > orchestrator.MaxLimit {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer between 1 and %d", orchestrator.MaxLimit))
		return
	}

	p, err := s.svc.Transcript(r.Context(), chi.URLParam(r, "sessionID"), page, limit)
	if err != nil {
		s.fail(w, r, "Failed to get transcript", err)
		return
	}

	resp := TranscriptResponse{
		Page:         p.Page,
		Limit:        p.Limit,
		TotalPages:   p.TotalPages,
		TotalTurns:   p.TotalTurns,
		Interactions: make([]Interaction, 0, len(p.Turns)),
	}
	for _, t := range p.Turns {
		resp.Interactions = append(resp.Interactions, Interaction{
			Seq:       t.Seq,
			Command:   t.Command,
			Response:  t.Output,
			Partial:   t.Partial,
			Timestamp: t.Timestamp.UTC(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// TerminateSession handles DELETE /sessions/{sessionID}.
func (s *Server) TerminateSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.TerminateSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.fail(w, r, "Failed to terminate session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGames handles GET /games.
func (s *Server) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.svc.Games()
	if err != nil {
		s.fail(w, r, "Failed to list games", err)
		return
	}
	s.writeJSON(w, http.StatusOK, games)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":             "ifgate",
		"version":         s.version,
		"active_sessions": s.svc.ActiveSessions(),
	})
}

// positiveQuery reads an optional integer query parameter; absent yields 0.
func positiveQuery(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// StatusFor maps service errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionBusy), errors.Is(err, domain.ErrSessionExists):
		return http.StatusConflict
	case domain.IsFatal(err):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err's status. Server errors get the generic message and are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, generic string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(generic, "err", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		s.writeError(w, status, generic)
		return
	}
	s.logger.Debug(generic, "err", err, "status", status)
	s.writeError(w, status, messageFor(status, err))
}

func messageFor(status int, err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, domain.ErrGameNotFound):
		return "Game not found"
	case errors.Is(err, domain.ErrSessionBusy):
		return "Session is busy"
	case status == http.StatusGone:
		return "Game process has exited"
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
