package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"subburn/internal/engine"
	"subburn/internal/job"
	"subburn/internal/logging"
)

const historyDefaultLimit = 50

// Server serves the engine API on a single listener.
type Server struct {
	bind   string
	logger *slog.Logger
	engine *engine.Engine

	listener net.Listener
	server   *http.Server
}

// NewServer wires the HTTP routes onto the engine. A blank bind address
// disables the server and returns nil.
func NewServer(bind string, eng *engine.Engine, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, errors.New("api: engine is required")
	}
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}

	srv := &Server{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		engine: eng,
	}

	srv.server = &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: result delivery streams large files and must not
		// be cut mid-transfer.
	}
	return srv, nil
}

// Routes builds the chi router. Exposed so tests can drive handlers through
// httptest without binding a socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/healthz", s.handleHealthz)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/history", s.handleHistory)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.handleSubmit)
		r.Get("/", s.handleList)
		r.Get("/{jobID}", s.handleGet)
		r.Delete("/{jobID}", s.handleCancel)
		r.Get("/{jobID}/result", s.handleResult)
	})
	return r
}

// Start begins serving and stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, NewStatusResponse(s.engine.Describe()))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	id, err := s.engine.Submit(req.ToSpec())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.log().Info("job submitted",
		slog.String(logging.FieldJobID, id),
		slog.String("input", req.InputPath))
	state := job.StateQueued
	if jb, err := s.engine.Get(id); err == nil {
		state = jb.State
	}
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{ID: id, State: string(state)})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	jobs := s.engine.List()
	resp := JobListResponse{Jobs: make([]JobView, 0, len(jobs))}
	for _, jb := range jobs {
		resp.Jobs = append(resp.Jobs, NewJobView(jb))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	jb, err := s.engine.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewJobView(jb))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	state, err := s.engine.Cancel(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.log().Info("cancellation requested",
		slog.String(logging.FieldJobID, id),
		slog.String("state", string(state)))
	s.writeJSON(w, http.StatusOK, CancelResponse{ID: id, State: string(state)})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.engine.Fetch(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	defer artifact.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, artifact); err != nil {
		s.log().Warn("result stream interrupted", logging.Error(err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := historyDefaultLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	records, err := s.engine.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := HistoryResponse{Records: make([]HistoryRecordView, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, NewHistoryRecordView(rec))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var failure *job.Failure
	switch {
	case errors.Is(err, job.ErrOverloaded):
		s.writeKindError(w, http.StatusTooManyRequests, job.KindOverloaded, err.Error())
	case errors.Is(err, job.ErrResourceExhausted):
		s.writeKindError(w, http.StatusInsufficientStorage, job.KindResourceExhausted, err.Error())
	case errors.Is(err, job.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrNotReady):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &failure):
		s.writeKindError(w, http.StatusConflict, failure.Kind, failure.Error())
	case errors.Is(err, job.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) writeKindError(w http.ResponseWriter, status int, kind job.FailureKind, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Kind: string(kind)})
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}
