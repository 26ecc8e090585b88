// Package api exposes the upload/status/results HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/maven/internal/archive"
	"github.com/MikeSquared-Agency/maven/internal/job"
	"github.com/MikeSquared-Agency/maven/internal/store"
)

type Server struct {
	router  *chi.Mux
	manager *job.Manager
	store   store.SessionStore
	opts    Options
	logger  *slog.Logger
}

type Options struct {
	Port              int
	MaxUploadBytes    int64
	MaxInflationRatio int64
	CORSOrigins       []string
}

func NewServer(opts Options, manager *job.Manager, st store.SessionStore, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		router:  router,
		manager: manager,
		store:   st,
		opts:    opts,
		logger:  logger,
	}

	router.Get("/", s.root)
	router.Get("/api/health", s.health)
	router.Post("/api/upload", s.upload)
	router.Get("/api/status/{sessionID}", s.status)
	router.Get("/api/results/{sessionID}", s.results)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "maven",
		"purpose": "extract service recommendations from WhatsApp chat exports",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload accepts a multipart WhatsApp export zip and starts a session.
// Archive validation runs synchronously so a broken upload fails fast
// with 400 instead of surfacing later through the status endpoint.
func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".zip" {
		writeError(w, http.StatusBadRequest, "only .zip uploads are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}

	if _, err := archive.Load(data, archive.Options{MaxBytes: s.opts.MaxUploadBytes, MaxInflationRatio: s.opts.MaxInflationRatio}); err != nil {
		if errors.Is(err, archive.ErrArchiveInvalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "archive validation failed")
		return
	}

	id, err := s.manager.Submit(r.Context(), data)
	if err != nil {
		s.logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "submit session")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": id.String(),
		"status":     string(job.StateQueued),
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		s.logger.Error("get session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get session")
		return
	}

	body := map[string]string{"status": sess.Status}
	if sess.ErrorDetail != "" {
		body["error_message"] = sess.ErrorDetail
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := s.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		s.logger.Error("get session failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get session")
		return
	}

	if job.State(sess.Status).Terminal() && !sess.ExpiresAt.IsZero() && sess.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusGone, "results expired")
		return
	}

	if sess.Status != string(job.StateCompleted) {
		body := map[string]string{"status": sess.Status}
		if sess.ErrorDetail != "" {
			body["error_message"] = sess.ErrorDetail
		}
		writeJSON(w, http.StatusAccepted, body)
		return
	}

	result, err := s.store.GetResult(r.Context(), id)
	if errors.Is(err, store.ErrResultNotFound) {
		// Completed session without a result means the sweep got there
		// between the two reads.
		writeError(w, http.StatusGone, "results expired")
		return
	}
	if err != nil {
		s.logger.Error("get result failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get result")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": result.Recommendations,
		"enriched":        result.Enriched,
		"created_at":      result.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
