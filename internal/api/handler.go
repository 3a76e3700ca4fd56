// Package api provides HTTP handlers for the session REST API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oselz/agent-relay/internal/domain"
	"github.com/oselz/agent-relay/internal/store"
)

// maxSessionBytes bounds the size of a stored session record.
const maxSessionBytes = 1 << 20

// SessionHandler handles session persistence endpoints.
type SessionHandler struct {
	repo store.Repository
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(repo store.Repository) *SessionHandler {
	return &SessionHandler{repo: repo}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Put)
		r.Delete("/{id}", h.Delete)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// List returns summaries of all stored sessions, newest first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	JSON(w, http.StatusOK, summaries)
}

// Get returns a full session record.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		slog.Error("Failed to load session", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, sess)
}

// Put stores a full session record under the id in the path.
func (h *SessionHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxSessionBytes)
	var sess domain.Session
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		Error(w, http.StatusBadRequest, "invalid session payload")
		return
	}
	if sess.ID != "" && sess.ID != id {
		Error(w, http.StatusBadRequest, "session id does not match path")
		return
	}

	if err := h.repo.Put(r.Context(), id, &sess); err != nil {
		slog.Error("Failed to store session", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "failed to store session")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Delete removes a session record.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := h.repo.Delete(r.Context(), id)
	if err != nil {
		slog.Error("Failed to delete session", "error", err, "session_id", id)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if !existed {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
