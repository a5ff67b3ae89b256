package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/httputil"
	"reverie/internal/service/session"
)

// SessionHandler handles session HTTP requests
type SessionHandler struct {
	service *session.Service
	logger  *slog.Logger
}

// NewSessionHandler creates a session handler
func NewSessionHandler(service *session.Service, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

// Create inserts a session with the next monotonic number.
// POST /api/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, s)
}

// List retrieves a profile's sessions, newest first.
// GET /api/sessions?profileId=
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID := int64(queryInt(r, "profileId", 0))
	if profileID <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, "profileId query parameter is required")
		return
	}

	sessions, err := h.service.List(r.Context(), profileID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, sessions)
}

// Get retrieves one session.
// GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, s)
}

// Rename updates the session name.
// PUT /api/sessions/{id}
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.service.Rename(r.Context(), id, req.Name)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, s)
}

// Activate makes the target the profile's single active session.
// POST /api/sessions/{id}/activate
func (h *SessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Activate(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a session and its turns.
// DELETE /api/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
