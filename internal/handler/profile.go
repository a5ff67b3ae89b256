package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/httputil"
	"reverie/internal/service/profile"
)

// ProfileHandler handles profile HTTP requests
type ProfileHandler struct {
	service *profile.Service
	logger  *slog.Logger
}

// NewProfileHandler creates a profile handler
func NewProfileHandler(service *profile.Service, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

// Create inserts an inactive profile.
// POST /api/profiles
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req profile.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, p)
}

// List retrieves all profiles.
// GET /api/profiles
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, profiles)
}

// Get retrieves one profile.
// GET /api/profiles/{id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, p)
}

// GetActive retrieves the active profile.
// GET /api/profiles/active
func (h *ProfileHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetActive(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, p)
}

// Rename updates the profile name.
// PUT /api/profiles/{id}
func (h *ProfileHandler) Rename(w http.ResponseWriter, r *http.Request) {
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

	p, err := h.service.Rename(r.Context(), id, req.Name)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, p)
}

// Activate makes the target the single active profile.
// POST /api/profiles/{id}/activate
func (h *ProfileHandler) Activate(w http.ResponseWriter, r *http.Request) {
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

// Duplicate deep-copies the profile and its owned entities.
// POST /api/profiles/{id}/duplicate
func (h *ProfileHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.Duplicate(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, p)
}

// Delete removes a profile and everything it owns.
// DELETE /api/profiles/{id}
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
