package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/httputil"
	"reverie/internal/service/systemmessage"
)

// SystemMessageHandler handles system message HTTP requests
type SystemMessageHandler struct {
	service *systemmessage.Service
	logger  *slog.Logger
}

// NewSystemMessageHandler creates a system message handler
func NewSystemMessageHandler(service *systemmessage.Service, logger *slog.Logger) *SystemMessageHandler {
	return &SystemMessageHandler{service: service, logger: logger}
}

// Create inserts a new message family.
// POST /api/systemmessages
func (h *SystemMessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req systemmessage.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, msg)
}

// List retrieves a profile's messages.
// GET /api/systemmessages?profileId=&includeArchived=
func (h *SystemMessageHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID := int64(queryInt(r, "profileId", 0))
	if profileID <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, "profileId query parameter is required")
		return
	}

	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	msgs, err := h.service.List(r.Context(), profileID, includeArchived)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msgs)
}

// Get retrieves one message version.
// GET /api/systemmessages/{id}
func (h *SystemMessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	msg, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// Update inserts a new version of the message's family and activates it.
// PUT /api/systemmessages/{id}
func (h *SystemMessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req systemmessage.UpdateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// Delete removes the message's whole version family.
// DELETE /api/systemmessages/{id}
func (h *SystemMessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Versions retrieves every version of the message's family, oldest first.
// GET /api/systemmessages/{id}/versions
func (h *SystemMessageHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	versions, err := h.service.GetVersions(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, versions)
}

// Activate makes the target version the family's active one.
// POST /api/systemmessages/{id}/activate
func (h *SystemMessageHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	msg, err := h.service.SetActiveVersion(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// Archive flags a message version as archived.
// POST /api/systemmessages/{id}/archive
func (h *SystemMessageHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Archive(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Restore clears the archived flag.
// POST /api/systemmessages/{id}/restore
func (h *SystemMessageHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
