package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/httputil"
	"reverie/internal/service/flag"
)

// FlagHandler handles flag HTTP requests
type FlagHandler struct {
	service *flag.Service
	logger  *slog.Logger
}

// NewFlagHandler creates a flag handler
func NewFlagHandler(service *flag.Service, logger *slog.Logger) *FlagHandler {
	return &FlagHandler{service: service, logger: logger}
}

// Create inserts an active flag.
// POST /api/flags
func (h *FlagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req flag.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, f)
}

// List retrieves a profile's flags.
// GET /api/flags?profileId=
func (h *FlagHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID := int64(queryInt(r, "profileId", 0))
	if profileID <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, "profileId query parameter is required")
		return
	}

	flags, err := h.service.List(r.Context(), profileID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, flags)
}

// Update applies provided fields to the flag.
// PUT /api/flags/{id}
func (h *FlagHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req flag.UpdateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, f)
}

// Delete removes a flag.
// DELETE /api/flags/{id}
func (h *FlagHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
