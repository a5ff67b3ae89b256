package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/domain/models"
	"reverie/internal/httputil"
	"reverie/internal/service/contextdata"
)

// ContextDataHandler handles context data HTTP requests
type ContextDataHandler struct {
	service *contextdata.Service
	logger  *slog.Logger
}

// NewContextDataHandler creates a context data handler
func NewContextDataHandler(service *contextdata.Service, logger *slog.Logger) *ContextDataHandler {
	return &ContextDataHandler{service: service, logger: logger}
}

// Create inserts a new record.
// POST /api/contextdata
func (h *ContextDataHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contextdata.CreateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := h.service.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, data)
}

// List retrieves records, filterable by type and availability.
// GET /api/contextdata?profileId=&type=&availability=&includeArchived=
func (h *ContextDataHandler) List(w http.ResponseWriter, r *http.Request) {
	profileID := int64(queryInt(r, "profileId", 0))
	if profileID <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, "profileId query parameter is required")
		return
	}

	var typeFilter *models.ContextType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := models.ContextType(raw)
		if !t.Valid() {
			httputil.RespondError(w, http.StatusBadRequest, "unknown type "+raw)
			return
		}
		typeFilter = &t
	}

	var availFilter *models.Availability
	if raw := r.URL.Query().Get("availability"); raw != "" {
		a := models.Availability(raw)
		if !a.Valid() {
			httputil.RespondError(w, http.StatusBadRequest, "unknown availability "+raw)
			return
		}
		availFilter = &a
	}

	includeArchived := r.URL.Query().Get("includeArchived") == "true"

	items, err := h.service.List(r.Context(), profileID, typeFilter, availFilter, includeArchived)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, items)
}

// Get retrieves one record.
// GET /api/contextdata/{id}
func (h *ContextDataHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}

// Update edits a record's content fields.
// PUT /api/contextdata/{id}
func (h *ContextDataHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req contextdata.UpdateRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}

// Delete removes a record and its vector if embedded.
// DELETE /api/contextdata/{id}
func (h *ContextDataHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// ChangeAvailability moves a record between availability modes. A refusal
// (embedded record, no confirmation) is a 400 carrying the full result body
// so the client can re-ask with confirmUnembed=true.
// POST /api/contextdata/{id}/availability
func (h *ContextDataHandler) ChangeAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Availability   models.Availability `json:"availability"`
		ConfirmUnembed bool                `json:"confirmUnembed"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.ChangeAvailability(r.Context(), id, req.Availability, req.ConfirmUnembed)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	httputil.RespondJSON(w, status, result)
}

// UseNextTurn forces the record into the next request only.
// POST /api/contextdata/{id}/use-next-turn
func (h *ContextDataHandler) UseNextTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.service.SetUseNextTurn(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}

// UseEveryTurn pins or unpins the record for every request.
// POST /api/contextdata/{id}/use-every-turn
func (h *ContextDataHandler) UseEveryTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := h.service.SetUseEveryTurn(r.Context(), id, req.Enabled)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}

// ClearManual drops both manual flags and restores the snapshot.
// POST /api/contextdata/{id}/clear-manual
func (h *ContextDataHandler) ClearManual(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.service.ClearManualFlags(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}

// Embed computes and stores the record's vector.
// POST /api/contextdata/{id}/embed
func (h *ContextDataHandler) Embed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.service.Embed(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}

// Archive moves the record to Archive availability.
// POST /api/contextdata/{id}/archive
func (h *ContextDataHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		ConfirmUnembed bool `json:"confirmUnembed"`
	}
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.service.Archive(r.Context(), id, req.ConfirmUnembed)
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	httputil.RespondJSON(w, status, result)
}

// Restore brings an archived record back as AlwaysOn.
// POST /api/contextdata/{id}/restore
func (h *ContextDataHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	data, err := h.service.Restore(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, data)
}
