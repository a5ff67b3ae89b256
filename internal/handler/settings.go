package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/httputil"
	"reverie/internal/service/settings"
)

// SettingsHandler handles settings HTTP requests
type SettingsHandler struct {
	service *settings.Service
	logger  *slog.Logger
}

// NewSettingsHandler creates a settings handler
func NewSettingsHandler(service *settings.Service, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{service: service, logger: logger}
}

// GetAll retrieves every stored setting.
// GET /api/settings
func (h *SettingsHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, all)
}

// Set upserts one setting value.
// PUT /api/settings/{name}
func (h *SettingsHandler) Set(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		httputil.RespondError(w, http.StatusBadRequest, "setting name is required")
		return
	}

	var req struct {
		Value string `json:"value"`
	}
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Set(r.Context(), name, req.Value); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"name": name, "value": req.Value})
}

// Delete removes a setting so reads fall back to defaults.
// DELETE /api/settings/{name}
func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		httputil.RespondError(w, http.StatusBadRequest, "setting name is required")
		return
	}

	if err := h.service.Delete(r.Context(), name); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
