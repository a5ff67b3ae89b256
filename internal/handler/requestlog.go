package handler

import (
	"log/slog"
	"net/http"

	"reverie/internal/httputil"
	"reverie/internal/llm"
)

const defaultLogListLimit = 50

// RequestLogHandler handles LLM audit log HTTP requests
type RequestLogHandler struct {
	auditor *llm.Auditor
	logger  *slog.Logger
}

// NewRequestLogHandler creates a request log handler
func NewRequestLogHandler(auditor *llm.Auditor, logger *slog.Logger) *RequestLogHandler {
	return &RequestLogHandler{auditor: auditor, logger: logger}
}

// List retrieves the most recent audit rows, newest first.
// GET /api/llmlogs?limit=
func (h *RequestLogHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultLogListLimit)
	if limit <= 0 || limit > 500 {
		limit = defaultLogListLimit
	}

	logs, err := h.auditor.List(r.Context(), limit)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, logs)
}

// Get retrieves one audit row with its raw wire JSON.
// GET /api/llmlogs/{requestId}
func (h *RequestLogHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("requestId")
	if requestID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "requestId is required")
		return
	}

	log, err := h.auditor.GetByRequestID(r.Context(), requestID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, log)
}

// ListByTurn retrieves every audit row attributed to a turn.
// GET /api/llmlogs/turn/{turnId}
func (h *RequestLogHandler) ListByTurn(w http.ResponseWriter, r *http.Request) {
	turnID, ok := pathID(w, r, "turnId")
	if !ok {
		return
	}

	logs, err := h.auditor.ListByTurn(r.Context(), turnID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, logs)
}
