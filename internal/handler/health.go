package handler

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"reverie/internal/httputil"
)

// HealthHandler reports process and database liveness
type HealthHandler struct {
	pool *pgxpool.Pool
}

// NewHealthHandler creates a health handler
func NewHealthHandler(pool *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// Check pings the database and reports status.
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		httputil.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
