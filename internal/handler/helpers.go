// Package handler exposes the HTTP surface. Handlers only talk to services,
// never repositories.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"reverie/internal/domain"
	"reverie/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, transitionErr.Error(), map[string]interface{}{
			"oldAvailability": transitionErr.OldAvailability,
			"newAvailability": transitionErr.NewAvailability,
			"requiresUnembed": transitionErr.RequiresUnembed,
		})
		return
	}

	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidCombination),
		errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrNoActiveProfile):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		httputil.RespondError(w, http.StatusBadGateway, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses the named integer path segment, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter, falling back to def
// when absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
