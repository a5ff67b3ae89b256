package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxBodyBytes caps request bodies at 1MB. Context entries and prompt
// fragments are text; anything larger is a client bug.
const maxBodyBytes = 1 << 20

// ParseJSON decodes the request body into dest, enforcing the body size cap.
// Unknown fields are tolerated so clients can send supersets of a request
// shape; field validation happens in the service layer.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
