package http

import (
	"net/http"

	"github.com/authgate/auth-service/pkg/middleware"
)

// DataHandler serves the demo data endpoints used to exercise token gating.
type DataHandler struct{}

// NewDataHandler creates the data HTTP handler.
func NewDataHandler() *DataHandler {
	return &DataHandler{}
}

// Public handles GET /data/public. No authentication required.
func (h *DataHandler) Public(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "This is public data",
	})
}

// Private handles GET /data/private. The auth middleware has already
// validated the bearer token by the time this runs.
func (h *DataHandler) Private(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "This is private data",
		"username": middleware.UsernameFromContext(r.Context()),
	})
}
