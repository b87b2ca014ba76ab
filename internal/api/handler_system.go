package api

import (
	"net/http"

	"github.com/sieve-urls/sieve/internal/service"
)

// HandleHealthz returns a handler for GET /healthz.
// No authentication is required.
func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// HandleSystemInfo returns a handler for GET /api/v1/system/info.
func HandleSystemInfo(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, s.GetSystemInfo())
	}
}
