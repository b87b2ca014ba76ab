package api

import (
	"net/http"

	"github.com/sieve-urls/sieve/internal/service"
)

// HandleSetHeader returns a handler for PUT /api/v1/headers.
func HandleSetHeader(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Scope    string `json:"scope"`
			Domain   string `json:"domain"`
			Name     string `json:"name"`
			Value    string `json:"value"`
			Approval string `json:"approval"`
			Reason   string `json:"reason"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.SetCustomHeader(body.Scope, body.Domain, body.Name, body.Value, body.Approval, body.Reason); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDeleteHeader returns a handler for DELETE /api/v1/headers/{name}.
// Scope and domain arrive as query parameters.
func HandleDeleteHeader(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := PathParam(r, "name")
		if name == "" {
			writeInvalidArgument(w, "header name is required")
			return
		}
		q := r.URL.Query()
		if err := s.DeleteCustomHeader(q.Get("scope"), q.Get("domain"), name); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandlePendingHeaders returns a handler for GET /api/v1/headers/pending.
func HandlePendingHeaders(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"pending": s.PendingHeaders()})
	}
}

// HandleDecideHeader returns a handler for the approve and deny actions
// under /api/v1/headers/actions.
func HandleDecideHeader(s *service.Service, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Scope  string `json:"scope"`
			Domain string `json:"domain"`
			Name   string `json:"name"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.DecideHeader(body.Scope, body.Domain, body.Name, approve); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSetUserAgent returns a handler for PUT /api/v1/headers/user-agent.
func HandleSetUserAgent(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Value string `json:"value"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.SetGlobalUserAgent(body.Value); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
