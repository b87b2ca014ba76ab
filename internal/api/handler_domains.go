package api

import (
	"net/http"

	"github.com/sieve-urls/sieve/internal/service"
)

// HandleDomainOK returns a handler for GET /api/v1/domains/ok.
func HandleDomainOK(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := requireURLQuery(w, r)
		if !ok {
			return
		}
		resp, err := s.DomainOK(url)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// HandleReportDomainError returns a handler for
// POST /api/v1/domains/actions/report-error.
func HandleReportDomainError(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URL string `json:"url"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.ReportDomainError(body.URL); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleScrubDomainErrors returns a handler for
// POST /api/v1/domains/actions/scrub.
func HandleScrubDomainErrors(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URL string `json:"url"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.ScrubDomainErrors(body.URL); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
