package api

import (
	"net/http"

	"github.com/sieve-urls/sieve/internal/service"
)

// HandleURLInfo returns a handler for GET /api/v1/urls/info.
func HandleURLInfo(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := requireURLQuery(w, r)
		if !ok {
			return
		}
		info, err := s.URLInfo(url)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

// HandleFetchTarget returns a handler for GET /api/v1/urls/fetch-target.
func HandleFetchTarget(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := requireURLQuery(w, r)
		if !ok {
			return
		}
		target, err := s.FetchTarget(url)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, target)
	}
}

// HandleNextGalleryPage returns a handler for GET /api/v1/urls/next-gallery-page.
func HandleNextGalleryPage(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := requireURLQuery(w, r)
		if !ok {
			return
		}
		next, err := s.NextGalleryPage(url)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, next)
	}
}

// HandleReferral returns a handler for GET /api/v1/urls/referral.
// The optional "provided" query parameter carries the caller's Referer.
func HandleReferral(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := requireURLQuery(w, r)
		if !ok {
			return
		}
		referral, err := s.Referral(url, r.URL.Query().Get("provided"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, referral)
	}
}

// HandleURLHeaders returns a handler for GET /api/v1/urls/headers.
func HandleURLHeaders(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := requireURLQuery(w, r)
		if !ok {
			return
		}
		headers, err := s.HeadersForURL(url)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"url": url, "headers": headers})
	}
}

// HandleGenerateGalleryURLs returns a handler for
// POST /api/v1/gugs/actions/generate.
func HandleGenerateGalleryURLs(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Generator string `json:"generator"`
			Query     string `json:"query"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		resp, err := s.GenerateGalleryURLs(body.Generator, body.Query)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
