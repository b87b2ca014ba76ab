package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sieve-urls/sieve/internal/gug"
	"github.com/sieve-urls/sieve/internal/pageparser"
	"github.com/sieve-urls/sieve/internal/service"
	"github.com/sieve-urls/sieve/internal/urlclass"
)

// --- URL classes ---

// HandleListURLClasses returns a handler for GET /api/v1/url-classes.
func HandleListURLClasses(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		WritePage(w, http.StatusOK, s.ListURLClasses(), pg)
	}
}

// HandleGetURLClass returns a handler for GET /api/v1/url-classes/{key}.
func HandleGetURLClass(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := requireUUIDPathParam(w, r, "key", "key")
		if !ok {
			return
		}
		u, err := s.GetURLClass(key)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, u)
	}
}

// HandleCreateURLClasses returns a handler for POST /api/v1/url-classes.
func HandleCreateURLClasses(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URLClasses []*urlclass.URLClass `json:"url_classes"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		created, err := s.CreateURLClasses(body.URLClasses)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]any{"url_classes": created})
	}
}

// HandleReplaceURLClasses returns a handler for PUT /api/v1/url-classes.
func HandleReplaceURLClasses(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URLClasses []*urlclass.URLClass `json:"url_classes"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.ReplaceURLClasses(body.URLClasses); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"url_classes": s.ListURLClasses()})
	}
}

// HandleDeleteURLClass returns a handler for DELETE /api/v1/url-classes/{key}.
func HandleDeleteURLClass(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := requireUUIDPathParam(w, r, "key", "key")
		if !ok {
			return
		}
		if err := s.DeleteURLClass(key); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Parsers ---

// HandleListParsers returns a handler for GET /api/v1/parsers.
func HandleListParsers(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		WritePage(w, http.StatusOK, s.ListParsers(), pg)
	}
}

// HandleGetParser returns a handler for GET /api/v1/parsers/{key}.
func HandleGetParser(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := requireUUIDPathParam(w, r, "key", "key")
		if !ok {
			return
		}
		p, err := s.GetParser(key)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

// HandleCreateParsers returns a handler for POST /api/v1/parsers.
func HandleCreateParsers(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Parsers []*pageparser.Parser `json:"parsers"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		created, err := s.CreateParsers(body.Parsers)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]any{"parsers": created})
	}
}

// HandleDeleteParser returns a handler for DELETE /api/v1/parsers/{key}.
func HandleDeleteParser(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := requireUUIDPathParam(w, r, "key", "key")
		if !ok {
			return
		}
		if err := s.DeleteParser(key); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Gallery URL generators ---

// HandleListGUGs returns a handler for GET /api/v1/gugs.
func HandleListGUGs(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, s.ListGUGs())
	}
}

// HandleCreateGUGs returns a handler for POST /api/v1/gugs.
func HandleCreateGUGs(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GUGs []*gug.Generator `json:"gugs"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		created, err := s.CreateGUGs(body.GUGs)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]any{"gugs": created})
	}
}

// HandleReplaceGUGs returns a handler for PUT /api/v1/gugs.
func HandleReplaceGUGs(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			GUGs       []*gug.Generator       `json:"gugs"`
			NestedGUGs []*gug.NestedGenerator `json:"nested_gugs"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.ReplaceGUGs(body.GUGs, body.NestedGUGs); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, s.ListGUGs())
	}
}

// HandleDeleteGUG returns a handler for DELETE /api/v1/gugs/{key}.
func HandleDeleteGUG(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := requireUUIDPathParam(w, r, "key", "key")
		if !ok {
			return
		}
		if err := s.DeleteGUG(key); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleSetDefaultGUG returns a handler for PUT /api/v1/gugs/default.
func HandleSetDefaultGUG(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Key uuid.UUID `json:"key"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.SetDefaultGUG(body.Key); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, s.ListGUGs())
	}
}

// --- Class to parser links ---

// HandleListLinks returns a handler for GET /api/v1/links.
func HandleListLinks(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"links": s.ListLinks()})
	}
}

// HandleInferLinks returns a handler for POST /api/v1/links/actions/infer.
func HandleInferLinks(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"links": s.InferLinks()})
	}
}

// HandleSetLink returns a handler for PUT /api/v1/links/{class_key}.
func HandleSetLink(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classKey, ok := requireUUIDPathParam(w, r, "class_key", "class_key")
		if !ok {
			return
		}
		var body struct {
			ParserKey uuid.UUID `json:"parser_key"`
		}
		if err := DecodeBody(r, &body); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if err := s.SetLink(classKey, body.ParserKey); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"links": s.ListLinks()})
	}
}

// HandleDeleteLink returns a handler for DELETE /api/v1/links/{class_key}.
func HandleDeleteLink(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classKey, ok := requireUUIDPathParam(w, r, "class_key", "class_key")
		if !ok {
			return
		}
		if err := s.DeleteLink(classKey); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Rule packs ---

// HandleExportRulePack returns a handler for GET /api/v1/rule-pack.
// The response body is the YAML pack itself, not JSON.
func HandleExportRulePack(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.ExportRulePack()
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// HandleImportRulePack returns a handler for POST /api/v1/rule-pack.
// The request body is raw YAML.
func HandleImportRulePack(s *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := readRawBodyOrWriteInvalid(w, r)
		if !ok {
			return
		}
		summary, err := s.ImportRulePack(data)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}
