package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/sieve-urls/sieve/internal/service"
)

// Server wraps the HTTP server and mux for the Sieve API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(
	port int,
	adminToken string,
	svc *service.Service,
	apiMaxBodyBytes int64,
) *Server {
	return NewServerWithAddress("", port, adminToken, svc, apiMaxBodyBytes)
}

// NewServerWithAddress creates a new API server with an explicit listen address.
func NewServerWithAddress(
	listenAddress string,
	port int,
	adminToken string,
	svc *service.Service,
	apiMaxBodyBytes int64,
) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())

	// Authenticated routes
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/system/info", HandleSystemInfo(svc))

	// URL classification.
	authed.Handle("GET /api/v1/urls/info", HandleURLInfo(svc))
	authed.Handle("GET /api/v1/urls/fetch-target", HandleFetchTarget(svc))
	authed.Handle("GET /api/v1/urls/next-gallery-page", HandleNextGalleryPage(svc))
	authed.Handle("GET /api/v1/urls/referral", HandleReferral(svc))
	authed.Handle("GET /api/v1/urls/headers", HandleURLHeaders(svc))

	// URL classes.
	authed.Handle("GET /api/v1/url-classes", HandleListURLClasses(svc))
	authed.Handle("POST /api/v1/url-classes", HandleCreateURLClasses(svc))
	authed.Handle("PUT /api/v1/url-classes", HandleReplaceURLClasses(svc))
	authed.Handle("GET /api/v1/url-classes/{key}", HandleGetURLClass(svc))
	authed.Handle("DELETE /api/v1/url-classes/{key}", HandleDeleteURLClass(svc))

	// Parsers.
	authed.Handle("GET /api/v1/parsers", HandleListParsers(svc))
	authed.Handle("POST /api/v1/parsers", HandleCreateParsers(svc))
	authed.Handle("GET /api/v1/parsers/{key}", HandleGetParser(svc))
	authed.Handle("DELETE /api/v1/parsers/{key}", HandleDeleteParser(svc))

	// Gallery URL generators.
	authed.Handle("GET /api/v1/gugs", HandleListGUGs(svc))
	authed.Handle("POST /api/v1/gugs", HandleCreateGUGs(svc))
	authed.Handle("PUT /api/v1/gugs", HandleReplaceGUGs(svc))
	authed.Handle("PUT /api/v1/gugs/default", HandleSetDefaultGUG(svc))
	authed.Handle("DELETE /api/v1/gugs/{key}", HandleDeleteGUG(svc))
	authed.Handle("POST /api/v1/gugs/actions/generate", HandleGenerateGalleryURLs(svc))

	// Class to parser links.
	authed.Handle("GET /api/v1/links", HandleListLinks(svc))
	authed.Handle("POST /api/v1/links/actions/infer", HandleInferLinks(svc))
	authed.Handle("PUT /api/v1/links/{class_key}", HandleSetLink(svc))
	authed.Handle("DELETE /api/v1/links/{class_key}", HandleDeleteLink(svc))

	// Rule packs.
	authed.Handle("GET /api/v1/rule-pack", HandleExportRulePack(svc))
	authed.Handle("POST /api/v1/rule-pack", HandleImportRulePack(svc))

	// Custom headers.
	authed.Handle("PUT /api/v1/headers", HandleSetHeader(svc))
	authed.Handle("GET /api/v1/headers/pending", HandlePendingHeaders(svc))
	authed.Handle("PUT /api/v1/headers/user-agent", HandleSetUserAgent(svc))
	authed.Handle("DELETE /api/v1/headers/{name}", HandleDeleteHeader(svc))
	authed.Handle("POST /api/v1/headers/actions/approve", HandleDecideHeader(svc, true))
	authed.Handle("POST /api/v1/headers/actions/deny", HandleDecideHeader(svc, false))

	// Domain error breaker.
	authed.Handle("GET /api/v1/domains/ok", HandleDomainOK(svc))
	authed.Handle("POST /api/v1/domains/actions/report-error", HandleReportDomainError(svc))
	authed.Handle("POST /api/v1/domains/actions/scrub", HandleScrubDomainErrors(svc))

	limitedAuthed := RequestBodyLimitMiddleware(apiMaxBodyBytes, authed)
	mux.Handle("/api/", AuthMiddleware(adminToken, limitedAuthed))

	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
