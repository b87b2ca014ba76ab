package api

import (
	"net/http"
	"strings"
)

// AuthMiddleware guards next behind the admin token. Requests must carry
// "Authorization: Bearer <token>"; anything else gets a 401 with a JSON
// error body before next ever runs.
func AuthMiddleware(adminToken string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, isBearer := strings.CutPrefix(auth, "Bearer ")

		switch {
		case auth == "":
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header")
		case !isBearer:
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid Authorization header format")
		case token != adminToken:
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequestBodyLimitMiddleware caps how much request body downstream handlers
// can read. maxBytes <= 0 disables the cap. Reads past the limit make the
// handler's decode fail and the client sees 413.
func RequestBodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	if maxBytes <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}
