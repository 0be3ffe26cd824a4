package api

import (
	"net/http"
	"strings"
)

// AdminAuth guards the device-query and report routes with a bearer
// token. An empty configured token disables the guard entirely; ingest
// routes never pass through here.
func AdminAuth(adminToken string, next http.Handler) http.Handler {
	if adminToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header")
			return
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header must use the Bearer scheme")
			return
		}
		if token != adminToken {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin token mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LimitRequestBody caps request bodies so an oversized track payload
// fails the JSON decode with 413 instead of being read to completion.
// maxBytes <= 0 disables the cap.
func LimitRequestBody(maxBytes int64, next http.Handler) http.Handler {
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
