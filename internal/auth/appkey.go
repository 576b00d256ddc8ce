// ABOUTME: HTTP middleware gating v2 endpoints behind the x-app-key shared secret
// ABOUTME: Uses a constant-time compare so mismatched prefixes don't leak timing

package auth

import (
	"crypto/subtle"
	"net/http"
)

// HeaderName is the request header carrying the shared secret.
const HeaderName = "x-app-key"

// AppKeyMiddleware returns middleware that rejects requests whose x-app-key
// header is missing (400) or does not match the configured secret (403).
// Responses use the exact bodies the original API emitted, so existing
// clients keep parsing them. v1 routes are registered without this
// middleware on purpose: the legacy surface has always been open.
func AppKeyMiddleware(appKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(HeaderName)
			if provided == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"Missing x-app-key"}`))
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(appKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"Invalid x-app-key"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
