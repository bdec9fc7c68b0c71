package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// DefaultUserID is used when the identity proxy sets no X-User-ID header.
const DefaultUserID = "local"

// UserHeader carries the caller's identity, set by the fronting identity
// proxy.
const UserHeader = "X-User-ID"

type userKey struct{}

// BearerAuth rejects requests without the shared API token. An empty token
// rejects every request.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httpError(w, http.StatusUnauthorized, "authentication_error", "server has no API token configured")
				return
			}
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identify stores the caller's user id in the request context.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			id = DefaultUserID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	})
}

func userID(r *http.Request) string {
	if id, ok := r.Context().Value(userKey{}).(string); ok {
		return id
	}
	return DefaultUserID
}
