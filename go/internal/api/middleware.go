package api

import (
	"net/http"
	"strings"

	"github.com/mcdev12/studyhall/go/internal/auth"
)

// TokenVerifier validates a bearer token and returns the username it was
// issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireAuth wraps next with bearer token authentication. The verified
// username is stored on the request context.
func RequireAuth(tokens TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		username, err := tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r.WithContext(auth.WithUsername(r.Context(), username)))
	}
}
