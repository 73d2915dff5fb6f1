package middleware

import (
	"net/http"
	"strings"

	"github.com/ayush/project-tracker/internal/apierr"
	"github.com/ayush/project-tracker/internal/auth"
	"github.com/ayush/project-tracker/internal/httpx"
	"github.com/ayush/project-tracker/internal/models"
)

const bearerPrefix = "Bearer "

// TokenVerifier decodes a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// RequireAuth is middleware that validates the "Authorization: Bearer <token>"
// header and injects the principal into the request context. Every failure
// gets the same response.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || raw == "" {
				httpx.Fail(w, unauthenticated())
				return
			}

			p, err := tokens.Verify(raw)
			if err != nil {
				httpx.Fail(w, unauthenticated())
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects principals whose role differs from role. It must run
// after RequireAuth.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				httpx.Fail(w, unauthenticated())
				return
			}
			if p.Role != role {
				httpx.Fail(w, apierr.Forbidden("Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthenticated() *apierr.Error {
	return apierr.Unauthorized("Invalid or missing authentication token")
}
