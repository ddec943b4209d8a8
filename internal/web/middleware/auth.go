package middleware

import (
	"net/http"
	"strings"

	webcontext "github.com/citymind/urbanlink/internal/web/context"
	"github.com/citymind/urbanlink/internal/web/response"
)

// TokenValidator resolves a bearer token to the caller it identifies
type TokenValidator interface {
	ValidateToken(token string) (*webcontext.Principal, error)
}

// AuthConfig holds configuration for authentication middleware
type AuthConfig struct {
	Tokens TokenValidator
	// QueryParam, when set, is read if no Authorization header is present.
	// Browsers cannot set headers on websocket upgrades.
	QueryParam string
}

// Auth requires a valid bearer token on every request
func Auth(tokens TokenValidator) Middleware {
	return AuthWithConfig(AuthConfig{Tokens: tokens})
}

// AuthWithConfig creates an authentication middleware with custom configuration
func AuthWithConfig(config AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok && config.QueryParam != "" {
				token = r.URL.Query().Get(config.QueryParam)
				ok = token != ""
			}
			if !ok {
				response.RenderError(w, response.Unauthorized("authorization required"))
				return
			}

			principal, err := config.Tokens.ValidateToken(token)
			if err != nil {
				response.RenderError(w, response.Unauthorized("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(webcontext.SetPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
