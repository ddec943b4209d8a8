package auth

import (
	"net/http"

	"github.com/citymind/urbanlink/internal/web/response"
)

// RequirePermission returns middleware that rejects callers whose roles do
// not grant permission
func RequirePermission(permission RBACPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				response.RenderError(w, response.Unauthorized("authentication required"))
				return
			}
			if !Can(p, permission) {
				response.RenderError(w, response.Forbidden("you do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
