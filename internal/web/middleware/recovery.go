package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	webcontext "github.com/citymind/urbanlink/internal/web/context"
	"github.com/citymind/urbanlink/internal/web/response"
)

// Recovery turns a handler panic into a 500 reply and logs it with a stack
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Let the server abort the connection as it normally would
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.String("request_id", webcontext.GetRequestID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("panic", fmt.Sprint(rec)),
					zap.StackSkip("stack", 2),
				)
				response.RenderError(w, response.Internal())
			}()

			next.ServeHTTP(w, r)
		})
	}
}
