// Package request assigns a correlation ID to every incoming request.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"mintgate/pkg/requestcontext"
)

// HeaderRequestID is echoed back so clients can correlate responses.
const HeaderRequestID = "X-Request-Id"

// Middleware injects a request ID into the context, honoring one supplied by
// an upstream proxy when present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
