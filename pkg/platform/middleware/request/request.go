// Package request provides correlation ID middleware.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"vaxtrack/pkg/requestcontext"
)

// HeaderRequestID is honored when the caller already carries a correlation ID
// from an upstream gateway; otherwise one is generated here.
const HeaderRequestID = "X-Request-Id"

// Middleware assigns a request ID, stores it in the context, and echoes it in
// the response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
