package testutil

import (
	"net/http"
	"time"

	id "vaxtrack/pkg/domain"
	"vaxtrack/pkg/requestcontext"
)

// WithOperator adds an operator ID to the request context, simulating what
// the auth middleware does for an authenticated request. Invalid IDs are
// silently ignored.
func WithOperator(req *http.Request, operatorID string) *http.Request {
	parsed, err := id.ParseOperatorID(operatorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithOperatorID(req.Context(), parsed))
}

// WithFrozenTime pins the request-scoped clock, simulating the request time
// middleware.
func WithFrozenTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}
