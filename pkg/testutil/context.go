// Package testutil holds request helpers shared by handler tests.
package testutil

import (
	"net/http"
	"time"

	id "mintgate/pkg/domain"
	"mintgate/pkg/requestcontext"
)

// WithCaller injects an authenticated caller into the request context,
// simulating what the auth middleware does for valid bearer tokens.
func WithCaller(req *http.Request, caller id.Identity) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithTime pins the request-scoped clock, simulating the requesttime
// middleware with a fixed instant.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID injects a request ID into the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
