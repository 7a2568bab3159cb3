package testutil

import (
	"context"
	"net/http"

	"rescue/pkg/domain"
	"rescue/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithUserID(req *http.Request, userID domain.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithClientIP sets the client address the metadata middleware would have
// resolved.
func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, req.UserAgent(), "desktop"))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
