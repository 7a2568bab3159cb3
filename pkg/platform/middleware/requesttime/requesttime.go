// Package requesttime captures a single "now" per request so that every
// timestamp written while handling it (creation dates, audit logs) agrees.
package requesttime

import (
	"net/http"
	"time"

	"rescue/pkg/requestcontext"
)

// Middleware stores the request start time in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
