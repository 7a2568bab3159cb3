package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"rescue/pkg/requestcontext"
)

// ClientMetadata extracts client IP address, User-Agent and a coarse device
// class from the request and adds them to the context.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent, DeviceClass(userAgent))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceClass classifies a User-Agent as "mobile", "desktop", "bot" or
// "unknown". Field reports mostly arrive from phones, which the dashboard
// surfaces in request logs.
func DeviceClass(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
