package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"rescue/internal/platform/metrics"
	"rescue/internal/ratelimit/models"
	"rescue/pkg/platform/httputil"
	"rescue/pkg/requestcontext"
)

// BucketStore counts requests per key over a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Middleware throttles requests per client IP and endpoint class.
type Middleware struct {
	store   BucketStore
	limits  map[models.EndpointClass]models.Limit
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Middleware)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// New builds the middleware. Classes without an enabled limit pass through.
func New(store BucketStore, limits map[models.EndpointClass]models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RateLimit applies the limit configured for class.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.check(w, r, class) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// ByMethod applies ClassRead to safe methods and ClassWrite to everything else.
func (m *Middleware) ByMethod() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := models.ClassWrite
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				class = models.ClassRead
			}
			if m.check(w, r, class) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// check reports whether the request may proceed. A rejected request has
// already been answered.
func (m *Middleware) check(w http.ResponseWriter, r *http.Request, class models.EndpointClass) bool {
	limit, ok := m.limits[class]
	if !ok || !limit.Enabled() {
		return true
	}

	ctx := r.Context()
	clientIP := requestcontext.ClientIP(ctx)
	key := fmt.Sprintf("%s:%s", class, models.SanitizeKeySegment(clientIP))

	result, err := m.store.Allow(ctx, key, limit.Requests, limit.Window)
	if err != nil {
		// Fail open.
		m.logger.ErrorContext(ctx, "rate limit check failed",
			"request_id", requestcontext.RequestID(ctx),
			"class", class,
			"error", err,
		)
		return true
	}

	addRateLimitHeaders(w, result)
	if result.Allowed {
		return true
	}

	m.logger.WarnContext(ctx, "rate limit exceeded",
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", clientIP,
		"class", class,
		"path", r.URL.Path,
	)
	if m.metrics != nil {
		m.metrics.RateLimitRejected.WithLabelValues(string(class)).Inc()
	}
	writeRateLimitExceeded(w, result)
	return false
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
