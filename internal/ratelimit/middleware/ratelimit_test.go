package middleware

//go:generate mockgen -source=ratelimit.go -destination=mocks/mocks.go -package=mocks BucketStore

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rescue/internal/platform/metrics"
	"rescue/internal/ratelimit/middleware/mocks"
	"rescue/internal/ratelimit/models"
	"rescue/internal/ratelimit/store/bucket"
	"rescue/pkg/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func request(method, ip string) *http.Request {
	return testutil.WithClientIP(httptest.NewRequest(method, "/interventions", nil), ip)
}

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	mw := New(bucket.NewInMemoryBucketStore(), map[models.EndpointClass]models.Limit{
		models.ClassAuth: {Requests: 2, Window: time.Minute},
	}, nil, WithMetrics(m))
	h := mw.RateLimit(models.ClassAuth)(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.1"))
		require.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, []string{"1", "0"}[i], rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body models.RateLimitExceededResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Positive(t, body.RetryAfter)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RateLimitRejected.WithLabelValues("auth")))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "10.0.0.2"))
	assert.Equal(t, http.StatusNoContent, rec.Code, "other clients keep their own budget")
}

func TestByMethodSelectsClass(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBucketStore(ctrl)
	mw := New(store, map[models.EndpointClass]models.Limit{
		models.ClassRead:  {Requests: 100, Window: time.Minute},
		models.ClassWrite: {Requests: 10, Window: time.Minute},
	}, nil)
	h := mw.ByMethod()(okHandler)

	allowed := &models.RateLimitResult{Allowed: true, Limit: 1, Remaining: 1, ResetAt: time.Now()}
	store.EXPECT().Allow(gomock.Any(), "read:10.0.0.1", 100, time.Minute).Return(allowed, nil)
	store.EXPECT().Allow(gomock.Any(), "write:10.0.0.1", 10, time.Minute).Return(allowed, nil)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(method, "10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rec.Code, method)
	}
}

func TestRateLimitSanitizesKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBucketStore(ctrl)
	mw := New(store, map[models.EndpointClass]models.Limit{
		models.ClassRead: {Requests: 5, Window: time.Second},
	}, nil)

	store.EXPECT().Allow(gomock.Any(), "read:__1", 5, time.Second).
		Return(&models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 4}, nil)

	rec := httptest.NewRecorder()
	mw.RateLimit(models.ClassRead)(okHandler).ServeHTTP(rec, request(http.MethodGet, "::1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBucketStore(ctrl)
	mw := New(store, map[models.EndpointClass]models.Limit{
		models.ClassWrite: {Requests: 1, Window: time.Minute},
	}, nil)

	store.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	rec := httptest.NewRecorder()
	mw.RateLimit(models.ClassWrite)(okHandler).ServeHTTP(rec, request(http.MethodPost, "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitPassesThroughUnconfiguredClass(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBucketStore(ctrl)
	mw := New(store, map[models.EndpointClass]models.Limit{
		models.ClassWrite: {Requests: 0, Window: time.Minute},
	}, nil)

	for _, class := range []models.EndpointClass{models.ClassWrite, models.ClassAuth} {
		rec := httptest.NewRecorder()
		mw.RateLimit(class)(okHandler).ServeHTTP(rec, request(http.MethodPost, "10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rec.Code, class)
	}
}
