package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescue/internal/platform/metrics"
	"rescue/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("inbound id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", rr.Header().Get(RequestIDHeader))
	})

	t.Run("oversized id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rr.Body.String())
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestLoggerWritesOneLine(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/interventions", nil))

	out := logs.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/interventions"`)
}

func TestLatencyUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	r := chi.NewRouter()
	r.Use(Latency(m))
	r.Get("/interventions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/interventions/42", nil))

	n, err := promtest.GatherAndCount(reg, "rescue_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	var route string
	for _, f := range families {
		if f.GetName() != "rescue_http_request_duration_seconds" {
			continue
		}
		for _, l := range f.GetMetric()[0].GetLabel() {
			if l.GetName() == "route" {
				route = l.GetValue()
			}
		}
	}
	assert.Equal(t, "/interventions/{id}", route)
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var has bool
	h := Timeout(time.Second)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, has = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, has)

	has = false
	Timeout(0)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, has = r.Context().Deadline()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, has)
}
