package admin

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name     string
		expected string
		sent     string
		status   int
	}{
		{name: "matching token", expected: "s3cret", sent: "s3cret", status: http.StatusOK},
		{name: "wrong token", expected: "s3cret", sent: "guess", status: http.StatusForbidden},
		{name: "missing header", expected: "s3cret", status: http.StatusForbidden},
		{name: "unconfigured token disables the route", expected: "", sent: "", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/admin/interventions", nil)
			if tt.sent != "" {
				req.Header.Set("X-Admin-Token", tt.sent)
			}
			rr := httptest.NewRecorder()
			RequireAdminToken(tt.expected, logger)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
