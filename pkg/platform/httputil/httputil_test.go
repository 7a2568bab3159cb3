package httputil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "rescue/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})

	t.Run("validation error includes field map", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Validation("invalid intervention", map[string]string{
			"location.coordinates": "longitude must be within [-180, 180]",
		}))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
		var body struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Error != "validation_error" {
			t.Fatalf("expected validation_error, got %q", body.Error)
		}
		if body.Fields["location.coordinates"] == "" {
			t.Fatalf("expected field message for location.coordinates")
		}
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, http.ErrHandlerTimeout)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var dst map[string]any
	err := DecodeJSON(req, &dst)
	if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

func (r *nameRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.Validation("invalid request", map[string]string{"name": "is required"})
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid body is normalized", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"  Ada "}`))
		got, ok := DecodeAndPrepare[nameRequest](w, req, logger, context.Background(), "req-1")
		if !ok {
			t.Fatalf("expected ok, got status %d", w.Code)
		}
		if got.Name != "Ada" {
			t.Fatalf("expected trimmed name, got %q", got.Name)
		}
	})

	t.Run("validation failure writes 400", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":" "}`))
		if _, ok := DecodeAndPrepare[nameRequest](w, req, logger, context.Background(), "req-2"); ok {
			t.Fatalf("expected failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}
