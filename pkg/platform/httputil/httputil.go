// Package httputil writes JSON responses and translates domain errors into
// the public error envelope.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "rescue/pkg/domain-errors"
)

type errorEnvelope struct {
	Error       string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and JSON body. Internal errors never
// leak their description.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorEnvelope{Error: string(dErrors.CodeInternal)}
	if de, ok := dErrors.From(err); ok {
		status = dErrors.ToHTTPStatus(de.Code)
		body.Error = string(de.Code)
		if status != http.StatusInternalServerError {
			body.Description = de.Message
			body.Fields = de.Fields
		}
	}
	WriteJSON(w, status, body)
}

// DecodeJSON decodes the request body into dst, rejecting malformed JSON as a
// bad request.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// Validatable is implemented by request bodies that normalize and check
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare decodes the body into a new T and validates it. On failure
// it logs, writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
