package models

import (
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassAuth covers signup and token exchange.
	ClassAuth EndpointClass = "auth"
	// ClassWrite covers mutations: reporting interventions, editing respondants.
	ClassWrite EndpointClass = "write"
	// ClassRead covers listings and lookups.
	ClassRead EndpointClass = "read"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassAuth, ClassWrite, ClassRead:
		return true
	}
	return false
}

// Limit allows Requests per sliding Window. A non-positive Requests disables
// the limit.
type Limit struct {
	Requests int
	Window   time.Duration
}

func (l Limit) Enabled() bool {
	return l.Requests > 0 && l.Window > 0
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the API response when rate limit is exceeded.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so an identifier containing ':' cannot address a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never
// below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
