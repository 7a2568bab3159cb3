// Package strings holds small string helpers shared by config loading and
// request validation.
package strings

import (
	"strings"
)

// DedupeAndTrim trims every element and drops blanks and repeats, keeping
// first-seen order. Used for list-valued settings such as Kafka brokers
// where "a, b,a" must mean [a b].
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
