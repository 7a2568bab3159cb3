// Package email normalizes addresses used as login identifiers.
package email

import (
	"net/mail"
	"strings"
	"unicode"
)

// Normalize trims and lower-cases addr so lookups are case-insensitive.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Valid reports whether addr is a bare address (no display name).
func Valid(addr string) bool {
	if addr == "" || strings.IndexFunc(addr, unicode.IsSpace) >= 0 {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	return parsed.Address == addr && strings.Contains(addr[strings.LastIndexByte(addr, '@')+1:], ".")
}

// DeriveNameFromEmail guesses first and last names from the local part,
// e.g. "jane.doe@example.com" gives ("Jane", "Doe").
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
