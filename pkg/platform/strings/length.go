package strings

import "unicode/utf8"

// LengthBetween reports whether s has between lo and hi characters,
// inclusive. Characters are counted as runes, not bytes.
func LengthBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}
