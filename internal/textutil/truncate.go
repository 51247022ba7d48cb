// Package textutil holds small string helpers shared by packages that log or
// report untrusted text.
package textutil

import "unicode/utf8"

// Truncate shortens s to at most n bytes plus "..." without splitting a
// multi-byte rune.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
