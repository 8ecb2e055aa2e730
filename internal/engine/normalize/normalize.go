// Package normalize cleans raw text into the token stream the vectorizer counts.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text lower-cases s and drops every rune that is neither a word rune nor
// whitespace. Whitespace runs are kept as they are. Input is NFC-composed first
// so that accented letters survive as single word runes.
//
// Text is pure and idempotent: Text(Text(s)) == Text(s).
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(r)
		case isWordRune(r):
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Tokens returns the whitespace-separated tokens of Text(s).
// Empty or whitespace-only input yields no tokens.
func Tokens(s string) []string {
	return strings.Fields(Text(s))
}

// All normalizes every text, preserving order.
func All(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Text(t)
	}
	return out
}

// isWordRune reports whether r belongs to a word: letters, numbers, the
// underscore, and combining marks that decorate them.
func isWordRune(r rune) bool {
	if r == '_' {
		return true
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.In(r, unicode.Mn, unicode.Mc)
}
