// Package textnorm canonicalizes OCR text and ledger fields into comparable
// forms and scores fuzzy similarity between them.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

var reNumericToken = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

// Normalize lowercases s, replaces everything except a-z, 0-9, whitespace and
// '.' with a space, collapses whitespace runs and trims. It is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	space := true // suppresses leading and repeated spaces
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) || r == '.' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// CompactKey keeps only the lowercase ASCII letters and digits of s, so
// "CR/482", "cr 482" and "cr-482" all become "cr482".
func CompactKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Digits returns the ASCII digits of s in order.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NumericTokens returns the distinct integer or decimal tokens in s.
func NumericTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range reNumericToken.FindAllString(s, -1) {
		out[tok] = struct{}{}
	}
	return out
}

// ContainsBounded reports whether token occurs in text without touching a
// letter or digit on either side.
func ContainsBounded(text, token string) bool {
	if token == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(token); {
		i := strings.Index(text[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)
		if (start == 0 || !isAlnumByte(text[start-1])) && (end == len(text) || !isAlnumByte(text[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

// IsNumeric reports whether s has at least one digit and no letters.
func IsNumeric(s string) bool {
	seen := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			seen = true
		} else if unicode.IsLetter(r) {
			return false
		}
	}
	return seen
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func isAlnumByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
