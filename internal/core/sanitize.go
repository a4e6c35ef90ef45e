package core

// sanitize.go maps arbitrary header text to identifiers safe for physical
// column and table names, plus a lighter normalization used for alias
// matching. Both functions are pure and idempotent.

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeIdentifier converts raw header text into a physical-column-safe
// identifier: lowercase, accents folded to ASCII, any run of characters
// outside [a-z0-9_] collapsed to a single underscore, no leading or
// trailing underscore.
func SanitizeIdentifier(raw string) string {
	s := foldAccents(strings.ToLower(raw))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if valid {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
	}
	return b.String()
}

// matchExtraRunes are the symbols NormalizeHeader keeps beyond [a-z0-9_].
// Provider files use them inside header names (e.g. "tel. #1", "deuda %").
const matchExtraRunes = "#./%-"

// NormalizeHeader is the lighter variant used for alias matching: lowercase,
// accents folded, whitespace and any other character outside [a-z0-9_] plus
// a fixed symbol set stripped. Unlike SanitizeIdentifier it keeps those
// symbols so visually distinct headers stay distinct aliases.
func NormalizeHeader(raw string) string {
	s := foldAccents(strings.ToLower(raw))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case strings.ContainsRune(matchExtraRunes, r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// foldAccents strips diacritical marks by NFD-decomposing the string and
// dropping combining marks, so "ñ" becomes "n" and "á" becomes "a".
func foldAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
