package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold lowercases a string and strips diacritics, so "Muñoz" and "munoz"
// compare equal during fuzzy identity matching.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		// Fall back to plain lowercasing on malformed input
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// Tokenize splits folded text into alphanumeric tokens.
func Tokenize(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet builds a membership set of folded tokens.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}

// ContainsFolded reports whether needle appears in haystack after folding
// both sides. An empty needle never matches.
func ContainsFolded(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}
