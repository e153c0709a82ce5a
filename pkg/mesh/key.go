package mesh

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxKeyLength is the maximum length of a sanitized cache key in characters
	MaxKeyLength = 200

	// SentinelEmptyKey is returned when sanitization would yield an empty key
	SentinelEmptyKey = "empty_key"

	// SentinelInvalidMesh is returned when no mesh identity is available
	SentinelInvalidMesh = "invalid_mesh"
)

// Sanitize replaces filesystem-reserved characters with underscores and
// truncates the result to MaxKeyLength characters. It is deterministic and
// idempotent, and never returns an empty string.
func Sanitize(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, raw)

	if utf8.RuneCountInString(s) > MaxKeyLength {
		runes := []rune(s)
		s = string(runes[:MaxKeyLength])
	}

	if s == "" {
		return SentinelEmptyKey
	}
	return s
}
