package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeName cleans zone and display names.
func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeReason cleans free-text cancellation reasons.
func NormalizeReason(reason string) string {
	return TrimAndNormalize(reason)
}

// NormalizeNameForComparison lowercases on top of whitespace cleanup so
// duplicate zone names compare equal.
func NormalizeNameForComparison(name string) string {
	return strings.ToLower(TrimAndNormalize(name))
}
