package utils

import (
	"strings"
	"unicode"
)

// SanitizeString strips control characters from peer-provided text
// before it reaches logs.
func SanitizeString(s string) string {
	keep := func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}
	return strings.TrimSpace(strings.Map(keep, s))
}

// TruncateString caps s at maxLen bytes, with a "..." suffix when
// there is room for one.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}

// MaskSensitive hides all but the first visibleChars characters, so a
// PIN can be correlated across log lines without being disclosed.
func MaskSensitive(s string, visibleChars int) string {
	if visibleChars >= len(s) {
		return strings.Repeat("*", len(s))
	}
	return s[:visibleChars] + strings.Repeat("*", len(s)-visibleChars)
}

// IsEmpty reports whether s is empty or only whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
