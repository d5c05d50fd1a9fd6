package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxLogValueLength bounds untrusted values embedded in log fields so one
// hostile row cannot bloat a log line.
const maxLogValueLength = 256

// SanitizeForLog makes an untrusted value safe to embed in a structured log
// field. Control characters are stripped — quoted CSV fields may carry
// newlines, and a newline inside a field value can forge extra log lines —
// then the result is trimmed and length-bounded.
func SanitizeForLog(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	return TruncateString(strings.TrimSpace(cleaned), maxLogValueLength)
}

// TruncateString bounds s to at most maxLength bytes without splitting a
// multi-byte rune.
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	cut := s[:maxLength]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
