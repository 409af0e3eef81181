package engine

import (
	"strings"
	"unicode"
)

// Content size limits (approximate token → char conversion: 1 token ≈ 4 chars).
const (
	maxMessageChars = 8000  // ~2K tokens
	maxContextReply = 4000  // assistant turns replayed as context
	maxStoredReply  = 40000 // ~10K tokens
)

// validateMessage trims a user message and caps its size. Oversized
// messages are truncated rather than rejected.
func validateMessage(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	return truncateClean(content, maxMessageChars), nil
}

// truncateClean truncates a string to maxLen, cutting at the last word boundary
// to avoid mid-word breaks.
func truncateClean(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	// Back up to last space
	truncated := s[:maxLen]
	if idx := strings.LastIndexFunc(truncated, unicode.IsSpace); idx > 0 && idx > maxLen-200 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(strings.ToValidUTF8(truncated, ""))
}
