// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backticks appear as \x60 because Go raw strings cannot contain them.
var fencedJSON = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(.*?)\\s*\x60\x60\x60")

// ParseJSONResponse parses a model response into a target Go type,
// tolerating markdown code fences and conversational prose around the
// JSON payload.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := extractJSON(strings.TrimSpace(response))

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// extractJSON isolates the outermost JSON value in s. Fenced blocks win
// over surrounding prose; among bare delimiters, whichever of '[' or '{'
// opens first wins, so an array of objects keeps its brackets instead of
// degrading to its first element.
func extractJSON(s string) string {
	if m := fencedJSON.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	arr := delimiterSpan(s, '[', ']')
	obj := delimiterSpan(s, '{', '}')
	switch {
	case arr.valid() && (!obj.valid() || arr.start < obj.start):
		return s[arr.start:arr.end]
	case obj.valid():
		return s[obj.start:obj.end]
	}
	return s
}

type span struct{ start, end int }

func (sp span) valid() bool { return sp.start >= 0 && sp.end > sp.start }

// delimiterSpan finds the widest [open...close] window in s.
func delimiterSpan(s string, open, close byte) span {
	i := strings.IndexByte(s, open)
	j := strings.LastIndexByte(s, close)
	if i == -1 || j == -1 || j < i {
		return span{-1, -1}
	}
	return span{i, j + 1}
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Byte truncation; good enough for error logging.
	return s[:maxLen] + "..."
}
