// internal/ranker/text.go
package ranker

import (
	"strings"
	"unicode"
)

// SignificantTokens splits a target into the tokens that matter for
// keyword matching: alphanumeric runs of at least two characters, with
// decimals like "1.5" kept whole.
func SignificantTokens(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var b strings.Builder

	flush := func() {
		tok := b.String()
		b.Reset()
		// Trim a trailing dot left by a sentence boundary ("model.").
		tok = strings.TrimSuffix(tok, ".")
		if len(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' && b.Len() > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i+1]):
			// Keep decimals whole: "1.5" is one token.
			b.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// KeywordOverlap returns the fraction of the target's significant tokens
// found in the candidate's combined text.
func KeywordOverlap(target, combined string) float64 {
	tokens := SignificantTokens(target)
	if len(tokens) == 0 {
		return 0
	}
	combined = strings.ToLower(combined)
	var hits int
	for _, tok := range tokens {
		if strings.Contains(combined, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// ContainsVerbatim reports whether the target appears inside the combined
// text, case-insensitively and whitespace-normalized. This is the
// substring-dominance signal that makes truncated product titles
// resolvable.
func ContainsVerbatim(target, combined string) bool {
	t := foldSpace(target)
	c := foldSpace(combined)
	if t == "" || c == "" {
		return false
	}
	return strings.Contains(c, t)
}

func foldSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// FuzzySubsequence returns the fraction of target characters that can be
// matched, in order, within the candidate text. Tolerant of on-page
// truncation and interleaved markup text.
func FuzzySubsequence(target, text string) float64 {
	if target == "" {
		return 0
	}
	ti := 0
	for ci := 0; ci < len(text) && ti < len(target); ci++ {
		if text[ci] == target[ti] {
			ti++
		}
	}
	return float64(ti) / float64(len(target))
}

// SequenceRatio is a longest-common-subsequence similarity in [0,1]:
// 2*LCS / (len(a)+len(b)). Callers bound input sizes.
func SequenceRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

// head returns at most n leading bytes of s.
func head(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
