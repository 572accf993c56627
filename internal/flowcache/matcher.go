// internal/flowcache/matcher.go
package flowcache

import (
	"net/url"
	"strings"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// NormalizeStep canonicalizes a step for equality checks: action plus a
// lowercased, whitespace-folded target.
func NormalizeStep(action schemas.Action, target string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(target)), " ")
	return string(action) + "|" + folded
}

// SiteOf extracts the site key from a URL: hostname minus a "www."
// prefix. An unparseable URL yields "".
func SiteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// TrimURL strips query, fragment and the trailing slash so cosmetic URL
// variation does not defeat matching.
func TrimURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimRight(rawURL, "/")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

// MatchFragment finds the longest recorded fragment whose start URL is a
// prefix of the current URL and whose steps equal a prefix of the
// deduplicated upcoming window. Returns the fragment and how many
// original plan steps it covers, or nil when nothing applies. Prefix
// matching lets a fragment recorded at the site root replay from deeper
// landing pages of the same flow.
func MatchFragment(frags []schemas.FlowFragment, currentURL string, upcoming []DedupedStep) (*schemas.FlowFragment, int) {
	current := TrimURL(currentURL)

	var best *schemas.FlowFragment
	var bestSkip int
	for i := range frags {
		frag := &frags[i]
		if !strings.HasPrefix(current, TrimURL(frag.StartURL)) {
			continue
		}
		n := len(frag.Steps)
		if n == 0 || n > len(upcoming) {
			continue
		}
		if best != nil && n <= len(best.Steps) {
			continue
		}
		matched := true
		for j, fs := range frag.Steps {
			if NormalizeStep(fs.Action, fs.Target) != NormalizeStep(upcoming[j].Step.Action, upcoming[j].Step.Target) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		skip := 0
		for j := 0; j < n; j++ {
			skip += upcoming[j].Span
		}
		best, bestSkip = frag, skip
	}
	return best, bestSkip
}
