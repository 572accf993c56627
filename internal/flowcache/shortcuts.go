// internal/flowcache/shortcuts.go
package flowcache

import (
	"net/url"
	"strings"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// URLShortcut maps a target phrase, by substring, to a known path on the
// current site. Read-only at runtime.
type URLShortcut struct {
	Phrase string
	Path   string
}

// StateShortcut is a URL shortcut gated on the classified page type, for
// phrases that only mean one thing from a particular kind of page.
type StateShortcut struct {
	PageType schemas.PageType
	Phrase   string
	Path     string
}

// DefaultURLShortcuts covers the common storefront destinations a plan
// tends to phrase as clicks.
func DefaultURLShortcuts() []URLShortcut {
	return []URLShortcut{
		{Phrase: "shopping cart", Path: "/cart"},
		{Phrase: "view cart", Path: "/cart"},
		{Phrase: "checkout", Path: "/checkout"},
		{Phrase: "sitemap", Path: "/sitemap"},
	}
}

// DefaultStateShortcuts is empty; site-specific tables are supplied by
// configuration or by callers that learned them.
func DefaultStateShortcuts() []StateShortcut {
	return nil
}

// siteBase reduces a URL to scheme://host.
func siteBase(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// ResolveURLShortcut returns the absolute destination when the target
// phrase matches a table entry by substring.
func ResolveURLShortcut(table []URLShortcut, currentURL, target string) (string, bool) {
	t := strings.TrimSpace(strings.ToLower(target))
	if t == "" {
		return "", false
	}
	base := siteBase(currentURL)
	for _, sc := range table {
		if strings.Contains(t, sc.Phrase) {
			return base + sc.Path, true
		}
	}
	return "", false
}

// ResolveStateShortcut is ResolveURLShortcut additionally keyed on the
// classified page type.
func ResolveStateShortcut(table []StateShortcut, currentURL string, pageType schemas.PageType, target string) (string, bool) {
	t := strings.TrimSpace(strings.ToLower(target))
	if t == "" {
		return "", false
	}
	base := siteBase(currentURL)
	for _, sc := range table {
		if sc.PageType == pageType && strings.Contains(t, sc.Phrase) {
			return base + sc.Path, true
		}
	}
	return "", false
}
