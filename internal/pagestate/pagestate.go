// internal/pagestate/pagestate.go

// Package pagestate fingerprints pages and validates transitions. A single
// boolean gate over (URL, content hash) decides whether an action had any
// observable effect, which is what keeps a silently-ignored click from
// being reported as success.
package pagestate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// Capturer snapshots the page's observable state.
type Capturer struct {
	logger *zap.Logger
}

func NewCapturer(logger *zap.Logger) *Capturer {
	return &Capturer{logger: logger.Named("pagestate")}
}

// Capture reads URL, title and a visible-text fingerprint. A content read
// failure degrades to an empty hash rather than failing the capture, so
// validation still works off the URL.
func (c *Capturer) Capture(ctx context.Context, page schemas.Page) (schemas.PageState, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return schemas.PageState{}, err
	}
	title, err := page.Title(ctx)
	if err != nil {
		title = ""
	}

	state := schemas.PageState{URL: url, Title: title}
	content, err := page.Content(ctx)
	if err != nil {
		c.logger.Warn("Content read failed, fingerprinting URL only.", zap.Error(err))
		return state, nil
	}
	state.Hash = Fingerprint(content)
	return state, nil
}

// Fingerprint hashes the document's visible text. Markup churn that does
// not change what the user sees (attribute reordering, injected tracking
// scripts) does not move the hash, while a modal opening does.
func Fingerprint(content string) string {
	text := visibleText(content)
	if text == "" {
		return ""
	}
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// skipTags are elements whose text never renders.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

func visibleText(content string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	depth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return foldText(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skipTags[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipTags[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func foldText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidTransition reports whether the action had any observable effect:
// the URL changed or the content fingerprint changed.
func ValidTransition(before, after schemas.PageState) bool {
	return before.URL != after.URL || before.Hash != after.Hash
}

// ValidNavigation requires the URL itself to have changed.
func ValidNavigation(before, after schemas.PageState) bool {
	return before.URL != after.URL
}

// IsOverlayTransition reports an in-place mutation: content changed while
// the URL stayed put, the signature of a modal or expanded panel.
func IsOverlayTransition(before, after schemas.PageState) bool {
	return before.URL == after.URL && before.Hash != after.Hash
}

// errorMarkers flag states the engine should refuse to continue from.
var errorMarkers = []string{"error", "404", "not found", "forbidden", "unauthorized"}

// IsErrorState checks URL and title for failure markers.
func IsErrorState(state schemas.PageState) bool {
	u := strings.ToLower(state.URL)
	t := strings.ToLower(state.Title)
	for _, m := range errorMarkers {
		if strings.Contains(u, m) || strings.Contains(t, m) {
			return true
		}
	}
	return false
}
