// internal/browser/page.go
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// Page is one driven tab. All locators are CSS selectors, matching what
// the extraction scripts stamp onto candidates.
type Page struct {
	ctx           context.Context
	actionTimeout time.Duration
	logger        *zap.Logger

	onClose   func()
	closeOnce sync.Once
}

var _ schemas.Page = (*Page)(nil)

// runActions executes chromedp actions against this tab, honoring both
// the caller's context and the tab lifecycle.
func (p *Page) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(ctx, p.ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))
	return p.runActions(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.runActions(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.Evaluate(ctx, "document.documentElement.outerHTML", &html)
	return html, err
}

// Evaluate runs a JavaScript expression and unmarshals its JSON result
// into out. Promises are awaited; JS exceptions surface as errors.
func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	var raw json.RawMessage
	err := p.runActions(ctx,
		chromedp.Evaluate(expr, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithReturnByValue(true).WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

func (p *Page) ScrollTo(ctx context.Context, y float64) error {
	return p.Evaluate(ctx, fmt.Sprintf("window.scrollTo(0, %.0f)", y), nil)
}

func (p *Page) ScrollPosition(ctx context.Context) (float64, error) {
	var y float64
	err := p.Evaluate(ctx, "window.scrollY", &y)
	return y, err
}

func (p *Page) PageHeight(ctx context.Context) (float64, error) {
	var h float64
	err := p.Evaluate(ctx,
		"Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)", &h)
	return h, err
}

func (p *Page) Click(ctx context.Context, locator string) error {
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	return p.runActions(actionCtx,
		chromedp.ScrollIntoView(locator, chromedp.ByQuery),
		chromedp.Click(locator, chromedp.ByQuery),
	)
}

func (p *Page) Fill(ctx context.Context, locator, value string) error {
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	return p.runActions(actionCtx,
		chromedp.ScrollIntoView(locator, chromedp.ByQuery),
		chromedp.Focus(locator, chromedp.ByQuery),
		chromedp.Clear(locator, chromedp.ByQuery),
		chromedp.SendKeys(locator, value, chromedp.ByQuery),
	)
}

func (p *Page) Press(ctx context.Context, locator, key string) error {
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()
	return p.runActions(actionCtx,
		chromedp.SendKeys(locator, keySequence(key), chromedp.ByQuery),
	)
}

// keySequence maps a friendly key name onto the kb constant chromedp
// dispatches. Unknown names pass through as literal characters.
func keySequence(key string) string {
	switch strings.ToLower(key) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape", "esc":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	default:
		return key
	}
}

// SelectOption picks a select option by its visible label, falling back
// to value, and fires the events frameworks listen for.
func (p *Page) SelectOption(ctx context.Context, locator, label string) error {
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	var ok bool
	script := fmt.Sprintf(selectOptionScript, jsString(locator), jsString(label))
	if err := p.Evaluate(actionCtx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no option labeled %q in %s", label, locator)
	}
	return nil
}

// Check sets a checkbox or radio to checked, firing input/change events.
// Already-checked elements are left alone.
func (p *Page) Check(ctx context.Context, locator string) error {
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	var ok bool
	script := fmt.Sprintf(checkScript, jsString(locator))
	if err := p.Evaluate(actionCtx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no checkable element at %s", locator)
	}
	return nil
}

func (p *Page) ParentOf(ctx context.Context, locator string) (*schemas.ElementCandidate, error) {
	return p.neighbor(ctx, locator, "parentElement")
}

func (p *Page) NextSiblingOf(ctx context.Context, locator string) (*schemas.ElementCandidate, error) {
	return p.neighbor(ctx, locator, "nextElementSibling")
}

func (p *Page) neighbor(ctx context.Context, locator, accessor string) (*schemas.ElementCandidate, error) {
	actionCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	var cand schemas.ElementCandidate
	script := fmt.Sprintf(neighborScript, jsString(locator), accessor)
	if err := p.Evaluate(actionCtx, script, &cand); err != nil {
		return nil, err
	}
	if cand.Locator == "" {
		return nil, nil
	}
	return &cand, nil
}

func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.logger.Debug("Closing page.")
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}

// jsString encodes a Go string as a JS string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
