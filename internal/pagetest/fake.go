// internal/pagetest/fake.go

// Package pagetest provides an in-memory Page implementation for tests.
package pagetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// FakePage is a scriptable schemas.Page. Zero value is usable; populate
// the public fields to script behavior and inspect the call log afterwards.
type FakePage struct {
	mu sync.Mutex

	CurrentURL string
	PageTitle  string
	HTML       string
	Height     float64
	ScrollY    float64

	// EvalResults maps an expression to its JSON result payload.
	EvalResults map[string]string
	// Parents and Siblings map a locator to the structural neighbour
	// ParentOf and NextSiblingOf return.
	Parents  map[string]*schemas.ElementCandidate
	Siblings map[string]*schemas.ElementCandidate

	// FailActions maps "action locator" to an error, e.g. "click #buy".
	FailActions map[string]error
	// NavigateFunc, when set, overrides Navigate.
	NavigateFunc func(ctx context.Context, url string) error
	// EvaluateFunc, when set, overrides Evaluate.
	EvaluateFunc func(ctx context.Context, expr string, out any) error

	Calls  []string
	Closed bool
}

var _ schemas.Page = (*FakePage)(nil)

func (p *FakePage) record(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
}

func (p *FakePage) failure(action, locator string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailActions == nil {
		return nil
	}
	return p.FailActions[action+" "+locator]
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	p.record("navigate %s", url)
	if p.NavigateFunc != nil {
		return p.NavigateFunc(ctx, url)
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	return nil
}

func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, nil
}

func (p *FakePage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.HTML, nil
}

func (p *FakePage) Evaluate(ctx context.Context, expr string, out any) error {
	p.record("evaluate")
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(ctx, expr, out)
	}
	p.mu.Lock()
	payload, ok := p.EvalResults[expr]
	p.mu.Unlock()
	if !ok || out == nil {
		return nil
	}
	return unmarshal(payload, out)
}

func (p *FakePage) ScrollTo(ctx context.Context, y float64) error {
	p.record("scroll %.0f", y)
	p.mu.Lock()
	p.ScrollY = y
	p.mu.Unlock()
	return nil
}

func (p *FakePage) ScrollPosition(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ScrollY, nil
}

func (p *FakePage) PageHeight(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Height == 0 {
		return 1080, nil
	}
	return p.Height, nil
}

func (p *FakePage) Click(ctx context.Context, locator string) error {
	p.record("click %s", locator)
	return p.failure("click", locator)
}

func (p *FakePage) Fill(ctx context.Context, locator, value string) error {
	p.record("fill %s %s", locator, value)
	return p.failure("fill", locator)
}

func (p *FakePage) Press(ctx context.Context, locator, key string) error {
	p.record("press %s %s", locator, key)
	return p.failure("press", locator)
}

func (p *FakePage) SelectOption(ctx context.Context, locator, label string) error {
	p.record("select %s %s", locator, label)
	return p.failure("select", locator)
}

func (p *FakePage) Check(ctx context.Context, locator string) error {
	p.record("check %s", locator)
	return p.failure("check", locator)
}

func (p *FakePage) ParentOf(ctx context.Context, locator string) (*schemas.ElementCandidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Parents[locator], nil
}

func (p *FakePage) NextSiblingOf(ctx context.Context, locator string) (*schemas.ElementCandidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Siblings[locator], nil
}

func (p *FakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// CallCount returns how many recorded calls start with prefix.
func (p *FakePage) CallCount(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, c := range p.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
