// internal/resolve/forms.go
package resolve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/ranker"
	"github.com/mkarrick/flowpilot/internal/snapshot"
)

// InputResolver resolves TYPE steps. A page with exactly one visible text
// input needs no ranking at all; otherwise attribute substring match, then
// the fused ranker at its input threshold.
type InputResolver struct {
	d Deps
}

func (r *InputResolver) Resolve(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, pageType schemas.PageType) (*Resolution, error) {
	cands, err := r.d.Scanner.Scan(ctx, page, snapshot.KindInput, step.Target, false)
	if err != nil {
		return nil, err
	}
	texty := filterTextInputs(cands)
	if len(texty) == 0 {
		return nil, fmt.Errorf("no visible inputs on page for %q", step.Target)
	}

	if len(texty) == 1 {
		r.d.Logger.Debug("Single visible input, using it directly.",
			zap.String("matched", texty[0].Descriptor()))
		return &Resolution{Best: schemas.RankedCandidate{Score: 1, Candidate: texty[0]}}, nil
	}

	if c := matchByAttributes(texty, step.Target); c != nil {
		return &Resolution{Best: schemas.RankedCandidate{Score: 0.9, Candidate: *c}}, nil
	}

	ranked, best := r.d.Fused.BestMatch(ctx, step.Target, schemas.ActionType, step.Region, ranker.BuildInputs(texty))
	if best == nil {
		return nil, fmt.Errorf("no input matched %q among %d fields", step.Target, len(texty))
	}
	return &Resolution{
		Best:       *best,
		Alternates: alternatesAfter(ranked, *best, 2),
	}, nil
}

func filterTextInputs(cands []schemas.ElementCandidate) []schemas.ElementCandidate {
	var out []schemas.ElementCandidate
	for _, c := range cands {
		switch c.Tag {
		case "textarea":
			out = append(out, c)
		case "input":
			switch c.InputType {
			case "", "text", "search", "email", "tel", "number", "password", "url":
				out = append(out, c)
			}
		}
	}
	return out
}

// matchByAttributes finds an input whose placeholder, aria label or name
// contains the target (or the reverse, for terse targets like "search").
func matchByAttributes(cands []schemas.ElementCandidate, target string) *schemas.ElementCandidate {
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return nil
	}
	for i, c := range cands {
		for _, attr := range []string{c.Placeholder, c.AriaLabel, c.Name, c.ID} {
			a := strings.ToLower(attr)
			if a == "" {
				continue
			}
			if strings.Contains(a, t) || strings.Contains(t, a) {
				return &cands[i]
			}
		}
	}
	return nil
}

// SelectResolver resolves SELECT steps over select elements and radio
// groups.
type SelectResolver struct {
	d Deps
}

func (r *SelectResolver) Resolve(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, pageType schemas.PageType) (*Resolution, error) {
	cands, err := r.d.Scanner.Scan(ctx, page, snapshot.KindInput, step.Target, false)
	if err != nil {
		return nil, err
	}
	var pool []schemas.ElementCandidate
	for _, c := range cands {
		if c.Tag == "select" || (c.Tag == "input" && c.InputType == "radio") {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("no selectable elements on page for %q", step.Target)
	}
	if len(pool) == 1 {
		return &Resolution{Best: schemas.RankedCandidate{Score: 1, Candidate: pool[0]}}, nil
	}

	ranked, best := r.d.Ranker.BestMatch(ctx, step.Target, schemas.ActionSelect, step.Region, ranker.BuildInputs(pool))
	if best == nil {
		return nil, fmt.Errorf("no select matched %q among %d elements", step.Target, len(pool))
	}
	return &Resolution{
		Best:       *best,
		Alternates: alternatesAfter(ranked, *best, 2),
	}, nil
}

// CheckboxResolver owns clicks that clearly address checkboxes, matching
// them by resolved label through the component registry.
type CheckboxResolver struct {
	d Deps
}

func isCheckboxTarget(target string) bool {
	t := strings.ToLower(target)
	for _, marker := range []string{"checkbox", "check all", "tick ", "untick"} {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

func (r *CheckboxResolver) Resolve(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, pageType schemas.PageType) (*Resolution, error) {
	comps, err := r.d.Registry.Extract(ctx, page, schemas.KindCheckbox)
	if err != nil {
		return nil, err
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("no checkboxes on page for %q", step.Target)
	}

	inputs := make([]ranker.Input, len(comps))
	for i := range comps {
		el := comps[i].Element
		if el.Text == "" {
			el.Text = comps[i].Label
		}
		inputs[i] = ranker.Input{Candidate: el, Component: &comps[i]}
	}
	ranked, best := r.d.Fused.BestMatch(ctx, step.Target, schemas.ActionClick, step.Region, inputs)
	if best == nil {
		// A lone checkbox is unambiguous whatever its label says.
		if len(comps) == 1 {
			return &Resolution{Best: schemas.RankedCandidate{Score: 1, Candidate: inputs[0].Candidate, Component: &comps[0]}}, nil
		}
		return nil, fmt.Errorf("no checkbox matched %q among %d", step.Target, len(comps))
	}
	return &Resolution{
		Best:       *best,
		Alternates: alternatesAfter(ranked, *best, 2),
	}, nil
}
