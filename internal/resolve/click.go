// internal/resolve/click.go
package resolve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/pagestate"
	"github.com/mkarrick/flowpilot/internal/ranker"
	"github.com/mkarrick/flowpilot/internal/snapshot"
)

// ClickResolver handles general clicks: scan clickables, tag them with
// classified components, rank, and widen through the healer when nothing
// clears the acceptance bar.
type ClickResolver struct {
	d Deps
}

func (r *ClickResolver) Resolve(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, pageType schemas.PageType) (*Resolution, error) {
	sweep := pagestate.ExpectsProductGrid(pageType)
	cands, err := r.d.Scanner.Scan(ctx, page, snapshot.KindClickable, step.Target, sweep)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("no clickable elements on page for %q", step.Target)
	}

	inputs := r.withComponents(ctx, page, cands, pageType)
	ranked, best := r.d.Ranker.BestMatch(ctx, step.Target, schemas.ActionClick, step.Region, inputs)
	if best != nil {
		return &Resolution{
			Best:       *best,
			Alternates: alternatesAfter(ranked, *best, 3),
		}, nil
	}

	// Widen through the DOM neighborhood of the best misses and re-rank
	// the widened pool under the flat fused policy.
	widened := r.d.Healer.Widen(ctx, page, step.Target, topMisses(ranked, 3))
	if len(widened) > 0 {
		healedRanked, healedBest := r.d.Fused.BestMatch(ctx, step.Target, schemas.ActionClick, step.Region, ranker.BuildInputs(widened))
		if healedBest != nil {
			r.d.Logger.Info("Resolved via healing.",
				zap.String("target", step.Target),
				zap.String("matched", healedBest.Candidate.Descriptor()),
			)
			return &Resolution{
				Best:       *healedBest,
				Alternates: alternatesAfter(healedRanked, *healedBest, 2),
				Healed:     true,
			}, nil
		}
	}

	return nil, fmt.Errorf("no candidate cleared acceptance for %q (%d scanned)", step.Target, len(cands))
}

// withComponents attaches classified components to candidates sharing a
// locator, so the component-fit signal has something to score.
func (r *ClickResolver) withComponents(ctx context.Context, page schemas.Page, cands []schemas.ElementCandidate, pageType schemas.PageType) []ranker.Input {
	byLocator := make(map[string]*schemas.SemanticComponent)
	kinds := []schemas.ComponentKind{schemas.KindButton, schemas.KindNavItem}
	if pagestate.ExpectsProductGrid(pageType) || pageType == schemas.PageHomepage || pageType == schemas.PageUnknown {
		kinds = append(kinds, schemas.KindProductCard)
	}
	for _, kind := range kinds {
		comps, err := r.d.Registry.Extract(ctx, page, kind)
		if err != nil {
			r.d.Logger.Debug("Component extraction failed for kind.",
				zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		for i := range comps {
			comp := comps[i]
			if _, taken := byLocator[comp.Element.Locator]; !taken {
				byLocator[comp.Element.Locator] = &comp
			}
		}
	}

	inputs := ranker.BuildInputs(cands)
	for i := range inputs {
		inputs[i].Component = byLocator[inputs[i].Candidate.Locator]
	}
	return inputs
}

// topMisses returns the best-scoring rejected candidates for widening.
func topMisses(ranked []schemas.RankedCandidate, n int) []schemas.RankedCandidate {
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
