// internal/resolve/resolve.go

// Package resolve turns a plan step's free-text target into a concrete
// element handle. Resolution is an ordered chain of specialised resolvers;
// the first whose predicate matches the step owns it.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/component"
	"github.com/mkarrick/flowpilot/internal/healing"
	"github.com/mkarrick/flowpilot/internal/ranker"
	"github.com/mkarrick/flowpilot/internal/snapshot"
)

// Resolution is a successful match: the chosen element plus next-ranked
// alternates the executor can fall back to if acting on Best fails.
type Resolution struct {
	Best       schemas.RankedCandidate
	Alternates []schemas.RankedCandidate
	Healed     bool
}

// Resolver resolves one step on the live page.
type Resolver interface {
	Resolve(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, pageType schemas.PageType) (*Resolution, error)
}

// Entry pairs a predicate with the resolver that owns matching steps.
type Entry struct {
	Match    func(step schemas.ExecutionStep) bool
	Resolver Resolver
}

// Chain dispatches a step to the first matching entry.
type Chain struct {
	entries []Entry
	scanner *snapshot.Scanner
	logger  *zap.Logger
}

func NewChain(logger *zap.Logger, scanner *snapshot.Scanner, entries ...Entry) *Chain {
	return &Chain{entries: entries, scanner: scanner, logger: logger.Named("resolve")}
}

// Resolve finds the owning resolver and runs it.
func (c *Chain) Resolve(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, pageType schemas.PageType) (*Resolution, error) {
	for _, e := range c.entries {
		if !e.Match(step) {
			continue
		}
		res, err := e.Resolver.Resolve(ctx, page, step, pageType)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("Step resolved.",
			zap.String("action", string(step.Action)),
			zap.String("matched", res.Best.Candidate.Descriptor()),
			zap.Float64("score", res.Best.Score),
		)
		return res, nil
	}
	return nil, fmt.Errorf("no resolver accepts action %s", step.Action)
}

// VisibleTexts samples the distinct texts of clickable elements at the
// current scroll position, for recovery prompts. Best effort; a failed
// scan yields nil.
func (c *Chain) VisibleTexts(ctx context.Context, page schemas.Page, limit int) []string {
	if c.scanner == nil {
		return nil
	}
	cands, err := c.scanner.Scan(ctx, page, snapshot.KindClickable, "", false)
	if err != nil {
		c.logger.Debug("Visible-text scan failed.", zap.Error(err))
		return nil
	}
	seen := make(map[string]bool, len(cands))
	var out []string
	for _, cand := range cands {
		text := strings.TrimSpace(cand.Text)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Deps are the shared collaborators every resolver draws on.
type Deps struct {
	Scanner  *snapshot.Scanner
	Registry *component.Registry
	Ranker   *ranker.Ranker
	Fused    *ranker.Ranker
	Healer   *healing.Healer
	Logger   *zap.Logger
}

// DefaultChain wires the built-in resolvers in precedence order: the
// checkbox handler steals check-ish clicks, then TYPE, SELECT and the
// general click resolver.
func DefaultChain(d Deps) *Chain {
	click := &ClickResolver{d: d}
	return NewChain(d.Logger, d.Scanner,
		Entry{
			Match:    func(s schemas.ExecutionStep) bool { return s.Action == schemas.ActionClick && isCheckboxTarget(s.Target) },
			Resolver: &CheckboxResolver{d: d},
		},
		Entry{
			Match:    func(s schemas.ExecutionStep) bool { return s.Action == schemas.ActionType },
			Resolver: &InputResolver{d: d},
		},
		Entry{
			Match:    func(s schemas.ExecutionStep) bool { return s.Action == schemas.ActionSelect },
			Resolver: &SelectResolver{d: d},
		},
		Entry{
			Match:    func(s schemas.ExecutionStep) bool { return s.Action == schemas.ActionClick },
			Resolver: click,
		},
	)
}

// alternatesAfter returns up to n accepted runners-up for retry.
func alternatesAfter(ranked []schemas.RankedCandidate, best schemas.RankedCandidate, n int) []schemas.RankedCandidate {
	var out []schemas.RankedCandidate
	for _, rc := range ranked {
		if len(out) >= n {
			break
		}
		if rc.Index == best.Index {
			continue
		}
		out = append(out, rc)
	}
	return out
}
