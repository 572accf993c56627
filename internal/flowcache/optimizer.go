// internal/flowcache/optimizer.go
package flowcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// ShortcutKind distinguishes the three optimization tiers.
type ShortcutKind string

const (
	ShortcutFragment ShortcutKind = "fragment"
	ShortcutURL      ShortcutKind = "url"
	ShortcutState    ShortcutKind = "state"
)

// Shortcut is the optimizer's answer: jump to Navigate and mark Skip
// original plan steps as covered.
type Shortcut struct {
	Kind     ShortcutKind
	Navigate string
	Skip     int
	Fragment *schemas.FlowFragment
}

// Optimizer tries the three shortcut tiers in order for each upcoming
// step window: a persisted fragment match, then the static URL table,
// then the page-type-gated state table.
type Optimizer struct {
	store          *Store
	urlShortcuts   []URLShortcut
	stateShortcuts []StateShortcut
	log            *zap.Logger
}

// NewOptimizer builds an optimizer. store may be nil, which disables the
// fragment tier but keeps the static tables working.
func NewOptimizer(store *Store, urls []URLShortcut, states []StateShortcut, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		store:          store,
		urlShortcuts:   urls,
		stateShortcuts: states,
		log:            logger.Named("optimizer"),
	}
}

// Optimize inspects the upcoming steps from the current URL. A nil
// return means no tier applies and the step executes normally.
func (o *Optimizer) Optimize(ctx context.Context, currentURL string, pageType schemas.PageType, upcoming []schemas.ExecutionStep) (*Shortcut, error) {
	deduped := Dedup(upcoming)
	if len(deduped) == 0 {
		return nil, nil
	}

	if o.store != nil {
		frags, err := o.store.ListBySite(ctx, SiteOf(currentURL))
		if err != nil {
			// Cache trouble never blocks execution.
			o.log.Warn("Fragment lookup failed, continuing without cache.", zap.Error(err))
		} else if frag, skip := MatchFragment(frags, currentURL, deduped); frag != nil {
			o.log.Info("Fragment matched, replaying chain.",
				zap.String("end_url", frag.EndURL),
				zap.Int("skip", skip),
			)
			return &Shortcut{Kind: ShortcutFragment, Navigate: frag.EndURL, Skip: skip, Fragment: frag}, nil
		}
	}

	first := deduped[0]
	if first.Step.Action == schemas.ActionClick {
		if dest, ok := ResolveURLShortcut(o.urlShortcuts, currentURL, first.Step.Target); ok {
			o.log.Info("URL shortcut applied.", zap.String("dest", dest))
			return &Shortcut{Kind: ShortcutURL, Navigate: dest, Skip: first.Span}, nil
		}
		if dest, ok := ResolveStateShortcut(o.stateShortcuts, currentURL, pageType, first.Step.Target); ok {
			o.log.Info("State shortcut applied.",
				zap.String("dest", dest),
				zap.String("page_type", string(pageType)),
			)
			return &Shortcut{Kind: ShortcutState, Navigate: dest, Skip: first.Span}, nil
		}
	}
	return nil, nil
}
