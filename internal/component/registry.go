// internal/component/registry.go

// Package component groups raw DOM elements into semantic shapes: product
// cards, form inputs, nav items, buttons, modals, radio groups and
// checkboxes. Classification is a registry of kind-specific extractors;
// adding a kind means registering an extractor, never touching callers.
package component

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// ExtractorFunc discovers every component of one kind on the live page.
type ExtractorFunc func(ctx context.Context, page schemas.Page) ([]schemas.SemanticComponent, error)

// Registry dispatches classification by component kind.
type Registry struct {
	extractors map[schemas.ComponentKind]ExtractorFunc
	order      []schemas.ComponentKind
	logger     *zap.Logger
}

// NewRegistry returns a registry with every built-in kind registered.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		extractors: make(map[schemas.ComponentKind]ExtractorFunc),
		logger:     logger.Named("component"),
	}
	r.Register(schemas.KindProductCard, scriptExtractor(schemas.KindProductCard, productCardScript))
	r.Register(schemas.KindFormInput, scriptExtractor(schemas.KindFormInput, formInputScript))
	r.Register(schemas.KindNavItem, scriptExtractor(schemas.KindNavItem, navItemScript))
	r.Register(schemas.KindButton, scriptExtractor(schemas.KindButton, buttonScript))
	r.Register(schemas.KindModal, scriptExtractor(schemas.KindModal, modalScript))
	r.Register(schemas.KindRadioGroup, scriptExtractor(schemas.KindRadioGroup, radioGroupScript))
	r.Register(schemas.KindCheckbox, scriptExtractor(schemas.KindCheckbox, checkboxScript))
	return r
}

// Register binds an extractor to a kind, replacing any previous binding.
func (r *Registry) Register(kind schemas.ComponentKind, fn ExtractorFunc) {
	if _, exists := r.extractors[kind]; !exists {
		r.order = append(r.order, kind)
	}
	r.extractors[kind] = fn
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []schemas.ComponentKind {
	return append([]schemas.ComponentKind(nil), r.order...)
}

// Extract runs one kind's extractor.
func (r *Registry) Extract(ctx context.Context, page schemas.Page, kind schemas.ComponentKind) ([]schemas.SemanticComponent, error) {
	fn, ok := r.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for kind %q", kind)
	}
	return fn(ctx, page)
}

// ExtractAll runs every registered extractor. A failing extractor yields
// an empty slice for its kind rather than failing the whole pass.
func (r *Registry) ExtractAll(ctx context.Context, page schemas.Page) map[schemas.ComponentKind][]schemas.SemanticComponent {
	out := make(map[schemas.ComponentKind][]schemas.SemanticComponent, len(r.order))
	for _, kind := range r.order {
		comps, err := r.extractors[kind](ctx, page)
		if err != nil {
			r.logger.Warn("Extractor failed, continuing with remaining kinds.",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			out[kind] = nil
			continue
		}
		out[kind] = comps
	}
	return out
}

// scriptRecord is the raw JS emission before the kind is stamped on.
type scriptRecord struct {
	Label   string                   `json:"label"`
	Element schemas.ElementCandidate `json:"element"`
}

// scriptExtractor wraps a page-walk script into an ExtractorFunc.
func scriptExtractor(kind schemas.ComponentKind, script string) ExtractorFunc {
	return func(ctx context.Context, page schemas.Page) ([]schemas.SemanticComponent, error) {
		var records []scriptRecord
		if err := page.Evaluate(ctx, script, &records); err != nil {
			return nil, fmt.Errorf("%s extraction failed: %w", kind, err)
		}
		comps := make([]schemas.SemanticComponent, 0, len(records))
		for _, rec := range records {
			if rec.Element.Locator == "" {
				continue
			}
			comps = append(comps, schemas.SemanticComponent{
				Kind:    kind,
				Label:   rec.Label,
				Element: rec.Element,
			})
		}
		return comps, nil
	}
}
