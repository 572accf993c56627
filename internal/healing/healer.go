// internal/healing/healer.go

// Package healing widens a failed resolution by climbing from near-miss
// candidates to their parents or next siblings. Text often lives on an
// inner span while the interactive element is the wrapper, so the wrapper
// is recovered by walking outward from the best text matches.
package healing

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/ranker"
)

// maxMisses bounds how many near-miss candidates are widened per attempt.
const maxMisses = 3

// Healer derives replacement candidates from the DOM neighborhood of
// rejected ones.
type Healer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Healer {
	return &Healer{logger: logger.Named("healing")}
}

// Widen inspects the top near-misses and returns parent or sibling
// elements worth re-ranking. A parent is only offered when it is visible
// and still relates to the target text; a visible next sibling is offered
// whenever the parent does not qualify, since label-then-control layouts
// put the interactive element immediately after the text node.
func (h *Healer) Widen(ctx context.Context, page schemas.Page, target string, misses []schemas.RankedCandidate) []schemas.ElementCandidate {
	if len(misses) > maxMisses {
		misses = misses[:maxMisses]
	}

	var widened []schemas.ElementCandidate
	for _, miss := range misses {
		parent, err := page.ParentOf(ctx, miss.Candidate.Locator)
		if err == nil && parent != nil && parent.Visible && relatesToTarget(*parent, target) {
			h.logger.Debug("Widening to parent element.",
				zap.String("parent", parent.Descriptor()),
				zap.String("from", miss.Candidate.Descriptor()),
			)
			widened = append(widened, *parent)
			continue
		}

		sibling, err := page.NextSiblingOf(ctx, miss.Candidate.Locator)
		if err != nil || sibling == nil || !sibling.Visible {
			continue
		}
		h.logger.Debug("Widening to next sibling.",
			zap.String("sibling", sibling.Descriptor()),
			zap.String("from", miss.Candidate.Descriptor()),
		)
		widened = append(widened, *sibling)
	}
	return widened
}

// relatesToTarget reports whether the element's text contains the target
// verbatim or shares at least one significant word with it.
func relatesToTarget(c schemas.ElementCandidate, target string) bool {
	combined := c.CombinedText()
	if ranker.ContainsVerbatim(target, combined) {
		return true
	}
	lc := strings.ToLower(combined)
	for _, tok := range ranker.SignificantTokens(target) {
		if len(tok) > 2 && strings.Contains(lc, tok) {
			return true
		}
	}
	return false
}
