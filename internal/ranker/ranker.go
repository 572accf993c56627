// internal/ranker/ranker.go
package ranker

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/semantic"
)

// Input is one candidate offered for ranking, optionally carrying its
// classified component and a vision alignment score from a visual pass.
type Input struct {
	Candidate schemas.ElementCandidate
	Component *schemas.SemanticComponent
	Vision    float64
	HasVision bool
}

// BuildInputs wraps raw candidates for ranking.
func BuildInputs(cands []schemas.ElementCandidate) []Input {
	inputs := make([]Input, len(cands))
	for i, c := range cands {
		inputs[i] = Input{Candidate: c}
	}
	return inputs
}

// Ranker scores candidates against a free-text target. One scoring entry
// point serves all strategy variants; the strategy only changes the weight
// table and the acceptance policy.
type Ranker struct {
	scorer   *semantic.Scorer
	strategy Strategy
	history  *History
	logger   *zap.Logger
}

// New constructs a ranker.
func New(scorer *semantic.Scorer, strategy Strategy, history *History, logger *zap.Logger) *Ranker {
	if history == nil {
		history = NewHistory()
	}
	return &Ranker{
		scorer:   scorer,
		strategy: strategy,
		history:  history,
		logger:   logger.Named("ranker"),
	}
}

// Strategy returns the active strategy.
func (r *Ranker) Strategy() Strategy { return r.strategy }

// History returns the shared success history so the engine can record
// wins after validated actions.
func (r *Ranker) History() *History { return r.history }

// Rank scores every input and returns them sorted by descending score.
// Ties keep document order: the stable sort preserves input order, so the
// first occurrence wins.
func (r *Ranker) Rank(ctx context.Context, target string, action schemas.Action, region string, inputs []Input) []schemas.RankedCandidate {
	ranked := make([]schemas.RankedCandidate, 0, len(inputs))
	for i, in := range inputs {
		score := r.score(ctx, target, action, region, in)
		if score > 1 {
			score = 1
		}
		ranked = append(ranked, schemas.RankedCandidate{
			Score:     score,
			Candidate: in.Candidate,
			Component: in.Component,
			Index:     i,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// BestMatch ranks and applies the tiered acceptance policy: the tier
// threshold for the target's length first, then the last-resort floor for
// long targets or tiny pools.
func (r *Ranker) BestMatch(ctx context.Context, target string, action schemas.Action, region string, inputs []Input) ([]schemas.RankedCandidate, *schemas.RankedCandidate) {
	ranked := r.Rank(ctx, target, action, region, inputs)
	if len(ranked) == 0 {
		return ranked, nil
	}
	top := ranked[0]

	threshold := r.strategy.Threshold(len(target))
	if action == schemas.ActionType && r.strategy.InputThreshold > 0 {
		threshold = r.strategy.InputThreshold
	}

	if top.Score >= threshold {
		return ranked, &top
	}
	if r.strategy.AcceptLastResort(top.Score, len(target), len(ranked)) {
		r.logger.Debug("Accepting best candidate below tier threshold.",
			zap.Float64("score", top.Score),
			zap.Int("pool", len(ranked)),
			zap.String("target", head(target, 80)),
		)
		return ranked, &top
	}
	return ranked, nil
}

func (r *Ranker) score(ctx context.Context, target string, action schemas.Action, region string, in Input) float64 {
	switch r.strategy.Kind {
	case KindLegacy:
		return r.scoreLegacy(ctx, target, action, region, in)
	case KindFused:
		return r.scoreFused(ctx, target, in)
	default:
		return r.scoreProduction(ctx, target, action, in)
	}
}

// scoreLegacy is the additive weighting: a fixed exact-match bonus plus
// weighted semantic, structural, accessibility, visibility, position,
// region and history terms.
func (r *Ranker) scoreLegacy(ctx context.Context, target string, action schemas.Action, region string, in Input) float64 {
	c := in.Candidate
	s := r.strategy
	var score float64

	if strings.EqualFold(strings.TrimSpace(c.Text), strings.TrimSpace(target)) {
		score += s.WExact
	}
	score += s.WSemantic * r.scorer.Similarity(ctx, c.CombinedText(), target)
	score += s.WRole * structuralFit(action, c)
	if c.AriaLabel != "" {
		score += s.WAria * r.scorer.Similarity(ctx, c.AriaLabel, target)
	}
	if c.Visible {
		score += s.WVisible
	}
	if c.Box.Y < 800 {
		score += s.WPosition
	}
	if region != "" && RegionOf(c) == region {
		score += s.WContainer
	}
	if r.history.Seen(action, c) {
		score += s.WHistory
	}
	return score
}

// scoreProduction fuses a text score with visual, structural and component
// signals. Long targets switch the text score from embeddings to fuzzy
// sequence matching, and verbatim containment floors it at 0.9 so
// truncated product titles stay resolvable.
func (r *Ranker) scoreProduction(ctx context.Context, target string, action schemas.Action, in Input) float64 {
	c := in.Candidate
	s := r.strategy
	combined := c.CombinedText()
	targetN := foldSpace(target)
	combinedN := foldSpace(combined)

	var text float64
	if len(target) > 40 {
		text = 0.6*FuzzySubsequence(targetN, combinedN) +
			0.4*SequenceRatio(head(targetN, 80), head(combinedN, 200))
	} else {
		text = r.scorer.Similarity(ctx, combined, target)
	}
	if kw := 0.7 * KeywordOverlap(target, combined); kw > text {
		text = kw
	}
	if ContainsVerbatim(target, combined) && text < 0.9 {
		text = 0.9
	}

	visual := 0.0
	if c.Visible {
		visual = 0.4
		if c.Box.Y < 800 {
			visual = 1.0
		}
	}

	return s.WText*text +
		s.WVisual*visual +
		s.WStructural*structuralFit(action, c) +
		s.WComponent*componentFit(action, in.Component)
}

// scoreFused is the flat fusion used by the healing path: semantic plus
// substring, with an optional vision alignment term. Without a visual
// pass the vision weight folds into the other two.
func (r *Ranker) scoreFused(ctx context.Context, target string, in Input) float64 {
	c := in.Candidate
	s := r.strategy
	combined := c.CombinedText()

	sem := r.scorer.Similarity(ctx, combined, target)

	var sub float64
	if ContainsVerbatim(target, combined) {
		sub = 1.0
	} else {
		// Keyword fallback: at least two of the first five significant
		// target words present counts as a partial substring signal.
		tokens := SignificantTokens(target)
		if len(tokens) > 5 {
			tokens = tokens[:5]
		}
		lc := strings.ToLower(combined)
		var hits int
		for _, tok := range tokens {
			if len(tok) > 2 && strings.Contains(lc, tok) {
				hits++
			}
		}
		if hits >= 2 {
			sub = 0.7
		}
	}

	if in.HasVision {
		return s.WFusedSemantic*sem + s.WFusedSubstring*sub + s.WFusedVision*in.Vision
	}
	// Redistribute the vision weight onto the semantic term.
	return (s.WFusedSemantic+s.WFusedVision)*sem + s.WFusedSubstring*sub
}

// structuralFit scores how well the candidate's tag and role match the
// action's expected interaction shape.
func structuralFit(action schemas.Action, c schemas.ElementCandidate) float64 {
	tag := strings.ToLower(c.Tag)
	role := strings.ToLower(c.Role)
	switch action {
	case schemas.ActionClick:
		switch {
		case tag == "a" || tag == "button":
			return 1.0
		case role == "button" || role == "link":
			return 1.0
		case tag == "input" && (c.InputType == "submit" || c.InputType == "button" || c.InputType == "checkbox" || c.InputType == "radio"):
			return 1.0
		case tag == "div" || tag == "span" || tag == "li":
			return 0.6
		default:
			return 0.2
		}
	case schemas.ActionType:
		switch {
		case tag == "textarea":
			return 1.0
		case tag == "input" && c.InputType != "submit" && c.InputType != "button" && c.InputType != "checkbox" && c.InputType != "radio":
			return 1.0
		default:
			return 0
		}
	case schemas.ActionSelect:
		switch {
		case tag == "select":
			return 1.0
		case tag == "input" && (c.InputType == "radio" || c.InputType == "checkbox"):
			return 0.8
		default:
			return 0.1
		}
	default:
		return 0.5
	}
}

// componentFit scores how well the classified kind fits the action.
func componentFit(action schemas.Action, comp *schemas.SemanticComponent) float64 {
	if comp == nil {
		return 0
	}
	switch action {
	case schemas.ActionClick:
		switch comp.Kind {
		case schemas.KindProductCard, schemas.KindButton, schemas.KindNavItem:
			return 1.0
		case schemas.KindCheckbox:
			return 0.8
		case schemas.KindModal:
			return 0.5
		}
	case schemas.ActionType:
		if comp.Kind == schemas.KindFormInput {
			return 1.0
		}
	case schemas.ActionSelect:
		switch comp.Kind {
		case schemas.KindRadioGroup:
			return 1.0
		case schemas.KindFormInput:
			return 0.6
		}
	}
	return 0
}

// RegionOf infers the page region a candidate sits in from its bounding
// box and surrounding markers: header above 200px, sidebar left of 300px,
// product grid by product-ish markers, otherwise main.
func RegionOf(c schemas.ElementCandidate) string {
	if c.Box.Y < 200 {
		return "header"
	}
	if c.Box.X < 300 {
		return "sidebar"
	}
	markers := strings.ToLower(c.Locator + " " + c.AncestorText)
	if strings.Contains(markers, "product") {
		return "product_grid"
	}
	return "main"
}
