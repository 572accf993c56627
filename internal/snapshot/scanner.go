// internal/snapshot/scanner.go

// Package snapshot lifts interactive elements out of the live page. It is
// the engine's only view of the DOM; everything downstream works on the
// candidate records it emits.
package snapshot

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// Kind selects which element class a scan extracts.
type Kind string

const (
	KindClickable Kind = "clickable"
	KindInput     Kind = "input"
)

// Options bound the cost of a scan.
type Options struct {
	MaxClickables   int
	MaxInputs       int
	ScrollSettle    time.Duration
	PositionTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxClickables <= 0 {
		o.MaxClickables = 200
	}
	if o.MaxInputs <= 0 {
		o.MaxInputs = 50
	}
	if o.ScrollSettle <= 0 {
		o.ScrollSettle = 500 * time.Millisecond
	}
	if o.PositionTimeout <= 0 {
		o.PositionTimeout = 5 * time.Second
	}
	return o
}

// Scanner extracts visible candidates, optionally sweeping scroll
// positions to force lazily rendered grids to mount.
type Scanner struct {
	opts   Options
	logger *zap.Logger
}

func NewScanner(opts Options, logger *zap.Logger) *Scanner {
	return &Scanner{
		opts:   opts.withDefaults(),
		logger: logger.Named("snapshot"),
	}
}

// Scan returns the visible candidates of the requested kind. target, when
// non-empty, prioritizes substring-matching candidates into the retained
// set if the live count exceeds the cap. sweep enables the top/middle/
// bottom scroll pass used on listing pages; scroll position is restored
// before returning.
func (s *Scanner) Scan(ctx context.Context, page schemas.Page, kind Kind, target string, sweep bool) ([]schemas.ElementCandidate, error) {
	selector := clickableSelector
	ceiling := s.opts.MaxClickables
	if kind == KindInput {
		selector = inputSelector
		ceiling = s.opts.MaxInputs
		sweep = false
	}

	var cands []schemas.ElementCandidate
	var err error
	if sweep {
		cands, err = s.sweepScan(ctx, page, selector)
	} else {
		cands, err = s.scanAt(ctx, page, selector)
	}
	if err != nil {
		return nil, err
	}

	cands = dedupe(cands)
	cands = capWithPriority(cands, ceiling, target)
	s.logger.Debug("Scan complete.",
		zap.String("kind", string(kind)),
		zap.Int("candidates", len(cands)),
		zap.Bool("sweep", sweep),
	)
	return cands, nil
}

// scanAt runs the extraction script once at the current scroll position,
// time-boxed so one hung evaluation cannot stall the run.
func (s *Scanner) scanAt(ctx context.Context, page schemas.Page, selector string) ([]schemas.ElementCandidate, error) {
	evalCtx, cancel := context.WithTimeout(ctx, s.opts.PositionTimeout)
	defer cancel()

	var out []schemas.ElementCandidate
	expr := fmt.Sprintf(extractScript, selector, 1000)
	if err := page.Evaluate(evalCtx, expr, &out); err != nil {
		return nil, fmt.Errorf("extraction script failed: %w", err)
	}
	return out, nil
}

// sweepScan visits top, middle and bottom of the document, unioning the
// visible sets. A failed position is skipped, not fatal.
func (s *Scanner) sweepScan(ctx context.Context, page schemas.Page, selector string) ([]schemas.ElementCandidate, error) {
	origin, err := page.ScrollPosition(ctx)
	if err != nil {
		origin = 0
	}
	height, err := page.PageHeight(ctx)
	if err != nil {
		return s.scanAt(ctx, page, selector)
	}
	positions := []float64{0, height / 2, math.Max(0, height-100)}

	var all []schemas.ElementCandidate
	for _, pos := range positions {
		if err := page.ScrollTo(ctx, pos); err != nil {
			s.logger.Debug("Scroll failed, skipping position.", zap.Float64("pos", pos), zap.Error(err))
			continue
		}
		if err := settle(ctx, s.opts.ScrollSettle); err != nil {
			return nil, err
		}
		cands, err := s.scanAt(ctx, page, selector)
		if err != nil {
			s.logger.Debug("Scan failed at position.", zap.Float64("pos", pos), zap.Error(err))
			continue
		}
		all = append(all, cands...)
	}

	if err := page.ScrollTo(ctx, origin); err != nil {
		s.logger.Debug("Failed to restore scroll position.", zap.Error(err))
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("scroll sweep produced no candidates")
	}
	return all, nil
}

func settle(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// dedupe drops repeat sightings of the same element across scroll
// positions, keyed by leading text plus the rounded bounding box.
func dedupe(cands []schemas.ElementCandidate) []schemas.ElementCandidate {
	type key struct {
		text       string
		x, y, w, h int
	}
	seen := make(map[key]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		text := c.Text
		if len(text) > 100 {
			text = text[:100]
		}
		k := key{
			text: text,
			x:    int(math.Round(c.Box.X)),
			y:    int(math.Round(c.Box.Y)),
			w:    int(math.Round(c.Box.Width)),
			h:    int(math.Round(c.Box.Height)),
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// capWithPriority trims to the ceiling, keeping target-substring matches
// ahead of an arbitrary fill.
func capWithPriority(cands []schemas.ElementCandidate, limit int, target string) []schemas.ElementCandidate {
	if len(cands) <= limit {
		return cands
	}
	t := strings.ToLower(strings.TrimSpace(target))
	if t == "" {
		return cands[:limit]
	}

	out := make([]schemas.ElementCandidate, 0, limit)
	taken := make(map[int]bool, limit)
	for i, c := range cands {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(c.CombinedText()), t) {
			out = append(out, c)
			taken[i] = true
		}
	}
	for i, c := range cands {
		if len(out) >= limit {
			break
		}
		if !taken[i] {
			out = append(out, c)
		}
	}
	return out
}
