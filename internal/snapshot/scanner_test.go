// internal/snapshot/scanner_test.go
package snapshot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/pagetest"
)

func cand(text string, y float64) schemas.ElementCandidate {
	return schemas.ElementCandidate{
		Tag: "a", Text: text, Visible: true,
		Locator: "#" + text,
		Box:     schemas.BoundingBox{X: 10, Y: y, Width: 100, Height: 30},
	}
}

func stubEval(pages ...[]schemas.ElementCandidate) func(ctx context.Context, expr string, out any) error {
	var call int
	return func(ctx context.Context, expr string, out any) error {
		res := pages[len(pages)-1]
		if call < len(pages) {
			res = pages[call]
		}
		call++
		*(out.(*[]schemas.ElementCandidate)) = res
		return nil
	}
}

func TestScanSinglePosition(t *testing.T) {
	page := &pagetest.FakePage{
		EvaluateFunc: stubEval([]schemas.ElementCandidate{
			cand("Home", 10), cand("Cart", 20),
		}),
	}
	s := NewScanner(Options{}, zap.NewNop())

	got, err := s.Scan(context.Background(), page, KindClickable, "", false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Home", got[0].Text)
	assert.Zero(t, page.CallCount("scroll"))
}

func TestScanSweepUnionsPositionsAndRestoresScroll(t *testing.T) {
	page := &pagetest.FakePage{
		Height:  2000,
		ScrollY: 340,
		EvaluateFunc: stubEval(
			[]schemas.ElementCandidate{cand("Top link", 10)},
			[]schemas.ElementCandidate{cand("Top link", 10), cand("Mid product", 900)},
			[]schemas.ElementCandidate{cand("Footer link", 1900)},
		),
	}
	s := NewScanner(Options{ScrollSettle: time.Millisecond}, zap.NewNop())

	got, err := s.Scan(context.Background(), page, KindClickable, "", true)
	require.NoError(t, err)

	texts := make([]string, len(got))
	for i, c := range got {
		texts[i] = c.Text
	}
	assert.Equal(t, []string{"Top link", "Mid product", "Footer link"}, texts)

	// Sweep positions then restore to the original offset.
	assert.Equal(t, 4, page.CallCount("scroll"))
	assert.Equal(t, "scroll 340", page.Calls[len(page.Calls)-1])
}

func TestScanInputsNeverSweep(t *testing.T) {
	page := &pagetest.FakePage{
		Height: 5000,
		EvaluateFunc: stubEval([]schemas.ElementCandidate{
			{Tag: "input", InputType: "text", Placeholder: "Search", Visible: true, Locator: "#q"},
		}),
	}
	s := NewScanner(Options{ScrollSettle: time.Millisecond}, zap.NewNop())

	got, err := s.Scan(context.Background(), page, KindInput, "", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, page.CallCount("scroll"))
}

func TestScanCapPrioritizesTargetSubstring(t *testing.T) {
	var many []schemas.ElementCandidate
	for i := 0; i < 30; i++ {
		many = append(many, cand(fmt.Sprintf("Filler %d", i), float64(i*40)))
	}
	many = append(many, cand("Bose headphones deal", 1200))

	page := &pagetest.FakePage{EvaluateFunc: stubEval(many)}
	s := NewScanner(Options{MaxClickables: 10}, zap.NewNop())

	got, err := s.Scan(context.Background(), page, KindClickable, "headphones", false)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "Bose headphones deal", got[0].Text)
}

func TestDedupeByTextAndBox(t *testing.T) {
	a := cand("Same", 100)
	b := cand("Same", 100)
	c := cand("Same", 500)
	got := dedupe([]schemas.ElementCandidate{a, b, c})
	assert.Len(t, got, 2)
}

func TestCapWithPriorityNoTarget(t *testing.T) {
	cands := []schemas.ElementCandidate{cand("a", 0), cand("b", 0), cand("c", 0)}
	got := capWithPriority(cands, 2, "")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Text)
}

func TestScanSweepFailuresDegradeToOtherPositions(t *testing.T) {
	var call int
	page := &pagetest.FakePage{
		Height: 2000,
		EvaluateFunc: func(ctx context.Context, expr string, out any) error {
			call++
			if call == 1 {
				return fmt.Errorf("evaluation timed out")
			}
			*(out.(*[]schemas.ElementCandidate)) = []schemas.ElementCandidate{cand("Survivor", 900)}
			return nil
		},
	}
	s := NewScanner(Options{ScrollSettle: time.Millisecond}, zap.NewNop())

	got, err := s.Scan(context.Background(), page, KindClickable, "", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Survivor", got[0].Text)
}
