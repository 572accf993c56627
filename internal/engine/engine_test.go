// internal/engine/engine_test.go
package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/component"
	"github.com/mkarrick/flowpilot/internal/flowcache"
	"github.com/mkarrick/flowpilot/internal/healing"
	"github.com/mkarrick/flowpilot/internal/pagestate"
	"github.com/mkarrick/flowpilot/internal/pagetest"
	"github.com/mkarrick/flowpilot/internal/ranker"
	"github.com/mkarrick/flowpilot/internal/resolve"
	"github.com/mkarrick/flowpilot/internal/semantic"
	"github.com/mkarrick/flowpilot/internal/snapshot"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Fakes --

type scenarioPage struct {
	pagetest.FakePage
	onClick func(p *scenarioPage, locator string)
}

func (p *scenarioPage) Click(ctx context.Context, locator string) error {
	if err := p.FakePage.Click(ctx, locator); err != nil {
		return err
	}
	if p.onClick != nil {
		p.onClick(p, locator)
	}
	return nil
}

type fakeBrowser struct {
	page schemas.Page
	err  error
}

func (b *fakeBrowser) NewPage(ctx context.Context) (schemas.Page, error) { return b.page, b.err }
func (b *fakeBrowser) Shutdown(ctx context.Context) error               { return nil }

type staticPlanner struct {
	steps []schemas.ExecutionStep
	err   error
}

func (p *staticPlanner) Plan(ctx context.Context, instruction, currentURL string) ([]schemas.ExecutionStep, error) {
	return p.steps, p.err
}

type scriptedAdvisor struct {
	suggestions []schemas.RecoverySuggestion
	calls       int
	texts       []string
}

func (a *scriptedAdvisor) SuggestRecovery(ctx context.Context, action schemas.Action, target, errMsg string, availableTexts []string, pageContext string) ([]schemas.RecoverySuggestion, error) {
	a.calls++
	a.texts = availableTexts
	return a.suggestions, nil
}

// clickEval serves the scanner's extraction script with the given
// clickables and every component script with nothing.
func clickEval(cands []schemas.ElementCandidate) func(ctx context.Context, expr string, out any) error {
	payload, err := json.MarshalToString(cands)
	if err != nil {
		panic(err)
	}
	return func(ctx context.Context, expr string, out any) error {
		if strings.Contains(expr, "ceiling") {
			return json.UnmarshalFromString(payload, out)
		}
		return json.UnmarshalFromString("[]", out)
	}
}

func testChain() (*resolve.Chain, *ranker.History) {
	logger := zap.NewNop()
	scorer := semantic.NewScorer(nil, 64, logger)
	history := ranker.NewHistory()
	deps := resolve.Deps{
		Scanner:  snapshot.NewScanner(snapshot.Options{ScrollSettle: time.Millisecond}, logger),
		Registry: component.NewRegistry(logger),
		Ranker:   ranker.New(scorer, ranker.Production(), history, logger),
		Fused:    ranker.New(scorer, ranker.Fused(), history, logger),
		Healer:   healing.New(logger),
		Logger:   logger,
	}
	return resolve.DefaultChain(deps), history
}

func newEngine(page schemas.Page, planner schemas.Planner, advisor schemas.RecoveryAdvisor, optimizer *flowcache.Optimizer, cfg Config) *Engine {
	logger := zap.NewNop()
	chain, history := testChain()
	return New(
		&fakeBrowser{page: page},
		planner,
		advisor,
		chain,
		optimizer,
		nil,
		pagestate.NewCapturer(logger),
		history,
		cfg,
		logger,
	)
}

func buyButton() schemas.ElementCandidate {
	return schemas.ElementCandidate{
		Tag: "button", Text: "Add to Cart", Locator: "#buy", Visible: true,
		Box: schemas.BoundingBox{X: 400, Y: 500, Width: 140, Height: 40},
	}
}

// -- Scenarios --

func TestRunHappyPath(t *testing.T) {
	page := &scenarioPage{
		FakePage: pagetest.FakePage{
			HTML:         "<html><body><h1>Blue Widget</h1></body></html>",
			EvaluateFunc: clickEval([]schemas.ElementCandidate{buyButton()}),
		},
		onClick: func(p *scenarioPage, locator string) {
			p.HTML = "<html><body><h1>Blue Widget</h1><div>Added to cart</div></body></html>"
		},
	}
	planner := &staticPlanner{steps: []schemas.ExecutionStep{
		{Action: schemas.ActionNavigate, Target: "https://shop.example/p/blue-widget"},
		{Action: schemas.ActionClick, Target: "Add to Cart"},
	}}
	e := newEngine(page, planner, nil, nil, Config{})

	report := e.Run(context.Background(), "buy the blue widget")
	require.NotNil(t, report)
	require.Empty(t, report.Error)
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.StepsExecuted)
	require.Len(t, report.Results, 2)
	assert.True(t, page.Closed)

	wantSteps := planner.steps
	if diff := cmp.Diff(wantSteps, report.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

// A click that changes nothing observable must not be reported as success.
func TestRunNoFalseSuccess(t *testing.T) {
	page := &scenarioPage{
		FakePage: pagetest.FakePage{
			CurrentURL:   "https://shop.example/p/blue-widget",
			HTML:         "<html><body><h1>Blue Widget</h1></body></html>",
			EvaluateFunc: clickEval([]schemas.ElementCandidate{buyButton()}),
		},
		// onClick nil: the DOM never changes.
	}
	planner := &staticPlanner{steps: []schemas.ExecutionStep{
		{Action: schemas.ActionClick, Target: "Add to Cart"},
	}}
	e := newEngine(page, planner, nil, nil, Config{MaxRecoveryAttempts: 1})

	report := e.Run(context.Background(), "buy it")
	assert.False(t, report.Success)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Success)
	assert.Contains(t, report.Results[0].Error, "no observable effect")
	assert.Contains(t, report.Error, "exhausted recovery after 2 attempts")
}

func TestRunExhaustedRecoveryTerminates(t *testing.T) {
	page := &scenarioPage{
		FakePage: pagetest.FakePage{
			CurrentURL:   "https://shop.example/p/blue-widget",
			HTML:         "<html><body>widget</body></html>",
			EvaluateFunc: clickEval([]schemas.ElementCandidate{buyButton()}),
			FailActions:  map[string]error{"click #buy": fmt.Errorf("element detached")},
		},
	}
	planner := &staticPlanner{steps: []schemas.ExecutionStep{
		{Action: schemas.ActionClick, Target: "Add to Cart"},
		{Action: schemas.ActionClick, Target: "Checkout"},
	}}
	advisor := &scriptedAdvisor{}
	e := newEngine(page, planner, advisor, nil, Config{MaxRecoveryAttempts: 1})

	report := e.Run(context.Background(), "buy it")
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "step 1 exhausted recovery after 2 attempts")
	// Cap of one means exactly one recovery consultation before giving up.
	assert.Equal(t, 1, advisor.calls)
	assert.Equal(t, []string{"Add to Cart"}, advisor.texts)
	assert.Equal(t, 0, report.StepsExecuted)
}

func TestRunRecoveryWithAlternativeTarget(t *testing.T) {
	page := &scenarioPage{
		FakePage: pagetest.FakePage{
			CurrentURL: "https://shop.example/p/blue-widget",
			HTML:       "<html><body>widget</body></html>",
			EvaluateFunc: clickEval([]schemas.ElementCandidate{{
				Tag: "button", Text: "Buy Now", Locator: "#buynow", Visible: true,
				Box: schemas.BoundingBox{X: 400, Y: 900, Width: 140, Height: 40},
			}}),
		},
		onClick: func(p *scenarioPage, locator string) {
			p.HTML = "<html><body>order started</body></html>"
		},
	}
	planner := &staticPlanner{steps: []schemas.ExecutionStep{
		{Action: schemas.ActionClick, Target: "Purchase immediately please"},
	}}
	advisor := &scriptedAdvisor{suggestions: []schemas.RecoverySuggestion{
		{AlternativeTarget: "Buy Now"},
	}}
	e := newEngine(page, planner, advisor, nil, Config{MaxRecoveryAttempts: 3})

	report := e.Run(context.Background(), "buy it")
	require.Empty(t, report.Error)
	assert.True(t, report.Success)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 2, report.Results[0].Attempts)
	assert.Equal(t, 1, advisor.calls)
	assert.Equal(t, []string{"Buy Now"}, advisor.texts)
}

// A recorded three-step fragment replays as one navigation covering three
// plan steps.
func TestRunFragmentReplaySkipsSteps(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing()
	store, err := flowcache.NewStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	stepsJSON := `[
        {"action":"CLICK","target":"All Products"},
        {"action":"CLICK","target":"Widgets"},
        {"action":"CLICK","target":"Blue Widget"}
    ]`
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "site", "start_url", "end_url", "steps", "success_count", "created_at", "updated_at",
	}).AddRow(
		"0b6f2b1e-0000-0000-0000-000000000001", "shop.example",
		"https://shop.example/", "https://shop.example/p/blue-widget",
		[]byte(stepsJSON), 5, now, now,
	)
	mockPool.ExpectQuery("SELECT id, site, start_url").WithArgs("shop.example").WillReturnRows(rows)

	page := &scenarioPage{
		FakePage: pagetest.FakePage{
			CurrentURL: "https://shop.example/",
			HTML:       "<html><body>home</body></html>",
		},
	}
	planner := &staticPlanner{steps: []schemas.ExecutionStep{
		{Action: schemas.ActionClick, Target: "All Products"},
		{Action: schemas.ActionClick, Target: "Widgets"},
		{Action: schemas.ActionClick, Target: "Blue Widget"},
	}}
	optimizer := flowcache.NewOptimizer(store, nil, nil, zap.NewNop())
	e := newEngine(page, planner, nil, optimizer, Config{})

	report := e.Run(context.Background(), "open the blue widget")
	require.Empty(t, report.Error)
	assert.True(t, report.Success)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 3, report.Results[0].Skipped)
	assert.Equal(t, 3, report.StepsExecuted)
	assert.Equal(t, "https://shop.example/p/blue-widget", page.CurrentURL)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRunSessionFailureSkipsToCleanup(t *testing.T) {
	e := New(
		&fakeBrowser{err: fmt.Errorf("chrome not found")},
		&staticPlanner{},
		nil, nil, nil, nil,
		pagestate.NewCapturer(zap.NewNop()),
		ranker.NewHistory(),
		Config{},
		zap.NewNop(),
	)
	report := e.Run(context.Background(), "anything")
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "session acquisition failed")
	assert.Empty(t, report.Results)
}

func TestRunEmptyPlanIsError(t *testing.T) {
	page := &scenarioPage{}
	e := newEngine(page, &staticPlanner{steps: nil}, nil, nil, Config{})
	report := e.Run(context.Background(), "do nothing")
	assert.False(t, report.Success)
	assert.Contains(t, report.Error, "no steps")
}

func TestRunWaitStepAlwaysSucceeds(t *testing.T) {
	page := &scenarioPage{
		FakePage: pagetest.FakePage{
			CurrentURL: "https://shop.example/",
			HTML:       "<html><body>home</body></html>",
		},
	}
	planner := &staticPlanner{steps: []schemas.ExecutionStep{
		{Action: schemas.ActionWait, Target: "0.01s"},
	}}
	e := newEngine(page, planner, nil, nil, Config{})

	report := e.Run(context.Background(), "wait a moment")
	require.Empty(t, report.Error)
	assert.True(t, report.Success)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Matched, "waited")
}
