// internal/engine/engine.go

// Package engine is the run loop: INITIALIZE -> PLAN -> EXECUTE ->
// VALIDATE, with bounded per-step recovery, shortcut replay through the
// flow cache, and a final cleanup that persists what the run learned.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/flowcache"
	"github.com/mkarrick/flowpilot/internal/pagestate"
	"github.com/mkarrick/flowpilot/internal/ranker"
	"github.com/mkarrick/flowpilot/internal/resolve"
)

// Config bounds one run.
type Config struct {
	StartURL            string
	MaxRecoveryAttempts int
	StepTimeout         time.Duration
	NavigationTimeout   time.Duration
	PostActionWait      time.Duration
	RecordFragments     bool
}

func (c Config) withDefaults() Config {
	if c.MaxRecoveryAttempts <= 0 {
		c.MaxRecoveryAttempts = 3
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 30 * time.Second
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	return c
}

// Engine drives one instruction end to end.
type Engine struct {
	browser   schemas.Browser
	planner   schemas.Planner
	advisor   schemas.RecoveryAdvisor
	chain     *resolve.Chain
	optimizer *flowcache.Optimizer
	recorder  *flowcache.Recorder
	capturer  *pagestate.Capturer
	history   *ranker.History
	cfg       Config
	logger    *zap.Logger
}

// New assembles an engine. recorder may be nil when no store is
// configured; advisor may be nil to disable recovery suggestions.
func New(
	browser schemas.Browser,
	planner schemas.Planner,
	advisor schemas.RecoveryAdvisor,
	chain *resolve.Chain,
	optimizer *flowcache.Optimizer,
	recorder *flowcache.Recorder,
	capturer *pagestate.Capturer,
	history *ranker.History,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		browser:   browser,
		planner:   planner,
		advisor:   advisor,
		chain:     chain,
		optimizer: optimizer,
		recorder:  recorder,
		capturer:  capturer,
		history:   history,
		cfg:       cfg.withDefaults(),
		logger:    logger.Named("engine"),
	}
}

// Run executes the instruction and always returns a report; every fault
// ends up structured inside it rather than escaping.
func (e *Engine) Run(ctx context.Context, instruction string) *schemas.RunReport {
	report := &schemas.RunReport{
		RunID:       uuid.NewString(),
		Instruction: instruction,
		StartedAt:   time.Now().UTC(),
	}
	defer func() {
		report.FinishedAt = time.Now().UTC()
	}()

	// INITIALIZE
	page, err := e.browser.NewPage(ctx)
	if err != nil {
		report.Error = fmt.Sprintf("session acquisition failed: %v", err)
		return report
	}
	defer func() {
		if cerr := page.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Warn("Page close failed.", zap.Error(cerr))
		}
	}()

	if e.cfg.StartURL != "" {
		navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
		err = page.Navigate(navCtx, e.cfg.StartURL)
		cancel()
		if err != nil {
			report.Error = fmt.Sprintf("start navigation failed: %v", err)
			return report
		}
	}
	flowStart, _ := page.URL(ctx)

	// PLAN
	steps, err := e.planner.Plan(ctx, instruction, flowStart)
	if err != nil {
		report.Error = fmt.Sprintf("planning failed: %v", err)
		return report
	}
	if len(steps) == 0 {
		report.Error = "planner produced no steps"
		return report
	}
	report.Steps = steps
	report.TotalSteps = len(steps)
	e.logger.Info("Plan ready.", zap.Int("steps", len(steps)), zap.String("run_id", report.RunID))

	// EXECUTE / VALIDATE loop
	cursor := 0
	attempts := 0
	for cursor < len(steps) {
		if ctx.Err() != nil {
			report.Error = fmt.Sprintf("run cancelled: %v", ctx.Err())
			break
		}

		result := e.executeWindow(ctx, page, steps, cursor)
		result.Attempts = attempts + 1

		if result.Success {
			report.Results = append(report.Results, result)
			advance := 1
			if result.Skipped > 0 {
				advance = result.Skipped
			}
			cursor += advance
			report.StepsExecuted = cursor
			attempts = 0
			continue
		}

		attempts++
		if attempts > e.cfg.MaxRecoveryAttempts {
			report.Results = append(report.Results, result)
			report.Error = fmt.Sprintf("step %d exhausted recovery after %d attempts: %s", cursor+1, attempts, result.Error)
			break
		}
		e.recover(ctx, page, steps, cursor, result)
	}

	report.Success = report.Error == "" &&
		report.TotalSteps > 0 &&
		cursor >= report.TotalSteps &&
		allSucceeded(report.Results)

	// CLEANUP: persist solved prefixes regardless of how the run ended.
	if e.cfg.RecordFragments && e.recorder != nil && flowStart != "" {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if rerr := e.recorder.Record(recCtx, flowStart, report.Results); rerr != nil {
			e.logger.Warn("Fragment recording failed.", zap.Error(rerr))
		}
		cancel()
	}
	return report
}

func allSucceeded(results []schemas.ActionResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// executeWindow runs the step at cursor, consulting the flow cache first.
func (e *Engine) executeWindow(ctx context.Context, page schemas.Page, steps []schemas.ExecutionStep, cursor int) schemas.ActionResult {
	step := steps[cursor]
	before, err := e.capturer.Capture(ctx, page)
	if err != nil {
		return failResult(step, before, fmt.Sprintf("state capture failed: %v", err))
	}
	pageType := pagestate.ClassifyPage(before.URL, before.Title)

	if e.optimizer != nil {
		shortcut, oerr := e.optimizer.Optimize(ctx, before.URL, pageType, steps[cursor:])
		if oerr == nil && shortcut != nil {
			return e.replayShortcut(ctx, page, step, before, shortcut)
		}
	}
	return e.executeStep(ctx, page, step, before, pageType)
}

// replayShortcut jumps straight to the shortcut's destination and marks
// the covered steps as skipped.
func (e *Engine) replayShortcut(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, before schemas.PageState, sc *flowcache.Shortcut) schemas.ActionResult {
	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
	defer cancel()

	if err := page.Navigate(navCtx, sc.Navigate); err != nil {
		return failResult(step, before, fmt.Sprintf("shortcut navigation failed: %v", err))
	}
	e.settle(ctx)
	after, _ := e.capturer.Capture(ctx, page)
	if !pagestate.ValidTransition(before, after) {
		return failResult(step, before, "shortcut produced no observable transition")
	}
	return schemas.ActionResult{
		Step:    step,
		Success: true,
		Matched: string(sc.Kind) + " shortcut",
		Before:  before,
		After:   after,
		Skipped: sc.Skip,
	}
}

// executeStep resolves and performs one step, then validates its effect.
func (e *Engine) executeStep(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, before schemas.PageState, pageType schemas.PageType) schemas.ActionResult {
	stepCtx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	switch step.Action {
	case schemas.ActionNavigate:
		dest := step.Target
		if dest == "" {
			dest = step.Value
		}
		if err := page.Navigate(stepCtx, dest); err != nil {
			return failResult(step, before, fmt.Sprintf("navigation failed: %v", err))
		}
		e.settle(ctx)
		after, _ := e.capturer.Capture(ctx, page)
		if !pagestate.ValidNavigation(before, after) {
			return failResult(step, before, fmt.Sprintf("navigation to %s did not change URL", dest))
		}
		return okResult(step, dest, before, after)

	case schemas.ActionWait:
		secs := flowcache.ParseWaitSeconds(step)
		if err := sleepCtx(stepCtx, time.Duration(secs*float64(time.Second))); err != nil {
			return failResult(step, before, fmt.Sprintf("wait interrupted: %v", err))
		}
		after, _ := e.capturer.Capture(ctx, page)
		return okResult(step, fmt.Sprintf("waited %.1fs", secs), before, after)

	default:
		res, err := e.chain.Resolve(stepCtx, page, step, pageType)
		if err != nil {
			return failResult(step, before, fmt.Sprintf("resolution failed: %v", err))
		}

		matched, err := e.act(stepCtx, page, step, res)
		if err != nil {
			return failResult(step, before, fmt.Sprintf("action failed: %v", err))
		}
		e.settle(ctx)
		after, _ := e.capturer.Capture(ctx, page)
		if !pagestate.ValidTransition(before, after) {
			return failResult(step, before, fmt.Sprintf("no observable effect after %s on %q", step.Action, matched.Descriptor()))
		}
		e.history.RecordSuccess(step.Action, matched)
		return okResult(step, matched.Descriptor(), before, after)
	}
}

// act performs the step on the resolved element, falling back through the
// ranked alternates when acting on a handle errors out.
func (e *Engine) act(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, res *resolve.Resolution) (schemas.ElementCandidate, error) {
	tries := append([]schemas.RankedCandidate{res.Best}, res.Alternates...)
	var lastErr error
	for i, rc := range tries {
		cand := rc.Candidate
		if err := e.perform(ctx, page, step, cand); err != nil {
			lastErr = err
			e.logger.Debug("Action on candidate failed, trying next ranked.",
				zap.Int("attempt", i+1),
				zap.String("candidate", cand.Descriptor()),
				zap.Error(err),
			)
			continue
		}
		return cand, nil
	}
	return schemas.ElementCandidate{}, lastErr
}

func (e *Engine) perform(ctx context.Context, page schemas.Page, step schemas.ExecutionStep, cand schemas.ElementCandidate) error {
	loc := cand.Locator
	switch step.Action {
	case schemas.ActionClick:
		if cand.InputType == "checkbox" {
			return page.Check(ctx, loc)
		}
		return page.Click(ctx, loc)
	case schemas.ActionType:
		if err := page.Fill(ctx, loc, step.Value); err != nil {
			return err
		}
		return page.Press(ctx, loc, "Enter")
	case schemas.ActionSelect:
		label := step.Value
		if label == "" {
			label = step.Target
		}
		return page.SelectOption(ctx, loc, label)
	default:
		return fmt.Errorf("unsupported action %s", step.Action)
	}
}

// maxRecoveryTexts bounds how much of the page the advisor prompt sees.
const maxRecoveryTexts = 50

// recover applies the advisor's first suggestion before the retry: an
// optional wait, an optional rephrased target.
func (e *Engine) recover(ctx context.Context, page schemas.Page, steps []schemas.ExecutionStep, cursor int, failed schemas.ActionResult) {
	step := steps[cursor]
	e.logger.Warn("Step failed, attempting recovery.",
		zap.Int("step", cursor+1),
		zap.String("target", step.Target),
		zap.String("error", failed.Error),
	)
	if e.advisor == nil {
		e.settle(ctx)
		return
	}

	texts := e.chain.VisibleTexts(ctx, page, maxRecoveryTexts)
	pageContext := failed.Before.URL + " " + failed.Before.Title
	suggestions, err := e.advisor.SuggestRecovery(ctx, step.Action, step.Target, failed.Error, texts, pageContext)
	if err != nil || len(suggestions) == 0 {
		e.settle(ctx)
		return
	}
	s := suggestions[0]
	if s.WaitSeconds > 0 {
		_ = sleepCtx(ctx, time.Duration(s.WaitSeconds*float64(time.Second)))
	}
	if s.AlternativeTarget != "" && s.AlternativeTarget != step.Target {
		e.logger.Info("Retrying with alternative target.",
			zap.String("was", step.Target),
			zap.String("now", s.AlternativeTarget),
		)
		steps[cursor].Target = s.AlternativeTarget
	}
}

func (e *Engine) settle(ctx context.Context) {
	if e.cfg.PostActionWait > 0 {
		_ = sleepCtx(ctx, e.cfg.PostActionWait)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func okResult(step schemas.ExecutionStep, matched string, before, after schemas.PageState) schemas.ActionResult {
	return schemas.ActionResult{
		Step:    step,
		Success: true,
		Matched: matched,
		Before:  before,
		After:   after,
	}
}

func failResult(step schemas.ExecutionStep, before schemas.PageState, msg string) schemas.ActionResult {
	return schemas.ActionResult{
		Step:   step,
		Before: before,
		Error:  msg,
	}
}
