// internal/planner/planner.go

// Package planner turns a natural-language instruction into an ordered
// list of execution steps. With a model configured it asks for a JSON
// plan; without one it falls back to a deterministic heuristic so the
// engine stays usable offline.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/llmclient"
	"github.com/mkarrick/flowpilot/internal/llmutil"
)

const systemPrompt = `You are a web automation planner. Convert the user's instruction into a JSON array of steps.

Each step is an object: {"action": ..., "target": ..., "value": ...}.
Allowed actions:
  NAVIGATE - open a URL; target is the URL.
  CLICK    - click an element; target is its visible text, never a CSS selector.
  TYPE     - type into a field and submit; target describes the field, value is the text to type.
  SELECT   - choose an option; target describes the control, value is the option label.
  WAIT     - pause; target is a duration like "2s".

Keep plans short. Prefer the site's own navigation over search when the
instruction names a category. Respond with the JSON array only.`

// Planner is the LLM planning adapter.
type Planner struct {
	client llmclient.Client
	logger *zap.Logger
}

var _ schemas.Planner = (*Planner)(nil)

// New constructs a planner. client may be nil, which selects the
// heuristic fallback for every plan.
func New(client llmclient.Client, logger *zap.Logger) *Planner {
	return &Planner{
		client: client,
		logger: logger.Named("planner"),
	}
}

// Plan produces the step list for an instruction.
func (p *Planner) Plan(ctx context.Context, instruction, currentURL string) ([]schemas.ExecutionStep, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("empty instruction")
	}

	if p.client == nil {
		p.logger.Info("No model configured, using heuristic plan.")
		return heuristicPlan(instruction, currentURL), nil
	}

	userPrompt := fmt.Sprintf("Current URL: %s\nInstruction: %s", currentURL, instruction)
	raw, err := p.client.GenerateText(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	steps, err := llmutil.ParseJSONResponse[[]schemas.ExecutionStep](raw)
	if err != nil {
		return nil, fmt.Errorf("plan response was not a step array: %w", err)
	}

	cleaned := sanitize(*steps)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("model produced no usable steps")
	}
	p.logger.Info("Plan generated.", zap.Int("steps", len(cleaned)))
	return cleaned, nil
}

var validActions = map[schemas.Action]bool{
	schemas.ActionNavigate: true,
	schemas.ActionClick:    true,
	schemas.ActionType:     true,
	schemas.ActionSelect:   true,
	schemas.ActionWait:     true,
}

// sanitize normalizes action casing and drops steps the engine cannot
// execute. Models occasionally emit lowercase actions or empty targets.
func sanitize(steps []schemas.ExecutionStep) []schemas.ExecutionStep {
	out := make([]schemas.ExecutionStep, 0, len(steps))
	for _, st := range steps {
		st.Action = schemas.Action(strings.ToUpper(strings.TrimSpace(string(st.Action))))
		st.Target = strings.TrimSpace(st.Target)
		if !validActions[st.Action] {
			continue
		}
		if st.Target == "" && st.Value == "" {
			continue
		}
		out = append(out, st)
	}
	return out
}

var (
	urlPattern    = regexp.MustCompile(`https?://\S+`)
	quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// heuristicPlan is the offline fallback: navigate to any URL named in the
// instruction, then click each quoted phrase in order. An instruction
// with no quotes becomes a single click on its remaining text.
func heuristicPlan(instruction, currentURL string) []schemas.ExecutionStep {
	var steps []schemas.ExecutionStep

	rest := instruction
	if url := urlPattern.FindString(instruction); url != "" {
		url = strings.TrimRight(url, ".,;")
		if trimmed(url) != trimmed(currentURL) {
			steps = append(steps, schemas.ExecutionStep{Action: schemas.ActionNavigate, Target: url})
		}
		rest = strings.Replace(rest, url, "", 1)
	}

	matches := quotedPattern.FindAllStringSubmatch(rest, -1)
	for _, m := range matches {
		phrase := m[1]
		if phrase == "" {
			phrase = m[2]
		}
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		steps = append(steps, schemas.ExecutionStep{Action: schemas.ActionClick, Target: phrase})
	}

	if len(matches) == 0 {
		if phrase := strings.TrimSpace(rest); phrase != "" {
			steps = append(steps, schemas.ExecutionStep{Action: schemas.ActionClick, Target: phrase})
		}
	}
	return steps
}

func trimmed(url string) string {
	return strings.TrimRight(url, "/")
}
