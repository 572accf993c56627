// internal/recovery/advisor.go

// Package recovery proposes what to try after a failed step: a rephrased
// target chosen from what is actually on the page, or a wait when the
// failure smells like slow rendering.
package recovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mkarrick/flowpilot/api/schemas"
	"github.com/mkarrick/flowpilot/internal/llmclient"
	"github.com/mkarrick/flowpilot/internal/llmutil"
)

const systemPrompt = `You are a web automation recovery advisor. A step failed and you suggest how to retry it.

Respond with a JSON array of suggestions, most promising first. Each is an object with either or both fields:
  "alternative_target" - a replacement target phrase, chosen from the visible texts when provided.
  "wait_seconds"       - seconds to wait before retrying, when the page likely had not finished loading.

Suggest at most three. Respond with the JSON array only.`

const maxVisibleTexts = 40

// Advisor is the LLM recovery adapter.
type Advisor struct {
	client llmclient.Client
	logger *zap.Logger
}

var _ schemas.RecoveryAdvisor = (*Advisor)(nil)

// New constructs an advisor. client may be nil, which makes every call
// return the deterministic wait-and-retry suggestion.
func New(client llmclient.Client, logger *zap.Logger) *Advisor {
	return &Advisor{
		client: client,
		logger: logger.Named("recovery"),
	}
}

// fallback is what a modelless advisor always suggests: give the page a
// moment and try the same step again.
func fallback() []schemas.RecoverySuggestion {
	return []schemas.RecoverySuggestion{{WaitSeconds: 2}}
}

// SuggestRecovery returns retry suggestions for a failed step. Model
// trouble degrades to the wait-and-retry fallback rather than erroring,
// since the caller is already in a failure path.
func (a *Advisor) SuggestRecovery(ctx context.Context, action schemas.Action, target, errMsg string, availableTexts []string, pageContext string) ([]schemas.RecoverySuggestion, error) {
	if a.client == nil {
		return fallback(), nil
	}

	if len(availableTexts) > maxVisibleTexts {
		availableTexts = availableTexts[:maxVisibleTexts]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Failed step: %s %q\n", action, target)
	fmt.Fprintf(&b, "Error: %s\n", errMsg)
	if pageContext != "" {
		fmt.Fprintf(&b, "Page: %s\n", pageContext)
	}
	if len(availableTexts) > 0 {
		fmt.Fprintf(&b, "Visible texts:\n")
		for _, txt := range availableTexts {
			fmt.Fprintf(&b, "- %s\n", txt)
		}
	}

	raw, err := a.client.GenerateText(ctx, systemPrompt, b.String(), true)
	if err != nil {
		a.logger.Warn("Recovery suggestion request failed, falling back to wait.", zap.Error(err))
		return fallback(), nil
	}

	suggestions, err := llmutil.ParseJSONResponse[[]schemas.RecoverySuggestion](raw)
	if err != nil {
		a.logger.Warn("Recovery response was not a suggestion array, falling back to wait.", zap.Error(err))
		return fallback(), nil
	}

	cleaned := sanitize(*suggestions)
	if len(cleaned) == 0 {
		return fallback(), nil
	}
	return cleaned, nil
}

// sanitize drops empty suggestions and clamps waits to something that
// cannot stall a run.
func sanitize(suggestions []schemas.RecoverySuggestion) []schemas.RecoverySuggestion {
	out := make([]schemas.RecoverySuggestion, 0, len(suggestions))
	for _, s := range suggestions {
		s.AlternativeTarget = strings.TrimSpace(s.AlternativeTarget)
		if s.WaitSeconds < 0 {
			s.WaitSeconds = 0
		}
		if s.WaitSeconds > 30 {
			s.WaitSeconds = 30
		}
		if s.AlternativeTarget == "" && s.WaitSeconds == 0 {
			continue
		}
		out = append(out, s)
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
