// internal/flowcache/dedup.go
package flowcache

import (
	"regexp"
	"strconv"

	"github.com/mkarrick/flowpilot/api/schemas"
)

// waitPattern pulls the duration out of a WAIT step's target or value,
// accepting "2", "2s", "1.5 sec", "3 seconds".
var waitPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:s|sec|seconds?)?`)

// ParseWaitSeconds extracts the wait duration from a step. An
// unparseable but non-empty spec defaults to one second so a bare WAIT
// still waits.
func ParseWaitSeconds(step schemas.ExecutionStep) float64 {
	for _, src := range []string{step.Target, step.Value} {
		m := waitPattern.FindStringSubmatch(src)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return secs
	}
	return 1
}

// DedupedStep is a normalized step plus how many original steps it spans,
// so skip counts can be reported against the original plan.
type DedupedStep struct {
	Step schemas.ExecutionStep
	Span int
}

// Dedup canonicalizes an upcoming step window before fragment matching:
// consecutive WAITs sum into one, zero-length waits drop out, and
// consecutive CLICKs on the same normalized target collapse to one.
func Dedup(steps []schemas.ExecutionStep) []DedupedStep {
	var out []DedupedStep
	i := 0
	for i < len(steps) {
		step := steps[i]
		switch step.Action {
		case schemas.ActionWait:
			var total float64
			span := 0
			for i < len(steps) && steps[i].Action == schemas.ActionWait {
				total += ParseWaitSeconds(steps[i])
				span++
				i++
			}
			if total <= 0 {
				continue
			}
			out = append(out, DedupedStep{
				Step: schemas.ExecutionStep{
					Action: schemas.ActionWait,
					Target: strconv.FormatFloat(total, 'f', -1, 64) + "s",
				},
				Span: span,
			})
		case schemas.ActionClick:
			key := NormalizeStep(step.Action, step.Target)
			span := 1
			i++
			for i < len(steps) && steps[i].Action == schemas.ActionClick &&
				NormalizeStep(steps[i].Action, steps[i].Target) == key {
				span++
				i++
			}
			out = append(out, DedupedStep{Step: step, Span: span})
		default:
			out = append(out, DedupedStep{Step: step, Span: 1})
			i++
		}
	}
	return out
}
