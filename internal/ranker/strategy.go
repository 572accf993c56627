// internal/ranker/strategy.go
package ranker

import "fmt"

// StrategyKind selects one of the coexisting scoring formulas. All three
// run through the same scoring entry point; only the weight table and
// acceptance policy differ.
type StrategyKind string

const (
	// KindLegacy is the original additive weighting with a flat threshold.
	KindLegacy StrategyKind = "legacy"
	// KindProduction is the default fused weighting with tiered,
	// target-length-dependent acceptance.
	KindProduction StrategyKind = "production"
	// KindFused folds an optional vision alignment signal into a flatter
	// single-threshold fusion. Used by the self-healing path.
	KindFused StrategyKind = "fused"
)

// Strategy is a named weight table plus its acceptance policy.
type Strategy struct {
	Kind StrategyKind

	// Legacy additive weights.
	WExact     float64
	WSemantic  float64
	WRole      float64
	WAria      float64
	WVisible   float64
	WPosition  float64
	WContainer float64
	WHistory   float64

	// Production fusion weights.
	WText       float64
	WVisual     float64
	WStructural float64
	WComponent  float64

	// Fused (vision-aware) weights.
	WFusedSemantic  float64
	WFusedSubstring float64
	WFusedVision    float64

	// Acceptance policy.
	ShortThreshold  float64 // targets up to LongTargetLen chars
	LongThreshold   float64 // longer targets
	LastResortFloor float64 // absolute floor for the single-best fallback
	SmallPool       int     // pool size at or under which the floor applies
	InputThreshold  float64 // TYPE actions under the fused strategy
	LongTargetLen   int
}

// Legacy returns the original weighting: exact/aria/role heavy, flat 0.65
// acceptance.
func Legacy() Strategy {
	return Strategy{
		Kind:           KindLegacy,
		WExact:         0.35,
		WSemantic:      0.20,
		WRole:          0.10,
		WAria:          0.15,
		WVisible:       0.05,
		WPosition:      0.05,
		WContainer:     0.10,
		WHistory:       0.05,
		ShortThreshold: 0.65,
		LongThreshold:  0.65,
		LongTargetLen:  60,
	}
}

// Production returns the default weighting with tiered acceptance. Long
// targets (truncated product titles) accept at a much lower threshold
// because no single signal saturates for them.
func Production() Strategy {
	return Strategy{
		Kind:            KindProduction,
		WText:           0.50,
		WVisual:         0.20,
		WStructural:     0.20,
		WComponent:      0.10,
		ShortThreshold:  0.65,
		LongThreshold:   0.35,
		LastResortFloor: 0.40,
		SmallPool:       5,
		LongTargetLen:   60,
	}
}

// Fused returns the vision-aware weighting used by the healing path. The
// vision weight redistributes onto the remaining signals when no visual
// pass ran, keeping the weights summing to one.
func Fused() Strategy {
	return Strategy{
		Kind:            KindFused,
		WFusedSemantic:  0.55,
		WFusedSubstring: 0.30,
		WFusedVision:    0.15,
		ShortThreshold:  0.38,
		LongThreshold:   0.38,
		LastResortFloor: 0.25,
		SmallPool:       5,
		InputThreshold:  0.30,
		LongTargetLen:   60,
	}
}

// ParseStrategy maps a configuration name onto a strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch StrategyKind(name) {
	case KindLegacy:
		return Legacy(), nil
	case KindProduction, "":
		return Production(), nil
	case KindFused:
		return Fused(), nil
	default:
		return Strategy{}, fmt.Errorf("unknown ranking strategy %q", name)
	}
}

// Threshold returns the acceptance threshold for a given target length.
func (s Strategy) Threshold(targetLen int) float64 {
	if targetLen > s.LongTargetLen {
		return s.LongThreshold
	}
	return s.ShortThreshold
}

// AcceptLastResort reports whether the single best candidate may be taken
// below the tier threshold: its score must clear the absolute floor and
// either the target is long or the candidate pool is very small.
func (s Strategy) AcceptLastResort(score float64, targetLen, poolSize int) bool {
	if s.LastResortFloor <= 0 {
		return false
	}
	if score < s.LastResortFloor {
		return false
	}
	return targetLen > s.LongTargetLen || poolSize <= s.SmallPool
}
