// Package learning implements the weight update rules of a field coupling.
// Weight matrices are laid out [input][output].
package learning

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	RuleHebbian         = "hebbian"
	RuleDeltaWidrowHoff = "delta_widrow_hoff"
	RuleDeltaKroghHertz = "delta_krogh_hertz"

	DefaultDecay        = 0.001
	DefaultLearningRate = 0.01
)

var (
	ErrUnsupportedRule   = errors.New("unsupported learning rule")
	ErrDimensionMismatch = errors.New("learning dimension mismatch")
)

func NormalizeRuleName(rule string) string {
	normalized := strings.ToLower(strings.TrimSpace(rule))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "", RuleHebbian, "hebb":
		return RuleHebbian
	case RuleDeltaWidrowHoff, "widrow_hoff", "delta", "lms":
		return RuleDeltaWidrowHoff
	case RuleDeltaKroghHertz, "krogh_hertz":
		return RuleDeltaKroghHertz
	default:
		return normalized
	}
}

func ValidateRule(rule string) error {
	switch NormalizeRuleName(rule) {
	case RuleHebbian, RuleDeltaWidrowHoff, RuleDeltaKroghHertz:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, rule)
	}
}

type Config struct {
	Rate float64
	// Decay is the weight decay of the Krogh-Hertz rule; zero selects DefaultDecay.
	Decay float64
}

// Apply updates w in place from one input/target presentation.
//
//	hebbian:           W = rate * input ⊗ target
//	delta_widrow_hoff: W += rate * input ⊗ (target - Wᵀ input)
//	delta_krogh_hertz: W = (1 - rate*decay) W + rate * input ⊗ (target - Wᵀ input)
func Apply(rule string, w *mat.Dense, input, target []float64, cfg Config) error {
	if w == nil {
		return fmt.Errorf("%w: weight matrix is required", ErrDimensionMismatch)
	}
	rows, cols := w.Dims()
	if len(input) != rows || len(target) != cols {
		return fmt.Errorf("%w: weights %dx%d, input %d, target %d",
			ErrDimensionMismatch, rows, cols, len(input), len(target))
	}

	x := mat.NewVecDense(rows, append([]float64(nil), input...))
	y := mat.NewVecDense(cols, append([]float64(nil), target...))

	switch normalized := NormalizeRuleName(rule); normalized {
	case RuleHebbian:
		w.Outer(cfg.Rate, x, y)
	case RuleDeltaWidrowHoff:
		w.Add(w, deltaStep(w, x, y, cfg.Rate))
	case RuleDeltaKroghHertz:
		decay := cfg.Decay
		if decay == 0 {
			decay = DefaultDecay
		}
		delta := deltaStep(w, x, y, cfg.Rate)
		w.Scale(1-cfg.Rate*decay, w)
		w.Add(w, delta)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRule, rule)
	}
	return nil
}

// deltaStep is rate * x ⊗ (y - Wᵀx).
func deltaStep(w *mat.Dense, x, y *mat.VecDense, rate float64) *mat.Dense {
	var recalled mat.VecDense
	recalled.MulVec(w.T(), x)

	var residual mat.VecDense
	residual.SubVec(y, &recalled)

	var delta mat.Dense
	delta.Outer(rate, x, &residual)
	return &delta
}
