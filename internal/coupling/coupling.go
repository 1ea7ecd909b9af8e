// Package coupling implements the weighted projections between fields: a
// trainable coupling whose matrix is learned and persisted, and a fixed
// coupling built from Gaussian links.
package coupling

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand/v2"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/learning"
	"dnfcomposer/internal/storage"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

type Parameters struct {
	InputSize    int
	Scalar       float64
	LearningRate float64
	Rule         string
	// Decay is used by the Krogh-Hertz rule only.
	Decay float64
	// Seed drives the random weights used when nothing can be loaded.
	Seed uint64
}

func DefaultParameters() Parameters {
	return Parameters{
		InputSize:    100,
		Scalar:       1,
		LearningRate: learning.DefaultLearningRate,
		Rule:         learning.RuleHebbian,
		Decay:        learning.DefaultDecay,
	}
}

func (p Parameters) validate() error {
	if p.InputSize <= 0 {
		return fmt.Errorf("%w: input size must be > 0, got %d", element.ErrInvalidSize, p.InputSize)
	}
	if p.LearningRate < 0 || math.IsNaN(p.LearningRate) {
		return fmt.Errorf("%w: learning rate must be >= 0, got %g", element.ErrInvalidParameter, p.LearningRate)
	}
	if err := learning.ValidateRule(p.Rule); err != nil {
		return fmt.Errorf("%w: %w", element.ErrInvalidParameter, err)
	}
	return nil
}

// FieldCoupling projects an input of InputSize samples onto its output
// through a [input][output] weight matrix that is learned online.
type FieldCoupling struct {
	*element.Base
	params  Parameters
	store   storage.WeightStore
	logger  *slog.Logger
	weights *mat.Dense
	uniform distuv.Uniform
}

// NewFieldCoupling builds a coupling whose weights are loaded from and saved
// to store. A nil store keeps the weights in memory only; a nil logger uses
// slog.Default.
func NewFieldCoupling(common element.Parameters, params Parameters, store storage.WeightStore, logger *slog.Logger) (*FieldCoupling, error) {
	base, err := element.NewBase(element.FieldCoupling, common)
	if err != nil {
		return nil, err
	}
	params.Rule = learning.NormalizeRuleName(params.Rule)
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("field coupling %s: %w", base.Name(), err)
	}
	base.DefineComponent(element.Input, params.InputSize)
	if logger == nil {
		logger = slog.Default()
	}

	c := &FieldCoupling{
		Base:    base,
		params:  params,
		store:   store,
		logger:  logger.With("element", base.Name()),
		weights: mat.NewDense(params.InputSize, base.Size(), nil),
	}
	c.reseed()
	return c, nil
}

func (c *FieldCoupling) reseed() {
	h := fnv.New64a()
	_, _ = h.Write([]byte(c.Name()))
	c.uniform = distuv.Uniform{Min: -1, Max: 1, Src: rand.NewPCG(c.params.Seed, h.Sum64())}
}

// Init loads the stored weights. When none are stored, or they cannot be
// read or have other dimensions, the weights are randomized in [-1, 1] and
// written back.
func (c *FieldCoupling) Init() error {
	ctx := context.Background()
	clear(c.Buffer(element.Input))
	clear(c.Buffer(element.Output))

	if c.load(ctx) {
		return nil
	}
	c.reseed()
	c.randomize()
	c.persist(ctx)
	return nil
}

func (c *FieldCoupling) load(ctx context.Context) bool {
	if c.store == nil {
		return false
	}
	loaded, ok, err := c.store.LoadWeights(ctx, c.Name())
	switch {
	case err != nil:
		c.logger.Warn("failed to read weights", "error", err)
		return false
	case !ok:
		c.logger.Warn("no stored weights, using random weights")
		return false
	}

	rows, cols := loaded.Dims()
	if rows != c.params.InputSize || cols != c.Size() {
		c.logger.Warn("mismatched weight matrix dimensions, using random weights",
			"stored_rows", rows, "stored_cols", cols,
			"rows", c.params.InputSize, "cols", c.Size())
		return false
	}
	c.weights = loaded
	c.logger.Info("weights loaded", "rows", rows, "cols", cols)
	return true
}

func (c *FieldCoupling) randomize() {
	rows, cols := c.weights.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			c.weights.Set(i, j, c.uniform.Rand())
		}
	}
}

// persist saves the weights; failures degrade to a warning.
func (c *FieldCoupling) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveWeights(ctx, c.Name(), c.weights); err != nil {
		c.logger.Warn("failed to save weights", "error", err)
		return
	}
	c.logger.Debug("weights saved")
}

// Step writes output = Scalar * Wᵀ input.
func (c *FieldCoupling) Step(_, _ float64) error {
	if err := c.UpdateInput(); err != nil {
		return err
	}
	project(c.Base, c.weights, c.params.Scalar)
	return nil
}

func project(b *element.Base, weights *mat.Dense, scalar float64) {
	input := b.Buffer(element.Input)
	output := b.Buffer(element.Output)
	out := mat.NewVecDense(len(output), output)
	out.MulVec(weights.T(), mat.NewVecDense(len(input), input))
	floats.Scale(scalar, output)
}

func (c *FieldCoupling) Close() error { return nil }

// UpdateWeights applies the learning rule to one input/target presentation
// and persists the result. A failed save is logged, not returned.
func (c *FieldCoupling) UpdateWeights(ctx context.Context, input, target []float64) error {
	if len(input) != c.params.InputSize || len(target) != c.Size() {
		return fmt.Errorf("%w: %s expects input %d and target %d, got %d and %d",
			element.ErrSizeMismatch, c.Name(), c.params.InputSize, c.Size(), len(input), len(target))
	}
	err := learning.Apply(c.params.Rule, c.weights, input, target, learning.Config{
		Rate:  c.params.LearningRate,
		Decay: c.params.Decay,
	})
	if err != nil {
		if errors.Is(err, learning.ErrDimensionMismatch) {
			return fmt.Errorf("%w: %w", element.ErrSizeMismatch, err)
		}
		return fmt.Errorf("field coupling %s: %w", c.Name(), err)
	}
	c.persist(ctx)
	return nil
}

// ResetWeights discards the learned weights for fresh random ones.
func (c *FieldCoupling) ResetWeights(ctx context.Context) {
	c.randomize()
	c.persist(ctx)
}

func (c *FieldCoupling) Weights() *mat.Dense { return mat.DenseCopyOf(c.weights) }

func (c *FieldCoupling) Parameters() Parameters { return c.params }

func (c *FieldCoupling) SetLearningRate(rate float64) error {
	if rate < 0 || math.IsNaN(rate) {
		return fmt.Errorf("%w: learning rate must be >= 0, got %g", element.ErrInvalidParameter, rate)
	}
	c.params.LearningRate = rate
	return nil
}

func (c *FieldCoupling) SetRule(rule string) error {
	rule = learning.NormalizeRuleName(rule)
	if err := learning.ValidateRule(rule); err != nil {
		return fmt.Errorf("%w: %w", element.ErrInvalidParameter, err)
	}
	c.params.Rule = rule
	return nil
}
