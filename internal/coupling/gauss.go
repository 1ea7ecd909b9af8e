package coupling

import (
	"fmt"
	"math"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"

	"gonum.org/v1/gonum/mat"
)

// Link couples input position XI to output position XJ with Weight.
type Link struct {
	XI     float64
	XJ     float64
	Weight float64
}

type GaussParameters struct {
	InputSize int
	Sigma     float64
	Scalar    float64
	Couplings []Link
}

func (p GaussParameters) validate(outputSize int) error {
	if p.InputSize <= 0 {
		return fmt.Errorf("%w: input size must be > 0, got %d", element.ErrInvalidSize, p.InputSize)
	}
	if p.Sigma <= 0 || math.IsNaN(p.Sigma) {
		return fmt.Errorf("%w: sigma must be > 0, got %g", element.ErrInvalidParameter, p.Sigma)
	}
	for i, link := range p.Couplings {
		if link.XI < 0 || link.XI >= float64(p.InputSize) || link.XJ < 0 || link.XJ >= float64(outputSize) {
			return fmt.Errorf("%w: link %d (%g -> %g) outside %d x %d",
				element.ErrInvalidParameter, i, link.XI, link.XJ, p.InputSize, outputSize)
		}
	}
	return nil
}

// GaussFieldCoupling is a fixed coupling whose matrix is a sum of separable
// circular Gaussian bumps, one per link. It is not trainable.
type GaussFieldCoupling struct {
	*element.Base
	params  GaussParameters
	weights *mat.Dense
}

func NewGaussFieldCoupling(common element.Parameters, params GaussParameters) (*GaussFieldCoupling, error) {
	base, err := element.NewBase(element.GaussFieldCoupling, common)
	if err != nil {
		return nil, err
	}
	if err := params.validate(base.Size()); err != nil {
		return nil, fmt.Errorf("gauss field coupling %s: %w", base.Name(), err)
	}
	base.DefineComponent(element.Input, params.InputSize)
	params.Couplings = append([]Link(nil), params.Couplings...)
	return &GaussFieldCoupling{Base: base, params: params}, nil
}

// Init builds W[i][j] = Σ w * g(i; XI) * g(j; XJ).
func (c *GaussFieldCoupling) Init() error {
	rows, cols := c.params.InputSize, c.Size()
	weights := mat.NewDense(rows, cols, nil)
	for _, link := range c.params.Couplings {
		gi := mat.NewVecDense(rows, mathtools.CircularGauss(rows, c.params.Sigma, link.XI))
		gj := mat.NewVecDense(cols, mathtools.CircularGauss(cols, c.params.Sigma, link.XJ))
		var bump mat.Dense
		bump.Outer(link.Weight, gi, gj)
		weights.Add(weights, &bump)
	}
	c.weights = weights
	clear(c.Buffer(element.Input))
	clear(c.Buffer(element.Output))
	return nil
}

func (c *GaussFieldCoupling) Step(_, _ float64) error {
	if c.weights == nil {
		return fmt.Errorf("gauss field coupling %s is not initialized", c.Name())
	}
	if err := c.UpdateInput(); err != nil {
		return err
	}
	project(c.Base, c.weights, c.params.Scalar)
	return nil
}

func (c *GaussFieldCoupling) Close() error { return nil }

func (c *GaussFieldCoupling) Weights() *mat.Dense {
	if c.weights == nil {
		return nil
	}
	return mat.DenseCopyOf(c.weights)
}

func (c *GaussFieldCoupling) Parameters() GaussParameters {
	p := c.params
	p.Couplings = append([]Link(nil), p.Couplings...)
	return p
}

func (c *GaussFieldCoupling) SetParameters(params GaussParameters) error {
	if params.InputSize != c.params.InputSize {
		return fmt.Errorf("%w: input size is fixed at %d", element.ErrInvalidParameter, c.params.InputSize)
	}
	if err := params.validate(c.Size()); err != nil {
		return fmt.Errorf("gauss field coupling %s: %w", c.Name(), err)
	}
	params.Couplings = append([]Link(nil), params.Couplings...)
	c.params = params
	return c.Init()
}
