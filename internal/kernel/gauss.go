package kernel

import (
	"fmt"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"

	"gonum.org/v1/gonum/floats"
)

type GaussParameters struct {
	Amplitude       float64
	Sigma           float64
	AmplitudeGlobal float64
	// CutOffFactor defaults to DefaultCutOffFactor when zero.
	CutOffFactor float64
	Boundary     Boundary
	Method       Method
}

func (p GaussParameters) withDefaults() GaussParameters {
	if p.CutOffFactor == 0 {
		p.CutOffFactor = DefaultCutOffFactor
	}
	if p.Method == "" {
		p.Method = MethodDirect
	}
	return p
}

func (p GaussParameters) validate() error {
	if _, err := ParseMethod(string(p.Method)); err != nil {
		return err
	}
	return validateShape(p.Boundary, p.CutOffFactor, p.Sigma)
}

// GaussKernel convolves its input with an amplitude-scaled, sum-normalized
// Gaussian and adds a global offset.
type GaussKernel struct {
	*element.Base
	State
	params GaussParameters
}

func NewGaussKernel(common element.Parameters, params GaussParameters) (*GaussKernel, error) {
	base, err := element.NewBase(element.GaussKernel, common)
	if err != nil {
		return nil, err
	}
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("gauss kernel %s: %w", base.Name(), err)
	}
	return &GaussKernel{Base: base, params: params}, nil
}

func (k *GaussKernel) Init() error {
	rangeX := k.rebuild(k.Size(), k.params.Sigma, k.params.CutOffFactor, k.params.Method)
	coefficients := mathtools.GaussNorm(rangeX, 0, k.params.Sigma)
	floats.Scale(k.params.Amplitude, coefficients)
	return k.materialize(k.Base, coefficients)
}

func (k *GaussKernel) Step(_, _ float64) error {
	return k.convolve(k.Base, k.params.AmplitudeGlobal)
}

func (k *GaussKernel) Close() error { return nil }

func (k *GaussKernel) Parameters() GaussParameters { return k.params }

// SetParameters replaces the shape parameters and recomputes the kernel.
func (k *GaussKernel) SetParameters(params GaussParameters) error {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return fmt.Errorf("gauss kernel %s: %w", k.Name(), err)
	}
	k.params = params
	return k.Init()
}
