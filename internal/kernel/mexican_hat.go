package kernel

import (
	"fmt"
	"math"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"
)

type MexicanHatParameters struct {
	AmplitudeExc    float64
	SigmaExc        float64
	AmplitudeInh    float64
	SigmaInh        float64
	AmplitudeGlobal float64
	// CutOffFactor defaults to DefaultCutOffFactor when zero.
	CutOffFactor float64
	Boundary     Boundary
	Method       Method
}

func (p MexicanHatParameters) withDefaults() MexicanHatParameters {
	if p.CutOffFactor == 0 {
		p.CutOffFactor = DefaultCutOffFactor
	}
	if p.Method == "" {
		p.Method = MethodDirect
	}
	return p
}

func (p MexicanHatParameters) validate() error {
	if _, err := ParseMethod(string(p.Method)); err != nil {
		return err
	}
	return validateShape(p.Boundary, p.CutOffFactor, p.SigmaExc, p.SigmaInh)
}

// MexicanHatKernel convolves its input with local excitation minus broader
// (or stronger) inhibition, plus a global offset.
type MexicanHatKernel struct {
	*element.Base
	State
	params MexicanHatParameters
}

func NewMexicanHatKernel(common element.Parameters, params MexicanHatParameters) (*MexicanHatKernel, error) {
	base, err := element.NewBase(element.MexicanHatKernel, common)
	if err != nil {
		return nil, err
	}
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("mexican hat kernel %s: %w", base.Name(), err)
	}
	return &MexicanHatKernel{Base: base, params: params}, nil
}

func (k *MexicanHatKernel) Init() error {
	p := k.params
	rangeX := k.rebuild(k.Size(), math.Max(p.SigmaExc, p.SigmaInh), p.CutOffFactor, p.Method)
	exc := mathtools.GaussNorm(rangeX, 0, p.SigmaExc)
	inh := mathtools.GaussNorm(rangeX, 0, p.SigmaInh)

	coefficients := make([]float64, len(rangeX))
	for i := range coefficients {
		coefficients[i] = p.AmplitudeExc*exc[i] - p.AmplitudeInh*inh[i]
	}
	return k.materialize(k.Base, coefficients)
}

func (k *MexicanHatKernel) Step(_, _ float64) error {
	return k.convolve(k.Base, k.params.AmplitudeGlobal)
}

func (k *MexicanHatKernel) Close() error { return nil }

func (k *MexicanHatKernel) Parameters() MexicanHatParameters { return k.params }

// SetParameters replaces the shape parameters and recomputes the kernel.
func (k *MexicanHatKernel) SetParameters(params MexicanHatParameters) error {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return fmt.Errorf("mexican hat kernel %s: %w", k.Name(), err)
	}
	k.params = params
	return k.Init()
}
