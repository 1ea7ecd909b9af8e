// Package field implements the one-dimensional neural field: a leaky
// integrator of its input relaxing towards a resting level, whose output is
// a pointwise activation function of its activation.
package field

import (
	"fmt"
	"math"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"

	"gonum.org/v1/gonum/floats"
)

type Parameters struct {
	Tau                  float64
	StartingRestingLevel float64
	Activation           ActivationFunction
}

func DefaultParameters() Parameters {
	return Parameters{
		Tau:                  25,
		StartingRestingLevel: -10,
		Activation:           Heaviside{Shift: 0},
	}
}

func (p Parameters) validate() error {
	if p.Tau <= 0 || math.IsNaN(p.Tau) || math.IsInf(p.Tau, 0) {
		return fmt.Errorf("%w: tau must be > 0, got %g", element.ErrInvalidParameter, p.Tau)
	}
	if p.Activation == nil {
		return fmt.Errorf("%w: activation function is required", element.ErrInvalidParameter)
	}
	return nil
}

type NeuralField struct {
	*element.Base
	params   Parameters
	centroid float64
}

func NewNeuralField(common element.Parameters, params Parameters) (*NeuralField, error) {
	base, err := element.NewBase(element.NeuralField, common)
	if err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("neural field %s: %w", base.Name(), err)
	}
	base.DefineComponent(element.Activation, base.Size())
	base.DefineComponent(element.RestingLevel, base.Size())
	return &NeuralField{Base: base, params: params, centroid: mathtools.NoPeak}, nil
}

// Init sets activation and resting level to the starting resting level and
// recomputes the output from it.
func (f *NeuralField) Init() error {
	activation := f.Buffer(element.Activation)
	resting := f.Buffer(element.RestingLevel)
	for i := range activation {
		activation[i] = f.params.StartingRestingLevel
		resting[i] = f.params.StartingRestingLevel
	}
	clear(f.Buffer(element.Input))
	f.params.Activation.Apply(f.Buffer(element.Output), activation)
	f.centroid = mathtools.NoPeak
	return nil
}

// Step advances the activation one forward Euler step of
// tau da/dt = -a + h + s.
func (f *NeuralField) Step(_, dt float64) error {
	if err := f.UpdateInput(); err != nil {
		return err
	}
	activation := f.Buffer(element.Activation)
	resting := f.Buffer(element.RestingLevel)
	input := f.Buffer(element.Input)

	rate := dt / f.params.Tau
	for i := range activation {
		activation[i] += rate * (-activation[i] + resting[i] + input[i])
	}
	f.params.Activation.Apply(f.Buffer(element.Output), activation)
	f.centroid = mathtools.Centroid(activation)
	return nil
}

func (f *NeuralField) Close() error { return nil }

// Centroid is the peak position decoded by the last step, or -1 when the
// field holds no peak.
func (f *NeuralField) Centroid() float64 { return f.centroid }

func (f *NeuralField) HighestActivation() float64 {
	return floats.Max(f.Buffer(element.Activation))
}

func (f *NeuralField) Parameters() Parameters { return f.params }

// SetParameters replaces the dynamics parameters and re-initializes the field.
func (f *NeuralField) SetParameters(params Parameters) error {
	if err := params.validate(); err != nil {
		return fmt.Errorf("neural field %s: %w", f.Name(), err)
	}
	f.params = params
	return f.Init()
}
