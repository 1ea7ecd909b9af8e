package field

import (
	"errors"
	"math"
	"testing"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"
)

type source struct {
	*element.Base
}

func (s *source) Init() error             { return nil }
func (s *source) Step(_, _ float64) error { return nil }
func (s *source) Close() error            { return nil }

func newSource(t *testing.T, values []float64) *source {
	t.Helper()
	base, err := element.NewBase(element.GaussStimulus, element.Parameters{
		Name:       "stimulus",
		Dimensions: element.Dimensions{XMax: len(values), StepSize: 1},
	})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	copy(base.Buffer(element.Output), values)
	return &source{Base: base}
}

func newField(t *testing.T, size int, params Parameters) *NeuralField {
	t.Helper()
	f, err := NewNeuralField(element.Parameters{
		Name:       "field",
		Dimensions: element.Dimensions{XMax: size, StepSize: 1},
	}, params)
	if err != nil {
		t.Fatalf("new neural field: %v", err)
	}
	return f
}

func TestNeuralFieldComponents(t *testing.T) {
	f := newField(t, 50, DefaultParameters())
	for _, name := range []string{element.Output, element.Input, element.Activation, element.RestingLevel} {
		values, err := f.Component(name)
		if err != nil {
			t.Fatalf("component %q: %v", name, err)
		}
		if len(values) != 50 {
			t.Fatalf("component %q: expected 50 samples, got %d", name, len(values))
		}
	}
}

func TestNeuralFieldInit(t *testing.T) {
	f := newField(t, 20, Parameters{Tau: 25, StartingRestingLevel: -5, Activation: Sigmoid{Steepness: 1}})
	if err := f.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	activation, _ := f.Component(element.Activation)
	resting, _ := f.Component(element.RestingLevel)
	output, _ := f.Component(element.Output)
	want := 1 / (1 + math.Exp(5))
	for i := range activation {
		if activation[i] != -5 || resting[i] != -5 {
			t.Fatalf("sample %d: activation=%f resting=%f", i, activation[i], resting[i])
		}
		if math.Abs(output[i]-want) > 1e-15 {
			t.Fatalf("sample %d: expected output recomputed from activation, got %f", i, output[i])
		}
	}
	if f.Centroid() != mathtools.NoPeak {
		t.Fatalf("expected no peak after init, got %f", f.Centroid())
	}
}

func TestNeuralFieldEulerStep(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = 2
	}
	f := newField(t, 10, Parameters{Tau: 25, StartingRestingLevel: -10, Activation: Heaviside{Shift: 0}})
	if err := f.AddInput(newSource(t, values), element.Output); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := f.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := f.Step(5, 5); err != nil {
		t.Fatalf("step: %v", err)
	}
	activation, _ := f.Component(element.Activation)
	if math.Abs(activation[0]-(-9.6)) > 1e-12 {
		t.Fatalf("expected a = -10 + 5/25*2 = -9.6, got %f", activation[0])
	}

	for i := 0; i < 500; i++ {
		if err := f.Step(0, 5); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if math.Abs(activation[3]-(-8)) > 1e-9 {
		t.Fatalf("expected activation to relax to h+s = -8, got %f", activation[3])
	}
	if math.Abs(f.HighestActivation()-(-8)) > 1e-9 {
		t.Fatalf("unexpected highest activation: %f", f.HighestActivation())
	}
}

func TestNeuralFieldDecodesPeak(t *testing.T) {
	values := mathtools.CircularGauss(100, 3, 30)
	for i := range values {
		values[i] *= 20
	}
	f := newField(t, 100, Parameters{Tau: 10, StartingRestingLevel: -10, Activation: Heaviside{Shift: 0}})
	if err := f.AddInput(newSource(t, values), ""); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := f.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i := 0; i < 200; i++ {
		if err := f.Step(float64(i), 1); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := f.Centroid(); math.Abs(got-30) > 0.5 {
		t.Fatalf("expected centroid near 30, got %f", got)
	}
	output, _ := f.Component(element.Output)
	if output[30] != 1 || output[80] != 0 {
		t.Fatalf("expected heaviside output on the peak only: %f %f", output[30], output[80])
	}
}

func TestNeuralFieldValidation(t *testing.T) {
	cases := []Parameters{
		{Tau: 0, Activation: Heaviside{}},
		{Tau: -1, Activation: Heaviside{}},
		{Tau: math.NaN(), Activation: Heaviside{}},
		{Tau: 10},
	}
	for _, params := range cases {
		_, err := NewNeuralField(element.Parameters{Name: "f", Dimensions: element.DefaultDimensions()}, params)
		if !errors.Is(err, element.ErrInvalidParameter) {
			t.Fatalf("params %+v: expected ErrInvalidParameter, got: %v", params, err)
		}
	}

	f := newField(t, 10, DefaultParameters())
	if err := f.SetParameters(Parameters{Tau: -2, Activation: Heaviside{}}); !errors.Is(err, element.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got: %v", err)
	}
	if f.Parameters().Tau != 25 {
		t.Fatalf("rejected parameters must not be applied: %+v", f.Parameters())
	}
}

func TestNeuralFieldSetParametersReinitializes(t *testing.T) {
	f := newField(t, 10, DefaultParameters())
	if err := f.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := f.SetParameters(Parameters{Tau: 5, StartingRestingLevel: 1, Activation: Heaviside{Shift: 0.5}}); err != nil {
		t.Fatalf("set parameters: %v", err)
	}
	activation, _ := f.Component(element.Activation)
	output, _ := f.Component(element.Output)
	if activation[0] != 1 || output[0] != 1 {
		t.Fatalf("expected re-initialized state: activation=%f output=%f", activation[0], output[0])
	}
}

func TestActivationRegistry(t *testing.T) {
	resetActivationRegistryForTests()
	t.Cleanup(resetActivationRegistryForTests)

	fn, err := NewActivationFunction(" Sigmoid ", 4, 0.2)
	if err != nil {
		t.Fatalf("resolve sigmoid: %v", err)
	}
	if s, ok := fn.(Sigmoid); !ok || s.Steepness != 4 || s.Shift != 0.2 {
		t.Fatalf("unexpected sigmoid: %#v", fn)
	}
	fn, err = NewActivationFunction(KindHeaviside, 4, 0.2)
	if err != nil {
		t.Fatalf("resolve heaviside: %v", err)
	}
	if fn.Kind() != KindHeaviside {
		t.Fatalf("unexpected kind: %s", fn.Kind())
	}

	if _, err := NewActivationFunction("step", 0, 0); !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got: %v", err)
	}
	if err := RegisterActivation(KindSigmoid, func(_, _ float64) ActivationFunction { return Heaviside{} }); !errors.Is(err, ErrActivationExists) {
		t.Fatalf("expected ErrActivationExists, got: %v", err)
	}
	if err := RegisterActivation("step", func(_, shift float64) ActivationFunction { return Heaviside{Shift: shift} }); err != nil {
		t.Fatalf("register step: %v", err)
	}
	if got := ListActivations(); len(got) != 3 || got[0] != KindHeaviside || got[2] != "step" {
		t.Fatalf("unexpected activation list: %v", got)
	}
	if err := RegisterActivation("", nil); err == nil {
		t.Fatal("expected empty kind error")
	}
}
