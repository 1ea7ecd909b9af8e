package dnfcomposer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/field"
	"dnfcomposer/internal/learning"
	"dnfcomposer/internal/mathtools"
)

const (
	InputFieldName  = "input field"
	TargetFieldName = "target field"
	CouplingName    = "input - target"
)

// KernelName and StimulusName derive the names the scenario builders give to
// the elements attached to a field.
func KernelName(fieldName string) string   { return fieldName + " kernel" }
func StimulusName(fieldName string) string { return "gauss stimulus " + fieldName }

// FieldScenario is a field that excites itself through a Gaussian kernel and
// receives a localized Gaussian stimulus.
type FieldScenario struct {
	Name         string
	XMax         int
	StepSize     float64
	Tau          float64
	RestingLevel float64
	Threshold    float64

	KernelSigma     float64
	KernelAmplitude float64
	KernelGlobal    float64

	StimulusSigma     float64
	StimulusAmplitude float64
	StimulusPosition  float64
}

func DefaultFieldScenario() FieldScenario {
	return FieldScenario{
		Name:              "field",
		XMax:              100,
		StepSize:          1,
		Tau:               25,
		RestingLevel:      -10,
		Threshold:         0.2,
		KernelSigma:       5,
		KernelAmplitude:   20,
		StimulusSigma:     5,
		StimulusAmplitude: 11,
		StimulusPosition:  22,
	}
}

// BuildSelfExcitedField registers the field, its kernel and its stimulus and
// wires field -> kernel -> field and stimulus -> field.
func (e *Engine) BuildSelfExcitedField(sc FieldScenario) error {
	kernelName := KernelName(sc.Name)
	err := e.Add(
		ElementSpec{
			Kind:         element.NeuralField.String(),
			Name:         sc.Name,
			XMax:         sc.XMax,
			StepSize:     sc.StepSize,
			Tau:          sc.Tau,
			RestingLevel: sc.RestingLevel,
			Activation:   field.KindHeaviside,
			Shift:        sc.Threshold,
		},
		ElementSpec{
			Kind:            element.GaussKernel.String(),
			Name:            kernelName,
			XMax:            sc.XMax,
			StepSize:        sc.StepSize,
			Sigma:           sc.KernelSigma,
			Amplitude:       sc.KernelAmplitude,
			AmplitudeGlobal: sc.KernelGlobal,
		},
	)
	if err != nil {
		return fmt.Errorf("build field %s: %w", sc.Name, err)
	}
	if err := e.Connect(sc.Name, element.Output, kernelName); err != nil {
		return fmt.Errorf("build field %s: %w", sc.Name, err)
	}
	if err := e.Connect(kernelName, element.Output, sc.Name); err != nil {
		return fmt.Errorf("build field %s: %w", sc.Name, err)
	}
	if err := e.AttachStimulus(sc.Name, sc.StimulusSigma, sc.StimulusAmplitude, sc.StimulusPosition); err != nil {
		return fmt.Errorf("build field %s: %w", sc.Name, err)
	}
	return nil
}

// AttachStimulus registers a circular Gaussian stimulus named
// StimulusName(fieldName), sampled like the field, and feeds it into the
// field.
func (e *Engine) AttachStimulus(fieldName string, sigma, amplitude, position float64) error {
	target, err := e.Element(fieldName)
	if err != nil {
		return err
	}
	name := StimulusName(fieldName)
	err = e.Add(ElementSpec{
		Kind:      element.GaussStimulus.String(),
		Name:      name,
		XMax:      int(math.Round(float64(target.Size()) * target.StepSize())),
		StepSize:  target.StepSize(),
		Sigma:     sigma,
		Amplitude: amplitude,
		Position:  position,
	})
	if err != nil {
		return err
	}
	return e.Connect(name, element.Output, fieldName)
}

// DetachStimulus unregisters the stimulus of fieldName and drops the edge
// that fed it into the field.
func (e *Engine) DetachStimulus(fieldName string) error {
	name := StimulusName(fieldName)
	if err := e.sim.RemoveElement(name); err != nil {
		return err
	}
	return e.sim.RemoveInteraction(name, fieldName)
}

// CouplingScenario is two self-excited fields joined by a trainable
// coupling from the input field to the target field.
type CouplingScenario struct {
	Field          FieldScenario
	InputPosition  float64
	TargetPosition float64
	Scalar         float64
	LearningRate   float64
	Rule           string
	Seed           uint64
}

func DefaultCouplingScenario() CouplingScenario {
	return CouplingScenario{
		Field:          DefaultFieldScenario(),
		InputPosition:  22,
		TargetPosition: 50,
		Scalar:         0.1,
		LearningRate:   0.2,
		Rule:           learning.RuleDeltaKroghHertz,
	}
}

func (e *Engine) BuildCoupledFields(sc CouplingScenario) error {
	input := sc.Field
	input.Name = InputFieldName
	input.StimulusPosition = sc.InputPosition
	if err := e.BuildSelfExcitedField(input); err != nil {
		return err
	}
	target := sc.Field
	target.Name = TargetFieldName
	target.StimulusPosition = sc.TargetPosition
	if err := e.BuildSelfExcitedField(target); err != nil {
		return err
	}

	inputField, err := e.Element(InputFieldName)
	if err != nil {
		return err
	}
	err = e.Add(ElementSpec{
		Kind:         element.FieldCoupling.String(),
		Name:         CouplingName,
		XMax:         sc.Field.XMax,
		StepSize:     sc.Field.StepSize,
		InputSize:    inputField.Size(),
		Scalar:       sc.Scalar,
		LearningRate: sc.LearningRate,
		Rule:         sc.Rule,
		Seed:         sc.Seed,
	})
	if err != nil {
		return err
	}
	if err := e.Connect(InputFieldName, element.Output, CouplingName); err != nil {
		return err
	}
	return e.Connect(CouplingName, element.Output, TargetFieldName)
}

// TrainCoupling presents the same input/target pair iterations times.
func (e *Engine) TrainCoupling(ctx context.Context, couplingName string, input, target []float64, iterations int) error {
	c, err := e.Coupling(couplingName)
	if err != nil {
		return err
	}
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.UpdateWeights(ctx, input, target); err != nil {
			return err
		}
	}
	e.logger.Info("coupling trained", "element", couplingName, "iterations", iterations, "rule", c.Parameters().Rule)
	return nil
}

// TrainFromFields trains the coupling on the min-max normalized activations
// the two fields currently hold.
func (e *Engine) TrainFromFields(ctx context.Context, couplingName, inputField, targetField string, iterations int) error {
	input, err := e.sim.Component(inputField, element.Activation)
	if err != nil {
		return err
	}
	target, err := e.sim.Component(targetField, element.Activation)
	if err != nil {
		return err
	}
	return e.TrainCoupling(ctx, couplingName, mathtools.Normalize(input), mathtools.Normalize(target), iterations)
}

// Peak summarizes the supra-threshold region of a field.
type Peak struct {
	Field             string
	Present           bool
	Centroid          float64
	HighestActivation float64
	Width             int
}

// PeakSummary reports every registered neural field sorted by name.
func (e *Engine) PeakSummary() []Peak {
	var peaks []Peak
	for _, el := range e.sim.Elements() {
		nf, ok := el.(*field.NeuralField)
		if !ok {
			continue
		}
		activation, err := nf.Component(element.Activation)
		if err != nil {
			continue
		}
		width := 0
		for _, a := range activation {
			if a > mathtools.CentroidThreshold {
				width++
			}
		}
		peaks = append(peaks, Peak{
			Field:             nf.Name(),
			Present:           nf.Centroid() != mathtools.NoPeak,
			Centroid:          nf.Centroid(),
			HighestActivation: nf.HighestActivation(),
			Width:             width,
		})
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Field < peaks[j].Field })
	return peaks
}

// FieldActivations copies the activation of every registered neural field.
func (e *Engine) FieldActivations() map[string][]float64 {
	activations := make(map[string][]float64)
	for _, el := range e.sim.Elements() {
		if el.Label() != element.NeuralField {
			continue
		}
		activation, err := el.Component(element.Activation)
		if err != nil {
			continue
		}
		activations[el.Name()] = append([]float64(nil), activation...)
	}
	return activations
}
