// Package stimulus implements the source elements of a field architecture:
// a fixed Gaussian bump and additive white noise.
package stimulus

import (
	"fmt"
	"math"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"

	"gonum.org/v1/gonum/floats"
)

// GaussParameters shape a Gaussian bump. Position is a sample index and must
// lie in [0, size).
type GaussParameters struct {
	Sigma     float64
	Amplitude float64
	Position  float64
	Circular  bool
	// Normalized scales the profile to unit sum before applying Amplitude.
	Normalized bool
}

func DefaultGaussParameters() GaussParameters {
	return GaussParameters{Sigma: 5, Amplitude: 15, Position: 50, Circular: true}
}

func (p GaussParameters) validate(size int) error {
	if p.Sigma <= 0 || math.IsNaN(p.Sigma) {
		return fmt.Errorf("%w: sigma must be > 0, got %g", element.ErrInvalidParameter, p.Sigma)
	}
	if p.Position < 0 || p.Position >= float64(size) || math.IsNaN(p.Position) {
		return fmt.Errorf("%w: position must be in [0, %d), got %g", element.ErrInvalidParameter, size, p.Position)
	}
	return nil
}

type GaussStimulus struct {
	*element.Base
	params GaussParameters
}

func NewGaussStimulus(common element.Parameters, params GaussParameters) (*GaussStimulus, error) {
	base, err := element.NewBase(element.GaussStimulus, common)
	if err != nil {
		return nil, err
	}
	if err := params.validate(base.Size()); err != nil {
		return nil, fmt.Errorf("gauss stimulus %s: %w", base.Name(), err)
	}
	return &GaussStimulus{Base: base, params: params}, nil
}

// Init materializes the bump into "output".
func (s *GaussStimulus) Init() error {
	var profile []float64
	if s.params.Circular {
		profile = mathtools.CircularGauss(s.Size(), s.params.Sigma, s.params.Position)
	} else {
		profile = mathtools.LinearGauss(s.Size(), s.params.Sigma, s.params.Position)
	}
	if s.params.Normalized {
		if sum := floats.Sum(profile); sum > 0 {
			floats.Scale(1/sum, profile)
		}
	}
	floats.ScaleTo(s.Buffer(element.Output), s.params.Amplitude, profile)
	return nil
}

// Step only pulls inputs; the output is fixed until the parameters change.
func (s *GaussStimulus) Step(_, _ float64) error {
	return s.UpdateInput()
}

func (s *GaussStimulus) Close() error { return nil }

func (s *GaussStimulus) Parameters() GaussParameters { return s.params }

func (s *GaussStimulus) SetParameters(params GaussParameters) error {
	if err := params.validate(s.Size()); err != nil {
		return fmt.Errorf("gauss stimulus %s: %w", s.Name(), err)
	}
	s.params = params
	return s.Init()
}
