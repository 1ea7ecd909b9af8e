// Package kernel implements the lateral interaction kernels of a field:
// a Gaussian and a Mexican-hat (difference of Gaussians) profile convolved
// with the field output under circular boundary conditions.
package kernel

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/mathtools"

	"gonum.org/v1/gonum/floats"
)

const DefaultCutOffFactor = 5.0

var (
	ErrNonCircular    = errors.New("non-circular kernels are not supported")
	ErrNotInitialized = errors.New("kernel is not initialized")
)

// Boundary selects how the kernel treats the ends of the field.
type Boundary int

const (
	Circular Boundary = iota
	Linear
)

func (b Boundary) String() string {
	switch b {
	case Circular:
		return "circular"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// Method selects how the convolution is evaluated.
type Method string

const (
	MethodDirect Method = "direct"
	MethodFFT    Method = "fft"
)

func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodDirect:
		return MethodDirect, nil
	case MethodFFT:
		return MethodFFT, nil
	default:
		return "", fmt.Errorf("%w: unknown convolution method %q", element.ErrInvalidParameter, s)
	}
}

// State is the derived convolution machinery shared by every kernel kind.
// It is rebuilt whenever the shape parameters change.
type State struct {
	kernelRange [2]int
	extIndex    []int
	fullSum     float64
	method      Method
	convolver   *mathtools.CircularConvolver
	scratch     []float64
	ready       bool
}

func (s *State) KernelRange() [2]int { return s.kernelRange }
func (s *State) ExtendedIndex() []int { return append([]int(nil), s.extIndex...) }

// FullSum is the sum of the input seen by the last step.
func (s *State) FullSum() float64 { return s.fullSum }

func validateShape(boundary Boundary, cutOff float64, sigmas ...float64) error {
	if boundary != Circular {
		return fmt.Errorf("%w: boundary %s", ErrNonCircular, boundary)
	}
	if cutOff <= 0 || math.IsNaN(cutOff) {
		return fmt.Errorf("%w: cut-off factor must be > 0, got %g", element.ErrInvalidParameter, cutOff)
	}
	for _, sigma := range sigmas {
		if sigma <= 0 || math.IsNaN(sigma) {
			return fmt.Errorf("%w: sigma must be > 0, got %g", element.ErrInvalidParameter, sigma)
		}
	}
	return nil
}

// rebuild computes the range and index table for the widest sigma and
// returns the integer offsets the coefficients are sampled at.
func (s *State) rebuild(size int, sigma, cutOff float64, method Method) []int {
	s.kernelRange = mathtools.KernelRange(sigma, cutOff, size, true)
	s.extIndex = mathtools.ExtendedIndex(size, s.kernelRange)
	s.fullSum = 0
	s.method = method
	s.convolver = nil
	s.ready = false

	rangeX := make([]int, s.kernelRange[0]+s.kernelRange[1]+1)
	for i := range rangeX {
		rangeX[i] = i - s.kernelRange[0]
	}
	return rangeX
}

// materialize publishes the coefficients into the "kernel" component and
// prepares the selected convolution method.
func (s *State) materialize(b *element.Base, coefficients []float64) error {
	b.DefineComponent(element.Kernel, len(coefficients))
	copy(b.Buffer(element.Kernel), coefficients)
	clear(b.Buffer(element.Input))

	if s.method == MethodFFT {
		conv, err := mathtools.NewCircularConvolver(coefficients, s.kernelRange, b.Size())
		if err != nil {
			return fmt.Errorf("kernel %s: %w", b.Name(), err)
		}
		s.convolver = conv
		s.scratch = make([]float64, b.Size())
	}
	s.ready = true
	return nil
}

// convolve pulls the input and writes (input*kernel + global) * dx to output.
func (s *State) convolve(b *element.Base, global float64) error {
	if !s.ready {
		return fmt.Errorf("%w: %s", ErrNotInitialized, b.Name())
	}
	if err := b.UpdateInput(); err != nil {
		return err
	}

	input := b.Buffer(element.Input)
	s.fullSum = floats.Sum(input)

	var conv []float64
	if s.method == MethodFFT {
		conv = s.convolver.Convolve(s.scratch, input)
	} else {
		conv = mathtools.ConvValid(mathtools.CircularVector(s.extIndex, input), b.Buffer(element.Kernel))
	}

	dx := b.StepSize()
	output := b.Buffer(element.Output)
	for i := range output {
		output[i] = (conv[i] + global) * dx
	}
	return nil
}
