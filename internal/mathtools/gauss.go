// Package mathtools holds the numeric helpers of the field engine: Gaussian
// profiles, circular kernel ranges and index tables, convolutions, activation
// transforms and peak decoding.
package mathtools

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Gauss evaluates exp(-0.5 (x-mu)^2 / sigma^2) at every x.
func Gauss(xs []float64, mu, sigma float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		d := x - mu
		out[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
	}
	return out
}

// GaussNorm evaluates a Gaussian over integer positions and scales it to
// unit sum. An all-zero profile is returned unscaled.
func GaussNorm(rangeX []int, mu, sigma float64) []float64 {
	xs := make([]float64, len(rangeX))
	for i, x := range rangeX {
		xs[i] = float64(x)
	}
	out := Gauss(xs, mu, sigma)
	if sum := floats.Sum(out); sum > 0 {
		floats.Scale(1/sum, out)
	}
	return out
}

// CircularGauss evaluates a Gaussian centred on position over a ring of size
// samples, using the shortest distance around the ring.
func CircularGauss(size int, sigma, position float64) []float64 {
	out := make([]float64, size)
	n := float64(size)
	for i := range out {
		d := math.Abs(float64(i) - position)
		d = math.Min(d, n-d)
		out[i] = math.Exp(-0.5 * d * d / (sigma * sigma))
	}
	return out
}

// LinearGauss evaluates a Gaussian centred on position over size samples
// without wraparound.
func LinearGauss(size int, sigma, position float64) []float64 {
	xs := make([]float64, size)
	floats.Span(xs, 0, float64(size-1))
	return Gauss(xs, position, sigma)
}

// Normalize rescales v to [0, 1] by its minimum and maximum. A constant
// vector maps to zeros.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	lo, hi := floats.Min(v), floats.Max(v)
	if hi == lo {
		return out
	}
	for i, x := range v {
		out[i] = (x - lo) / (hi - lo)
	}
	return out
}
