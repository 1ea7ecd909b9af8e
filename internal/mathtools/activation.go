package mathtools

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CentroidThreshold is the activation level a sample must exceed to belong
// to a decoded peak.
const CentroidThreshold = 0.1

// NoPeak is the centroid reported when no sample exceeds CentroidThreshold.
const NoPeak = -1.0

// Heaviside writes 1 into dst where src exceeds shift and 0 elsewhere.
func Heaviside(dst, src []float64, shift float64) {
	for i, x := range src {
		if x > shift {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
}

// Sigmoid writes the logistic transform 1/(1+exp(-steepness (x-shift))).
func Sigmoid(dst, src []float64, steepness, shift float64) {
	for i, x := range src {
		dst[i] = 1 / (1 + math.Exp(-steepness*(x-shift)))
	}
}

// Centroid decodes the circular mean position of the samples of activation
// above CentroidThreshold. When the supra-threshold region touches either end
// of the ring, distances are measured from the opposite side so a peak that
// straddles the boundary folds back to the correct position.
func Centroid(activation []float64) float64 {
	size := len(activation)
	if size == 0 {
		return NoPeak
	}
	mask := make([]float64, size)
	Heaviside(mask, activation, CentroidThreshold)
	if floats.Max(mask) <= 0 {
		return NoPeak
	}

	n := float64(size)
	atLimits := mask[0] > 0 || mask[size-1] > 0

	var sumActivation, sumWeighted float64
	for i, a := range mask {
		sumActivation += a
		var distance float64
		if atLimits {
			distance = math.Mod(float64(i)-n*0.5+n*10, n)
		} else {
			distance = math.Mod(float64(i)-n*0.5, n)
		}
		sumWeighted += distance * a
	}

	centroid := math.Mod(n*0.5+sumWeighted/sumActivation, n)
	if atLimits && centroid < 0 {
		centroid += n
	}
	return centroid
}
