package mathtools

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// KernelRange returns the number of samples a kernel extends to the left and
// right of its centre. Contributions beyond cutoff*sigma are truncated and a
// circular kernel never exceeds half the ring.
func KernelRange(sigma, cutoff float64, size int, circular bool) [2]int {
	reach := math.Ceil(sigma * cutoff)
	if circular {
		r := math.Min(reach, float64(size-1)/2)
		return [2]int{int(math.Floor(r)), int(math.Ceil(r))}
	}
	r := int(math.Min(reach, float64(size-1)))
	return [2]int{r, r}
}

// ExtendedIndex maps the positions of a ring padded by the kernel range back
// into [0, size): the last kernelRange[1] samples, the ring itself, then the
// first kernelRange[0] samples.
func ExtendedIndex(size int, kernelRange [2]int) []int {
	out := make([]int, 0, size+kernelRange[0]+kernelRange[1])
	for i := size - kernelRange[1]; i < size; i++ {
		out = append(out, i)
	}
	for i := 0; i < size; i++ {
		out = append(out, i)
	}
	for i := 0; i < kernelRange[0]; i++ {
		out = append(out, i)
	}
	return out
}

// CircularVector gathers input through an extended index table.
func CircularVector(extIndex []int, input []float64) []float64 {
	out := make([]float64, len(extIndex))
	for i, idx := range extIndex {
		out[i] = input[idx]
	}
	return out
}

// ConvValid is the part of the convolution of input and kernel computed
// without zero padding; its length is len(input)-len(kernel)+1.
func ConvValid(input, kernel []float64) []float64 {
	n := len(input) - len(kernel) + 1
	if n <= 0 || len(kernel) == 0 {
		return nil
	}
	flipped := reversed(kernel)
	out := make([]float64, n)
	for i := range out {
		out[i] = floats.Dot(input[i:i+len(kernel)], flipped)
	}
	return out
}

// Conv is the full convolution of input and kernel.
func Conv(input, kernel []float64) []float64 {
	if len(input) == 0 || len(kernel) == 0 {
		return nil
	}
	out := make([]float64, len(input)+len(kernel)-1)
	for i, x := range input {
		for k, w := range kernel {
			out[i+k] += x * w
		}
	}
	return out
}

func reversed(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[len(v)-1-i] = x
	}
	return out
}

// CircularConvolver convolves ring signals of a fixed size with a fixed
// kernel in the frequency domain.
type CircularConvolver struct {
	size     int
	fft      *fourier.FFT
	spectrum []complex128
	coeffs   []complex128
}

// NewCircularConvolver materializes the spectrum of kernel, whose sample m
// sits at offset m-kernelRange[0] from the centre.
func NewCircularConvolver(kernel []float64, kernelRange [2]int, size int) (*CircularConvolver, error) {
	if size <= 0 {
		return nil, fmt.Errorf("convolver size must be > 0, got %d", size)
	}
	if len(kernel) != kernelRange[0]+kernelRange[1]+1 {
		return nil, fmt.Errorf("kernel has %d samples, range %v expects %d",
			len(kernel), kernelRange, kernelRange[0]+kernelRange[1]+1)
	}
	if len(kernel) > size {
		return nil, fmt.Errorf("kernel has %d samples, ring has %d", len(kernel), size)
	}

	padded := make([]float64, size)
	for m, w := range kernel {
		offset := m - kernelRange[0]
		padded[((offset%size)+size)%size] += w
	}
	fft := fourier.NewFFT(size)
	return &CircularConvolver{
		size:     size,
		fft:      fft,
		spectrum: fft.Coefficients(nil, padded),
		coeffs:   make([]complex128, size/2+1),
	}, nil
}

// Convolve writes the circular convolution of input with the kernel into dst.
func (c *CircularConvolver) Convolve(dst, input []float64) []float64 {
	if len(dst) != c.size {
		dst = make([]float64, c.size)
	}
	c.coeffs = c.fft.Coefficients(c.coeffs, input)
	for i := range c.coeffs {
		c.coeffs[i] *= c.spectrum[i]
	}
	dst = c.fft.Sequence(dst, c.coeffs)
	floats.Scale(1/float64(c.size), dst)
	return dst
}
