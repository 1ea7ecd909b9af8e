package stimulus

import (
	"fmt"
	"math"
	"math/rand/v2"

	"dnfcomposer/internal/element"

	"gonum.org/v1/gonum/stat/distuv"
)

type NoiseParameters struct {
	Amplitude float64
	// Seed makes the sample sequence reproducible across Init calls.
	Seed uint64
}

// NormalNoise emits amplitude/sqrt(dt) scaled standard normal samples on
// every step.
type NormalNoise struct {
	*element.Base
	params NoiseParameters
	dist   distuv.Normal
}

func NewNormalNoise(common element.Parameters, params NoiseParameters) (*NormalNoise, error) {
	base, err := element.NewBase(element.NormalNoise, common)
	if err != nil {
		return nil, err
	}
	if params.Amplitude < 0 || math.IsNaN(params.Amplitude) {
		return nil, fmt.Errorf("normal noise %s: %w: amplitude must be >= 0, got %g",
			base.Name(), element.ErrInvalidParameter, params.Amplitude)
	}
	n := &NormalNoise{Base: base, params: params}
	n.reseed()
	return n, nil
}

func (n *NormalNoise) reseed() {
	n.dist = distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(n.params.Seed, n.params.Seed^0x9e3779b97f4a7c15)}
}

// Init clears the output and restarts the sample sequence.
func (n *NormalNoise) Init() error {
	clear(n.Buffer(element.Output))
	n.reseed()
	return nil
}

func (n *NormalNoise) Step(_, dt float64) error {
	if dt <= 0 {
		return fmt.Errorf("normal noise %s: %w: dt must be > 0, got %g", n.Name(), element.ErrInvalidParameter, dt)
	}
	scale := n.params.Amplitude / math.Sqrt(dt)
	output := n.Buffer(element.Output)
	for i := range output {
		output[i] = scale * n.dist.Rand()
	}
	return nil
}

func (n *NormalNoise) Close() error { return nil }

func (n *NormalNoise) Parameters() NoiseParameters { return n.params }

func (n *NormalNoise) SetParameters(params NoiseParameters) error {
	if params.Amplitude < 0 || math.IsNaN(params.Amplitude) {
		return fmt.Errorf("normal noise %s: %w: amplitude must be >= 0, got %g",
			n.Name(), element.ErrInvalidParameter, params.Amplitude)
	}
	n.params = params
	return n.Init()
}
