package element

import (
	"fmt"
	"strings"
)

// Label tags the kind of an element.
type Label int

const (
	Uninitialized Label = iota
	NeuralField
	GaussStimulus
	GaussKernel
	MexicanHatKernel
	NormalNoise
	FieldCoupling
	GaussFieldCoupling
)

var labelNames = map[Label]string{
	Uninitialized:      "uninitialized",
	NeuralField:        "neural field",
	GaussStimulus:      "gauss stimulus",
	GaussKernel:        "gauss kernel",
	MexicanHatKernel:   "mexican hat kernel",
	NormalNoise:        "normal noise",
	FieldCoupling:      "field coupling",
	GaussFieldCoupling: "gauss field coupling",
}

func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("label(%d)", int(l))
}

// ParseLabel accepts the human label ("gauss kernel") as well as
// underscore/dash separated forms ("gauss_kernel", "gauss-kernel").
func ParseLabel(s string) (Label, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	for label, name := range labelNames {
		if name == normalized {
			return label, nil
		}
	}
	return Uninitialized, fmt.Errorf("%w: unknown element kind %q", ErrInvalidParameter, s)
}
