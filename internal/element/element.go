// Package element holds the computational node shared by every kind of the
// dynamic neural field engine: named numeric components, the ordered set of
// input edges and the additive input pull that propagates signals between
// elements.
package element

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Well-known component names.
const (
	Output       = "output"
	Input        = "input"
	Activation   = "activation"
	RestingLevel = "resting level"
	Kernel       = "kernel"
)

// Element is the capability every kind exposes to the graph and to the
// simulation. Kinds embed *Base and implement Init, Step and Close.
type Element interface {
	ID() int
	Name() string
	Label() Label
	Size() int
	StepSize() float64

	Component(name string) ([]float64, error)
	ComponentNames() []string

	AddInput(producer Element, component string) error
	RemoveInput(name string)
	RemoveInputByID(id int)
	HasInput(name, component string) bool
	Inputs() []Element
	Edges() []Edge

	AssignID(id int) error

	Init() error
	Step(t, dt float64) error
	Close() error
}

// Dimensions describe the sampled spatial dimension of an element.
type Dimensions struct {
	XMax     int
	StepSize float64
}

func DefaultDimensions() Dimensions {
	return Dimensions{XMax: 100, StepSize: 1.0}
}

// Size is the number of samples, XMax / StepSize rounded to the nearest integer.
func (d Dimensions) Size() int {
	if d.StepSize <= 0 {
		return 0
	}
	return int(math.Round(float64(d.XMax) / d.StepSize))
}

func (d Dimensions) Validate() error {
	if d.XMax <= 0 {
		return fmt.Errorf("%w: x max must be > 0, got %d", ErrInvalidSize, d.XMax)
	}
	if d.StepSize <= 0 || math.IsNaN(d.StepSize) || math.IsInf(d.StepSize, 0) {
		return fmt.Errorf("%w: step size must be > 0, got %g", ErrInvalidSize, d.StepSize)
	}
	if d.Size() <= 0 {
		return fmt.Errorf("%w: %d / %g yields no samples", ErrInvalidSize, d.XMax, d.StepSize)
	}
	return nil
}

// Parameters are the construction parameters common to every kind.
type Parameters struct {
	Name       string
	Dimensions Dimensions
}

// Edge is a producer to consumer wiring annotated with the producer
// component that is read.
type Edge struct {
	Producer  Element
	Component string
}

// Base implements the component storage and the input graph of an element.
type Base struct {
	id    int
	name  string
	label Label
	dims  Dimensions
	size  int

	components map[string][]float64
	order      []string
	edges      []Edge
}

// NewBase validates the common parameters and allocates the "input" and
// "output" components with the element size.
func NewBase(label Label, params Parameters) (*Base, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: element name is required", ErrInvalidParameter)
	}
	if err := params.Dimensions.Validate(); err != nil {
		return nil, fmt.Errorf("element %s: %w", name, err)
	}

	b := &Base{
		name:       name,
		label:      label,
		dims:       params.Dimensions,
		size:       params.Dimensions.Size(),
		components: make(map[string][]float64),
	}
	b.DefineComponent(Output, b.size)
	b.DefineComponent(Input, b.size)
	return b, nil
}

func (b *Base) ID() int                { return b.id }
func (b *Base) Name() string           { return b.name }
func (b *Base) Label() Label           { return b.label }
func (b *Base) Size() int              { return b.size }
func (b *Base) StepSize() float64      { return b.dims.StepSize }
func (b *Base) Dimensions() Dimensions { return b.dims }

// AssignID binds the simulation-scoped identifier. An identifier never
// changes once assigned.
func (b *Base) AssignID(id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: identifier must be > 0, got %d", ErrInvalidParameter, id)
	}
	if b.id != 0 && b.id != id {
		return fmt.Errorf("%w: %s has %d", ErrIDAssigned, b.name, b.id)
	}
	b.id = id
	return nil
}

// DefineComponent creates (or re-sizes) a zeroed component of length n.
func (b *Base) DefineComponent(name string, n int) {
	if _, exists := b.components[name]; !exists {
		b.order = append(b.order, name)
	}
	b.components[name] = make([]float64, n)
}

// Buffer returns the live storage of a component owned by this element, or
// nil when it does not exist. Only the owning kind writes through it.
func (b *Base) Buffer(name string) []float64 {
	return b.components[name]
}

// Component returns the live component storage. Callers outside the owning
// element must treat it as read-only.
func (b *Base) Component(name string) ([]float64, error) {
	values, ok := b.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no component %q", ErrComponentNotFound, b.name, name)
	}
	return values, nil
}

func (b *Base) ComponentNames() []string {
	return append([]string(nil), b.order...)
}

// AddInput wires producer's component into this element's input. An empty
// component name reads "output".
func (b *Base) AddInput(producer Element, component string) error {
	if IsNil(producer) {
		return fmt.Errorf("%w: consumer %s", ErrNullInput, b.name)
	}
	if component == "" {
		component = Output
	}
	for _, edge := range b.edges {
		if edge.Producer == producer {
			return fmt.Errorf("%w: %s -> %s", ErrDuplicateInput, producer.Name(), b.name)
		}
	}

	values, err := producer.Component(component)
	if err != nil {
		return err
	}
	if len(values) != len(b.components[Input]) && len(values) != b.size {
		return fmt.Errorf("%w: %s.%s has %d samples, %s expects %d",
			ErrSizeMismatch, producer.Name(), component, len(values), b.name, len(b.components[Input]))
	}

	b.edges = append(b.edges, Edge{Producer: producer, Component: component})
	return nil
}

// IsNil reports whether e is nil or a typed nil pointer.
func IsNil(e Element) bool {
	if e == nil {
		return true
	}
	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// RemoveInput drops the edge from the named producer; absent edges are ignored.
func (b *Base) RemoveInput(name string) {
	b.removeEdge(func(e Edge) bool { return e.Producer.Name() == name })
}

// RemoveInputByID drops the edge from the producer with the identifier; absent
// edges are ignored.
func (b *Base) RemoveInputByID(id int) {
	b.removeEdge(func(e Edge) bool { return e.Producer.ID() == id })
}

func (b *Base) removeEdge(match func(Edge) bool) {
	for i, edge := range b.edges {
		if match(edge) {
			b.edges = append(b.edges[:i], b.edges[i+1:]...)
			return
		}
	}
}

func (b *Base) HasInput(name, component string) bool {
	for _, edge := range b.edges {
		if edge.Producer.Name() == name && edge.Component == component {
			return true
		}
	}
	return false
}

func (b *Base) Inputs() []Element {
	out := make([]Element, 0, len(b.edges))
	for _, edge := range b.edges {
		out = append(out, edge.Producer)
	}
	return out
}

func (b *Base) Edges() []Edge {
	return append([]Edge(nil), b.edges...)
}

// UpdateInput zeroes "input" and superposes every producer component onto it.
// A producer sized to the element rather than to its input only covers the
// leading min(len(input), len(producer)) samples; the rest is dropped or left
// at zero.
func (b *Base) UpdateInput() error {
	input := b.components[Input]
	for i := range input {
		input[i] = 0
	}
	for _, edge := range b.edges {
		values, err := edge.Producer.Component(edge.Component)
		if err != nil {
			return fmt.Errorf("update input of %s: %w", b.name, err)
		}
		n := min(len(input), len(values))
		floats.Add(input[:n], values[:n])
	}
	return nil
}

// LogValue renders the identifying attributes of the element.
func (b *Base) LogValue() slog.Value {
	inputs := make([]string, 0, len(b.edges))
	for _, edge := range b.edges {
		inputs = append(inputs, edge.Producer.Name()+"->"+edge.Component)
	}
	components := append([]string(nil), b.order...)
	sort.Strings(components)
	return slog.GroupValue(
		slog.Int("id", b.id),
		slog.String("name", b.name),
		slog.String("label", b.label.String()),
		slog.Int("size", b.size),
		slog.Float64("step_size", b.dims.StepSize),
		slog.Any("components", components),
		slog.Any("inputs", inputs),
	)
}
