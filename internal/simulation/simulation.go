// Package simulation owns a registry of elements and drives them through
// initialization and discrete time steps in registration order.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"dnfcomposer/internal/element"

	"github.com/google/uuid"
)

var (
	ErrNullElement      = errors.New("element is null")
	ErrDuplicateElement = errors.New("element already exists")
	ErrElementNotFound  = errors.New("element not found")
	ErrIndexOutOfRange  = errors.New("element index out of range")
	ErrNotInitialized   = errors.New("simulation is not initialized")
	ErrInvalidConfig    = errors.New("invalid simulation config")
)

const DefaultDeltaT = 5.0

type Config struct {
	DeltaT float64
	TZero  float64
	// RunID identifies the run in logs and persisted records; a random UUID
	// is generated when empty.
	RunID  string
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{DeltaT: DefaultDeltaT}
}

// Simulation steps its elements sequentially. It is not safe for concurrent
// use.
type Simulation struct {
	deltaT float64
	tZero  float64
	t      float64
	runID  string
	logger *slog.Logger

	elements []element.Element
	byName   map[string]element.Element
	byID     map[int]element.Element
	nextID   int

	initialized bool
}

func New(cfg Config) (*Simulation, error) {
	if cfg.DeltaT == 0 {
		cfg.DeltaT = DefaultDeltaT
	}
	if cfg.DeltaT < 0 || math.IsNaN(cfg.DeltaT) || math.IsInf(cfg.DeltaT, 0) {
		return nil, fmt.Errorf("%w: delta t must be > 0, got %g", ErrInvalidConfig, cfg.DeltaT)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Simulation{
		deltaT: cfg.DeltaT,
		tZero:  cfg.TZero,
		t:      cfg.TZero,
		runID:  cfg.RunID,
		logger: cfg.Logger.With("run_id", cfg.RunID),
		byName: make(map[string]element.Element),
		byID:   make(map[int]element.Element),
		nextID: 1,
	}, nil
}

func (s *Simulation) RunID() string     { return s.runID }
func (s *Simulation) Time() float64     { return s.t }
func (s *Simulation) DeltaT() float64   { return s.deltaT }
func (s *Simulation) Len() int          { return len(s.elements) }
func (s *Simulation) Initialized() bool { return s.initialized }

// AddElement registers e under its unique name and assigns it the next
// identifier if it has none. Elements added to an initialized simulation are
// initialized immediately.
func (s *Simulation) AddElement(e element.Element) error {
	if element.IsNil(e) {
		return ErrNullElement
	}
	if _, exists := s.byName[e.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateElement, e.Name())
	}

	id := e.ID()
	if id == 0 {
		id = s.nextID
	} else if other, taken := s.byID[id]; taken {
		return fmt.Errorf("%w: identifier %d is held by %s", ErrDuplicateElement, id, other.Name())
	}
	// A late element that fails to initialize keeps no identifier.
	if s.initialized {
		if err := e.Init(); err != nil {
			return fmt.Errorf("init %s: %w", e.Name(), err)
		}
	}
	if err := e.AssignID(id); err != nil {
		return err
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}

	s.elements = append(s.elements, e)
	s.byName[e.Name()] = e
	s.byID[id] = e
	s.logger.Debug("element added", "element", e)
	return nil
}

// RemoveElement detaches the named element from the registry. Edges that
// other elements hold to it are left in place.
func (s *Simulation) RemoveElement(name string) error {
	e, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, name)
	}
	for i, candidate := range s.elements {
		if candidate == e {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			break
		}
	}
	delete(s.byName, name)
	delete(s.byID, e.ID())
	s.logger.Debug("element removed", "element", name)
	return nil
}

// CreateInteraction wires producer's component into consumer's input.
func (s *Simulation) CreateInteraction(producer, component, consumer string) error {
	from, err := s.Element(producer)
	if err != nil {
		return err
	}
	to, err := s.Element(consumer)
	if err != nil {
		return err
	}
	if err := to.AddInput(from, component); err != nil {
		return fmt.Errorf("interaction %s -> %s: %w", producer, consumer, err)
	}
	if component == "" {
		component = element.Output
	}
	values, _ := from.Component(component)
	input, _ := to.Component(element.Input)
	if len(values) != len(input) {
		s.logger.Debug("interaction overlaps input partially",
			"producer", producer, "component", component, "consumer", consumer,
			"samples", len(values), "input", len(input))
	}
	return nil
}

// RemoveInteraction drops the consumer's edge from producer. The producer
// does not need to be registered any more.
func (s *Simulation) RemoveInteraction(producer, consumer string) error {
	to, err := s.Element(consumer)
	if err != nil {
		return err
	}
	to.RemoveInput(producer)
	return nil
}

// Init resets every element in registration order and rewinds the clock.
func (s *Simulation) Init() error {
	s.t = s.tZero
	for _, e := range s.elements {
		if err := e.Init(); err != nil {
			s.initialized = false
			return fmt.Errorf("init %s: %w", e.Name(), err)
		}
	}
	s.initialized = true
	s.logger.Info("simulation initialized", "elements", len(s.elements), "t", s.t, "delta_t", s.deltaT)
	return nil
}

// Step steps every element in registration order. Producers stepped earlier
// in the pass are seen with their updated state, later ones with the state
// of the previous pass.
func (s *Simulation) Step(t, dt float64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	s.t = t
	for _, e := range s.elements {
		if err := e.Step(t, dt); err != nil {
			return fmt.Errorf("step %s at t=%g: %w", e.Name(), t, err)
		}
	}
	return nil
}

// Advance moves the clock by DeltaT and steps once.
func (s *Simulation) Advance() error {
	return s.Step(s.t+s.deltaT, s.deltaT)
}

// Run advances steps times. Cancellation is observed between steps.
func (s *Simulation) Run(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Advance(); err != nil {
			return err
		}
	}
	return nil
}

// Close tears every element down, reporting all failures.
func (s *Simulation) Close() error {
	var errs []error
	for _, e := range s.elements {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.Name(), err))
		}
	}
	s.initialized = false
	return errors.Join(errs...)
}

func (s *Simulation) Element(name string) (element.Element, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, name)
	}
	return e, nil
}

func (s *Simulation) ElementByID(id int) (element.Element, error) {
	e, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrElementNotFound, id)
	}
	return e, nil
}

func (s *Simulation) ElementAt(index int) (element.Element, error) {
	if index < 0 || index >= len(s.elements) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(s.elements))
	}
	return s.elements[index], nil
}

// Elements returns the registered elements in registration order.
func (s *Simulation) Elements() []element.Element {
	return append([]element.Element(nil), s.elements...)
}

// Component reads a component of a registered element. The returned slice is
// live storage and must be treated as read-only.
func (s *Simulation) Component(elementName, componentName string) ([]float64, error) {
	e, err := s.Element(elementName)
	if err != nil {
		return nil, err
	}
	return e.Component(componentName)
}

// ElementsWithInput lists the registered consumers of the named producer.
func (s *Simulation) ElementsWithInput(producer string) []string {
	var consumers []string
	for _, e := range s.elements {
		for _, edge := range e.Edges() {
			if edge.Producer.Name() == producer {
				consumers = append(consumers, e.Name())
				break
			}
		}
	}
	return consumers
}
