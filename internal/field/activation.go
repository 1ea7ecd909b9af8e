package field

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dnfcomposer/internal/mathtools"
)

var (
	ErrActivationExists   = errors.New("activation function already registered")
	ErrActivationNotFound = errors.New("activation function not found")
)

// ActivationFunction maps the activation of a field to its output.
type ActivationFunction interface {
	Apply(dst, src []float64)
	Kind() string
}

const (
	KindHeaviside = "heaviside"
	KindSigmoid   = "sigmoid"
)

type Heaviside struct {
	Shift float64
}

func (h Heaviside) Apply(dst, src []float64) { mathtools.Heaviside(dst, src, h.Shift) }
func (h Heaviside) Kind() string             { return KindHeaviside }

type Sigmoid struct {
	Steepness float64
	Shift     float64
}

func (s Sigmoid) Apply(dst, src []float64) { mathtools.Sigmoid(dst, src, s.Steepness, s.Shift) }
func (s Sigmoid) Kind() string             { return KindSigmoid }

// ActivationFactory builds an activation function from its shape parameters.
// Kinds that do not use steepness ignore it.
type ActivationFactory func(steepness, shift float64) ActivationFunction

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]ActivationFactory
}{
	m: make(map[string]ActivationFactory),
}

func init() {
	initializeBuiltInActivations()
}

func initializeBuiltInActivations() {
	MustRegisterActivation(KindHeaviside, func(_, shift float64) ActivationFunction {
		return Heaviside{Shift: shift}
	})
	MustRegisterActivation(KindSigmoid, func(steepness, shift float64) ActivationFunction {
		return Sigmoid{Steepness: steepness, Shift: shift}
	})
}

func RegisterActivation(kind string, factory ActivationFactory) error {
	kind = normalizeKind(kind)
	if kind == "" {
		return errors.New("activation kind is required")
	}
	if factory == nil {
		return errors.New("activation factory is required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[kind]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, kind)
	}
	activationRegistry.m[kind] = factory
	return nil
}

func MustRegisterActivation(kind string, factory ActivationFactory) {
	if err := RegisterActivation(kind, factory); err != nil {
		panic(err)
	}
}

// NewActivationFunction resolves kind through the registry.
func NewActivationFunction(kind string, steepness, shift float64) (ActivationFunction, error) {
	kind = normalizeKind(kind)
	activationRegistry.mu.RLock()
	factory, ok := activationRegistry.m[kind]
	activationRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, kind)
	}
	return factory(steepness, shift), nil
}

func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	kinds := make([]string, 0, len(activationRegistry.m))
	for kind := range activationRegistry.m {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func resetActivationRegistryForTests() {
	activationRegistry.mu.Lock()
	activationRegistry.m = make(map[string]ActivationFactory)
	activationRegistry.mu.Unlock()
	initializeBuiltInActivations()
}
