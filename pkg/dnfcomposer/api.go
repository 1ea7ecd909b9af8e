// Package dnfcomposer is the public entry point of the dynamic neural field
// engine: it opens a weight store, builds elements from flat specs and wires
// them into a simulation.
package dnfcomposer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"dnfcomposer/internal/coupling"
	"dnfcomposer/internal/element"
	"dnfcomposer/internal/field"
	"dnfcomposer/internal/kernel"
	"dnfcomposer/internal/simulation"
	"dnfcomposer/internal/stimulus"
	"dnfcomposer/internal/storage"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultWeightsDir = "weights"
	defaultDBPath     = "dnfcomposer.db"
)

var ErrNotTrainable = errors.New("element is not a trainable coupling")

// Link is one bump of a gauss field coupling.
type Link = coupling.Link

type Options struct {
	StoreKind  string
	WeightsDir string
	DBPath     string
	DeltaT     float64
	TZero      float64
	RunID      string
	Logger     *slog.Logger
}

type Engine struct {
	store  storage.WeightStore
	sim    *simulation.Simulation
	logger *slog.Logger
}

// Open builds the weight store and an empty simulation.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	path := opts.WeightsDir
	if path == "" {
		path = defaultWeightsDir
	}
	if storeKind == storage.KindSQLite {
		path = opts.DBPath
		if path == "" {
			path = filepath.Join(defaultWeightsDir, defaultDBPath)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, fmt.Errorf("init %s store: %w", storeKind, err)
	}

	sim, err := simulation.New(simulation.Config{
		DeltaT: opts.DeltaT,
		TZero:  opts.TZero,
		RunID:  opts.RunID,
		Logger: logger,
	})
	if err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	storage.TagRunIfSupported(store, sim.RunID())

	return &Engine{store: store, sim: sim, logger: logger}, nil
}

func (e *Engine) Close() error {
	return errors.Join(e.sim.Close(), storage.CloseIfSupported(e.store))
}

func (e *Engine) Simulation() *simulation.Simulation { return e.sim }
func (e *Engine) Store() storage.WeightStore         { return e.store }
func (e *Engine) RunID() string                      { return e.sim.RunID() }

// ElementSpec describes any element kind with flat fields. Fields that do
// not apply to Kind are ignored. A zero Tau, Activation, LearningRate, Rule
// or Decay takes the package default.
type ElementSpec struct {
	Kind     string
	Name     string
	XMax     int
	StepSize float64

	// neural field
	Tau          float64
	RestingLevel float64
	Activation   string
	Steepness    float64
	Shift        float64

	// kernels and stimuli
	Sigma           float64
	Amplitude       float64
	AmplitudeGlobal float64
	SigmaExc        float64
	AmplitudeExc    float64
	SigmaInh        float64
	AmplitudeInh    float64
	CutOffFactor    float64
	Method          string
	Position        float64
	Linear          bool
	Normalized      bool

	// noise and couplings
	Seed         uint64
	InputSize    int
	Scalar       float64
	LearningRate float64
	Rule         string
	Decay        float64
	Links        []Link
}

func (s ElementSpec) common() element.Parameters {
	dims := element.DefaultDimensions()
	if s.XMax != 0 {
		dims.XMax = s.XMax
	}
	if s.StepSize != 0 {
		dims.StepSize = s.StepSize
	}
	return element.Parameters{Name: s.Name, Dimensions: dims}
}

func (s ElementSpec) boundary() kernel.Boundary {
	if s.Linear {
		return kernel.Linear
	}
	return kernel.Circular
}

// NewElement constructs an unregistered element of spec.Kind.
func (e *Engine) NewElement(spec ElementSpec) (element.Element, error) {
	label, err := element.ParseLabel(spec.Kind)
	if err != nil {
		return nil, err
	}
	common := spec.common()

	switch label {
	case element.NeuralField:
		kind := spec.Activation
		if kind == "" {
			kind = field.KindHeaviside
		}
		activation, err := field.NewActivationFunction(kind, spec.Steepness, spec.Shift)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", element.ErrInvalidParameter, err)
		}
		tau := spec.Tau
		if tau == 0 {
			tau = field.DefaultParameters().Tau
		}
		return field.NewNeuralField(common, field.Parameters{
			Tau:                  tau,
			StartingRestingLevel: spec.RestingLevel,
			Activation:           activation,
		})
	case element.GaussKernel:
		method, err := kernel.ParseMethod(spec.Method)
		if err != nil {
			return nil, err
		}
		return kernel.NewGaussKernel(common, kernel.GaussParameters{
			Amplitude:       spec.Amplitude,
			Sigma:           spec.Sigma,
			AmplitudeGlobal: spec.AmplitudeGlobal,
			CutOffFactor:    spec.CutOffFactor,
			Boundary:        spec.boundary(),
			Method:          method,
		})
	case element.MexicanHatKernel:
		method, err := kernel.ParseMethod(spec.Method)
		if err != nil {
			return nil, err
		}
		return kernel.NewMexicanHatKernel(common, kernel.MexicanHatParameters{
			AmplitudeExc:    spec.AmplitudeExc,
			SigmaExc:        spec.SigmaExc,
			AmplitudeInh:    spec.AmplitudeInh,
			SigmaInh:        spec.SigmaInh,
			AmplitudeGlobal: spec.AmplitudeGlobal,
			CutOffFactor:    spec.CutOffFactor,
			Boundary:        spec.boundary(),
			Method:          method,
		})
	case element.GaussStimulus:
		return stimulus.NewGaussStimulus(common, stimulus.GaussParameters{
			Sigma:      spec.Sigma,
			Amplitude:  spec.Amplitude,
			Position:   spec.Position,
			Circular:   !spec.Linear,
			Normalized: spec.Normalized,
		})
	case element.NormalNoise:
		return stimulus.NewNormalNoise(common, stimulus.NoiseParameters{
			Amplitude: spec.Amplitude,
			Seed:      spec.Seed,
		})
	case element.FieldCoupling:
		params := coupling.DefaultParameters()
		params.InputSize = spec.InputSize
		params.Scalar = spec.Scalar
		params.Seed = spec.Seed
		if spec.LearningRate != 0 {
			params.LearningRate = spec.LearningRate
		}
		if spec.Rule != "" {
			params.Rule = spec.Rule
		}
		if spec.Decay != 0 {
			params.Decay = spec.Decay
		}
		return coupling.NewFieldCoupling(common, params, e.store, e.logger)
	case element.GaussFieldCoupling:
		return coupling.NewGaussFieldCoupling(common, coupling.GaussParameters{
			InputSize: spec.InputSize,
			Sigma:     spec.Sigma,
			Scalar:    spec.Scalar,
			Couplings: spec.Links,
		})
	default:
		return nil, fmt.Errorf("%w: cannot construct %s", element.ErrInvalidParameter, label)
	}
}

// Add constructs and registers the elements in order.
func (e *Engine) Add(specs ...ElementSpec) error {
	for _, spec := range specs {
		el, err := e.NewElement(spec)
		if err != nil {
			return err
		}
		if err := e.sim.AddElement(el); err != nil {
			return err
		}
	}
	return nil
}

// Connect feeds producer's component (output when empty) into consumer.
func (e *Engine) Connect(producer, component, consumer string) error {
	return e.sim.CreateInteraction(producer, component, consumer)
}

func (e *Engine) Init() error { return e.sim.Init() }

func (e *Engine) Run(ctx context.Context, steps int) error { return e.sim.Run(ctx, steps) }

func (e *Engine) Element(name string) (element.Element, error) { return e.sim.Element(name) }

func (e *Engine) Coupling(name string) (*coupling.FieldCoupling, error) {
	el, err := e.sim.Element(name)
	if err != nil {
		return nil, err
	}
	c, ok := el.(*coupling.FieldCoupling)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotTrainable, name, el.Label())
	}
	return c, nil
}

func (e *Engine) LoadWeights(ctx context.Context, name string) (*mat.Dense, bool, error) {
	return e.store.LoadWeights(ctx, name)
}

func (e *Engine) ListWeights(ctx context.Context) ([]string, error) {
	return e.store.ListWeights(ctx)
}

func (e *Engine) DeleteWeights(ctx context.Context, name string) error {
	return e.store.DeleteWeights(ctx, name)
}
