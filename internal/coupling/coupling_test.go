package coupling

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dnfcomposer/internal/element"
	"dnfcomposer/internal/learning"
	"dnfcomposer/internal/mathtools"
	"dnfcomposer/internal/storage"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type source struct {
	*element.Base
}

func (s *source) Init() error             { return nil }
func (s *source) Step(_, _ float64) error { return nil }
func (s *source) Close() error            { return nil }

func newSource(t *testing.T, name string, values []float64) *source {
	t.Helper()
	base, err := element.NewBase(element.GaussStimulus, element.Parameters{
		Name:       name,
		Dimensions: element.Dimensions{XMax: len(values), StepSize: 1},
	})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	copy(base.Buffer(element.Output), values)
	return &source{Base: base}
}

func common(name string, size int) element.Parameters {
	return element.Parameters{Name: name, Dimensions: element.Dimensions{XMax: size, StepSize: 1}}
}

func newMemoryStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type failingStore struct {
	*storage.MemoryStore
}

func (failingStore) SaveWeights(context.Context, string, *mat.Dense) error {
	return errors.New("disk full")
}

func TestFieldCouplingComponents(t *testing.T) {
	c, err := NewFieldCoupling(common("c", 30), Parameters{InputSize: 20, Scalar: 1, LearningRate: 0.1}, nil, nil)
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	input, _ := c.Component(element.Input)
	output, _ := c.Component(element.Output)
	if len(input) != 20 || len(output) != 30 {
		t.Fatalf("unexpected component lengths: input=%d output=%d", len(input), len(output))
	}
	if r, cols := c.Weights().Dims(); r != 20 || cols != 30 {
		t.Fatalf("unexpected weight dims %dx%d", r, cols)
	}
	if c.Parameters().Rule != learning.RuleHebbian {
		t.Fatalf("expected empty rule to default to hebbian, got %q", c.Parameters().Rule)
	}

	if err := c.AddInput(newSource(t, "in", make([]float64, 20)), element.Output); err != nil {
		t.Fatalf("expected producer of the input size to be accepted: %v", err)
	}
	if err := c.AddInput(newSource(t, "odd", make([]float64, 7)), element.Output); !errors.Is(err, element.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got: %v", err)
	}
}

func TestFieldCouplingValidation(t *testing.T) {
	cases := []struct {
		params Parameters
		want   error
	}{
		{Parameters{InputSize: 0}, element.ErrInvalidSize},
		{Parameters{InputSize: 5, LearningRate: -1}, element.ErrInvalidParameter},
		{Parameters{InputSize: 5, Rule: "oja"}, element.ErrInvalidParameter},
	}
	for _, tc := range cases {
		if _, err := NewFieldCoupling(common("c", 5), tc.params, nil, nil); !errors.Is(err, tc.want) {
			t.Fatalf("params %+v: expected %v, got: %v", tc.params, tc.want, err)
		}
	}
}

func TestFieldCouplingInitRandomizesAndPersists(t *testing.T) {
	store := newMemoryStore(t)
	var logs bytes.Buffer
	c, err := NewFieldCoupling(common("a - b", 8), Parameters{InputSize: 6, Scalar: 1, Seed: 3}, store, bufferLogger(&logs))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	weights := c.Weights()
	raw := weights.RawMatrix().Data
	if floats.Min(raw) < -1 || floats.Max(raw) > 1 {
		t.Fatalf("expected weights in [-1, 1], got [%f, %f]", floats.Min(raw), floats.Max(raw))
	}
	if floats.Max(raw) == floats.Min(raw) {
		t.Fatal("expected random weights")
	}

	stored, ok, err := store.LoadWeights(context.Background(), "a - b")
	if err != nil || !ok {
		t.Fatalf("expected weights persisted on init: ok=%t err=%v", ok, err)
	}
	if !mat.Equal(stored, weights) {
		t.Fatal("expected persisted weights to match the coupling")
	}
	if !strings.Contains(logs.String(), "no stored weights") {
		t.Fatalf("expected warning about missing weights, logs:\n%s", logs.String())
	}

	twin, err := NewFieldCoupling(common("a - b", 8), Parameters{InputSize: 6, Scalar: 1, Seed: 3}, nil, nil)
	if err != nil {
		t.Fatalf("new twin: %v", err)
	}
	if err := twin.Init(); err != nil {
		t.Fatalf("init twin: %v", err)
	}
	if !mat.Equal(twin.Weights(), weights) {
		t.Fatal("expected identical random weights for identical name and seed")
	}
}

func TestFieldCouplingInitLoadsStoredWeights(t *testing.T) {
	store := newMemoryStore(t)
	want := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if err := store.SaveWeights(context.Background(), "c", want); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	c, err := NewFieldCoupling(common("c", 3), Parameters{InputSize: 2, Scalar: 0.5}, store, bufferLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.AddInput(newSource(t, "in", []float64{1, -1}), element.Output); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !mat.Equal(c.Weights(), want) {
		t.Fatalf("expected stored weights, got:\n%v", mat.Formatted(c.Weights()))
	}

	if err := c.Step(0, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	output, _ := c.Component(element.Output)
	// 0.5 * ([1 4; 2 5; 3 6] * [1 -1])
	for i, v := range []float64{-1.5, -1.5, -1.5} {
		if math.Abs(output[i]-v) > 1e-12 {
			t.Fatalf("output %d: got=%f want=%f", i, output[i], v)
		}
	}
	if err := c.Step(0, 1); err != nil {
		t.Fatalf("second step: %v", err)
	}
	if math.Abs(output[0]-(-1.5)) > 1e-12 {
		t.Fatalf("expected output recomputed rather than accumulated, got %f", output[0])
	}
}

func TestFieldCouplingDimensionMismatchFallsBackToRandom(t *testing.T) {
	store := newMemoryStore(t)
	if err := store.SaveWeights(context.Background(), "c", mat.NewDense(3, 3, nil)); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	var logs bytes.Buffer
	c, err := NewFieldCoupling(common("c", 4), Parameters{InputSize: 2, Scalar: 1}, store, bufferLogger(&logs))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(logs.String(), "mismatched weight matrix dimensions") {
		t.Fatalf("expected mismatch warning, logs:\n%s", logs.String())
	}
	stored, _, _ := store.LoadWeights(context.Background(), "c")
	if r, cols := stored.Dims(); r != 2 || cols != 4 {
		t.Fatalf("expected stored weights replaced by a 2x4 matrix, got %dx%d", r, cols)
	}
}

func TestFieldCouplingUnreadableWeightsFallBackToRandom(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(dir)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "c_weights.txt"), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	var logs bytes.Buffer
	c, err := NewFieldCoupling(common("c", 4), Parameters{InputSize: 2, Scalar: 1}, store, bufferLogger(&logs))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init must not fail on unreadable weights: %v", err)
	}
	if !strings.Contains(logs.String(), "failed to read weights") {
		t.Fatalf("expected read warning, logs:\n%s", logs.String())
	}
	if _, ok, err := store.LoadWeights(context.Background(), "c"); err != nil || !ok {
		t.Fatalf("expected repaired weights file: ok=%t err=%v", ok, err)
	}
}

func TestFieldCouplingOversizedHeaderFallsBackToRandom(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(dir)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	corrupt := []byte("100000000 100000000\n1 2 3\n")
	if err := os.WriteFile(filepath.Join(dir, "c_weights.txt"), corrupt, 0o644); err != nil {
		t.Fatalf("write corrupt weights: %v", err)
	}
	var logs bytes.Buffer
	c, err := NewFieldCoupling(common("c", 4), Parameters{InputSize: 2, Scalar: 1}, store, bufferLogger(&logs))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init must not fail on a corrupt header: %v", err)
	}
	if !strings.Contains(logs.String(), "failed to read weights") {
		t.Fatalf("expected read warning, logs:\n%s", logs.String())
	}
	if r, cols := c.Weights().Dims(); r != 2 || cols != 4 {
		t.Fatalf("expected random 2x4 weights, got %dx%d", r, cols)
	}
	stored, ok, err := store.LoadWeights(context.Background(), "c")
	if err != nil || !ok {
		t.Fatalf("expected repaired weights file: ok=%t err=%v", ok, err)
	}
	if r, cols := stored.Dims(); r != 2 || cols != 4 {
		t.Fatalf("expected stored 2x4 weights, got %dx%d", r, cols)
	}
}

func TestFieldCouplingSaveFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	store := failingStore{MemoryStore: newMemoryStore(t)}
	c, err := NewFieldCoupling(common("c", 3), Parameters{InputSize: 2, Scalar: 1, LearningRate: 0.1}, store, bufferLogger(&logs))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := c.UpdateWeights(context.Background(), []float64{1, 0}, []float64{0, 1, 0}); err != nil {
		t.Fatalf("save failures must not be returned: %v", err)
	}
	if !strings.Contains(logs.String(), "failed to save weights") || !strings.Contains(logs.String(), "disk full") {
		t.Fatalf("expected save warning, logs:\n%s", logs.String())
	}
	if got := c.Weights().At(0, 1); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("expected in-memory update despite the failed save, got %f", got)
	}
}

func TestFieldCouplingUpdateWeightsSizeMismatch(t *testing.T) {
	c, err := NewFieldCoupling(common("c", 3), Parameters{InputSize: 2, Scalar: 1}, nil, nil)
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.UpdateWeights(context.Background(), []float64{1, 2, 3}, []float64{1, 2, 3}); !errors.Is(err, element.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got: %v", err)
	}
	if err := c.UpdateWeights(context.Background(), []float64{1, 2}, []float64{1}); !errors.Is(err, element.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got: %v", err)
	}
}

func TestFieldCouplingHebbianRecall(t *testing.T) {
	const size = 100
	store := newMemoryStore(t)
	input := mathtools.CircularGauss(size, 5, 20)
	target := mathtools.CircularGauss(size, 5, 70)

	c, err := NewFieldCoupling(common("input - target", size), Parameters{
		InputSize: size, Scalar: 1, LearningRate: 0.01, Rule: learning.RuleHebbian,
	}, store, bufferLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	src := newSource(t, "input", input)
	if err := c.AddInput(src, element.Output); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i := 0; i < 1000; i++ {
		if err := c.UpdateWeights(context.Background(), input, target); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if err := c.Step(0, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	output, _ := c.Component(element.Output)
	got := mathtools.Normalize(output)
	want := mathtools.Normalize(target)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d: recalled=%f target=%f", i, got[i], want[i])
		}
	}
	if floats.MaxIdx(output) != 70 {
		t.Fatalf("expected recalled peak at 70, got %d", floats.MaxIdx(output))
	}

	stored, ok, err := store.LoadWeights(context.Background(), "input - target")
	if err != nil || !ok || !mat.Equal(stored, c.Weights()) {
		t.Fatalf("expected the trained weights persisted: ok=%t err=%v", ok, err)
	}
}

func TestFieldCouplingWidrowHoffRecall(t *testing.T) {
	const size = 40
	input := mathtools.CircularGauss(size, 3, 10)
	target := mathtools.CircularGauss(size, 3, 25)
	floats.Scale(2, target)

	c, err := NewFieldCoupling(common("wh", size), Parameters{
		InputSize: size, Scalar: 1, LearningRate: 0.1, Rule: "delta widrow hoff",
	}, nil, nil)
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.AddInput(newSource(t, "input", input), element.Output); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	for i := 0; i < 200; i++ {
		if err := c.UpdateWeights(context.Background(), input, target); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if err := c.Step(0, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	output, _ := c.Component(element.Output)
	for i := range target {
		if math.Abs(output[i]-target[i]) > 1e-6 {
			t.Fatalf("sample %d: recalled=%f target=%f", i, output[i], target[i])
		}
	}
}

func TestFieldCouplingResetAndSetters(t *testing.T) {
	store := newMemoryStore(t)
	c, err := NewFieldCoupling(common("c", 3), Parameters{InputSize: 2, Scalar: 1}, store, bufferLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("new coupling: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	before := c.Weights()
	c.ResetWeights(context.Background())
	if mat.Equal(before, c.Weights()) {
		t.Fatal("expected reset to draw new weights")
	}
	stored, _, _ := store.LoadWeights(context.Background(), "c")
	if !mat.Equal(stored, c.Weights()) {
		t.Fatal("expected reset weights persisted")
	}

	if err := c.SetLearningRate(-0.1); !errors.Is(err, element.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got: %v", err)
	}
	if err := c.SetLearningRate(0.5); err != nil || c.Parameters().LearningRate != 0.5 {
		t.Fatalf("set learning rate: %v", err)
	}
	if err := c.SetRule("krogh-hertz"); err != nil || c.Parameters().Rule != learning.RuleDeltaKroghHertz {
		t.Fatalf("set rule: %v (%q)", err, c.Parameters().Rule)
	}
	if err := c.SetRule("oja"); !errors.Is(err, element.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got: %v", err)
	}
}

func TestGaussFieldCoupling(t *testing.T) {
	c, err := NewGaussFieldCoupling(common("g", 60), GaussParameters{
		InputSize: 40, Sigma: 3, Scalar: 1,
		Couplings: []Link{{XI: 10, XJ: 30, Weight: 2}},
	})
	if err != nil {
		t.Fatalf("new gauss coupling: %v", err)
	}
	if c.Weights() != nil {
		t.Fatal("expected no weights before init")
	}
	if err := c.Step(0, 1); err == nil {
		t.Fatal("expected step before init to fail")
	}

	impulse := make([]float64, 40)
	impulse[10] = 1
	if err := c.AddInput(newSource(t, "in", impulse), element.Output); err != nil {
		t.Fatalf("add input: %v", err)
	}
	if err := c.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if got := c.Weights().At(10, 30); got != 2 {
		t.Fatalf("expected link weight at its centre, got %f", got)
	}
	if err := c.Step(0, 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	output, _ := c.Component(element.Output)
	if floats.MaxIdx(output) != 30 || output[30] != 2 {
		t.Fatalf("expected projected peak 2 at 30, got %f at %d", floats.Max(output), floats.MaxIdx(output))
	}
}

func TestGaussFieldCouplingValidation(t *testing.T) {
	if _, err := NewGaussFieldCoupling(common("g", 10), GaussParameters{InputSize: 10, Sigma: 1, Couplings: []Link{{XI: 10, XJ: 0}}}); !errors.Is(err, element.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for out-of-range link, got: %v", err)
	}
	if _, err := NewGaussFieldCoupling(common("g", 10), GaussParameters{InputSize: 10, Sigma: 0}); !errors.Is(err, element.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for zero sigma, got: %v", err)
	}
	c, err := NewGaussFieldCoupling(common("g", 10), GaussParameters{InputSize: 10, Sigma: 1})
	if err != nil {
		t.Fatalf("new gauss coupling: %v", err)
	}
	if err := c.SetParameters(GaussParameters{InputSize: 5, Sigma: 1}); !errors.Is(err, element.ErrInvalidParameter) {
		t.Fatalf("expected fixed input size, got: %v", err)
	}
	if err := c.SetParameters(GaussParameters{InputSize: 10, Sigma: 2, Couplings: []Link{{XI: 1, XJ: 2, Weight: 1}}}); err != nil {
		t.Fatalf("set parameters: %v", err)
	}
	if c.Weights().At(1, 2) != 1 {
		t.Fatalf("expected rebuilt matrix, got %f", c.Weights().At(1, 2))
	}
}
