package storage

import (
	"context"
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestMemoryStoreWeightsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	weights := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if err := store.SaveWeights(ctx, "input - target", weights); err != nil {
		t.Fatalf("save weights: %v", err)
	}
	weights.Set(0, 0, 99)

	loaded, ok, err := store.LoadWeights(ctx, "input - target")
	if err != nil {
		t.Fatalf("load weights: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted weights")
	}
	if loaded.At(0, 0) != 1 {
		t.Fatalf("expected saved copy to be isolated from caller mutation, got %f", loaded.At(0, 0))
	}
	loaded.Set(1, 1, -1)
	again, _, _ := store.LoadWeights(ctx, "input - target")
	if again.At(1, 1) != 4 {
		t.Fatalf("expected loaded copy to be isolated from the store, got %f", again.At(1, 1))
	}
}

func TestMemoryStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, name := range []string{"b", "a"} {
		if err := store.SaveWeights(ctx, name, mat.NewDense(1, 1, []float64{1})); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	names, err := store.ListWeights(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names: %v", names)
	}

	if err := store.DeleteWeights(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteWeights(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, ok, err := store.LoadWeights(ctx, "a"); err != nil || ok {
		t.Fatalf("expected deleted weights to be absent: ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveWeights(context.Background(), "w", mat.NewDense(1, 1, nil)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got: %v", err)
	}
	if _, _, err := store.LoadWeights(context.Background(), " "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got: %v", err)
	}
}
