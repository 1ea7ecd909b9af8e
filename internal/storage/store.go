// Package storage persists the learned weight matrices of field couplings.
// Every backend stores one matrix per coupling, keyed by the coupling's
// unique name, in the plain-text matrix format of codec.go.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidName    = errors.New("invalid weight matrix name")
	ErrNotInitialized = errors.New("store is not initialized")
)

// WeightStore defines persistence operations for coupling weights.
type WeightStore interface {
	Init(ctx context.Context) error
	SaveWeights(ctx context.Context, name string, weights *mat.Dense) error
	// LoadWeights reports false when nothing is stored under name.
	LoadWeights(ctx context.Context, name string) (*mat.Dense, bool, error)
	DeleteWeights(ctx context.Context, name string) error
	ListWeights(ctx context.Context) ([]string, error)
}

// sanitizeName maps a coupling name to a key that is safe as a file name.
func sanitizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	key := strings.NewReplacer("/", "_", `\`, "_", "\x00", "_").Replace(trimmed)
	if key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return key, nil
}
