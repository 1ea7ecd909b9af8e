package storage

import (
	"context"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	weights     map[string]*mat.Dense
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.weights = make(map[string]*mat.Dense)
	return nil
}

func (s *MemoryStore) SaveWeights(_ context.Context, name string, weights *mat.Dense) error {
	key, err := sanitizeName(name)
	if err != nil {
		return err
	}
	if weights == nil || weights.IsEmpty() {
		return ErrMalformedMatrix
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.weights[key] = mat.DenseCopyOf(weights)
	return nil
}

func (s *MemoryStore) LoadWeights(_ context.Context, name string) (*mat.Dense, bool, error) {
	key, err := sanitizeName(name)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, ErrNotInitialized
	}
	weights, ok := s.weights[key]
	if !ok {
		return nil, false, nil
	}
	return mat.DenseCopyOf(weights), true, nil
}

func (s *MemoryStore) DeleteWeights(_ context.Context, name string) error {
	key, err := sanitizeName(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	delete(s.weights, key)
	return nil
}

func (s *MemoryStore) ListWeights(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	names := make([]string, 0, len(s.weights))
	for name := range s.weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
