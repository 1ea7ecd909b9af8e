package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

const weightsFileSuffix = "_weights.txt"

// FileStore keeps one "<name>_weights.txt" file per coupling in a directory.
type FileStore struct {
	dir string

	mu          sync.RWMutex
	initialized bool
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(s.dir) == "" {
		return errors.New("weights directory is required")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create weights directory: %w", err)
	}
	s.initialized = true
	return nil
}

// Path is the file a matrix named name is stored in.
func (s *FileStore) Path(name string) (string, error) {
	key, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key+weightsFileSuffix), nil
}

func (s *FileStore) SaveWeights(ctx context.Context, name string, weights *mat.Dense) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	payload, err := EncodeMatrix(weights)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".weights-*")
	if err != nil {
		return fmt.Errorf("save weights %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save weights %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save weights %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save weights %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) LoadWeights(ctx context.Context, name string) (*mat.Dense, bool, error) {
	if err := s.ready(ctx); err != nil {
		return nil, false, err
	}
	path, err := s.Path(name)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load weights %s: %w", name, err)
	}

	weights, err := DecodeMatrix(data)
	if err != nil {
		return nil, false, fmt.Errorf("load weights %s: %w", name, err)
	}
	return weights, true, nil
}

func (s *FileStore) DeleteWeights(ctx context.Context, name string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete weights %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) ListWeights(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list weights: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), weightsFileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), weightsFileSuffix))
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}
