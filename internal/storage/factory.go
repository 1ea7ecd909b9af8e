package storage

import "fmt"

const (
	KindFile   = "file"
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string {
	return KindFile
}

// NewStore builds a backend. path is the weights directory for the file
// backend and the database file for the sqlite backend.
func NewStore(kind, path string) (WeightStore, error) {
	switch kind {
	case "", KindFile:
		return NewFileStore(path), nil
	case KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store WeightStore) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// TagRunIfSupported attributes subsequent writes to runID on backends that
// record provenance.
func TagRunIfSupported(store WeightStore, runID string) {
	if tagger, ok := store.(interface{ SetRunID(string) }); ok {
		tagger.SetRunID(runID)
	}
}
