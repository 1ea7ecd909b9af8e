//go:build sqlite

package storage

func newSQLiteStore(path string) (WeightStore, error) {
	return NewSQLiteStore(path), nil
}
