//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per coupling. The payload is the text matrix
// format; its dimensions are duplicated into columns.
type SQLiteStore struct {
	path string

	mu    sync.RWMutex
	db    *sql.DB
	runID string
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// SetRunID tags subsequent writes with the simulation run that produced them.
func (s *SQLiteStore) SetRunID(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveWeights(ctx context.Context, name string, weights *mat.Dense) error {
	db, runID, err := s.getDB()
	if err != nil {
		return err
	}
	key, err := sanitizeName(name)
	if err != nil {
		return err
	}
	payload, err := EncodeMatrix(weights)
	if err != nil {
		return err
	}
	rows, cols := weights.Dims()

	_, err = db.ExecContext(ctx, `
		INSERT INTO weights (name, n_rows, n_cols, run_id, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			n_rows = excluded.n_rows,
			n_cols = excluded.n_cols,
			run_id = excluded.run_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, key, rows, cols, runID, payload)
	return err
}

func (s *SQLiteStore) LoadWeights(ctx context.Context, name string) (*mat.Dense, bool, error) {
	db, _, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	key, err := sanitizeName(name)
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM weights WHERE name = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	weights, err := DecodeMatrix(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode weights %s: %w", name, err)
	}
	return weights, true, nil
}

func (s *SQLiteStore) DeleteWeights(ctx context.Context, name string) error {
	db, _, err := s.getDB()
	if err != nil {
		return err
	}
	key, err := sanitizeName(name)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM weights WHERE name = ?`, key)
	return err
}

func (s *SQLiteStore) ListWeights(ctx context.Context) ([]string, error) {
	db, _, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT name FROM weights ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RunIDOf reports the run that last wrote the named matrix.
func (s *SQLiteStore) RunIDOf(ctx context.Context, name string) (string, bool, error) {
	db, _, err := s.getDB()
	if err != nil {
		return "", false, err
	}
	key, err := sanitizeName(name)
	if err != nil {
		return "", false, err
	}

	var runID string
	err = db.QueryRowContext(ctx, `SELECT run_id FROM weights WHERE name = ?`, key).Scan(&runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return runID, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, "", ErrNotInitialized
	}
	return s.db, s.runID, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS weights (
			name TEXT PRIMARY KEY,
			n_rows INTEGER NOT NULL,
			n_cols INTEGER NOT NULL,
			run_id TEXT NOT NULL DEFAULT '',
			payload BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	return err
}
