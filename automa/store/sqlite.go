package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists Automa snapshots to a single SQLite file. Good for
// local development, single-process deployments, and prototyping before a
// move to a shared database.
//
//	s, err := store.NewSQLiteStore("./automa.db")
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// migrates its schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("automa/store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite allows one writer at a time
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("automa/store: enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS automa_latest (
			automa_id      TEXT PRIMARY KEY,
			format_version INTEGER NOT NULL,
			snapshot       BLOB NOT NULL,
			updated_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS automa_checkpoints (
			automa_id      TEXT NOT NULL,
			label          TEXT NOT NULL,
			format_version INTEGER NOT NULL,
			snapshot       BLOB NOT NULL,
			created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (automa_id, label)
		);
	`)
	if err != nil {
		return fmt.Errorf("automa/store: migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveLatest(ctx context.Context, automaID string, formatVersion int, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automa_latest (automa_id, format_version, snapshot, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(automa_id) DO UPDATE SET format_version=excluded.format_version, snapshot=excluded.snapshot, updated_at=CURRENT_TIMESTAMP
	`, automaID, formatVersion, snapshot)
	if err != nil {
		return fmt.Errorf("automa/store: save latest: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, automaID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT format_version, snapshot FROM automa_latest WHERE automa_id = ?`, automaID)
	var rec Record
	rec.AutomaID = automaID
	if err := row.Scan(&rec.FormatVersion, &rec.Snapshot); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("automa/store: load latest: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, automaID, label string, formatVersion int, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automa_checkpoints (automa_id, label, format_version, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(automa_id, label) DO UPDATE SET format_version=excluded.format_version, snapshot=excluded.snapshot, created_at=CURRENT_TIMESTAMP
	`, automaID, label, formatVersion, snapshot)
	if err != nil {
		return fmt.Errorf("automa/store: save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, automaID, label string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT format_version, snapshot FROM automa_checkpoints WHERE automa_id = ? AND label = ?`, automaID, label)
	rec := Record{AutomaID: automaID, Label: label}
	if err := row.Scan(&rec.FormatVersion, &rec.Snapshot); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("automa/store: load checkpoint: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
