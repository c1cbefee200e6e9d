package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists Automa snapshots to MySQL, for deployments that need
// a shared, durable store across multiple processes.
//
//	s, err := store.NewMySQLStore(ctx, "user:pass@tcp(127.0.0.1:3306)/automa?parseTime=true")
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn and migrates the schema.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("automa/store: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("automa/store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS automa_latest (
			automa_id      VARCHAR(255) PRIMARY KEY,
			format_version INT NOT NULL,
			snapshot       LONGBLOB NOT NULL,
			updated_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS automa_checkpoints (
			automa_id      VARCHAR(255) NOT NULL,
			label          VARCHAR(255) NOT NULL,
			format_version INT NOT NULL,
			snapshot       LONGBLOB NOT NULL,
			created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (automa_id, label)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("automa/store: migrate mysql schema: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) SaveLatest(ctx context.Context, automaID string, formatVersion int, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automa_latest (automa_id, format_version, snapshot)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE format_version = VALUES(format_version), snapshot = VALUES(snapshot)
	`, automaID, formatVersion, snapshot)
	if err != nil {
		return fmt.Errorf("automa/store: save latest: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadLatest(ctx context.Context, automaID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT format_version, snapshot FROM automa_latest WHERE automa_id = ?`, automaID)
	rec := Record{AutomaID: automaID}
	if err := row.Scan(&rec.FormatVersion, &rec.Snapshot); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("automa/store: load latest: %w", err)
	}
	return rec, nil
}

func (s *MySQLStore) SaveCheckpoint(ctx context.Context, automaID, label string, formatVersion int, snapshot []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automa_checkpoints (automa_id, label, format_version, snapshot)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE format_version = VALUES(format_version), snapshot = VALUES(snapshot)
	`, automaID, label, formatVersion, snapshot)
	if err != nil {
		return fmt.Errorf("automa/store: save checkpoint: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadCheckpoint(ctx context.Context, automaID, label string) (Record, error) {
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

func (s *MySQLStore) Close() error { return s.db.Close() }
