package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS omnibuild_cache (
	key TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	checksum TEXT NOT NULL,
	built_at TIMESTAMPTZ NOT NULL,
	run_id TEXT NOT NULL DEFAULT ''
)`

// PostgresStore keeps entries in the omnibuild_cache table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with the pgx driver and prepares the table.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres cache requires a database url")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore uses an existing handle and creates the table if needed.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, name, version, checksum, built_at, run_id FROM omnibuild_cache WHERE key = $1`, key)

	var e Entry
	if err := row.Scan(&e.Key, &e.Name, &e.Version, &e.Checksum, &e.BuiltAt, &e.RunID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query cache entry: %w", err)
	}
	return &e, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry Entry) error {
	if entry.Key == "" {
		return ErrEmptyKey
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO omnibuild_cache (key, name, version, checksum, built_at, run_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO NOTHING`,
		entry.Key, entry.Name, entry.Version, entry.Checksum, entry.BuiltAt, entry.RunID)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
