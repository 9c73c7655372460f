// Package sqlite is the sqlite-backed implementation of the store.Store
// contract (§4.1), grounded on the dual reader/writer connection-pool
// pattern used for the same job in the retrieved mygitpanel repo.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB holds a dedicated single-connection writer pool (sqlite allows exactly
// one writer at a time; §4.1 already forbids concurrent writers by
// convention, this enforces it at the pool level too) and a small
// multi-connection reader pool for the handful of reads that don't run on
// a supervisor goroutine (metrics, health checks).
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// Open creates (or reopens) a WAL-mode sqlite database at path.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.Ping(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.Ping(); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	if err := RunMigrations(writer); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

// Close closes both connection pools, returning the first error.
func (db *DB) Close() error {
	var firstErr error
	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}
