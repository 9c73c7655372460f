package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
)

// setupTestStore creates a named shared in-memory sqlite database for
// testing. Writer and reader connections share the same in-memory database
// via cache=shared; a unique name derived from t.Name() isolates parallel
// tests from each other.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	safeName := url.PathEscape(t.Name())
	// WAL mode doesn't apply to in-memory databases; omit the journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	s := &Store{db: db}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
