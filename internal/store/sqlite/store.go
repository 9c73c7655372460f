package sqlite

import (
	"context"

	"github.com/homu-merge/homu/internal/store"
)

// Compile-time interface satisfaction check, mirroring the pattern the
// mygitpanel repo uses for its own repo types.
var _ store.Store = (*Store)(nil)

// Store is the sqlite-backed implementation of store.Store.
type Store struct {
	db *DB
}

// New opens (and migrates) a sqlite database at path and returns a Store
// backed by it.
func New(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connections.
func (s *Store) Close() error { return s.db.Close() }

// LoadAll streams every persisted row so the Model can be rehydrated at
// startup (§4.1).
func (s *Store) LoadAll(ctx context.Context) (store.LoadResult, error) {
	var res store.LoadResult

	pulls, err := loadPulls(ctx, s)
	if err != nil {
		return res, err
	}
	res.Pulls = pulls

	builds, err := loadBuildResults(ctx, s)
	if err != nil {
		return res, err
	}
	res.Builds = builds

	mergeables, err := loadMergeables(ctx, s)
	if err != nil {
		return res, err
	}
	res.Mergeables = mergeables

	triggers, err := loadTriggers(ctx, s)
	if err != nil {
		return res, err
	}
	res.Triggers = triggers

	delegates, err := loadDelegates(ctx, s)
	if err != nil {
		return res, err
	}
	res.Delegates = delegates

	return res, nil
}
