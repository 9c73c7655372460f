package sqlite

import (
	"context"

	"github.com/homu-merge/homu/internal/store"
)

// UpsertDelegate persists a delegated-approval grant so it survives a
// restart (SPEC_FULL.md §6 EXPANSION).
func (s *Store) UpsertDelegate(ctx context.Context, row store.DelegateRow) error {
	_, err := s.db.Writer.ExecContext(ctx,
		`INSERT INTO delegates (repo, num, delegate) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
		row.Repo, row.Number, row.Delegate)
	return err
}

// DeleteDelegate revokes a delegated-approval grant.
func (s *Store) DeleteDelegate(ctx context.Context, repo string, num int, delegate string) error {
	_, err := s.db.Writer.ExecContext(ctx,
		`DELETE FROM delegates WHERE repo = ? AND num = ? AND delegate = ?`, repo, num, delegate)
	return err
}

func loadDelegates(ctx context.Context, s *Store) ([]store.DelegateRow, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `SELECT repo, num, delegate FROM delegates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.DelegateRow
	for rows.Next() {
		var row store.DelegateRow
		if err := rows.Scan(&row.Repo, &row.Number, &row.Delegate); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
