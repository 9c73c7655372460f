package sqlite

import (
	"context"

	"github.com/homu-merge/homu/internal/store"
)

// UpsertMergeability caches the host's tri-state mergeability signal.
func (s *Store) UpsertMergeability(ctx context.Context, row store.MergeableRow) error {
	const query = `
		INSERT INTO mergeable (repo, num, mergeable)
		VALUES (?, ?, ?)
		ON CONFLICT(repo, num) DO UPDATE SET mergeable = excluded.mergeable
	`
	_, err := s.db.Writer.ExecContext(ctx, query, row.Repo, row.Number, row.Mergeable)
	return err
}

func loadMergeables(ctx context.Context, s *Store) ([]store.MergeableRow, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `SELECT repo, num, mergeable FROM mergeable`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MergeableRow
	for rows.Next() {
		var row store.MergeableRow
		if err := rows.Scan(&row.Repo, &row.Number, &row.Mergeable); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
