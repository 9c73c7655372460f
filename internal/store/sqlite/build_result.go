package sqlite

import (
	"context"

	"github.com/homu-merge/homu/internal/store"
)

// RecordBuild upserts one builder's verdict for a (repo, num) pull request.
func (s *Store) RecordBuild(ctx context.Context, row store.BuildResultRow) error {
	const query = `
		INSERT INTO build_res (repo, num, builder, res, url, merge_sha)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo, num, builder) DO UPDATE SET
			res = excluded.res,
			url = excluded.url,
			merge_sha = excluded.merge_sha
	`
	_, err := s.db.Writer.ExecContext(ctx, query, row.Repo, row.Number, row.Builder, row.Verdict, row.URL, row.MergeSHA)
	return err
}

func loadBuildResults(ctx context.Context, s *Store) ([]store.BuildResultRow, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `SELECT repo, num, builder, res, url, merge_sha FROM build_res`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.BuildResultRow
	for rows.Next() {
		var row store.BuildResultRow
		if err := rows.Scan(&row.Repo, &row.Number, &row.Builder, &row.Verdict, &row.URL, &row.MergeSHA); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
