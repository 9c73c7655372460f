package sqlite

import (
	"context"
	"time"

	"github.com/homu-merge/homu/internal/store"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UpsertPull writes the full current state of one pull request.
func (s *Store) UpsertPull(ctx context.Context, snap store.PullSnapshot) error {
	const query = `
		INSERT INTO pull (
			repo, num, status, merge_sha, title, body, head_sha, head_ref,
			base_ref, assignee, approved_by, priority, try, rollup, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(repo, num) DO UPDATE SET
			status = excluded.status,
			merge_sha = excluded.merge_sha,
			title = excluded.title,
			body = excluded.body,
			head_sha = excluded.head_sha,
			head_ref = excluded.head_ref,
			base_ref = excluded.base_ref,
			assignee = excluded.assignee,
			approved_by = excluded.approved_by,
			priority = excluded.priority,
			try = excluded.try,
			rollup = excluded.rollup,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := s.db.Writer.ExecContext(ctx, query,
		snap.Repo, snap.Number, snap.Status, snap.MergeSHA, snap.Title, snap.Body,
		snap.HeadSHA, snap.HeadRef, snap.BaseRef, snap.Assignee, snap.ApprovedBy,
		snap.Priority, boolToInt(snap.Try), boolToInt(snap.Rollup),
	)
	return err
}

// DeletePull removes a pull request and every subordinate row (§3.3).
func (s *Store) DeletePull(ctx context.Context, repo string, num int) error {
	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"pull", "build_res", "mergeable", "delegates"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE repo = ? AND num = ?", repo, num); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteOlderThan lazily garbage-collects rows untouched since cutoff
// (§3.3: "deleted lazily").
func (s *Store) DeleteOlderThan(ctx context.Context, repo string, cutoff time.Time) error {
	rows, err := s.db.Writer.QueryContext(ctx,
		`SELECT num FROM pull WHERE repo = ? AND CAST(strftime('%s', updated_at) AS INTEGER) < ?`, repo, cutoff.Unix())
	if err != nil {
		return err
	}
	var nums []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return err
		}
		nums = append(nums, n)
	}
	rows.Close()

	for _, n := range nums {
		if err := s.DeletePull(ctx, repo, n); err != nil {
			return err
		}
	}
	return nil
}

func loadPulls(ctx context.Context, s *Store) ([]store.PullSnapshot, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `
		SELECT repo, num, status, merge_sha, title, body, head_sha, head_ref,
		       base_ref, assignee, approved_by, priority, try, rollup
		FROM pull
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.PullSnapshot
	for rows.Next() {
		var snap store.PullSnapshot
		var try, rollup int
		if err := rows.Scan(&snap.Repo, &snap.Number, &snap.Status, &snap.MergeSHA,
			&snap.Title, &snap.Body, &snap.HeadSHA, &snap.HeadRef, &snap.BaseRef,
			&snap.Assignee, &snap.ApprovedBy, &snap.Priority, &try, &rollup); err != nil {
			return nil, err
		}
		snap.Try = try != 0
		snap.Rollup = rollup != 0
		out = append(out, snap)
	}
	return out, rows.Err()
}
