package sqlite

import (
	"context"

	"github.com/homu-merge/homu/internal/store"
)

// RecordTrigger persists the provenance of one push to an integration
// branch: the branch, the SHA Homu asked the host to produce, and the SHA
// the host actually produced. Keyed on trigger_sha so a push webhook racing
// a build start can be recognized as a duplicate (§4.1).
func (s *Store) RecordTrigger(ctx context.Context, branch, requestedSHA, producedSHA string) error {
	const query = `
		INSERT INTO build_triggers (trigger_sha, branch, target_sha, build_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(trigger_sha) DO UPDATE SET
			branch = excluded.branch,
			target_sha = excluded.target_sha
	`
	_, err := s.db.Writer.ExecContext(ctx, query, requestedSHA, branch, producedSHA)
	return err
}

// IncrementTriggerCount bumps the retry counter for an existing trigger row.
func (s *Store) IncrementTriggerCount(ctx context.Context, triggerSHA string) error {
	_, err := s.db.Writer.ExecContext(ctx,
		`UPDATE build_triggers SET build_count = build_count + 1 WHERE trigger_sha = ?`, triggerSHA)
	return err
}

func loadTriggers(ctx context.Context, s *Store) ([]store.BuildTriggerRow, error) {
	rows, err := s.db.Reader.QueryContext(ctx, `SELECT trigger_sha, branch, target_sha, build_count FROM build_triggers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.BuildTriggerRow
	for rows.Next() {
		var row store.BuildTriggerRow
		if err := rows.Scan(&row.TriggerSHA, &row.Branch, &row.TargetSHA, &row.BuildCount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
