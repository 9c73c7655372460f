// Package store is the durable write-through log for the Model (§4.1).
// It persists pull-request snapshots, build results, the mergeability
// cache, and integration-branch build-trigger provenance, and lets a
// restarted service rehydrate its in-memory Model without re-downloading
// everything from the host.
package store

import (
	"context"
	"time"
)

// PullSnapshot is the full persisted state of one pull request, matching
// the `pull` table's columns (§6).
type PullSnapshot struct {
	Repo      string
	Number    int
	Status    string
	MergeSHA  string
	Title     string
	Body      string
	HeadSHA   string
	HeadRef   string
	BaseRef   string
	Assignee  string
	ApprovedBy string
	Priority  int
	Try       bool
	Rollup    bool
}

// BuildResultRow matches the `build_res` table (§6).
type BuildResultRow struct {
	Repo     string
	Number   int
	Builder  string
	Verdict  string
	URL      string
	MergeSHA string
}

// MergeableRow matches the `mergeable` table (§6).
type MergeableRow struct {
	Repo      string
	Number    int
	Mergeable string
}

// BuildTriggerRow matches the `build_triggers` table (§6).
type BuildTriggerRow struct {
	Branch      string
	TriggerSHA  string
	TargetSHA   string
	BuildCount  int
}

// DelegateRow matches the EXPANSION `delegates` table (SPEC_FULL.md §6).
type DelegateRow struct {
	Repo     string
	Number   int
	Delegate string
}

// LoadResult is everything needed to rehydrate a Model at startup.
type LoadResult struct {
	Pulls      []PullSnapshot
	Builds     []BuildResultRow
	Mergeables []MergeableRow
	Triggers   []BuildTriggerRow
	Delegates  []DelegateRow
}

// Store is the persistence contract §4.1 describes. The sqlite package
// provides the concrete implementation.
type Store interface {
	UpsertPull(ctx context.Context, snap PullSnapshot) error
	DeletePull(ctx context.Context, repo string, num int) error

	RecordBuild(ctx context.Context, row BuildResultRow) error

	UpsertMergeability(ctx context.Context, row MergeableRow) error

	RecordTrigger(ctx context.Context, branch, requestedSHA, producedSHA string) error
	IncrementTriggerCount(ctx context.Context, triggerSHA string) error

	UpsertDelegate(ctx context.Context, row DelegateRow) error
	DeleteDelegate(ctx context.Context, repo string, num int, delegate string) error

	LoadAll(ctx context.Context) (LoadResult, error)

	// DeleteOlderThan lazily garbage-collects pull-request rows (and their
	// subordinate build/mergeable/delegate rows) for a repo whose last
	// write predates cutoff (§3.3: "deleted lazily").
	DeleteOlderThan(ctx context.Context, repo string, cutoff time.Time) error

	Close() error
}
