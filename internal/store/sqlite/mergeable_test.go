package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homu-merge/homu/internal/store"
)

func TestUpsertMergeability_Overwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	repo := "rust-lang/rust"

	require.NoError(t, s.UpsertMergeability(ctx, store.MergeableRow{Repo: repo, Number: 1, Mergeable: "unknown"}))
	require.NoError(t, s.UpsertMergeability(ctx, store.MergeableRow{Repo: repo, Number: 1, Mergeable: "conflict"}))

	res, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Mergeables, 1)
	assert.Equal(t, "conflict", res.Mergeables[0].Mergeable)
}
