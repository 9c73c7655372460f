package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homu-merge/homu/internal/store"
)

func TestUpsertAndDeleteDelegate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	repo := "rust-lang/rust"

	require.NoError(t, s.UpsertDelegate(ctx, store.DelegateRow{Repo: repo, Number: 1, Delegate: "contributor"}))
	require.NoError(t, s.UpsertDelegate(ctx, store.DelegateRow{Repo: repo, Number: 1, Delegate: "contributor"}))

	res, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Delegates, 1, "re-granting the same delegate should not duplicate the row")

	require.NoError(t, s.DeleteDelegate(ctx, repo, 1, "contributor"))

	res, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Delegates)
}
