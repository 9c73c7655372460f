package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homu-merge/homu/internal/store"
)

func TestRecordBuild_UpsertByBuilder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	repo := "rust-lang/rust"

	require.NoError(t, s.RecordBuild(ctx, store.BuildResultRow{
		Repo: repo, Number: 1, Builder: "linux", Verdict: "pending",
	}))
	require.NoError(t, s.RecordBuild(ctx, store.BuildResultRow{
		Repo: repo, Number: 1, Builder: "linux", Verdict: "success", URL: "https://ci/1",
	}))
	require.NoError(t, s.RecordBuild(ctx, store.BuildResultRow{
		Repo: repo, Number: 1, Builder: "windows", Verdict: "failure",
	}))

	res, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Builds, 2)

	byBuilder := map[string]store.BuildResultRow{}
	for _, b := range res.Builds {
		byBuilder[b.Builder] = b
	}
	assert.Equal(t, "success", byBuilder["linux"].Verdict)
	assert.Equal(t, "https://ci/1", byBuilder["linux"].URL)
	assert.Equal(t, "failure", byBuilder["windows"].Verdict)
}
