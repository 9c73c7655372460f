package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTrigger_AndIncrementCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordTrigger(ctx, "auto", "requested-sha", "produced-sha"))

	res, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Triggers, 1)
	assert.Equal(t, "requested-sha", res.Triggers[0].TriggerSHA)
	assert.Equal(t, "produced-sha", res.Triggers[0].TargetSHA)
	assert.Equal(t, 1, res.Triggers[0].BuildCount)

	require.NoError(t, s.IncrementTriggerCount(ctx, "requested-sha"))

	res, err = s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Triggers, 1)
	assert.Equal(t, 2, res.Triggers[0].BuildCount)
}

func TestRecordTrigger_UpsertReplacesTargetSHA(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordTrigger(ctx, "auto", "sha-a", "first-produced"))
	require.NoError(t, s.RecordTrigger(ctx, "auto", "sha-a", "second-produced"))

	res, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Triggers, 1)
	assert.Equal(t, "second-produced", res.Triggers[0].TargetSHA)
}
