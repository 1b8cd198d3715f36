package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kws/types"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	client, err := NewSQLiteClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAddAndGetRun(t *testing.T) {
	client := newTestClient(t)

	run := types.Run{
		StartedAt: "2026-08-30T12:00:00Z",
		Epochs:    20,
		BatchSize: 32,
		Limit:     3000,
		Seed:      42,
		TestAcc:   87.5,
	}
	id, err := client.AddRun(run)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	got, found, err := client.GetRun(id)
	require.NoError(t, err)
	require.True(t, found)
	run.ID = id
	assert.Equal(t, run, got)
}

func TestGetRunMissing(t *testing.T) {
	client := newTestClient(t)
	_, found, err := client.GetRun(99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEpochMetricsRoundTrip(t *testing.T) {
	client := newTestClient(t)

	id, err := client.AddRun(types.Run{StartedAt: "2026-08-30T12:00:00Z", Epochs: 2, BatchSize: 32})
	require.NoError(t, err)

	metrics := []types.EpochMetrics{
		{Epoch: 1, TrainLoss: 2.1, TrainAcc: 30, ValLoss: 2.2, ValAcc: 28},
		{Epoch: 2, TrainLoss: 1.6, TrainAcc: 48, ValLoss: 1.8, ValAcc: 44},
	}
	require.NoError(t, client.AddEpochMetrics(id, metrics))

	got, err := client.GetEpochMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, metrics, got)
}

func TestEpochMetricsUpsert(t *testing.T) {
	client := newTestClient(t)

	id, err := client.AddRun(types.Run{StartedAt: "2026-08-30T12:00:00Z", Epochs: 1, BatchSize: 32})
	require.NoError(t, err)

	first := []types.EpochMetrics{{Epoch: 1, TrainLoss: 2.0, TrainAcc: 30, ValLoss: 2.1, ValAcc: 29}}
	require.NoError(t, client.AddEpochMetrics(id, first))

	second := []types.EpochMetrics{{Epoch: 1, TrainLoss: 1.5, TrainAcc: 50, ValLoss: 1.7, ValAcc: 46}}
	require.NoError(t, client.AddEpochMetrics(id, second))

	got, err := client.GetEpochMetrics(id)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestMetricsScopedPerRun(t *testing.T) {
	client := newTestClient(t)

	a, err := client.AddRun(types.Run{StartedAt: "2026-08-30T12:00:00Z", Epochs: 1, BatchSize: 32})
	require.NoError(t, err)
	b, err := client.AddRun(types.Run{StartedAt: "2026-08-30T13:00:00Z", Epochs: 1, BatchSize: 32})
	require.NoError(t, err)

	require.NoError(t, client.AddEpochMetrics(a, []types.EpochMetrics{{Epoch: 1, TrainLoss: 1}}))
	require.NoError(t, client.AddEpochMetrics(b, []types.EpochMetrics{{Epoch: 1, TrainLoss: 2}}))

	got, err := client.GetEpochMetrics(a)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].TrainLoss)
}
