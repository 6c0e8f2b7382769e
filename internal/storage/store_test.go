package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RecordAndAggregate(t *testing.T) {
	store := newTestStore(t)

	records := []*UsageRecord{
		{Feature: "strategy", Model: "gemini-3-pro-preview", InputTokens: 100, OutputTokens: 200, CostUSD: 0.5},
		{Feature: "strategy", Model: "gemini-3-pro-preview", InputTokens: 50, OutputTokens: 25, CostUSD: 0.25},
		{Feature: "competitors", Model: "gemini-2.5-flash", InputTokens: 10, OutputTokens: 20, CostUSD: 0.01},
	}
	for _, rec := range records {
		require.NoError(t, store.RecordUsage(rec))
		assert.NotZero(t, rec.ID)
		assert.False(t, rec.CreatedAt.IsZero())
	}

	usage, err := store.UsageByFeature()
	require.NoError(t, err)
	require.Len(t, usage, 2)

	assert.Equal(t, "competitors", usage[0].Feature)
	assert.Equal(t, int64(1), usage[0].Calls)

	assert.Equal(t, "strategy", usage[1].Feature)
	assert.Equal(t, int64(2), usage[1].Calls)
	assert.Equal(t, int64(150), usage[1].InputTokens)
	assert.Equal(t, int64(225), usage[1].OutputTokens)
	assert.InDelta(t, 0.75, usage[1].CostUSD, 1e-9)
}

func TestSQLiteStore_RecentUsage(t *testing.T) {
	store := newTestStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordUsage(&UsageRecord{Feature: "reviews", Model: "m", CreatedAt: created}))
	require.NoError(t, store.RecordUsage(&UsageRecord{
		Feature:     "screenshot",
		Model:       "m",
		ImageDigest: ImageDigest([]byte("png")),
		CreatedAt:   created.Add(time.Minute),
	}))

	recent, err := store.RecentUsage(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "screenshot", recent[0].Feature)
	assert.Equal(t, ImageDigest([]byte("png")), recent[0].ImageDigest)
	assert.True(t, created.Add(time.Minute).Equal(recent[0].CreatedAt))

	all, err := store.RecentUsage(10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Empty(t, all[1].ImageDigest)
}

func TestSQLiteStore_PruneUsage(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.RecordUsage(&UsageRecord{Feature: "strategy", Model: "m", CreatedAt: now.Add(-100 * 24 * time.Hour)}))
	require.NoError(t, store.RecordUsage(&UsageRecord{Feature: "reviews", Model: "m", CreatedAt: now.Add(-time.Hour)}))

	pruned, err := store.PruneUsage(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	remaining, err := store.RecentUsage(10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "reviews", remaining[0].Feature)
}

func TestSQLiteStore_EmptyLedger(t *testing.T) {
	store := newTestStore(t)

	usage, err := store.UsageByFeature()
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestImageDigest(t *testing.T) {
	a := ImageDigest([]byte{1, 2, 3})
	assert.Len(t, a, 64)
	assert.Equal(t, a, ImageDigest([]byte{1, 2, 3}))
	assert.NotEqual(t, a, ImageDigest([]byte{1, 2, 4}))
}
