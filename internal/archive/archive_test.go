package archive

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/ogi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ogi.db")
	store, err := Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleVerdict() ogi.CollectResult {
	return ogi.CollectResult{
		Results: []ogi.Result{
			{QueryID: "sq-1", Success: true, Content: "summary one", DurationMS: 120, Venue: "mock"},
			{QueryID: "sq-2", Success: false, Error: "rate limited", DurationMS: 45, Venue: "mock"},
		},
		TimedOut:   []string{"sq-3"},
		QuorumMet:  false,
		DurationMS: 980,
	}
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "batch-1", "Summarize: {fragment}", "mock", sampleVerdict()))

	rec, found, err := store.Get(ctx, "batch-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "batch-1", rec.BatchID)
	assert.Equal(t, "Summarize: {fragment}", rec.Template)
	assert.Equal(t, "mock", rec.Venue)
	assert.False(t, rec.QuorumMet)
	assert.Equal(t, int64(980), rec.DurationMS)
	assert.Equal(t, []string{"sq-3"}, rec.TimedOut)
	require.Len(t, rec.Results, 2)
	assert.Equal(t, "summary one", rec.Results[0].Content)
	assert.Equal(t, "rate limited", rec.Results[1].Error)
	assert.WithinDuration(t, time.Now().UTC(), rec.ArchivedAt, time.Minute)
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, found, err := store.Get(context.Background(), "no-such-batch")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaveOverwritesSameBatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := sampleVerdict()
	require.NoError(t, store.Save(ctx, "batch-1", "tpl", "mock", first))

	second := ogi.CollectResult{
		Results: []ogi.Result{
			{QueryID: "sq-1", Success: true, Content: "summary one", DurationMS: 120},
			{QueryID: "sq-2", Success: true, Content: "summary two", DurationMS: 300},
			{QueryID: "sq-3", Success: true, Content: "summary three", DurationMS: 410},
		},
		TimedOut:   []string{},
		QuorumMet:  true,
		DurationMS: 1500,
	}
	require.NoError(t, store.Save(ctx, "batch-1", "tpl", "mock", second))

	rec, found, err := store.Get(ctx, "batch-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, rec.QuorumMet)
	assert.Empty(t, rec.TimedOut)
	assert.Len(t, rec.Results, 3)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "batch-old", "tpl", "mock", sampleVerdict()))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Save(ctx, "batch-new", "tpl", "mock", sampleVerdict()))

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "batch-new", records[0].BatchID)
	assert.Equal(t, "batch-old", records[1].BatchID)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
