package cache_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageConfig "github.com/hartwell/standwatch/internal/storage/config"
	"github.com/hartwell/standwatch/internal/storage/local"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/weather"
	"github.com/hartwell/standwatch/internal/weather/cache"
)

var cacheFields = []string{"Temperature", "Humidity"}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{
		Type:    "local",
		BaseDir: t.TempDir(),
	}, "test")
	require.NoError(t, err)
	return cache.NewStore(conn, "weather/history.parquet", "SNAPPY")
}

func cacheTable(t *testing.T, start time.Time, hours int) *weather.Table {
	t.Helper()
	table := weather.NewTable(cacheFields)
	for i := 0; i < hours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		require.NoError(t, table.Append(ts, map[string]float64{
			"Temperature": 60 + float64(i),
			"Humidity":    50 + float64(i),
		}))
	}
	return table
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)
	table := cacheTable(t, start, 5)

	require.NoError(t, store.Save(context.Background(), table))

	loaded, err := store.Load(context.Background(), cacheFields, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, table.Len(), loaded.Len())
	for _, ts := range table.Times() {
		want, _ := table.Row(ts)
		got, ok := loaded.Row(ts)
		require.True(t, ok, "missing row at %s", ts)
		assert.Equal(t, want, got)
	}
}

func TestStore_LoadMissingObjectIsEmpty(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load(context.Background(), cacheFields, time.UTC)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_SaveEmptyTableIsNoop(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(context.Background(), weather.NewTable(cacheFields)))
	require.NoError(t, store.Save(context.Background(), nil))

	loaded, err := store.Load(context.Background(), cacheFields, time.UTC)
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_CorruptObjectReportsCorruption(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{
		Type:    "local",
		BaseDir: dir,
	}, "test")
	require.NoError(t, err)

	// Overwrite the cache object with bytes that are not parquet.
	require.NoError(t, conn.Upload(context.Background(), "", "weather/history.parquet",
		strings.NewReader("not a parquet file"), "application/octet-stream"))

	store := cache.NewStore(conn, "weather/history.parquet", "SNAPPY")
	_, err = store.Load(context.Background(), cacheFields, time.UTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrCacheCorruption)
}

func TestStore_OverwriteReplacesContents(t *testing.T) {
	store := newTestStore(t)
	start := time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(context.Background(), cacheTable(t, start, 5)))
	require.NoError(t, store.Save(context.Background(), cacheTable(t, start.Add(48*time.Hour), 2)))

	loaded, err := store.Load(context.Background(), cacheFields, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.Len())

	earliest, ok := loaded.Earliest()
	require.True(t, ok)
	assert.True(t, earliest.Equal(start.Add(48*time.Hour)))
}
