package artifact_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hartwell/standwatch/internal/artifact"
	"github.com/hartwell/standwatch/internal/storage"
	storageConfig "github.com/hartwell/standwatch/internal/storage/config"
	"github.com/hartwell/standwatch/internal/storage/local"
)

type modelArtifact struct {
	Center []float64 `json:"center"`
	Spread []float64 `json:"spread"`
}

func newTestConn(t *testing.T) storage.Connection {
	t.Helper()
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{
		Type:    "local",
		BaseDir: t.TempDir(),
	}, "test")
	require.NoError(t, err)
	return conn
}

func TestKey(t *testing.T) {
	assert.Equal(t, "North Cam Deer", artifact.Key("North Cam", "Deer"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := artifact.NewStore(newTestConn(t), "models")
	ctx := context.Background()

	saved := modelArtifact{Center: []float64{1, 2}, Spread: []float64{0.5, 1.5}}
	require.NoError(t, store.Save(ctx, artifact.Key("North Cam", "Deer"), saved))

	var loaded modelArtifact
	found, err := store.Load(ctx, artifact.Key("North Cam", "Deer"), &loaded)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saved, loaded)
}

func TestStore_LoadMissingIsAbsent(t *testing.T) {
	store := artifact.NewStore(newTestConn(t), "models")

	var loaded modelArtifact
	found, err := store.Load(context.Background(), "absent key", &loaded)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestStore_LoadMalformedIsError(t *testing.T) {
	conn := newTestConn(t)
	store := artifact.NewStore(conn, "models")
	ctx := context.Background()

	require.NoError(t, conn.Upload(ctx, "", "models/bad.json", strings.NewReader("{oops"), "application/json"))

	var loaded modelArtifact
	_, err := store.Load(ctx, "bad", &loaded)
	assert.Error(t, err)
}

func TestStore_KeysAndDelete(t *testing.T) {
	conn := newTestConn(t)
	store := artifact.NewStore(conn, "models")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "North Cam Deer", modelArtifact{}))
	require.NoError(t, store.Save(ctx, "Creek Cam Deer", modelArtifact{}))
	// An unrelated non-JSON object is not a key.
	require.NoError(t, conn.Upload(ctx, "", "models/readme.txt", strings.NewReader("x"), "text/plain"))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"North Cam Deer", "Creek Cam Deer"}, keys)

	require.NoError(t, store.Delete(ctx, "North Cam Deer"))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Creek Cam Deer"}, keys)
}
