package syncstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidationScope/internal/model"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "sync.json")}
	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	start, err := StartBlock(context.Background(), store, 19_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(19_000_000), start)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "sync.json")
	store := &FileStore{Path: path}
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, model.SyncState{LastScannedBlock: 100, LastScannedTimestamp: 1_700_000_000_000}))
	require.NoError(t, store.Save(ctx, model.SyncState{LastScannedBlock: 200, LastScannedTimestamp: 1_700_000_012_000}))

	state, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(200), state.LastScannedBlock)
	assert.Equal(t, int64(1_700_000_012_000), state.LastScannedTimestamp)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lastScannedBlock": 200`)

	start, err := StartBlock(ctx, store, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(201), start)
}

func TestStartBlockHonorsLaterFallback(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "sync.json")}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, model.SyncState{LastScannedBlock: 10}))

	start, err := StartBlock(ctx, store, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), start)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, _, err := (&FileStore{Path: path}).Load(context.Background())
	assert.Error(t, err)
}
