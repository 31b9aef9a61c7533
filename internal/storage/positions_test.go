package storage

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidationScope/internal/model"
)

func TestPositionFileMissingIsEmpty(t *testing.T) {
	store := &PositionFile{Path: filepath.Join(t.TempDir(), "positions.json")}
	users, err := store.MonitoredUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestPositionFileReplacesSet(t *testing.T) {
	store := &PositionFile{Path: filepath.Join(t.TempDir(), "data", "positions.json")}
	ctx := context.Background()
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0b")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	position := func(user common.Address) model.Position {
		return model.Position{User: user, TotalDebtBase: big.NewInt(7_500_000_000), HealthFactor: big.NewInt(1), LastUpdate: at}
	}

	require.NoError(t, store.SavePositions(ctx, []model.Position{position(alice), position(bob)}))
	users, err := store.MonitoredUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, bob}, users)

	require.NoError(t, store.SavePositions(ctx, []model.Position{position(bob)}))
	users, err = store.MonitoredUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{bob}, users)

	require.NoError(t, store.SavePositions(ctx, nil))
	users, err = store.MonitoredUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

var _ PositionStore = (*PositionFile)(nil)
