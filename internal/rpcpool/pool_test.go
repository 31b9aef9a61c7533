package rpcpool

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	name  string
	calls atomic.Int64
}

func (s *stubBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	s.calls.Add(1)
	return []byte(s.name), nil
}

func (s *stubBackend) FilterLogs(context.Context, uint64, uint64, []common.Address, [][]common.Hash) ([]types.Log, error) {
	return nil, nil
}

func (s *stubBackend) LatestBlockNumber(context.Context) (uint64, error) { return 1, nil }

func (s *stubBackend) BlockTimestamp(context.Context, uint64) (uint64, error) { return 1, nil }

func (s *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func TestClientRoundRobin(t *testing.T) {
	a, b, c := &stubBackend{name: "a"}, &stubBackend{name: "b"}, &stubBackend{name: "c"}
	pool := New(NewEndpoint("a", a, nil), NewEndpoint("b", b, nil), NewEndpoint("c", c, nil))

	var got []string
	for i := 0; i < 6; i++ {
		out, err := pool.Client().CallContract(context.Background(), ethereum.CallMsg{}, nil)
		require.NoError(t, err)
		got = append(got, string(out))
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, got)
	assert.Equal(t, map[string]uint64{"a": 2, "b": 2, "c": 2}, pool.Stats())
	assert.Len(t, pool.Clients(), 3)
}

func TestClientEmptyPool(t *testing.T) {
	assert.Nil(t, New().Client())
}

func TestParallelFetchBoundsConcurrency(t *testing.T) {
	const limit = 3
	var inFlight, peak atomic.Int64
	var mu sync.Mutex

	tasks := make([]Task[int], 20)
	for i := range tasks {
		i := i
		tasks[i] = func(context.Context) (int, error) {
			cur := inFlight.Add(1)
			mu.Lock()
			if cur > peak.Load() {
				peak.Store(cur)
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return i * i, nil
		}
	}

	results := ParallelFetch(context.Background(), limit, tasks)
	require.Len(t, results, 20)
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, i*i, res.Value)
	}
	assert.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestParallelFetchReportsIndividualFailures(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task[string]{
		func(context.Context) (string, error) { return "ok", nil },
		func(context.Context) (string, error) { return "", boom },
		func(context.Context) (string, error) { return "also ok", nil },
	}

	results := ParallelFetch(context.Background(), 2, tasks)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "also ok", results[2].Value)
}

func TestParallelFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task[int]{
		func(context.Context) (int, error) { return 1, nil },
	}
	results := ParallelFetch(ctx, 1, tasks)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
