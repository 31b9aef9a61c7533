package oracle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
	"liquidationScope/internal/testutil"
)

var (
	oracleAddr = common.HexToAddress("0x54586bE62E3c3580375aE3723C145253060Ca0C2")
	weth       = model.MustAssetID("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc       = model.MustAssetID("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	unknown    = model.MustAssetID("0x0000000000000000000000000000000000000bad")
)

func newFixture(t *testing.T) (*testutil.FakeChain, *testutil.Prices, *Client) {
	t.Helper()
	fake := testutil.NewFakeChain()
	prices := testutil.NewPrices(fake, oracleAddr)
	prices.SetUSD(weth, 300_000)
	prices.SetUSD(usdc, 100)
	return fake, prices, NewClient(fake, oracleAddr, 2, nil)
}

func oracleReads(t *testing.T, fake *testutil.FakeChain) int {
	t.Helper()
	parsed, err := lending.OracleABI()
	require.NoError(t, err)
	return fake.Calls(oracleAddr, parsed, "getAssetPrice")
}

func TestAssetPriceUSDMemoizesLatest(t *testing.T) {
	fake, _, client := newFixture(t)

	first, err := client.AssetPriceUSD(context.Background(), weth, nil)
	require.NoError(t, err)
	second, err := client.AssetPriceUSD(context.Background(), weth, nil)
	require.NoError(t, err)

	assert.Equal(t, 3000.0, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, oracleReads(t, fake))
}

func TestAssetPriceUSDKeysByBlock(t *testing.T) {
	fake, prices, client := newFixture(t)
	block := uint64(19_000_000)

	_, err := client.AssetPriceUSD(context.Background(), weth, nil)
	require.NoError(t, err)

	prices.SetUSD(weth, 310_000)
	historical, err := client.AssetPriceUSD(context.Background(), weth, &block)
	require.NoError(t, err)

	// Block is not forwarded: the historical key is filled with the latest price.
	assert.Equal(t, 3100.0, historical)
	assert.Equal(t, 2, oracleReads(t, fake))
	assert.Equal(t, 2, client.CacheSize())
}

func TestAssetPriceUSDZeroIsUnavailable(t *testing.T) {
	fake := testutil.NewFakeChain()
	prices := testutil.NewPrices(fake, oracleAddr)
	prices.SetUSD(weth, 0)
	client := NewClient(fake, oracleAddr, 1, nil)

	_, err := client.AssetPriceUSD(context.Background(), weth, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
	assert.Equal(t, 0, client.CacheSize())
}

func TestBatchAssetPricesOmitsUnresolved(t *testing.T) {
	_, _, client := newFixture(t)

	got := client.BatchAssetPrices(context.Background(), []model.AssetID{weth, usdc, unknown, weth}, nil)

	assert.Equal(t, map[model.AssetID]float64{weth: 3000, usdc: 1}, got)
	_, ok := got[unknown]
	assert.False(t, ok, "missing price must be absent, not zero")
}

func TestToUSD(t *testing.T) {
	assert.Equal(t, 1.5, ToUSD(big.NewInt(150_000_000)))
	assert.Equal(t, 0.0, ToUSD(nil))
}
