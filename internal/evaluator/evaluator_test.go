package evaluator

import (
	"context"
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
	provider = common.HexToAddress("0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3")
	usdc     = model.MustAssetID("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth     = model.MustAssetID("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	link     = model.MustAssetID("0x514910771AF9Ca656af840dff83E8264EcF986CA")
)

func units(whole int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

func milliEther(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000))
}

func newEvaluator(fake *testutil.FakeChain, prices testutil.StaticPrices) *Evaluator {
	decimals := lending.NewDecimalsRegistry(nil, map[model.AssetID]uint8{usdc: 6, weth: 18, link: 18})
	return New(Config{
		DataProvider: provider,
		Assets:       []model.AssetID{usdc, weth, link},
	}, fake, prices, decimals, nil)
}

func position(user common.Address, hf float64) model.Position {
	return model.Position{
		User:          user,
		HealthFactor:  testutil.HealthFactor(hf),
		TotalDebtBase: big.NewInt(100_000_000_000),
	}
}

func TestCandidatesHalfCloseFactor(t *testing.T) {
	fake := testutil.NewFakeChain()
	reserves := testutil.NewReserves(fake, provider)
	user := common.HexToAddress("0x01")
	reserves.Set(usdc, user, nil, units(1000, 6), false)
	reserves.Set(weth, user, milliEther(600), nil, true)

	ev := newEvaluator(fake, testutil.StaticPrices{usdc: 1, weth: 2000, link: 15})
	candidates, err := ev.Candidates(context.Background(), []model.Position{position(user, 0.97)})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, usdc, c.DebtAsset)
	assert.Equal(t, weth, c.CollateralAsset)
	assert.Equal(t, units(500, 6).String(), c.DebtToCover.String())
	assert.Equal(t, "262500000000000000", c.CollateralAmount.String())
}

func TestCandidatesFullCloseCappedAtBalance(t *testing.T) {
	fake := testutil.NewFakeChain()
	reserves := testutil.NewReserves(fake, provider)
	user := common.HexToAddress("0x02")
	reserves.Set(usdc, user, nil, units(1000, 6), false)
	reserves.Set(weth, user, milliEther(500), nil, true)
	reserves.Set(link, user, units(1, 18), nil, true)

	ev := newEvaluator(fake, testutil.StaticPrices{usdc: 1, weth: 2000, link: 15})
	candidates, err := ev.Candidates(context.Background(), []model.Position{position(user, 0.9)})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, weth, c.CollateralAsset)
	assert.Equal(t, units(1000, 6).String(), c.DebtToCover.String())
	assert.Equal(t, milliEther(500).String(), c.CollateralAmount.String())
}

func TestCandidatesSkipsHealthyAndUnpriced(t *testing.T) {
	fake := testutil.NewFakeChain()
	reserves := testutil.NewReserves(fake, provider)
	healthy := common.HexToAddress("0x03")
	unpriced := common.HexToAddress("0x04")
	reserves.Set(usdc, healthy, nil, units(1000, 6), false)
	reserves.Set(weth, healthy, milliEther(900), nil, true)
	reserves.Set(usdc, unpriced, nil, units(1000, 6), false)
	reserves.Set(link, unpriced, units(100, 18), nil, true)

	ev := newEvaluator(fake, testutil.StaticPrices{usdc: 1, weth: 2000})
	candidates, err := ev.Candidates(context.Background(), []model.Position{
		position(healthy, 1.4),
		position(unpriced, 0.8),
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	parsed, _ := lending.DataProviderABI()
	assert.Equal(t, 2, fake.Calls(provider, parsed, "getUserReserveData"))
}

func TestCandidatesNoPrices(t *testing.T) {
	fake := testutil.NewFakeChain()
	ev := newEvaluator(fake, testutil.StaticPrices{})
	_, err := ev.Candidates(context.Background(), []model.Position{position(common.HexToAddress("0x05"), 0.5)})
	assert.Error(t, err)
}
