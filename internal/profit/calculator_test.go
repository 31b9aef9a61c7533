package profit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidationScope/internal/model"
)

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func TestCalculate(t *testing.T) {
	// 0.55 WETH collateral at $2000, 1000 USDC debt, 400k gas at 10 gwei.
	collateral := new(big.Int).Mul(big.NewInt(55), pow10(16))
	debt := new(big.Int).Mul(big.NewInt(1000), pow10(6))

	res, err := Calculate(Input{
		CollateralAmount:   collateral,
		CollateralDecimals: 18,
		CollateralPrice:    2000,
		DebtAmount:         debt,
		DebtDecimals:       6,
		DebtPrice:          1,
		GasUsed:            400_000,
		GasPrice:           big.NewInt(10_000_000_000),
		NativePrice:        2000,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1100.0, res.CollateralUSD, 1e-9)
	assert.InDelta(t, 1000.0, res.DebtUSD, 1e-9)
	assert.InDelta(t, 8.0, res.GasUSD, 1e-9)
	assert.InDelta(t, 92.0, res.ProfitUSD, 1e-9)
}

func TestCalculateNegativeProfit(t *testing.T) {
	res, err := Calculate(Input{
		CollateralAmount:   big.NewInt(1_000_000),
		CollateralDecimals: 6,
		CollateralPrice:    1,
		DebtAmount:         big.NewInt(1_000_000),
		DebtDecimals:       6,
		DebtPrice:          1,
		GasUsed:            100_000,
		GasPrice:           big.NewInt(1_000_000_000),
		NativePrice:        2000,
	})
	require.NoError(t, err)
	assert.Less(t, res.ProfitUSD, 0.0)
	assert.InDelta(t, -0.2, res.ProfitUSD, 1e-9)
}

func TestCalculateRejectsMissingAmounts(t *testing.T) {
	_, err := Calculate(Input{DebtAmount: big.NewInt(1)})
	assert.Error(t, err)
	_, err = Calculate(Input{CollateralAmount: big.NewInt(-1), DebtAmount: big.NewInt(1)})
	assert.Error(t, err)
}

func TestToDecimalKeepsPrecision(t *testing.T) {
	// 123456789.123456789012345678 with 18 decimals would lose digits through float math on the raw int.
	raw, ok := new(big.Int).SetString("123456789123456789012345678", 10)
	require.True(t, ok)
	assert.InDelta(t, 123456789.12345679, ToDecimal(raw, 18), 1e-6)
	assert.Equal(t, 0.0, ToDecimal(nil, 6))
}

func TestUSDValueBoundary(t *testing.T) {
	floor := USDValue(big.NewInt(1000), 6, 1)
	assert.Equal(t, "0.001", floor.String())
	below := USDValue(big.NewInt(900), 6, 1)
	assert.True(t, below.LessThan(floor))
}

func TestBaseToUSD(t *testing.T) {
	assert.Equal(t, 75.0, BaseToUSD(big.NewInt(75_00000000)))
}

func TestCloseFactor(t *testing.T) {
	assert.Equal(t, int64(5000), CloseFactorBps(model.HealthFactorOne))
	lowHF := new(big.Int).Div(new(big.Int).Mul(model.HealthFactorOne, big.NewInt(90)), big.NewInt(100))
	assert.Equal(t, int64(10_000), CloseFactorBps(lowHF))

	assert.Equal(t, "500", MaxDebtToCover(big.NewInt(1000), model.HealthFactorOne).String())
	assert.Equal(t, "1000", MaxDebtToCover(big.NewInt(1000), lowHF).String())
	assert.Equal(t, "0", MaxDebtToCover(nil, lowHF).String())
}

func TestSeizedCollateral(t *testing.T) {
	// Repay 1000 USDC, 5% bonus, collateral WETH at $2000 -> 0.525 WETH.
	seized := SeizedCollateral(new(big.Int).Mul(big.NewInt(1000), pow10(6)), 6, 1, 18, 2000, 500)
	require.NotNil(t, seized)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(525), pow10(15)).String(), seized.String())

	assert.Nil(t, SeizedCollateral(big.NewInt(1), 6, 0, 18, 2000, 500))
}
