// Package profit estimates the USD outcome of a liquidation.
package profit

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"liquidationScope/internal/model"
)

// NativeDecimals is the precision of the chain's gas token.
const NativeDecimals = 18

// Input carries raw amounts, prices and gas for one liquidation.
type Input struct {
	CollateralAmount   *big.Int
	CollateralDecimals uint8
	CollateralPrice    float64
	DebtAmount         *big.Int
	DebtDecimals       uint8
	DebtPrice          float64
	GasUsed            uint64
	GasPrice           *big.Int
	NativePrice        float64
}

// Result is the USD breakdown.
type Result struct {
	CollateralUSD float64
	DebtUSD       float64
	GasUSD        float64
	ProfitUSD     float64
}

// Calculate returns collateral minus debt minus gas, all in USD.
func Calculate(in Input) (Result, error) {
	if in.CollateralAmount == nil || in.DebtAmount == nil {
		return Result{}, fmt.Errorf("amounts are required")
	}
	if in.CollateralAmount.Sign() < 0 || in.DebtAmount.Sign() < 0 {
		return Result{}, fmt.Errorf("amounts must be non-negative")
	}

	gasWei := new(big.Int).SetUint64(in.GasUsed)
	if in.GasPrice != nil {
		gasWei.Mul(gasWei, in.GasPrice)
	} else {
		gasWei.SetInt64(0)
	}

	collateralUSD := ToDecimal(in.CollateralAmount, in.CollateralDecimals) * in.CollateralPrice
	debtUSD := ToDecimal(in.DebtAmount, in.DebtDecimals) * in.DebtPrice
	gasUSD := ToDecimal(gasWei, NativeDecimals) * in.NativePrice

	return Result{
		CollateralUSD: collateralUSD,
		DebtUSD:       debtUSD,
		GasUSD:        gasUSD,
		ProfitUSD:     collateralUSD - debtUSD - gasUSD,
	}, nil
}

// ToDecimal converts a raw token amount into a float with decimals applied.
func ToDecimal(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(amount, -int32(decimals)).Float64()
	return f
}

// USDValue returns amount x price without leaving decimal arithmetic, for
// threshold comparisons that must be exact at the boundary.
func USDValue(amount *big.Int, decimals uint8, price float64) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).Mul(decimal.NewFromFloat(price))
}

// BaseToUSD converts the pool's 8-decimal base currency into USD.
func BaseToUSD(base *big.Int) float64 {
	return ToDecimal(base, model.BaseCurrencyDecimals)
}
