package profit

import (
	"math/big"

	"github.com/shopspring/decimal"

	"liquidationScope/internal/model"
)

const bpsDenominator = 10_000

var closeFactorHFThreshold = new(big.Int).Div(new(big.Int).Mul(model.HealthFactorOne, big.NewInt(95)), big.NewInt(100))

// CloseFactorBps is the share of debt one liquidation may repay: 50%, or 100%
// once the health factor drops below 0.95.
func CloseFactorBps(healthFactor *big.Int) int64 {
	if healthFactor != nil && healthFactor.Cmp(closeFactorHFThreshold) < 0 {
		return bpsDenominator
	}
	return bpsDenominator / 2
}

// MaxDebtToCover applies the close factor to a raw debt amount.
func MaxDebtToCover(debt *big.Int, healthFactor *big.Int) *big.Int {
	if debt == nil || debt.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(debt, big.NewInt(CloseFactorBps(healthFactor)))
	return out.Div(out, big.NewInt(bpsDenominator))
}

// SeizedCollateral converts repaid debt into collateral units including the
// liquidation bonus. It returns nil when a price is not positive.
func SeizedCollateral(
	debtToCover *big.Int,
	debtDecimals uint8,
	debtPrice float64,
	collateralDecimals uint8,
	collateralPrice float64,
	bonusBps int64,
) *big.Int {
	if debtToCover == nil || debtPrice <= 0 || collateralPrice <= 0 {
		return nil
	}
	debtValue := USDValue(debtToCover, debtDecimals, debtPrice)
	bonus := decimal.NewFromInt(bpsDenominator + bonusBps).Div(decimal.NewFromInt(bpsDenominator))
	units := debtValue.Mul(bonus).Div(decimal.NewFromFloat(collateralPrice))
	return units.Shift(int32(collateralDecimals)).Floor().BigInt()
}
