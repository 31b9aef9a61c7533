package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Candidate is an unhealthy position proposed for liquidation.
type Candidate struct {
	User             common.Address
	CollateralAsset  AssetID
	DebtAsset        AssetID
	DebtToCover      *big.Int
	CollateralAmount *big.Int
	HealthFactor     *big.Int
}

// LiquidationTarget is an analyzed candidate ready for settlement.
type LiquidationTarget struct {
	User            common.Address `json:"user"`
	CollateralAsset AssetID        `json:"collateral_asset"`
	DebtAsset       AssetID        `json:"debt_asset"`
	DebtToCover     *big.Int       `json:"debt_to_cover"`
	ExpectedProfit  float64        `json:"expected_profit_usd"`
	HealthFactor    *big.Int       `json:"health_factor"`
	FlashSource     FlashSource    `json:"flash_source"`
}

// BatchOpportunity groups targets sharing a debt asset.
type BatchOpportunity struct {
	ID                  string              `json:"id"`
	DebtAsset           AssetID             `json:"debt_asset"`
	Targets             []LiquidationTarget `json:"targets"`
	TotalDebtToCover    *big.Int            `json:"total_debt_to_cover"`
	TotalExpectedProfit float64             `json:"total_expected_profit_usd"`
}

// Add appends a target and keeps the totals in step.
func (b *BatchOpportunity) Add(target LiquidationTarget) {
	if b.TotalDebtToCover == nil {
		b.TotalDebtToCover = new(big.Int)
	}
	b.Targets = append(b.Targets, target)
	if target.DebtToCover != nil {
		b.TotalDebtToCover.Add(b.TotalDebtToCover, target.DebtToCover)
	}
	b.TotalExpectedProfit += target.ExpectedProfit
}
