package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// BaseCurrencyDecimals is the precision of the pool's USD base unit.
	BaseCurrencyDecimals = 8
	// HealthFactorDecimals is the precision of the health factor.
	HealthFactorDecimals = 18
)

// HealthFactorOne is 1.0 in health factor fixed point.
var HealthFactorOne = new(big.Int).Exp(big.NewInt(10), big.NewInt(HealthFactorDecimals), nil)

// AccountData is the getUserAccountData result.
type AccountData struct {
	TotalCollateralBase         *big.Int
	TotalDebtBase               *big.Int
	AvailableBorrowsBase        *big.Int
	CurrentLiquidationThreshold *big.Int
	LTV                         *big.Int
	HealthFactor                *big.Int
}

// HasDebt reports whether the account owes anything.
func (a AccountData) HasDebt() bool {
	return a.TotalDebtBase != nil && a.TotalDebtBase.Sign() > 0
}

// Position is a monitored borrower.
type Position struct {
	User                 common.Address `json:"user"`
	HealthFactor         *big.Int       `json:"health_factor"`
	TotalCollateralBase  *big.Int       `json:"total_collateral_base"`
	TotalDebtBase        *big.Int       `json:"total_debt_base"`
	AvailableBorrowsBase *big.Int       `json:"available_borrows_base"`
	LastUpdate           time.Time      `json:"last_update"`
}

// NewPosition builds a Position from a fresh account read.
func NewPosition(user common.Address, data AccountData, at time.Time) Position {
	return Position{
		User:                 user,
		HealthFactor:         cloneOrZero(data.HealthFactor),
		TotalCollateralBase:  cloneOrZero(data.TotalCollateralBase),
		TotalDebtBase:        cloneOrZero(data.TotalDebtBase),
		AvailableBorrowsBase: cloneOrZero(data.AvailableBorrowsBase),
		LastUpdate:           at,
	}
}

// Liquidatable reports whether the health factor is below 1.0 with debt outstanding.
func (p Position) Liquidatable() bool {
	if p.TotalDebtBase == nil || p.TotalDebtBase.Sign() == 0 || p.HealthFactor == nil {
		return false
	}
	return p.HealthFactor.Cmp(HealthFactorOne) < 0
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	if v.Sign() < 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
