package model

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchOpportunityAddKeepsTotals(t *testing.T) {
	var batch BatchOpportunity
	batch.Add(LiquidationTarget{DebtToCover: big.NewInt(100), ExpectedProfit: 1.5})
	batch.Add(LiquidationTarget{DebtToCover: big.NewInt(50), ExpectedProfit: -0.5})
	batch.Add(LiquidationTarget{DebtToCover: big.NewInt(0), ExpectedProfit: 0})

	assert.Len(t, batch.Targets, 3)
	assert.Equal(t, "150", batch.TotalDebtToCover.String())
	assert.InDelta(t, 1.0, batch.TotalExpectedProfit, 1e-12)
}
