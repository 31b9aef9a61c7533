package model

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestPositionLiquidatable(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111111")
	belowOne := new(big.Int).Sub(HealthFactorOne, big.NewInt(1))

	pos := NewPosition(user, AccountData{
		TotalDebtBase: big.NewInt(100_00000000),
		HealthFactor:  belowOne,
	}, time.Unix(0, 0))
	assert.True(t, pos.Liquidatable())

	pos.HealthFactor = new(big.Int).Set(HealthFactorOne)
	assert.False(t, pos.Liquidatable(), "threshold is strict")

	pos.HealthFactor = belowOne
	pos.TotalDebtBase = big.NewInt(0)
	assert.False(t, pos.Liquidatable(), "no debt, nothing to liquidate")
}

func TestNewPositionClampsNegative(t *testing.T) {
	pos := NewPosition(common.Address{}, AccountData{TotalDebtBase: big.NewInt(-5)}, time.Now())
	assert.Equal(t, 0, pos.TotalDebtBase.Sign())
	assert.NotNil(t, pos.HealthFactor)
}
