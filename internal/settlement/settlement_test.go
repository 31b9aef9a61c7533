package settlement

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidationScope/internal/executor"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
)

var (
	_ executor.BatchSettlement = (*Contract)(nil)
	_ executor.BatchSettlement = (*DryRun)(nil)
)

func targets() []model.LiquidationTarget {
	return []model.LiquidationTarget{
		{
			User:            common.HexToAddress("0x01"),
			CollateralAsset: model.MustAssetID("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			DebtAsset:       model.MustAssetID("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			DebtToCover:     big.NewInt(500),
		},
		{
			User:            common.HexToAddress("0x02"),
			CollateralAsset: model.MustAssetID("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
			DebtAsset:       model.MustAssetID("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		},
	}
}

func TestBatchArgsPacksExecuteBatch(t *testing.T) {
	collateral, debt, users, amounts := BatchArgs(targets())
	require.Len(t, users, 2)
	assert.Equal(t, common.HexToAddress("0x02"), users[1])
	assert.Equal(t, "0", amounts[1].String())

	parsed, err := lending.SettlementABI()
	require.NoError(t, err)
	data, err := parsed.Pack("executeBatch", collateral, debt, users, amounts)
	require.NoError(t, err)
	assert.Equal(t, parsed.Methods["executeBatch"].ID, data[:4])
}

func TestDryRunCountsCalls(t *testing.T) {
	d := NewDryRun(true, nil)
	ctx := context.Background()

	_, err := d.ExecuteLiquidation(ctx, targets()[0])
	require.NoError(t, err)
	_, err = d.ExecuteBatch(ctx, targets())
	require.NoError(t, err)

	assert.True(t, d.SupportsBatch())
	assert.Equal(t, int64(2), d.Calls())
}
