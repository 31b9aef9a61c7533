package settlement

import (
	"context"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidationScope/internal/model"
)

// DryRun logs settlements instead of sending them. It is used when no signing
// key is configured.
type DryRun struct {
	batch  bool
	logger *zap.Logger
	calls  atomic.Int64
}

func NewDryRun(batch bool, logger *zap.Logger) *DryRun {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRun{batch: batch, logger: logger}
}

func (d *DryRun) ExecuteLiquidation(_ context.Context, target model.LiquidationTarget) (common.Hash, error) {
	d.calls.Add(1)
	d.logger.Info("dry-run liquidation",
		zap.String("user", target.User.Hex()),
		zap.String("collateral_asset", target.CollateralAsset.String()),
		zap.String("debt_asset", target.DebtAsset.String()),
		zap.Stringer("debt_to_cover", target.DebtToCover),
		zap.Float64("expected_profit_usd", target.ExpectedProfit),
		zap.String("flash_source", string(target.FlashSource.ID)),
	)
	return common.Hash{}, nil
}

func (d *DryRun) SupportsBatch() bool {
	return d.batch
}

func (d *DryRun) ExecuteBatch(_ context.Context, targets []model.LiquidationTarget) (common.Hash, error) {
	d.calls.Add(1)
	d.logger.Info("dry-run batch", zap.Int("targets", len(targets)))
	return common.Hash{}, nil
}

// Calls returns how many settlement calls were logged.
func (d *DryRun) Calls() int64 {
	return d.calls.Load()
}
