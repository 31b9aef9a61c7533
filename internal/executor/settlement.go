package executor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"liquidationScope/internal/model"
)

// Settlement dispatches a single liquidation. A returned error means the
// target failed; it never aborts the rest of a batch.
type Settlement interface {
	ExecuteLiquidation(ctx context.Context, target model.LiquidationTarget) (common.Hash, error)
}

// BatchSettlement is implemented by settlements that may also settle many
// targets in one call. SupportsBatch reports whether the entry point is live.
type BatchSettlement interface {
	Settlement
	SupportsBatch() bool
	ExecuteBatch(ctx context.Context, targets []model.LiquidationTarget) (common.Hash, error)
}
