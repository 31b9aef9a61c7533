package model

import "github.com/ethereum/go-ethereum/common"

// FlashSourceID names a flash-loan provider.
type FlashSourceID string

const (
	// FlashSourceBalancer is the fee-free primary source.
	FlashSourceBalancer FlashSourceID = "balancer"
	// FlashSourceAave is the generic fallback available for every reserve.
	FlashSourceAave FlashSourceID = "aave"
)

// FlashSource is the funding venue selected for an asset.
type FlashSource struct {
	ID    FlashSourceID   `json:"id"`
	Pool  *common.Address `json:"pool,omitempty"`
	Label string          `json:"label"`
}

// DefaultFlashSource is returned before any liquidity poll completed.
func DefaultFlashSource() FlashSource {
	return FlashSource{ID: FlashSourceAave, Label: "Aave V3 flash loan"}
}
