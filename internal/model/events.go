package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind is a lending pool event type the tracker reacts to.
type EventKind string

const (
	EventBorrow          EventKind = "Borrow"
	EventRepay           EventKind = "Repay"
	EventLiquidationCall EventKind = "LiquidationCall"
)

// PositionEvent is a decoded pool log reduced to what the tracker needs.
type PositionEvent struct {
	Kind        EventKind
	User        common.Address
	Reserve     AssetID
	Amount      *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// BorrowEventData is the decoded Borrow payload.
type BorrowEventData struct {
	Reserve          common.Address
	User             common.Address
	OnBehalfOf       common.Address
	Amount           *big.Int
	InterestRateMode uint8
	BorrowRate       *big.Int
	ReferralCode     uint16
}

// RepayEventData is the decoded Repay payload.
type RepayEventData struct {
	Reserve    common.Address
	User       common.Address
	Repayer    common.Address
	Amount     *big.Int
	UseATokens bool
}

// LiquidationCallEventData is the decoded LiquidationCall payload.
type LiquidationCallEventData struct {
	CollateralAsset            common.Address
	DebtAsset                  common.Address
	User                       common.Address
	DebtToCover                *big.Int
	LiquidatedCollateralAmount *big.Int
	Liquidator                 common.Address
	ReceiveAToken              bool
}
