package lending

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidationScope/internal/model"
)

// EventDecoder decodes Borrow, Repay and LiquidationCall pool logs.
type EventDecoder struct {
	poolABI     abi.ABI
	topicToKind map[common.Hash]model.EventKind
}

// NewEventDecoder builds a decoder over the lending pool ABI.
func NewEventDecoder() (*EventDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	topicToKind := make(map[common.Hash]model.EventKind, 3)
	for _, kind := range []model.EventKind{model.EventBorrow, model.EventRepay, model.EventLiquidationCall} {
		event, ok := parsed.Events[string(kind)]
		if !ok {
			return nil, fmt.Errorf("pool abi missing event %s", kind)
		}
		topicToKind[event.ID] = kind
	}

	return &EventDecoder{poolABI: parsed, topicToKind: topicToKind}, nil
}

// Topic returns topic0 for an event kind.
func (d *EventDecoder) Topic(kind model.EventKind) common.Hash {
	return d.poolABI.Events[string(kind)].ID
}

// CanDecode checks if topic0 is one of the tracked events.
func (d *EventDecoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToKind[topic0]
	return ok
}

// Decode converts a pool log into a PositionEvent. The event's User is the
// address whose debt changed.
func (d *EventDecoder) Decode(log types.Log) (model.PositionEvent, error) {
	if len(log.Topics) == 0 {
		return model.PositionEvent{}, fmt.Errorf("missing topics")
	}
	kind, ok := d.topicToKind[log.Topics[0]]
	if !ok {
		return model.PositionEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	event := model.PositionEvent{
		Kind:        kind,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}

	switch kind {
	case model.EventBorrow:
		decoded, err := d.DecodeBorrow(log)
		if err != nil {
			return model.PositionEvent{}, err
		}
		event.User = decoded.OnBehalfOf
		event.Reserve = model.AssetFromAddress(decoded.Reserve)
		event.Amount = decoded.Amount
	case model.EventRepay:
		decoded, err := d.DecodeRepay(log)
		if err != nil {
			return model.PositionEvent{}, err
		}
		event.User = decoded.User
		event.Reserve = model.AssetFromAddress(decoded.Reserve)
		event.Amount = decoded.Amount
	case model.EventLiquidationCall:
		decoded, err := d.DecodeLiquidationCall(log)
		if err != nil {
			return model.PositionEvent{}, err
		}
		event.User = decoded.User
		event.Reserve = model.AssetFromAddress(decoded.DebtAsset)
		event.Amount = decoded.DebtToCover
	}

	return event, nil
}

// DecodeBorrow decodes a Borrow log.
func (d *EventDecoder) DecodeBorrow(log types.Log) (model.BorrowEventData, error) {
	if len(log.Topics) != 4 {
		return model.BorrowEventData{}, fmt.Errorf("borrow: expected 4 topics, got %d", len(log.Topics))
	}
	values, err := d.poolABI.Events["Borrow"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.BorrowEventData{}, fmt.Errorf("unpack borrow: %w", err)
	}
	if len(values) != 4 {
		return model.BorrowEventData{}, fmt.Errorf("borrow: unexpected values %d", len(values))
	}

	user, err := asAddress(values[0])
	if err != nil {
		return model.BorrowEventData{}, fmt.Errorf("borrow user: %w", err)
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return model.BorrowEventData{}, fmt.Errorf("borrow amount: %w", err)
	}
	mode, err := asUint8(values[2])
	if err != nil {
		return model.BorrowEventData{}, fmt.Errorf("borrow rate mode: %w", err)
	}
	rate, err := asBigInt(values[3])
	if err != nil {
		return model.BorrowEventData{}, fmt.Errorf("borrow rate: %w", err)
	}

	return model.BorrowEventData{
		Reserve:          topicAddress(log.Topics[1]),
		User:             user,
		OnBehalfOf:       topicAddress(log.Topics[2]),
		Amount:           amount,
		InterestRateMode: mode,
		BorrowRate:       rate,
		ReferralCode:     uint16(log.Topics[3].Big().Uint64()),
	}, nil
}

// DecodeRepay decodes a Repay log.
func (d *EventDecoder) DecodeRepay(log types.Log) (model.RepayEventData, error) {
	if len(log.Topics) != 4 {
		return model.RepayEventData{}, fmt.Errorf("repay: expected 4 topics, got %d", len(log.Topics))
	}
	values, err := d.poolABI.Events["Repay"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.RepayEventData{}, fmt.Errorf("unpack repay: %w", err)
	}
	if len(values) != 2 {
		return model.RepayEventData{}, fmt.Errorf("repay: unexpected values %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return model.RepayEventData{}, fmt.Errorf("repay amount: %w", err)
	}
	useATokens, err := asBool(values[1])
	if err != nil {
		return model.RepayEventData{}, fmt.Errorf("repay useATokens: %w", err)
	}

	return model.RepayEventData{
		Reserve:    topicAddress(log.Topics[1]),
		User:       topicAddress(log.Topics[2]),
		Repayer:    topicAddress(log.Topics[3]),
		Amount:     amount,
		UseATokens: useATokens,
	}, nil
}

// DecodeLiquidationCall decodes a LiquidationCall log.
func (d *EventDecoder) DecodeLiquidationCall(log types.Log) (model.LiquidationCallEventData, error) {
	if len(log.Topics) != 4 {
		return model.LiquidationCallEventData{}, fmt.Errorf("liquidation: expected 4 topics, got %d", len(log.Topics))
	}
	values, err := d.poolABI.Events["LiquidationCall"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.LiquidationCallEventData{}, fmt.Errorf("unpack liquidation: %w", err)
	}
	if len(values) != 4 {
		return model.LiquidationCallEventData{}, fmt.Errorf("liquidation: unexpected values %d", len(values))
	}

	debtToCover, err := asBigInt(values[0])
	if err != nil {
		return model.LiquidationCallEventData{}, fmt.Errorf("liquidation debtToCover: %w", err)
	}
	collateral, err := asBigInt(values[1])
	if err != nil {
		return model.LiquidationCallEventData{}, fmt.Errorf("liquidation collateral: %w", err)
	}
	liquidator, err := asAddress(values[2])
	if err != nil {
		return model.LiquidationCallEventData{}, fmt.Errorf("liquidation liquidator: %w", err)
	}
	receiveAToken, err := asBool(values[3])
	if err != nil {
		return model.LiquidationCallEventData{}, fmt.Errorf("liquidation receiveAToken: %w", err)
	}

	return model.LiquidationCallEventData{
		CollateralAsset:            topicAddress(log.Topics[1]),
		DebtAsset:                  topicAddress(log.Topics[2]),
		User:                       topicAddress(log.Topics[3]),
		DebtToCover:                debtToCover,
		LiquidatedCollateralAmount: collateral,
		Liquidator:                 liquidator,
		ReceiveAToken:              receiveAToken,
	}, nil
}
