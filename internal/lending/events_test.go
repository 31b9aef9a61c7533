package lending

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidationScope/internal/model"
)

var (
	reserve    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	collateral = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	borrower   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestDecodeBorrowTracksOnBehalfOf(t *testing.T) {
	decoder, err := NewEventDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	parsed, _ := PoolABI()

	data, err := parsed.Events["Borrow"].Inputs.NonIndexed().Pack(
		caller,
		big.NewInt(5_000_000),
		uint8(2),
		big.NewInt(42),
	)
	if err != nil {
		t.Fatalf("pack borrow: %v", err)
	}

	log := buildLog(parsed.Events["Borrow"].ID, data, []common.Hash{
		topicFromAddress(reserve),
		topicFromAddress(borrower),
		common.BigToHash(big.NewInt(7)),
	})

	event, err := decoder.Decode(log)
	if err != nil {
		t.Fatalf("decode borrow: %v", err)
	}
	if event.Kind != model.EventBorrow {
		t.Fatalf("kind mismatch: %s", event.Kind)
	}
	if event.User != borrower {
		t.Fatalf("user should be onBehalfOf, got %s", event.User.Hex())
	}
	if event.Reserve != model.AssetFromAddress(reserve) || event.Amount.String() != "5000000" {
		t.Fatalf("payload mismatch: %+v", event)
	}

	raw, err := decoder.DecodeBorrow(log)
	if err != nil {
		t.Fatalf("decode raw borrow: %v", err)
	}
	if raw.User != caller || raw.InterestRateMode != 2 || raw.ReferralCode != 7 {
		t.Fatalf("raw borrow mismatch: %+v", raw)
	}
}

func TestDecodeRepayAndLiquidation(t *testing.T) {
	decoder, err := NewEventDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	parsed, _ := PoolABI()

	repayData, err := parsed.Events["Repay"].Inputs.NonIndexed().Pack(big.NewInt(900), true)
	if err != nil {
		t.Fatalf("pack repay: %v", err)
	}
	repay, err := decoder.Decode(buildLog(parsed.Events["Repay"].ID, repayData, []common.Hash{
		topicFromAddress(reserve),
		topicFromAddress(borrower),
		topicFromAddress(caller),
	}))
	if err != nil {
		t.Fatalf("decode repay: %v", err)
	}
	if repay.Kind != model.EventRepay || repay.User != borrower || repay.Amount.String() != "900" {
		t.Fatalf("repay mismatch: %+v", repay)
	}

	liqData, err := parsed.Events["LiquidationCall"].Inputs.NonIndexed().Pack(
		big.NewInt(100),
		big.NewInt(105),
		caller,
		false,
	)
	if err != nil {
		t.Fatalf("pack liquidation: %v", err)
	}
	liqLog := buildLog(parsed.Events["LiquidationCall"].ID, liqData, []common.Hash{
		topicFromAddress(collateral),
		topicFromAddress(reserve),
		topicFromAddress(borrower),
	})
	liq, err := decoder.Decode(liqLog)
	if err != nil {
		t.Fatalf("decode liquidation: %v", err)
	}
	if liq.Kind != model.EventLiquidationCall || liq.User != borrower || liq.Reserve != model.AssetFromAddress(reserve) {
		t.Fatalf("liquidation mismatch: %+v", liq)
	}

	raw, err := decoder.DecodeLiquidationCall(liqLog)
	if err != nil {
		t.Fatalf("decode raw liquidation: %v", err)
	}
	if raw.Liquidator != caller || raw.LiquidatedCollateralAmount.String() != "105" || raw.CollateralAsset != collateral {
		t.Fatalf("raw liquidation mismatch: %+v", raw)
	}
}

func TestDecodeRejectsUnknownTopic(t *testing.T) {
	decoder, err := NewEventDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if _, err := decoder.Decode(types.Log{}); err == nil {
		t.Fatalf("expected error for missing topics")
	}
	if _, err := decoder.Decode(types.Log{Topics: []common.Hash{{0x01}}}); err == nil {
		t.Fatalf("expected error for unknown topic")
	}
	if decoder.CanDecode(common.Hash{0x01}) {
		t.Fatalf("unexpected CanDecode")
	}
	if !decoder.CanDecode(decoder.Topic(model.EventRepay)) {
		t.Fatalf("repay topic should decode")
	}
}

func buildLog(topic0 common.Hash, data []byte, indexed []common.Hash) types.Log {
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, topic0)
	topics = append(topics, indexed...)

	return types.Log{
		Address:     common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
