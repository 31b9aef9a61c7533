package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
)

// BorrowLog builds a pool Borrow log for onBehalfOf.
func BorrowLog(pool common.Address, reserve model.AssetID, onBehalfOf common.Address, amount int64, block uint64) types.Log {
	parsed := mustPoolABI()
	ev := parsed.Events["Borrow"]
	data, err := ev.Inputs.NonIndexed().Pack(onBehalfOf, big.NewInt(amount), uint8(2), big.NewInt(0))
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{ev.ID, addressTopic(reserve.Address()), addressTopic(onBehalfOf), {}},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
	}
}

// RepayLog builds a pool Repay log for user.
func RepayLog(pool common.Address, reserve model.AssetID, user common.Address, amount int64, block uint64) types.Log {
	parsed := mustPoolABI()
	ev := parsed.Events["Repay"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(amount), false)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{ev.ID, addressTopic(reserve.Address()), addressTopic(user), addressTopic(user)},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
	}
}

// LiquidationLog builds a pool LiquidationCall log for user.
func LiquidationLog(pool common.Address, collateral, debt model.AssetID, user common.Address, debtToCover int64, block uint64) types.Log {
	parsed := mustPoolABI()
	ev := parsed.Events["LiquidationCall"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(debtToCover), big.NewInt(1), common.Address{}, false)
	if err != nil {
		panic(err)
	}
	return types.Log{
		Address:     pool,
		Topics:      []common.Hash{ev.ID, addressTopic(collateral.Address()), addressTopic(debt.Address()), addressTopic(user)},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
	}
}

// Subscriptions fakes live log subscriptions keyed by topic0.
type Subscriptions struct {
	mu    sync.Mutex
	feeds map[common.Hash]chan<- types.Log
	fail  map[common.Hash]chan error
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		feeds: make(map[common.Hash]chan<- types.Log),
		fail:  make(map[common.Hash]chan error),
	}
}

// SubscribeFilterLogs implements chain.Subscriber.
func (s *Subscriptions) SubscribeFilterLogs(_ context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	topic := query.Topics[0][0]
	failCh := make(chan error, 1)

	s.mu.Lock()
	s.feeds[topic] = ch
	s.fail[topic] = failCh
	s.mu.Unlock()

	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-failCh:
			return err
		}
	}), nil
}

// Emit delivers log to the subscription for its topic0.
func (s *Subscriptions) Emit(log types.Log) {
	s.mu.Lock()
	ch := s.feeds[log.Topics[0]]
	s.mu.Unlock()
	ch <- log
}

// Fail terminates the subscription for topic with err.
func (s *Subscriptions) Fail(topic common.Hash, err error) {
	s.mu.Lock()
	ch := s.fail[topic]
	s.mu.Unlock()
	ch <- err
}

func mustPoolABI() abi.ABI {
	parsed, err := lending.PoolABI()
	if err != nil {
		panic(err)
	}
	return parsed
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
