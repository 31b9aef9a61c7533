package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
)

var trackedKinds = []model.EventKind{model.EventBorrow, model.EventRepay, model.EventLiquidationCall}

// Ingestor opens one log subscription per tracked event and merges them into
// a single channel consumed by Tracker.Run.
type Ingestor struct {
	subscriber chain.Subscriber
	pool       common.Address
	decoder    *lending.EventDecoder
	buffer     int
	logger     *zap.Logger
}

func NewIngestor(subscriber chain.Subscriber, pool common.Address, decoder *lending.EventDecoder, buffer int, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Ingestor{
		subscriber: subscriber,
		pool:       pool,
		decoder:    decoder,
		buffer:     buffer,
		logger:     logger,
	}
}

// Subscribe starts the subscriptions. The events channel is closed once every
// stream has stopped; the first subscription failure is sent on errs.
func (i *Ingestor) Subscribe(ctx context.Context) (<-chan model.PositionEvent, <-chan error, error) {
	if i.subscriber == nil {
		return nil, nil, fmt.Errorf("subscriber is nil")
	}

	type stream struct {
		kind model.EventKind
		logs chan types.Log
		sub  ethereum.Subscription
	}
	streams := make([]stream, 0, len(trackedKinds))
	for _, kind := range trackedKinds {
		logs := make(chan types.Log, i.buffer)
		query := ethereum.FilterQuery{
			Addresses: []common.Address{i.pool},
			Topics:    [][]common.Hash{{i.decoder.Topic(kind)}},
		}
		sub, err := i.subscriber.SubscribeFilterLogs(ctx, query, logs)
		if err != nil {
			for _, s := range streams {
				s.sub.Unsubscribe()
			}
			return nil, nil, fmt.Errorf("subscribe %s: %w", kind, err)
		}
		streams = append(streams, stream{kind: kind, logs: logs, sub: sub})
	}

	events := make(chan model.PositionEvent, i.buffer)
	errs := make(chan error, len(streams))
	var wg sync.WaitGroup
	for _, s := range streams {
		wg.Add(1)
		go func(kind model.EventKind, logs <-chan types.Log, sub ethereum.Subscription) {
			defer wg.Done()
			defer sub.Unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case err := <-sub.Err():
					if err != nil {
						errs <- fmt.Errorf("%s subscription: %w", kind, err)
					}
					return
				case log := <-logs:
					i.forward(ctx, log, events)
				}
			}
		}(s.kind, s.logs, s.sub)
	}
	go func() {
		wg.Wait()
		close(events)
		close(errs)
	}()

	i.logger.Info("event subscriptions started", zap.String("pool", i.pool.Hex()), zap.Int("streams", len(streams)))
	return events, errs, nil
}

func (i *Ingestor) forward(ctx context.Context, log types.Log, events chan<- model.PositionEvent) {
	if log.Removed {
		return
	}
	event, err := i.decoder.Decode(log)
	if err != nil {
		i.logger.Warn("decode pool log", zap.String("tx", log.TxHash.Hex()), zap.Uint("log_index", log.Index), zap.Error(err))
		return
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

// DecodeLogs converts historical pool logs into events, skipping undecodable ones.
func DecodeLogs(decoder *lending.EventDecoder, logs []types.Log, logger *zap.Logger) []model.PositionEvent {
	events := make([]model.PositionEvent, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) == 0 || !decoder.CanDecode(log.Topics[0]) {
			continue
		}
		event, err := decoder.Decode(log)
		if err != nil {
			if logger != nil {
				logger.Warn("decode pool log", zap.String("tx", log.TxHash.Hex()), zap.Error(err))
			}
			continue
		}
		events = append(events, event)
	}
	return events
}
