// Package scanner replays historical Borrow logs to seed the monitored set.
package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
	"liquidationScope/internal/rpcpool"
	"liquidationScope/internal/syncstate"
	"liquidationScope/internal/tracker"
)

// Seeder admits borrowers found by the scan and reports the ones it could not read.
type Seeder interface {
	Seed(ctx context.Context, users []common.Address, maxRetries int, backoff time.Duration) (tracker.SeedResult, error)
}

// Config holds scan settings.
type Config struct {
	Pool         common.Address
	StartBlock   uint64
	EndBlock     uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Summary reports what one Run covered.
type Summary struct {
	From      uint64
	To        uint64
	Ranges    int
	Borrowers int
	Read      int
}

// Scanner walks block ranges, seeds the tracker and checkpoints progress.
type Scanner struct {
	cfg     Config
	source  chain.Source
	decoder *lending.EventDecoder
	seeder  Seeder
	state   syncstate.Store
	logger  *zap.Logger
	seen    map[common.Address]struct{}
}

func New(cfg Config, source chain.Source, decoder *lending.EventDecoder, seeder Seeder, state syncstate.Store, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Scanner{
		cfg:     cfg,
		source:  source,
		decoder: decoder,
		seeder:  seeder,
		state:   state,
		logger:  logger,
		seen:    make(map[common.Address]struct{}),
	}
}

// Run scans from the checkpoint (or configured start) to the configured end
// block, or latest when none is set.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	if s.cfg.BatchSize == 0 {
		return Summary{}, fmt.Errorf("batch size must be greater than zero")
	}
	if s.seeder == nil {
		return Summary{}, fmt.Errorf("seeder is nil")
	}

	from, err := syncstate.StartBlock(ctx, s.state, s.cfg.StartBlock)
	if err != nil {
		return Summary{}, fmt.Errorf("load sync state: %w", err)
	}
	to := s.cfg.EndBlock
	if to == 0 {
		client := s.source.Client()
		if client == nil {
			return Summary{}, rpcpool.ErrNoEndpoints
		}
		latest, err := client.LatestBlockNumber(ctx)
		if err != nil {
			return Summary{}, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	summary := Summary{From: from, To: to}
	if from > to {
		s.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	borrowTopic := s.decoder.Topic(model.EventBorrow)
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		logs, err := s.filterLogsWithRetry(ctx, blockRange, borrowTopic)
		if err != nil {
			return summary, fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
		}

		users := s.newBorrowers(logs)
		read := 0
		if len(users) > 0 {
			result, err := s.seeder.Seed(ctx, users, s.cfg.MaxRetries, s.cfg.RetryBackoff)
			s.markSeen(users, result.Failed)
			read = result.Read
			if err != nil {
				return summary, fmt.Errorf("seed borrowers %d-%d: %w", blockRange.From, blockRange.To, err)
			}
		}

		if err := s.checkpoint(ctx, blockRange.To); err != nil {
			return summary, err
		}

		summary.Ranges++
		summary.Borrowers += len(users)
		summary.Read += read
		s.logger.Info("range scanned",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("logs", len(logs)),
			zap.Int("borrowers", len(users)),
			zap.Int("read_ok", read),
		)
	}
	return summary, nil
}

// newBorrowers returns Borrow subjects not yet read during this run.
func (s *Scanner) newBorrowers(logs []types.Log) []common.Address {
	var users []common.Address
	batch := make(map[common.Address]struct{})
	for _, event := range tracker.DecodeLogs(s.decoder, logs, s.logger) {
		if event.Kind != model.EventBorrow {
			continue
		}
		if _, ok := s.seen[event.User]; ok {
			continue
		}
		if _, ok := batch[event.User]; ok {
			continue
		}
		batch[event.User] = struct{}{}
		users = append(users, event.User)
	}
	return users
}

// markSeen records every user except those whose read failed.
func (s *Scanner) markSeen(users, failed []common.Address) {
	skip := make(map[common.Address]struct{}, len(failed))
	for _, user := range failed {
		skip[user] = struct{}{}
	}
	for _, user := range users {
		if _, ok := skip[user]; ok {
			continue
		}
		s.seen[user] = struct{}{}
	}
}

func (s *Scanner) checkpoint(ctx context.Context, block uint64) error {
	if s.state == nil {
		return nil
	}
	state := model.SyncState{LastScannedBlock: block}
	if client := s.source.Client(); client != nil {
		ts, err := client.BlockTimestamp(ctx, block)
		if err != nil {
			s.logger.Warn("block timestamp failed", zap.Uint64("block", block), zap.Error(err))
		} else {
			state.LastScannedTimestamp = int64(ts) * 1000
		}
	}
	if err := s.state.Save(ctx, state); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// filterLogsWithRetry takes a fresh pooled client on every attempt.
func (s *Scanner) filterLogsWithRetry(ctx context.Context, blockRange BlockRange, topic common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := chain.Retry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		client := s.source.Client()
		if client == nil {
			return rpcpool.ErrNoEndpoints
		}
		var err error
		logs, err = client.FilterLogs(ctx, blockRange.From, blockRange.To, []common.Address{s.cfg.Pool}, [][]common.Hash{{topic}})
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
		return err
	})
	return logs, err
}
