// Package liquidator runs the periodic refresh, evaluate, group and settle cycle.
package liquidator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidationScope/internal/executor"
	"liquidationScope/internal/model"
	"liquidationScope/internal/rpcpool"
	"liquidationScope/internal/storage"
	"liquidationScope/internal/tracker"
)

const DefaultInterval = 30 * time.Second

// CandidateSource builds liquidation candidates from monitored positions.
type CandidateSource interface {
	Candidates(ctx context.Context, positions []model.Position) ([]model.Candidate, error)
}

// CycleObserver records loop iterations.
type CycleObserver interface {
	ObserveCycle(d time.Duration, err error)
}

// Cycle summarizes one iteration.
type Cycle struct {
	Monitored  int
	Refreshed  int
	Candidates int
	Batches    int
	Reports    []executor.Report
}

// Loop wires tracker, evaluator, executor and journal together.
type Loop struct {
	interval  time.Duration
	tracker   *tracker.Tracker
	evaluator CandidateSource
	executor  *executor.Executor
	journal   storage.Journal
	positions storage.PositionSink
	observer  CycleObserver
	logger    *zap.Logger
}

func New(
	interval time.Duration,
	tr *tracker.Tracker,
	evaluator CandidateSource,
	ex *executor.Executor,
	journal storage.Journal,
	logger *zap.Logger,
) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		interval:  interval,
		tracker:   tr,
		evaluator: evaluator,
		executor:  ex,
		journal:   journal,
		logger:    logger,
	}
}

// WithPositionSink persists a snapshot of the monitored set every cycle.
func (l *Loop) WithPositionSink(sink storage.PositionSink) *Loop {
	l.positions = sink
	return l
}

// WithObserver attaches a cycle observer.
func (l *Loop) WithObserver(observer CycleObserver) *Loop {
	l.observer = observer
	return l
}

// Run executes a cycle immediately and then every interval until ctx ends.
// A failed cycle is logged and the next one proceeds normally.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.runLogged(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Loop) runLogged(ctx context.Context) {
	start := time.Now()
	cycle, err := l.RunOnce(ctx)
	if l.observer != nil {
		l.observer.ObserveCycle(time.Since(start), err)
	}
	switch {
	case err == nil:
		l.logger.Info("cycle complete",
			zap.Int("monitored", cycle.Monitored),
			zap.Int("candidates", cycle.Candidates),
			zap.Int("batches", cycle.Batches),
			zap.Duration("elapsed", time.Since(start)),
		)
	case errors.Is(err, context.Canceled):
	case errors.Is(err, rpcpool.ErrNoEndpoints):
		l.logger.Warn("cycle skipped, no rpc endpoint available")
	default:
		l.logger.Error("cycle failed", zap.Error(err))
	}
}

// RunOnce performs one full cycle.
func (l *Loop) RunOnce(ctx context.Context) (Cycle, error) {
	var cycle Cycle
	users := l.tracker.Registry().Users()
	cycle.Monitored = len(users)
	if len(users) == 0 {
		l.savePositions(ctx, nil)
		return cycle, nil
	}

	refreshed, err := l.tracker.Refresh(ctx, users)
	if err != nil {
		return cycle, fmt.Errorf("refresh positions: %w", err)
	}
	cycle.Refreshed = refreshed

	positions := l.tracker.Registry().Snapshot()
	cycle.Monitored = len(positions)
	l.savePositions(ctx, positions)

	candidates, err := l.evaluator.Candidates(ctx, positions)
	if err != nil {
		return cycle, fmt.Errorf("build candidates: %w", err)
	}
	cycle.Candidates = len(candidates)
	if len(candidates) == 0 {
		return cycle, nil
	}

	batches, err := l.executor.GroupCandidates(ctx, candidates)
	if err != nil {
		return cycle, fmt.Errorf("group candidates: %w", err)
	}
	cycle.Batches = len(batches)
	l.write(func(j storage.Journal) error { return j.WriteOpportunities(ctx, batches) })

	for _, batch := range batches {
		report := l.executor.ExecuteBatch(ctx, batch)
		cycle.Reports = append(cycle.Reports, report)
		l.write(func(j storage.Journal) error { return j.WriteSettlements(ctx, report.Records) })
	}
	return cycle, nil
}

func (l *Loop) savePositions(ctx context.Context, positions []model.Position) {
	if l.positions == nil {
		return
	}
	if err := l.positions.SavePositions(ctx, positions); err != nil {
		l.logger.Warn("persist positions failed", zap.Error(err))
	}
}

func (l *Loop) write(fn func(storage.Journal) error) {
	if l.journal == nil {
		return
	}
	if err := fn(l.journal); err != nil {
		l.logger.Warn("journal write failed", zap.Error(err))
	}
}
