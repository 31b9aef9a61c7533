// Package executor groups liquidation candidates into per-debt-asset batches
// and dispatches them through a Settlement.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/model"
	"liquidationScope/internal/oracle"
	"liquidationScope/internal/profit"
	"liquidationScope/internal/rpcpool"
)

var errNoSettlement = errors.New("no settlement configured")

const (
	DefaultDustUSD      = 0.001
	DefaultGasPerTarget = 450_000
)

// PriceSource resolves USD prices; missing assets are unknown.
type PriceSource interface {
	BatchAssetPrices(ctx context.Context, assets []model.AssetID, block *uint64) map[model.AssetID]float64
}

// DecimalsSource resolves token decimals.
type DecimalsSource interface {
	Decimals(ctx context.Context, asset model.AssetID) (uint8, error)
}

// SourceSelector returns the funding source for an asset.
type SourceSelector interface {
	Source(asset model.AssetID) model.FlashSource
}

// Observer receives grouping and settlement outcomes.
type Observer interface {
	BatchesGrouped(count int)
	BatchSkipped()
	BatchExecuted()
	SettlementResult(status model.SettlementStatus)
}

// Config holds executor settings.
type Config struct {
	DustUSD      float64
	GasPerTarget uint64
	NativeAsset  model.AssetID
	Concurrency  int
}

// Report summarizes one ExecuteBatch call.
type Report struct {
	BatchID   string
	Skipped   bool
	Attempted int
	Succeeded int
	Failed    int
	Records   []model.SettlementRecord
}

// Executor builds and settles batches.
type Executor struct {
	cfg        Config
	source     chain.Source
	prices     PriceSource
	decimals   DecimalsSource
	sources    SourceSelector
	settlement Settlement
	logger     *zap.Logger
	observer   Observer
	now        func() time.Time
	dustFloor  decimal.Decimal
}

func New(
	cfg Config,
	source chain.Source,
	prices PriceSource,
	decimals DecimalsSource,
	sources SourceSelector,
	settlement Settlement,
	logger *zap.Logger,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DustUSD <= 0 {
		cfg.DustUSD = DefaultDustUSD
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Executor{
		cfg:        cfg,
		source:     source,
		prices:     prices,
		decimals:   decimals,
		sources:    sources,
		settlement: settlement,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		dustFloor:  decimal.NewFromFloat(cfg.DustUSD),
	}
}

// WithObserver attaches an outcome observer.
func (e *Executor) WithObserver(observer Observer) *Executor {
	e.observer = observer
	return e
}

type pricedCandidate struct {
	candidate          model.Candidate
	debtDecimals       uint8
	debtPrice          float64
	collateralDecimals uint8
	collateralPrice    float64
}

// GroupCandidates drops dust and unpriced candidates, analyzes the rest in
// parallel and buckets them by debt asset in first-seen order. No individual
// target is rejected for being unprofitable; that decision is made per batch.
func (e *Executor) GroupCandidates(ctx context.Context, candidates []model.Candidate) ([]model.BatchOpportunity, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	assets := make([]model.AssetID, 0, len(candidates)*2+1)
	for _, c := range candidates {
		assets = append(assets, c.DebtAsset, c.CollateralAsset)
	}
	if e.cfg.GasPerTarget > 0 {
		assets = append(assets, e.cfg.NativeAsset)
	}
	prices := e.prices.BatchAssetPrices(ctx, assets, nil)

	gasPrice, nativePrice, err := e.gasInputs(ctx, prices)
	if err != nil {
		return nil, err
	}

	priced := make([]pricedCandidate, 0, len(candidates))
	for _, c := range candidates {
		pc, ok := e.price(ctx, c, prices)
		if !ok {
			continue
		}
		if profit.USDValue(c.DebtToCover, pc.debtDecimals, pc.debtPrice).LessThan(e.dustFloor) {
			e.logger.Debug("dust candidate dropped", zap.String("user", c.User.Hex()), zap.String("debt_asset", c.DebtAsset.String()))
			continue
		}
		priced = append(priced, pc)
	}

	tasks := make([]rpcpool.Task[model.LiquidationTarget], len(priced))
	for i, pc := range priced {
		pc := pc
		tasks[i] = func(context.Context) (model.LiquidationTarget, error) {
			return e.analyze(pc, gasPrice, nativePrice)
		}
	}

	var batches []model.BatchOpportunity
	index := make(map[model.AssetID]int)
	for _, res := range rpcpool.ParallelFetch(ctx, e.cfg.Concurrency, tasks) {
		if res.Err != nil {
			e.logger.Warn("candidate analysis failed", zap.String("user", priced[res.Index].candidate.User.Hex()), zap.Error(res.Err))
			continue
		}
		target := res.Value
		i, ok := index[target.DebtAsset]
		if !ok {
			i = len(batches)
			index[target.DebtAsset] = i
			batches = append(batches, model.BatchOpportunity{
				ID:               uuid.NewString(),
				DebtAsset:        target.DebtAsset,
				TotalDebtToCover: new(big.Int),
			})
		}
		batches[i].Add(target)
	}

	if e.observer != nil {
		e.observer.BatchesGrouped(len(batches))
	}
	e.logger.Info("candidates grouped",
		zap.Int("candidates", len(candidates)),
		zap.Int("analyzed", len(priced)),
		zap.Int("batches", len(batches)),
	)
	return batches, nil
}

// ExecuteBatch settles a batch if its aggregate expected profit is positive.
// Without a live batch entry point every target is settled on its own, in
// order, and a failure moves on to the next target.
func (e *Executor) ExecuteBatch(ctx context.Context, batch model.BatchOpportunity) Report {
	report := Report{BatchID: batch.ID}
	logger := e.logger.With(
		zap.String("batch_id", batch.ID),
		zap.String("debt_asset", batch.DebtAsset.String()),
		zap.Int("targets", len(batch.Targets)),
		zap.Float64("expected_profit_usd", batch.TotalExpectedProfit),
	)

	if batch.TotalExpectedProfit <= 0 || len(batch.Targets) == 0 {
		logger.Info("batch skipped")
		return e.skip(report, batch, nil)
	}
	if e.settlement == nil {
		logger.Warn("batch skipped, no settlement configured")
		return e.skip(report, batch, errNoSettlement)
	}
	if e.observer != nil {
		e.observer.BatchExecuted()
	}

	if bs, ok := e.settlement.(BatchSettlement); ok && bs.SupportsBatch() {
		report.Attempted = len(batch.Targets)
		tx, err := bs.ExecuteBatch(ctx, batch.Targets)
		status, txStr := model.SettlementSucceeded, tx.Hex()
		if err != nil {
			status, txStr = model.SettlementFailed, ""
			report.Failed = len(batch.Targets)
			logger.Error("batch settlement failed", zap.Error(err))
		} else {
			report.Succeeded = len(batch.Targets)
			logger.Info("batch settled", zap.String("tx", tx.Hex()))
		}
		for _, target := range batch.Targets {
			report.Records = append(report.Records, e.record(batch.ID, target, status, err, txStr))
		}
		return report
	}

	for _, target := range batch.Targets {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		tx, err := e.settlement.ExecuteLiquidation(ctx, target)
		if err != nil {
			report.Failed++
			logger.Warn("target settlement failed", zap.String("user", target.User.Hex()), zap.Error(err))
			report.Records = append(report.Records, e.record(batch.ID, target, model.SettlementFailed, err, ""))
			continue
		}
		report.Succeeded++
		logger.Info("target settled", zap.String("user", target.User.Hex()), zap.String("tx", tx.Hex()))
		report.Records = append(report.Records, e.record(batch.ID, target, model.SettlementSucceeded, nil, tx.Hex()))
	}
	return report
}

func (e *Executor) skip(report Report, batch model.BatchOpportunity, reason error) Report {
	report.Skipped = true
	for _, target := range batch.Targets {
		report.Records = append(report.Records, e.record(batch.ID, target, model.SettlementSkipped, reason, ""))
	}
	if e.observer != nil {
		e.observer.BatchSkipped()
	}
	return report
}

func (e *Executor) gasInputs(ctx context.Context, prices map[model.AssetID]float64) (*big.Int, float64, error) {
	if e.cfg.GasPerTarget == 0 {
		return new(big.Int), 0, nil
	}
	nativePrice, ok := prices[e.cfg.NativeAsset]
	if !ok {
		return nil, 0, fmt.Errorf("native asset %s: %w", e.cfg.NativeAsset, oracle.ErrPriceUnavailable)
	}
	client := e.source.Client()
	if client == nil {
		return nil, 0, rpcpool.ErrNoEndpoints
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("suggest gas price: %w", err)
	}
	return gasPrice, nativePrice, nil
}

func (e *Executor) price(ctx context.Context, c model.Candidate, prices map[model.AssetID]float64) (pricedCandidate, bool) {
	debtPrice, okDebt := prices[c.DebtAsset]
	collPrice, okColl := prices[c.CollateralAsset]
	if !okDebt || !okColl {
		e.logger.Debug("candidate price unknown", zap.String("user", c.User.Hex()))
		return pricedCandidate{}, false
	}
	debtDecimals, err := e.decimals.Decimals(ctx, c.DebtAsset)
	if err != nil {
		e.logger.Debug("candidate decimals unknown", zap.String("asset", c.DebtAsset.String()), zap.Error(err))
		return pricedCandidate{}, false
	}
	collDecimals, err := e.decimals.Decimals(ctx, c.CollateralAsset)
	if err != nil {
		e.logger.Debug("candidate decimals unknown", zap.String("asset", c.CollateralAsset.String()), zap.Error(err))
		return pricedCandidate{}, false
	}
	return pricedCandidate{
		candidate:          c,
		debtDecimals:       debtDecimals,
		debtPrice:          debtPrice,
		collateralDecimals: collDecimals,
		collateralPrice:    collPrice,
	}, true
}

func (e *Executor) analyze(pc pricedCandidate, gasPrice *big.Int, nativePrice float64) (model.LiquidationTarget, error) {
	c := pc.candidate
	result, err := profit.Calculate(profit.Input{
		CollateralAmount:   c.CollateralAmount,
		CollateralDecimals: pc.collateralDecimals,
		CollateralPrice:    pc.collateralPrice,
		DebtAmount:         c.DebtToCover,
		DebtDecimals:       pc.debtDecimals,
		DebtPrice:          pc.debtPrice,
		GasUsed:            e.cfg.GasPerTarget,
		GasPrice:           gasPrice,
		NativePrice:        nativePrice,
	})
	if err != nil {
		return model.LiquidationTarget{}, err
	}

	flash := model.DefaultFlashSource()
	if e.sources != nil {
		flash = e.sources.Source(c.DebtAsset)
	}
	return model.LiquidationTarget{
		User:            c.User,
		CollateralAsset: c.CollateralAsset,
		DebtAsset:       c.DebtAsset,
		DebtToCover:     new(big.Int).Set(c.DebtToCover),
		ExpectedProfit:  result.ProfitUSD,
		HealthFactor:    c.HealthFactor,
		FlashSource:     flash,
	}, nil
}

func (e *Executor) record(batchID string, target model.LiquidationTarget, status model.SettlementStatus, err error, tx string) model.SettlementRecord {
	if e.observer != nil {
		e.observer.SettlementResult(status)
	}
	rec := model.SettlementRecord{
		BatchID:   batchID,
		Target:    target,
		Status:    status,
		TxHash:    tx,
		Timestamp: e.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}
