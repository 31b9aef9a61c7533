// Package evaluator turns unhealthy monitored positions into liquidation candidates.
package evaluator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
	"liquidationScope/internal/profit"
	"liquidationScope/internal/rpcpool"
)

// DefaultBonusBps is the liquidation bonus used when an asset has none configured.
const DefaultBonusBps = 500

// PriceSource resolves USD prices; missing assets are unknown.
type PriceSource interface {
	BatchAssetPrices(ctx context.Context, assets []model.AssetID, block *uint64) map[model.AssetID]float64
}

// DecimalsSource resolves token decimals.
type DecimalsSource interface {
	Decimals(ctx context.Context, asset model.AssetID) (uint8, error)
}

// Config lists the reserves inspected per user.
type Config struct {
	DataProvider common.Address
	Assets       []model.AssetID
	BonusBps     map[model.AssetID]int64
	Concurrency  int
}

// Evaluator reads per-reserve balances and sizes a liquidation.
type Evaluator struct {
	cfg      Config
	source   chain.Source
	prices   PriceSource
	decimals DecimalsSource
	logger   *zap.Logger
}

func New(cfg Config, source chain.Source, prices PriceSource, decimals DecimalsSource, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Evaluator{cfg: cfg, source: source, prices: prices, decimals: decimals, logger: logger}
}

type reserveValue struct {
	reserve  lending.UserReserve
	decimals uint8
	price    float64
	debtUSD  float64
	collUSD  float64
}

// Candidates returns one candidate per liquidatable position that has both a
// priced debt reserve and a priced collateral reserve.
func (e *Evaluator) Candidates(ctx context.Context, positions []model.Position) ([]model.Candidate, error) {
	unhealthy := make([]model.Position, 0, len(positions))
	for _, position := range positions {
		if position.Liquidatable() {
			unhealthy = append(unhealthy, position)
		}
	}
	if len(unhealthy) == 0 {
		return nil, nil
	}

	prices := e.prices.BatchAssetPrices(ctx, e.cfg.Assets, nil)
	if len(prices) == 0 {
		return nil, fmt.Errorf("no reserve prices resolved")
	}

	tasks := make([]rpcpool.Task[*model.Candidate], len(unhealthy))
	for i, position := range unhealthy {
		position := position
		tasks[i] = func(ctx context.Context) (*model.Candidate, error) {
			return e.candidate(ctx, position, prices)
		}
	}

	candidates := make([]model.Candidate, 0, len(unhealthy))
	for _, res := range rpcpool.ParallelFetch(ctx, e.cfg.Concurrency, tasks) {
		user := unhealthy[res.Index].User
		if res.Err != nil {
			e.logger.Warn("candidate skipped", zap.String("user", user.Hex()), zap.Error(res.Err))
			continue
		}
		if res.Value != nil {
			candidates = append(candidates, *res.Value)
		}
	}
	return candidates, nil
}

func (e *Evaluator) candidate(ctx context.Context, position model.Position, prices map[model.AssetID]float64) (*model.Candidate, error) {
	client := e.source.Client()
	if client == nil {
		return nil, rpcpool.ErrNoEndpoints
	}

	var debt, collateral *reserveValue
	for _, asset := range e.cfg.Assets {
		price, ok := prices[asset]
		if !ok {
			continue
		}
		reserve, err := lending.GetUserReserve(ctx, client, e.cfg.DataProvider, asset, position.User)
		if err != nil {
			return nil, fmt.Errorf("reserve %s: %w", asset, err)
		}
		totalDebt := reserve.TotalDebt()
		hasCollateral := reserve.UsageAsCollateralEnabled && reserve.CurrentATokenBalance != nil && reserve.CurrentATokenBalance.Sign() > 0
		if totalDebt.Sign() == 0 && !hasCollateral {
			continue
		}

		decimals, err := e.decimals.Decimals(ctx, asset)
		if err != nil {
			e.logger.Debug("decimals unresolved", zap.String("asset", asset.String()), zap.Error(err))
			continue
		}
		value := &reserveValue{reserve: reserve, decimals: decimals, price: price}
		if totalDebt.Sign() > 0 {
			value.debtUSD = profit.ToDecimal(totalDebt, decimals) * price
			if debt == nil || value.debtUSD > debt.debtUSD {
				debt = value
			}
		}
		if hasCollateral {
			value.collUSD = profit.ToDecimal(reserve.CurrentATokenBalance, decimals) * price
			if collateral == nil || value.collUSD > collateral.collUSD {
				collateral = value
			}
		}
	}
	if debt == nil || collateral == nil {
		return nil, nil
	}

	debtToCover := profit.MaxDebtToCover(debt.reserve.TotalDebt(), position.HealthFactor)
	seized := profit.SeizedCollateral(
		debtToCover, debt.decimals, debt.price,
		collateral.decimals, collateral.price,
		e.bonus(collateral.reserve.Asset),
	)
	if seized == nil {
		return nil, nil
	}
	if seized.Cmp(collateral.reserve.CurrentATokenBalance) > 0 {
		seized = new(big.Int).Set(collateral.reserve.CurrentATokenBalance)
	}

	return &model.Candidate{
		User:             position.User,
		CollateralAsset:  collateral.reserve.Asset,
		DebtAsset:        debt.reserve.Asset,
		DebtToCover:      debtToCover,
		CollateralAmount: seized,
		HealthFactor:     new(big.Int).Set(position.HealthFactor),
	}, nil
}

func (e *Evaluator) bonus(asset model.AssetID) int64 {
	if bps, ok := e.cfg.BonusBps[asset]; ok {
		return bps
	}
	return DefaultBonusBps
}
