// Package liquidity picks the best-funded flash-loan source per asset.
package liquidity

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
	"liquidationScope/internal/profit"
	"liquidationScope/internal/rpcpool"
)

const (
	DefaultInterval     = 5 * time.Minute
	DefaultThresholdUSD = 10_000.0
)

// AssetConfig describes one asset the monitor evaluates.
type AssetConfig struct {
	Asset       model.AssetID
	Symbol      string
	Decimals    uint8
	PrimaryPool common.Address
	Secondary   *model.FlashSource
}

// Config controls the monitor.
type Config struct {
	Assets       []AssetConfig
	PriceTable   map[model.AssetID]float64
	ThresholdUSD float64
	Interval     time.Duration
	Primary      model.FlashSource
	Tertiary     model.FlashSource
}

// Observer receives each selection.
type Observer interface {
	SourceSelected(asset string, source model.FlashSourceID)
}

// Monitor polls primary pool balances and keeps the source table current.
type Monitor struct {
	cfg      Config
	source   chain.Source
	table    *SourceTable
	logger   *zap.Logger
	observer Observer
}

func NewMonitor(cfg Config, source chain.Source, table *SourceTable, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = NewSourceTable()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ThresholdUSD <= 0 {
		cfg.ThresholdUSD = DefaultThresholdUSD
	}
	if cfg.Primary.ID == "" {
		cfg.Primary = model.FlashSource{ID: model.FlashSourceBalancer, Label: "Balancer vault"}
	}
	if cfg.Tertiary.ID == "" {
		cfg.Tertiary = model.DefaultFlashSource()
	}
	return &Monitor{cfg: cfg, source: source, table: table, logger: logger}
}

// WithObserver attaches a selection observer.
func (m *Monitor) WithObserver(observer Observer) *Monitor {
	m.observer = observer
	return m
}

// Run polls once immediately and then on every interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	m.Poll(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll evaluates every configured asset. A failing asset keeps its previous selection.
func (m *Monitor) Poll(ctx context.Context) {
	for _, asset := range m.cfg.Assets {
		src, balanceUSD, err := m.evaluate(ctx, asset)
		if err != nil {
			m.logger.Warn("liquidity check failed",
				zap.String("asset", asset.Symbol),
				zap.String("address", asset.Asset.String()),
				zap.Error(err),
			)
			continue
		}
		m.table.Set(asset.Asset, src)
		if m.observer != nil {
			m.observer.SourceSelected(asset.Symbol, src.ID)
		}
		m.logger.Debug("flash source selected",
			zap.String("asset", asset.Symbol),
			zap.String("source", string(src.ID)),
			zap.Float64("primary_balance_usd", balanceUSD),
		)
	}
}

// Source returns the last selection for asset, or the tertiary source if none yet.
func (m *Monitor) Source(asset model.AssetID) model.FlashSource {
	if src, ok := m.table.Get(asset); ok {
		return src
	}
	return m.cfg.Tertiary
}

func (m *Monitor) evaluate(ctx context.Context, asset AssetConfig) (model.FlashSource, float64, error) {
	price, ok := m.cfg.PriceTable[asset.Asset]
	if !ok || price <= 0 {
		return model.FlashSource{}, 0, fmt.Errorf("no static price for %s", asset.Symbol)
	}

	client := m.source.Client()
	if client == nil {
		return model.FlashSource{}, 0, rpcpool.ErrNoEndpoints
	}
	balance, err := lending.BalanceOf(ctx, client, asset.Asset, asset.PrimaryPool)
	if err != nil {
		return model.FlashSource{}, 0, fmt.Errorf("primary balance: %w", err)
	}

	balanceUSD := profit.ToDecimal(balance, asset.Decimals) * price
	if balanceUSD > m.cfg.ThresholdUSD {
		primary := m.cfg.Primary
		pool := asset.PrimaryPool
		primary.Pool = &pool
		return primary, balanceUSD, nil
	}
	if asset.Secondary != nil {
		return *asset.Secondary, balanceUSD, nil
	}
	return m.cfg.Tertiary, balanceUSD, nil
}
