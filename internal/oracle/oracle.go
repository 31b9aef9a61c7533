// Package oracle resolves USD prices from the lending protocol's price oracle.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
	"liquidationScope/internal/rpcpool"
)

// PriceDecimals is the precision of oracle prices.
const PriceDecimals = 8

const latestKey = "latest"

// ErrPriceUnavailable marks a price that resolved to nothing usable.
var ErrPriceUnavailable = errors.New("price unavailable")

// Observer receives cache hit/miss notifications.
type Observer interface {
	PriceLookup(hit bool)
}

type cacheKey struct {
	asset model.AssetID
	block string
}

// Client returns memoized USD prices. Historical blocks are accepted for
// keying but every read is made at latest.
type Client struct {
	source      chain.Source
	oracle      common.Address
	concurrency int
	logger      *zap.Logger
	observer    Observer

	mu    sync.RWMutex
	cache map[cacheKey]float64
	group singleflight.Group
}

// NewClient builds an oracle client reading through source.
func NewClient(source chain.Source, oracle common.Address, concurrency int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Client{
		source:      source,
		oracle:      oracle,
		concurrency: concurrency,
		logger:      logger,
		cache:       make(map[cacheKey]float64),
	}
}

// WithObserver attaches a cache observer.
func (c *Client) WithObserver(observer Observer) *Client {
	c.observer = observer
	return c
}

// AssetPriceUSD returns the USD price of asset. block may be nil for latest.
func (c *Client) AssetPriceUSD(ctx context.Context, asset model.AssetID, block *uint64) (float64, error) {
	key := cacheKey{asset: asset, block: blockKey(block)}

	c.mu.RLock()
	price, ok := c.cache[key]
	c.mu.RUnlock()
	if c.observer != nil {
		c.observer.PriceLookup(ok)
	}
	if ok {
		return price, nil
	}

	value, err, _ := c.group.Do(asset.String()+"@"+key.block, func() (interface{}, error) {
		c.mu.RLock()
		cached, ok := c.cache[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		client := c.source.Client()
		if client == nil {
			return 0.0, rpcpool.ErrNoEndpoints
		}
		raw, err := lending.AssetPrice(ctx, client, c.oracle, asset)
		if err != nil {
			return 0.0, fmt.Errorf("oracle price %s: %w", asset, err)
		}
		if raw == nil || raw.Sign() <= 0 {
			return 0.0, fmt.Errorf("oracle price %s: %w", asset, ErrPriceUnavailable)
		}

		usd := ToUSD(raw)
		c.mu.Lock()
		c.cache[key] = usd
		c.mu.Unlock()
		return usd, nil
	})
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}

// BatchAssetPrices resolves many assets in parallel. Assets whose price could
// not be resolved are absent from the result.
func (c *Client) BatchAssetPrices(ctx context.Context, assets []model.AssetID, block *uint64) map[model.AssetID]float64 {
	unique := make([]model.AssetID, 0, len(assets))
	seen := make(map[model.AssetID]struct{}, len(assets))
	for _, asset := range assets {
		if _, ok := seen[asset]; ok {
			continue
		}
		seen[asset] = struct{}{}
		unique = append(unique, asset)
	}

	tasks := make([]rpcpool.Task[float64], len(unique))
	for i, asset := range unique {
		asset := asset
		tasks[i] = func(ctx context.Context) (float64, error) {
			return c.AssetPriceUSD(ctx, asset, block)
		}
	}

	prices := make(map[model.AssetID]float64, len(unique))
	for _, res := range rpcpool.ParallelFetch(ctx, c.concurrency, tasks) {
		asset := unique[res.Index]
		if res.Err != nil {
			c.logger.Warn("price unresolved", zap.String("asset", asset.String()), zap.Error(res.Err))
			continue
		}
		prices[asset] = res.Value
	}
	return prices
}

// CacheSize returns the number of memoized entries.
func (c *Client) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// ToUSD converts an 8-decimal oracle answer to float USD.
func ToUSD(raw *big.Int) float64 {
	if raw == nil || raw.Sign() == 0 {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	usd, _ := new(big.Float).Quo(f, big.NewFloat(1e8)).Float64()
	return usd
}

func blockKey(block *uint64) string {
	if block == nil {
		return latestKey
	}
	return strconv.FormatUint(*block, 10)
}
