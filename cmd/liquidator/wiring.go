package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/config"
	"liquidationScope/internal/executor"
	"liquidationScope/internal/liquidity"
	"liquidationScope/internal/model"
	"liquidationScope/internal/rpcpool"
	"liquidationScope/internal/settlement"
	"liquidationScope/internal/storage"
	"liquidationScope/internal/storage/postgres"
	"liquidationScope/internal/syncstate"
)

const scanStateName = "borrow_scan"

// addresses holds the validated protocol contracts.
type addresses struct {
	pool         common.Address
	oracle       common.Address
	dataProvider common.Address
	settlement   common.Address
	nativeAsset  model.AssetID
}

func resolveAddresses(cfg config.Config) (addresses, error) {
	var out addresses
	var err error
	if out.pool, err = config.ParseAddress(cfg.Pool); err != nil {
		return out, fmt.Errorf("pool: %w", err)
	}
	if out.oracle, err = config.ParseAddress(cfg.Oracle); err != nil {
		return out, fmt.Errorf("oracle: %w", err)
	}
	if out.dataProvider, err = config.ParseAddress(cfg.DataProvider); err != nil {
		return out, fmt.Errorf("data-provider: %w", err)
	}
	if cfg.Settlement != "" {
		if out.settlement, err = config.ParseAddress(cfg.Settlement); err != nil {
			return out, fmt.Errorf("settlement: %w", err)
		}
	}
	if cfg.NativeAsset != "" {
		if out.nativeAsset, err = model.ParseAssetID(cfg.NativeAsset); err != nil {
			return out, fmt.Errorf("native-asset: %w", err)
		}
	}
	return out, nil
}

// assetSet is the configured reserve list in the shapes each component wants.
type assetSet struct {
	ids       []model.AssetID
	liquidity []liquidity.AssetConfig
	decimals  map[model.AssetID]uint8
	bonusBps  map[model.AssetID]int64
	prices    map[model.AssetID]float64
}

func resolveAssets(entries []config.AssetConfig) (assetSet, error) {
	set := assetSet{
		decimals: make(map[model.AssetID]uint8, len(entries)),
		bonusBps: make(map[model.AssetID]int64, len(entries)),
		prices:   make(map[model.AssetID]float64, len(entries)),
	}
	for i, entry := range entries {
		id, err := model.ParseAssetID(entry.Address)
		if err != nil {
			return assetSet{}, fmt.Errorf("assets[%d]: %w", i, err)
		}
		set.ids = append(set.ids, id)
		if entry.Decimals > 0 {
			set.decimals[id] = entry.Decimals
		}
		if entry.LiquidationBonusBps > 0 {
			set.bonusBps[id] = entry.LiquidationBonusBps
		}
		if entry.Price > 0 {
			set.prices[id] = entry.Price
		}

		if entry.PrimaryPool == "" {
			continue
		}
		primaryPool, err := config.ParseAddress(entry.PrimaryPool)
		if err != nil {
			return assetSet{}, fmt.Errorf("assets[%d] primary-pool: %w", i, err)
		}
		lc := liquidity.AssetConfig{
			Asset:       id,
			Symbol:      entry.Symbol,
			Decimals:    entry.Decimals,
			PrimaryPool: primaryPool,
		}
		if entry.Secondary != "" {
			secondary := model.FlashSource{ID: model.FlashSourceID(entry.Secondary), Label: entry.Secondary}
			if entry.SecondaryPool != "" {
				pool, err := config.ParseAddress(entry.SecondaryPool)
				if err != nil {
					return assetSet{}, fmt.Errorf("assets[%d] secondary-pool: %w", i, err)
				}
				secondary.Pool = &pool
			}
			lc.Secondary = &secondary
		}
		set.liquidity = append(set.liquidity, lc)
	}
	return set, nil
}

func dialPool(ctx context.Context, cfg config.Config) (*rpcpool.Pool, error) {
	pool, err := rpcpool.Dial(ctx, cfg.RPC, rpcpool.Options{
		Chain: chain.Options{
			CallTimeout:  cfg.RPCTimeout,
			MaxRetries:   cfg.RPCRetries,
			RetryBackoff: cfg.RetryBackoff,
		},
		RatePerSecond: cfg.RPCRate,
		Burst:         cfg.RPCBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc pool: %w", err)
	}
	return pool, nil
}

// openPostgres returns nil when no DSN is configured.
func openPostgres(ctx context.Context, cfg config.Config) (*postgres.Store, error) {
	if cfg.PGDSN == "" {
		return nil, nil
	}
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func syncStore(cfg config.Config, store *postgres.Store) syncstate.Store {
	if store != nil {
		return &syncstate.PostgresStore{Store: store, Name: scanStateName}
	}
	return &syncstate.FileStore{Path: cfg.StateFile}
}

// positionStore keeps the monitored set next to the sync state: in Postgres
// when configured, otherwise in a JSON file.
func positionStore(cfg config.Config, store *postgres.Store) storage.PositionStore {
	if store != nil {
		return store
	}
	return &storage.PositionFile{Path: cfg.PositionsFile}
}

// buildSettlement signs with LIQUIDATOR_PRIVATE_KEY when present and falls
// back to a dry run otherwise. The returned func releases the signing client.
func buildSettlement(ctx context.Context, cfg config.Config, addrs addresses, logger *zap.Logger) (executor.Settlement, func(), error) {
	noop := func() {}
	if cfg.PrivateKey == "" {
		logger.Warn("no signing key configured, settlement runs dry")
		return settlement.NewDryRun(cfg.BatchSettlement, logger), noop, nil
	}
	if addrs.settlement == (common.Address{}) {
		return nil, noop, fmt.Errorf("settlement: %w", config.ErrMissingAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, noop, fmt.Errorf("parse private key: %w", err)
	}

	client, err := chain.NewClient(ctx, cfg.RPC[0], chain.Options{
		CallTimeout:  cfg.RPCTimeout,
		MaxRetries:   cfg.RPCRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("connect settlement rpc: %w", err)
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		client.Close()
		return nil, noop, fmt.Errorf("get chain id: %w", err)
	}

	contract, err := settlement.NewContract(addrs.settlement, client.Eth(), key, chainID, cfg.BatchSettlement, logger)
	if err != nil {
		client.Close()
		return nil, noop, err
	}
	logger.Info("settlement signer ready",
		zap.String("contract", addrs.settlement.Hex()),
		zap.String("from", contract.From().Hex()),
		zap.String("chain_id", chainID.String()),
		zap.Bool("batch", cfg.BatchSettlement),
	)
	return contract, client.Close, nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
