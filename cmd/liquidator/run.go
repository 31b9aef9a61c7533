package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/config"
	"liquidationScope/internal/evaluator"
	"liquidationScope/internal/executor"
	"liquidationScope/internal/lending"
	"liquidationScope/internal/liquidator"
	"liquidationScope/internal/liquidity"
	"liquidationScope/internal/metrics"
	"liquidationScope/internal/model"
	"liquidationScope/internal/oracle"
	"liquidationScope/internal/scanner"
	"liquidationScope/internal/storage"
	"liquidationScope/internal/tracker"
)

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		logger.Sync()
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := resolveAddresses(cfg)
	if err != nil {
		return err
	}
	assets, err := resolveAssets(cfg.Assets)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := dialPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := metrics.New()
	m.RegisterEndpoints(pool.Stats)

	pg, err := openPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	if pg != nil {
		defer pg.Close()
	}

	decoder, err := lending.NewEventDecoder()
	if err != nil {
		return fmt.Errorf("build event decoder: %w", err)
	}

	tr := tracker.New(tracker.Config{
		Pool:        addrs.pool,
		MinDebtUSD:  cfg.MinDebtUSD,
		Concurrency: cfg.Concurrency,
	}, pool, tracker.NewRegistry(), logger).WithObserver(m)

	positions := positionStore(cfg, pg)
	if _, err := tr.Restore(ctx, positions, cfg.RPCRetries, cfg.RetryBackoff); err != nil {
		return fmt.Errorf("restore monitored set: %w", err)
	}

	if !cfg.SkipScan {
		sc := scanner.New(scanner.Config{
			Pool:         addrs.pool,
			StartBlock:   cfg.StartBlock,
			EndBlock:     cfg.EndBlock,
			BatchSize:    cfg.BatchSize,
			MaxRetries:   cfg.RPCRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, pool, decoder, tr, syncStore(cfg, pg), logger)
		summary, err := sc.Run(ctx)
		if err != nil {
			return fmt.Errorf("historical scan: %w", err)
		}
		logger.Info("historical scan complete",
			zap.Uint64("from", summary.From),
			zap.Uint64("to", summary.To),
			zap.Int("borrowers", summary.Borrowers),
			zap.Int("read", summary.Read),
		)
	}

	prices := oracle.NewClient(pool, addrs.oracle, cfg.Concurrency, logger).WithObserver(m)
	decimals := lending.NewDecimalsRegistry(pool, assets.decimals)

	monitor := liquidity.NewMonitor(liquidity.Config{
		Assets:       assets.liquidity,
		PriceTable:   assets.prices,
		ThresholdUSD: cfg.LiquidityThresholdUSD,
		Interval:     cfg.LiquidityInterval,
	}, pool, liquidity.NewSourceTable(), logger).WithObserver(m)

	eval := evaluator.New(evaluator.Config{
		DataProvider: addrs.dataProvider,
		Assets:       assets.ids,
		BonusBps:     assets.bonusBps,
		Concurrency:  cfg.Concurrency,
	}, pool, prices, decimals, logger)

	settle, closeSettle, err := buildSettlement(ctx, cfg, addrs, logger)
	if err != nil {
		return err
	}
	defer closeSettle()

	ex := executor.New(executor.Config{
		DustUSD:      cfg.DustUSD,
		GasPerTarget: cfg.GasPerTarget,
		NativeAsset:  addrs.nativeAsset,
		Concurrency:  cfg.Concurrency,
	}, pool, prices, decimals, monitor, settle, logger).WithObserver(m)

	journal := storage.MultiJournal{storage.NewJsonlJournal(cfg.Journal)}
	if pg != nil {
		journal = append(journal, pg)
	}

	loop := liquidator.New(cfg.EvalInterval, tr, eval, ex, journal, logger).
		WithObserver(m).
		WithPositionSink(positions)

	logger.Info("liquidator start",
		zap.Int("rpc_endpoints", pool.Size()),
		zap.String("pool", addrs.pool.Hex()),
		zap.Int("assets", len(assets.ids)),
		zap.Int("monitored", tr.Registry().Len()),
		zap.Float64("min_debt_usd", cfg.MinDebtUSD),
		zap.Duration("eval_interval", cfg.EvalInterval),
		zap.String("journal", cfg.Journal),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	g, gctx := errgroup.WithContext(ctx)

	var events <-chan model.PositionEvent
	var subErrs <-chan error
	if cfg.WS != "" {
		wsClient, err := chain.NewClient(ctx, cfg.WS, chain.Options{CallTimeout: cfg.RPCTimeout})
		if err != nil {
			return fmt.Errorf("connect ws: %w", err)
		}
		defer wsClient.Close()

		events, subErrs, err = tracker.NewIngestor(wsClient, addrs.pool, decoder, 0, logger).Subscribe(gctx)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("no websocket url configured, positions refresh only on each cycle")
	}

	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	if events != nil {
		g.Go(func() error { return tr.Run(gctx, events) })
		g.Go(func() error {
			if err, ok := <-subErrs; ok && err != nil {
				return err
			}
			return nil
		})
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.MetricsAddr, logger) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("liquidator stopped")
	return nil
}
