package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidationScope/internal/lending"
	"liquidationScope/internal/scanner"
	"liquidationScope/internal/tracker"
)

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addrs, err := resolveAddresses(cfg)
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
	}, pool, tracker.NewRegistry(), logger)

	store := positionStore(cfg, pg)
	if _, err := tr.Restore(ctx, store, cfg.RPCRetries, cfg.RetryBackoff); err != nil {
		return fmt.Errorf("restore monitored set: %w", err)
	}

	sc := scanner.New(scanner.Config{
		Pool:         addrs.pool,
		StartBlock:   cfg.StartBlock,
		EndBlock:     cfg.EndBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.RPCRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, pool, decoder, tr, syncStore(cfg, pg), logger)

	logger.Info("scan start",
		zap.Strings("rpc", cfg.RPC),
		zap.String("pool", addrs.pool.Hex()),
		zap.Uint64("start_block", cfg.StartBlock),
		zap.Uint64("end_block", cfg.EndBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("state_file", cfg.StateFile),
		zap.String("positions_file", cfg.PositionsFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	summary, err := sc.Run(ctx)
	if err != nil {
		return err
	}

	positions := tr.Registry().Snapshot()
	if err := store.SavePositions(ctx, positions); err != nil {
		return err
	}

	logger.Info("scan complete",
		zap.Uint64("from", summary.From),
		zap.Uint64("to", summary.To),
		zap.Int("ranges", summary.Ranges),
		zap.Int("borrowers", summary.Borrowers),
		zap.Int("monitored", len(positions)),
	)
	return nil
}
