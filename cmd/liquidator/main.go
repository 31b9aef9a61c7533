package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Secrets such as LIQUIDATOR_PRIVATE_KEY usually live in .env.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "liquidator",
		Short:        "Lending pool liquidation scanner and batcher",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Track positions and settle liquidation batches",
		RunE:  runService,
	}

	addCommonFlags(runCmd)
	runCmd.Flags().String("ws", "", "websocket RPC URL for live pool events")
	runCmd.Flags().String("settlement", "", "settlement contract address")
	runCmd.Flags().String("native-asset", "", "wrapped native token used to price gas")
	runCmd.Flags().Float64("min-debt-usd", 50, "minimum debt in USD for a position to be monitored")
	runCmd.Flags().Float64("dust-usd", 0.001, "candidates whose debt value in USD is below this are dropped")
	runCmd.Flags().Float64("liquidity-threshold-usd", 10_000, "primary flash pool balance required to prefer it")
	runCmd.Flags().Duration("liquidity-interval", 5*time.Minute, "flash liquidity poll interval")
	runCmd.Flags().Duration("eval-interval", 30*time.Second, "liquidation cycle interval")
	runCmd.Flags().Uint64("gas-per-target", 450_000, "gas units budgeted per liquidation target")
	runCmd.Flags().Bool("batch-settlement", false, "settle whole batches through executeBatch")
	runCmd.Flags().Bool("skip-scan", false, "skip the historical catch-up scan before going live")
	runCmd.Flags().String("journal", "./data/journal.jsonl", "JSONL journal of opportunities and settlements")
	runCmd.Flags().String("metrics-addr", "", "listen address for /metrics, empty disables")

	root.AddCommand(runCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan historical Borrow events and report monitorable positions",
		RunE:  runScan,
	}

	addCommonFlags(scanCmd)

	root.AddCommand(scanCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("rpc", nil, "RPC URLs (comma-separated)")
	cmd.Flags().String("pool", "", "lending pool address")
	cmd.Flags().String("oracle", "", "price oracle address")
	cmd.Flags().String("data-provider", "", "pool data provider address")
	cmd.Flags().Int("concurrency", 8, "maximum concurrent RPC reads")
	cmd.Flags().Duration("rpc-timeout", 10*time.Second, "per call RPC timeout")
	cmd.Flags().Int("rpc-retries", 2, "retries per RPC call")
	cmd.Flags().Float64("rpc-rate", 10, "requests per second per endpoint, 0 disables throttling")
	cmd.Flags().Uint64("start-block", 0, "first block of the historical scan")
	cmd.Flags().Uint64("end-block", 0, "last block of the historical scan, 0 means latest")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per log query")
	cmd.Flags().String("state-file", "./data/sync_state.json", "sync state file path")
	cmd.Flags().String("positions-file", "./data/positions.json", "monitored set snapshot used when no Postgres DSN is set")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	atomicLevel := zap.NewAtomicLevel()
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.Level = atomicLevel

	return cfg.Build()
}
