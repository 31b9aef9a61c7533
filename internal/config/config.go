package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingAddress is returned when a required protocol address is absent or malformed.
var ErrMissingAddress = errors.New("missing protocol address")

// AssetConfig describes one reserve the service prices, monitors and funds.
type AssetConfig struct {
	Address             string  `mapstructure:"address"`
	Symbol              string  `mapstructure:"symbol"`
	Decimals            uint8   `mapstructure:"decimals"`
	Price               float64 `mapstructure:"price"`
	PrimaryPool         string  `mapstructure:"primary-pool"`
	Secondary           string  `mapstructure:"secondary"`
	SecondaryPool       string  `mapstructure:"secondary-pool"`
	LiquidationBonusBps int64   `mapstructure:"liquidation-bonus-bps"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPC          []string
	WS           string
	Pool         string
	Oracle       string
	DataProvider string
	Settlement   string
	NativeAsset  string
	PrivateKey   string
	Assets       []AssetConfig

	MinDebtUSD            float64
	DustUSD               float64
	LiquidityThresholdUSD float64
	LiquidityInterval     time.Duration
	EvalInterval          time.Duration
	GasPerTarget          uint64
	BatchSettlement       bool
	SkipScan              bool

	Concurrency int
	RPCTimeout  time.Duration
	RPCRetries  int
	RPCRate     float64
	RPCBurst    int

	StartBlock   uint64
	EndBlock     uint64
	BatchSize    uint64
	RetryBackoff time.Duration

	StateFile     string
	PositionsFile string
	PGDSN         string
	Journal       string
	MetricsAddr   string
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LIQUIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("min-debt-usd", 50.0)
	v.SetDefault("dust-usd", 0.001)
	v.SetDefault("liquidity-threshold-usd", 10_000.0)
	v.SetDefault("liquidity-interval", 5*time.Minute)
	v.SetDefault("eval-interval", 30*time.Second)
	v.SetDefault("gas-per-target", uint64(450_000))
	v.SetDefault("concurrency", 8)
	v.SetDefault("rpc-timeout", 10*time.Second)
	v.SetDefault("rpc-retries", 2)
	v.SetDefault("rpc-rate", 10.0)
	v.SetDefault("rpc-burst", 5)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("state-file", "./data/sync_state.json")
	v.SetDefault("positions-file", "./data/positions.json")
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var assets []AssetConfig
	if v.IsSet("assets") {
		if err := v.UnmarshalKey("assets", &assets); err != nil {
			return Config{}, fmt.Errorf("parse assets: %w", err)
		}
	}

	cfg := Config{
		RPC:                   getStringSlice(v, "rpc"),
		WS:                    v.GetString("ws"),
		Pool:                  v.GetString("pool"),
		Oracle:                v.GetString("oracle"),
		DataProvider:          v.GetString("data-provider"),
		Settlement:            v.GetString("settlement"),
		NativeAsset:           v.GetString("native-asset"),
		PrivateKey:            v.GetString("private-key"),
		Assets:                assets,
		MinDebtUSD:            v.GetFloat64("min-debt-usd"),
		DustUSD:               v.GetFloat64("dust-usd"),
		LiquidityThresholdUSD: v.GetFloat64("liquidity-threshold-usd"),
		LiquidityInterval:     v.GetDuration("liquidity-interval"),
		EvalInterval:          v.GetDuration("eval-interval"),
		GasPerTarget:          v.GetUint64("gas-per-target"),
		BatchSettlement:       v.GetBool("batch-settlement"),
		SkipScan:              v.GetBool("skip-scan"),
		Concurrency:           v.GetInt("concurrency"),
		RPCTimeout:            v.GetDuration("rpc-timeout"),
		RPCRetries:            v.GetInt("rpc-retries"),
		RPCRate:               v.GetFloat64("rpc-rate"),
		RPCBurst:              v.GetInt("rpc-burst"),
		StartBlock:            v.GetUint64("start-block"),
		EndBlock:              v.GetUint64("end-block"),
		BatchSize:             v.GetUint64("batch-size"),
		RetryBackoff:          v.GetDuration("retry-backoff"),
		StateFile:             v.GetString("state-file"),
		PositionsFile:         v.GetString("positions-file"),
		PGDSN:                 v.GetString("pg-dsn"),
		Journal:               v.GetString("journal"),
		MetricsAddr:           v.GetString("metrics-addr"),
		LogLevel:              v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate fails on anything that must abort startup.
func (c Config) Validate() error {
	if len(c.RPC) == 0 {
		return fmt.Errorf("at least one rpc url is required")
	}
	required := []struct {
		key   string
		value string
	}{
		{"pool", c.Pool},
		{"oracle", c.Oracle},
		{"data-provider", c.DataProvider},
	}
	for _, r := range required {
		if _, err := ParseAddress(r.value); err != nil {
			return fmt.Errorf("%s: %w", r.key, ErrMissingAddress)
		}
	}
	if c.NativeAsset != "" || c.GasPerTarget > 0 {
		if _, err := ParseAddress(c.NativeAsset); err != nil {
			return fmt.Errorf("native-asset is required to price gas: %w", ErrMissingAddress)
		}
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be greater than zero")
	}
	for i, asset := range c.Assets {
		if _, err := ParseAddress(asset.Address); err != nil {
			return fmt.Errorf("assets[%d] address: %w", i, ErrMissingAddress)
		}
		if asset.PrimaryPool != "" {
			if _, err := ParseAddress(asset.PrimaryPool); err != nil {
				return fmt.Errorf("assets[%d] primary-pool: %w", i, err)
			}
		}
		if asset.SecondaryPool != "" {
			if _, err := ParseAddress(asset.SecondaryPool); err != nil {
				return fmt.Errorf("assets[%d] secondary-pool: %w", i, err)
			}
		}
	}
	return nil
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("address is empty")
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
