package testutil

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
)

var errAccountUnavailable = errors.New("account read unavailable")

// Accounts serves getUserAccountData from an editable table.
type Accounts struct {
	mu       sync.Mutex
	data     map[common.Address]model.AccountData
	failures map[common.Address]int
}

// NewAccounts registers the account table on the pool address of fake.
func NewAccounts(fake *FakeChain, pool common.Address) *Accounts {
	accounts := &Accounts{
		data:     make(map[common.Address]model.AccountData),
		failures: make(map[common.Address]int),
	}
	parsed, err := lending.PoolABI()
	if err != nil {
		panic(err)
	}
	fake.Handle(pool, parsed, "getUserAccountData", func(args []interface{}) ([]interface{}, error) {
		user := args[0].(common.Address)
		accounts.mu.Lock()
		data, ok := accounts.data[user]
		remaining := accounts.failures[user]
		if remaining > 0 {
			accounts.failures[user] = remaining - 1
		}
		accounts.mu.Unlock()
		if remaining != 0 {
			return nil, errAccountUnavailable
		}
		if !ok {
			data = model.AccountData{}
		}
		return []interface{}{
			orZero(data.TotalCollateralBase),
			orZero(data.TotalDebtBase),
			orZero(data.AvailableBorrowsBase),
			orZero(data.CurrentLiquidationThreshold),
			orZero(data.LTV),
			orMax(data.HealthFactor),
		}, nil
	})
	return accounts
}

// SetDebtUSD sets the account's debt in whole dollars with the given health factor.
func (a *Accounts) SetDebtUSD(user common.Address, debtUSD int64, healthFactor *big.Int) {
	debt := new(big.Int).Mul(big.NewInt(debtUSD), big.NewInt(100_000_000))
	a.Set(user, model.AccountData{
		TotalCollateralBase: new(big.Int).Mul(debt, big.NewInt(2)),
		TotalDebtBase:       debt,
		HealthFactor:        healthFactor,
	})
}

// FailReads makes the next n reads for user fail. A negative n fails every read.
func (a *Accounts) FailReads(user common.Address, n int) {
	a.mu.Lock()
	a.failures[user] = n
	a.mu.Unlock()
}

// Set replaces the account data for user.
func (a *Accounts) Set(user common.Address, data model.AccountData) {
	a.mu.Lock()
	a.data[user] = data
	a.mu.Unlock()
}

// Prices serves getAssetPrice from an editable table with 8-decimal prices.
type Prices struct {
	mu   sync.Mutex
	data map[common.Address]*big.Int
}

// NewPrices registers the price table on the oracle address of fake.
func NewPrices(fake *FakeChain, oracle common.Address) *Prices {
	prices := &Prices{data: make(map[common.Address]*big.Int)}
	parsed, err := lending.OracleABI()
	if err != nil {
		panic(err)
	}
	fake.Handle(oracle, parsed, "getAssetPrice", func(args []interface{}) ([]interface{}, error) {
		asset := args[0].(common.Address)
		prices.mu.Lock()
		price, ok := prices.data[asset]
		prices.mu.Unlock()
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return []interface{}{price}, nil
	})
	return prices
}

// SetUSD sets a price given in cents.
func (p *Prices) SetUSD(asset model.AssetID, cents int64) {
	p.mu.Lock()
	p.data[asset.Address()] = new(big.Int).Mul(big.NewInt(cents), big.NewInt(1_000_000))
	p.mu.Unlock()
}

// HealthFactor returns hf x 1e18 for a float in tests.
func HealthFactor(hf float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(hf), new(big.Float).SetInt(model.HealthFactorOne))
	out, _ := f.Int(nil)
	return out
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func orMax(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	}
	return v
}

type reserveKey struct {
	asset common.Address
	user  common.Address
}

// Reserves serves getUserReserveData from an editable table.
type Reserves struct {
	mu   sync.Mutex
	data map[reserveKey]lending.UserReserve
}

// NewReserves registers the reserve table on the data provider address of fake.
func NewReserves(fake *FakeChain, provider common.Address) *Reserves {
	reserves := &Reserves{data: make(map[reserveKey]lending.UserReserve)}
	parsed, err := lending.DataProviderABI()
	if err != nil {
		panic(err)
	}
	fake.Handle(provider, parsed, "getUserReserveData", func(args []interface{}) ([]interface{}, error) {
		key := reserveKey{asset: args[0].(common.Address), user: args[1].(common.Address)}
		reserves.mu.Lock()
		r := reserves.data[key]
		reserves.mu.Unlock()
		return []interface{}{
			orZero(r.CurrentATokenBalance),
			orZero(r.CurrentStableDebt),
			orZero(r.CurrentVariableDebt),
			new(big.Int),
			new(big.Int),
			new(big.Int),
			new(big.Int),
			new(big.Int),
			r.UsageAsCollateralEnabled,
		}, nil
	})
	return reserves
}

// Set stores a user's balances in one reserve.
func (r *Reserves) Set(asset model.AssetID, user common.Address, aTokenBalance, variableDebt *big.Int, collateral bool) {
	r.mu.Lock()
	r.data[reserveKey{asset: asset.Address(), user: user}] = lending.UserReserve{
		Asset:                    asset,
		CurrentATokenBalance:     aTokenBalance,
		CurrentVariableDebt:      variableDebt,
		UsageAsCollateralEnabled: collateral,
	}
	r.mu.Unlock()
}

// StaticPrices is a fixed price table for components taking a price source.
type StaticPrices map[model.AssetID]float64

func (p StaticPrices) BatchAssetPrices(_ context.Context, assets []model.AssetID, _ *uint64) map[model.AssetID]float64 {
	out := make(map[model.AssetID]float64, len(assets))
	for _, asset := range assets {
		if price, ok := p[asset]; ok {
			out[asset] = price
		}
	}
	return out
}
