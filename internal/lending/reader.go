package lending

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidationScope/internal/model"
)

// Caller issues eth_call requests.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// UserReserve is one reserve row of getUserReserveData.
type UserReserve struct {
	Asset                    model.AssetID
	CurrentATokenBalance     *big.Int
	CurrentStableDebt        *big.Int
	CurrentVariableDebt      *big.Int
	UsageAsCollateralEnabled bool
}

// TotalDebt is stable plus variable debt.
func (r UserReserve) TotalDebt() *big.Int {
	total := new(big.Int)
	if r.CurrentStableDebt != nil {
		total.Add(total, r.CurrentStableDebt)
	}
	if r.CurrentVariableDebt != nil {
		total.Add(total, r.CurrentVariableDebt)
	}
	return total
}

// UserAccountData reads getUserAccountData(user) from the lending pool.
func UserAccountData(ctx context.Context, caller Caller, pool, user common.Address) (model.AccountData, error) {
	parsed, err := PoolABI()
	if err != nil {
		return model.AccountData{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, parsed, "getUserAccountData", nil, user)
	if err != nil {
		return model.AccountData{}, err
	}
	if len(values) != 6 {
		return model.AccountData{}, fmt.Errorf("getUserAccountData return size %d", len(values))
	}

	ints := make([]*big.Int, len(values))
	for i, value := range values {
		ints[i], err = asBigInt(value)
		if err != nil {
			return model.AccountData{}, fmt.Errorf("getUserAccountData field %d: %w", i, err)
		}
	}

	return model.AccountData{
		TotalCollateralBase:         ints[0],
		TotalDebtBase:               ints[1],
		AvailableBorrowsBase:        ints[2],
		CurrentLiquidationThreshold: ints[3],
		LTV:                         ints[4],
		HealthFactor:                ints[5],
	}, nil
}

// AssetPrice reads getAssetPrice(asset) from the price oracle. The value has 8 decimals.
func AssetPrice(ctx context.Context, caller Caller, oracle common.Address, asset model.AssetID) (*big.Int, error) {
	parsed, err := OracleABI()
	if err != nil {
		return nil, fmt.Errorf("parse oracle abi: %w", err)
	}
	values, err := callMethod(ctx, caller, oracle, parsed, "getAssetPrice", nil, asset.Address())
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getAssetPrice return size %d", len(values))
	}
	return asBigInt(values[0])
}

// BalanceOf reads an ERC20 balance at latest.
func BalanceOf(ctx context.Context, caller Caller, token model.AssetID, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token.Address(), parsed, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("balanceOf return size %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}

// Decimals reads an ERC20 decimals().
func Decimals(ctx context.Context, caller Caller, token model.AssetID) (uint8, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token.Address(), parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals return size %d", len(values))
	}
	return asUint8(values[0])
}

// GetUserReserve reads getUserReserveData(asset, user) from the protocol data provider.
func GetUserReserve(ctx context.Context, caller Caller, provider common.Address, asset model.AssetID, user common.Address) (UserReserve, error) {
	parsed, err := DataProviderABI()
	if err != nil {
		return UserReserve{}, fmt.Errorf("parse data provider abi: %w", err)
	}
	values, err := callMethod(ctx, caller, provider, parsed, "getUserReserveData", nil, asset.Address(), user)
	if err != nil {
		return UserReserve{}, err
	}
	if len(values) != 9 {
		return UserReserve{}, fmt.Errorf("getUserReserveData return size %d", len(values))
	}

	aToken, err := asBigInt(values[0])
	if err != nil {
		return UserReserve{}, fmt.Errorf("aToken balance: %w", err)
	}
	stable, err := asBigInt(values[1])
	if err != nil {
		return UserReserve{}, fmt.Errorf("stable debt: %w", err)
	}
	variable, err := asBigInt(values[2])
	if err != nil {
		return UserReserve{}, fmt.Errorf("variable debt: %w", err)
	}
	collateralEnabled, err := asBool(values[8])
	if err != nil {
		return UserReserve{}, fmt.Errorf("collateral flag: %w", err)
	}

	return UserReserve{
		Asset:                    asset,
		CurrentATokenBalance:     aToken,
		CurrentStableDebt:        stable,
		CurrentVariableDebt:      variable,
		UsageAsCollateralEnabled: collateralEnabled,
	}, nil
}

func callMethod(ctx context.Context, caller Caller, target common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}
