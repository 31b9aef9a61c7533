// Package settlement submits liquidations to the on-chain settlement contract.
package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidationScope/internal/lending"
	"liquidationScope/internal/model"
)

// ErrReverted is returned when a mined settlement transaction failed.
var ErrReverted = errors.New("settlement reverted")

// Backend can send transactions and wait for receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Contract settles targets through executeLiquidation and executeBatch.
type Contract struct {
	address  common.Address
	contract *bind.BoundContract
	backend  Backend
	opts     *bind.TransactOpts
	batch    bool
	logger   *zap.Logger
}

// NewContract binds the settlement contract at address and signs with key.
// batch enables the executeBatch entry point.
func NewContract(address common.Address, backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, batch bool, logger *zap.Logger) (*Contract, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := lending.SettlementABI()
	if err != nil {
		return nil, fmt.Errorf("parse settlement abi: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return &Contract{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		opts:     opts,
		batch:    batch,
		logger:   logger,
	}, nil
}

// From returns the signing account.
func (c *Contract) From() common.Address {
	return c.opts.From
}

// ExecuteLiquidation submits one target and waits for it to be mined.
func (c *Contract) ExecuteLiquidation(ctx context.Context, target model.LiquidationTarget) (common.Hash, error) {
	return c.transact(ctx, "executeLiquidation",
		target.CollateralAsset.Address(),
		target.DebtAsset.Address(),
		target.User,
		target.DebtToCover,
	)
}

func (c *Contract) SupportsBatch() bool {
	return c.batch
}

// ExecuteBatch submits all targets in one transaction.
func (c *Contract) ExecuteBatch(ctx context.Context, targets []model.LiquidationTarget) (common.Hash, error) {
	if len(targets) == 0 {
		return common.Hash{}, fmt.Errorf("empty batch")
	}
	collateral, debt, users, amounts := BatchArgs(targets)
	return c.transact(ctx, "executeBatch", collateral, debt, users, amounts)
}

func (c *Contract) transact(ctx context.Context, method string, params ...interface{}) (common.Hash, error) {
	opts := *c.opts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", method, err)
	}
	c.logger.Info("settlement sent", zap.String("method", method), zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("wait %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrReverted)
	}
	return tx.Hash(), nil
}

// BatchArgs splits targets into the parallel arrays executeBatch takes.
func BatchArgs(targets []model.LiquidationTarget) ([]common.Address, []common.Address, []common.Address, []*big.Int) {
	collateral := make([]common.Address, len(targets))
	debt := make([]common.Address, len(targets))
	users := make([]common.Address, len(targets))
	amounts := make([]*big.Int, len(targets))
	for i, target := range targets {
		collateral[i] = target.CollateralAsset.Address()
		debt[i] = target.DebtAsset.Address()
		users[i] = target.User
		amounts[i] = target.DebtToCover
		if amounts[i] == nil {
			amounts[i] = new(big.Int)
		}
	}
	return collateral, debt, users, amounts
}
