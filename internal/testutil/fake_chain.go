// Package testutil provides in-memory chain fakes for unit tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidationScope/internal/chain"
)

// CallHandler answers one contract method with decoded args.
type CallHandler func(args []interface{}) ([]interface{}, error)

type callKey struct {
	to       common.Address
	selector [4]byte
}

type handlerEntry struct {
	method  abi.Method
	handler CallHandler
}

// FakeChain implements chain.Backend and chain.Source over registered handlers.
type FakeChain struct {
	mu       sync.Mutex
	handlers map[callKey]handlerEntry
	calls    map[callKey]int

	GasPrice *big.Int
	Latest   uint64
	LogsFn   func(from, to uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// NewFakeChain returns an empty fake.
func NewFakeChain() *FakeChain {
	return &FakeChain{
		handlers: make(map[callKey]handlerEntry),
		calls:    make(map[callKey]int),
		GasPrice: big.NewInt(1_000_000_000),
	}
}

// Handle registers a handler for method on the contract at to.
func (f *FakeChain) Handle(to common.Address, parsed abi.ABI, method string, handler CallHandler) {
	m, ok := parsed.Methods[method]
	if !ok {
		panic(fmt.Sprintf("abi has no method %s", method))
	}
	var selector [4]byte
	copy(selector[:], m.ID)

	f.mu.Lock()
	f.handlers[callKey{to: to, selector: selector}] = handlerEntry{method: m, handler: handler}
	f.mu.Unlock()
}

// Calls returns how many times method was called on to.
func (f *FakeChain) Calls(to common.Address, parsed abi.ABI, method string) int {
	var selector [4]byte
	copy(selector[:], parsed.Methods[method].ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[callKey{to: to, selector: selector}]
}

// Client implements chain.Source.
func (f *FakeChain) Client() chain.Backend {
	return f
}

func (f *FakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("fake chain: malformed call")
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])
	key := callKey{to: *msg.To, selector: selector}

	f.mu.Lock()
	entry, ok := f.handlers[key]
	f.calls[key]++
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fake chain: no handler for %s %x", msg.To.Hex(), selector)
	}

	args, err := entry.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, fmt.Errorf("fake chain: unpack args: %w", err)
	}
	out, err := entry.handler(args)
	if err != nil {
		return nil, err
	}
	return entry.method.Outputs.Pack(out...)
}

func (f *FakeChain) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	if f.LogsFn == nil {
		return nil, nil
	}
	return f.LogsFn(from, to, addresses, topics)
}

func (f *FakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return f.Latest, nil
}

func (f *FakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1_700_000_000 + number*12, nil
}

func (f *FakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.GasPrice), nil
}
