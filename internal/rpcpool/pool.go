// Package rpcpool spreads read traffic over several independent RPC endpoints.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"liquidationScope/internal/chain"
)

// ErrNoEndpoints is returned when the pool has nothing to hand out.
var ErrNoEndpoints = errors.New("rpc pool has no endpoints")

// Endpoint is one pooled RPC endpoint.
type Endpoint struct {
	URL      string
	backend  chain.Backend
	limiter  *rate.Limiter
	requests atomic.Uint64
}

// NewEndpoint wraps a backend. A nil limiter disables throttling.
func NewEndpoint(url string, backend chain.Backend, limiter *rate.Limiter) *Endpoint {
	return &Endpoint{URL: url, backend: backend, limiter: limiter}
}

// Requests returns how many times the endpoint was handed out.
func (e *Endpoint) Requests() uint64 {
	return e.requests.Load()
}

// Pool round-robins over its endpoints.
type Pool struct {
	endpoints []*Endpoint
	clients   []chain.Backend
	next      atomic.Uint64
	closers   []func()
}

// New builds a pool from already constructed endpoints.
func New(endpoints ...*Endpoint) *Pool {
	p := &Pool{endpoints: endpoints}
	p.clients = make([]chain.Backend, 0, len(endpoints))
	for _, ep := range endpoints {
		p.clients = append(p.clients, &throttled{ep: ep})
	}
	return p
}

// Options configures Dial.
type Options struct {
	Chain chain.Options
	// RatePerSecond caps requests per endpoint; zero disables throttling.
	RatePerSecond float64
	Burst         int
}

// Dial connects one chain client per URL.
func Dial(ctx context.Context, urls []string, opts Options) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}

	endpoints := make([]*Endpoint, 0, len(urls))
	closers := make([]func(), 0, len(urls))
	for _, url := range urls {
		client, err := chain.NewClient(ctx, url, opts.Chain)
		if err != nil {
			for _, closeFn := range closers {
				closeFn()
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		var limiter *rate.Limiter
		if opts.RatePerSecond > 0 {
			burst := opts.Burst
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
		}
		endpoints = append(endpoints, NewEndpoint(url, client, limiter))
		closers = append(closers, client.Close)
	}

	p := New(endpoints...)
	p.closers = closers
	return p, nil
}

// Close releases every dialed endpoint.
func (p *Pool) Close() {
	for _, closeFn := range p.closers {
		closeFn()
	}
}

// Size returns the number of endpoints.
func (p *Pool) Size() int {
	return len(p.endpoints)
}

// Client returns the next endpoint round-robin and counts the hand-out.
// It returns nil when the pool is empty.
func (p *Pool) Client() chain.Backend {
	if len(p.endpoints) == 0 {
		return nil
	}
	idx := (p.next.Add(1) - 1) % uint64(len(p.endpoints))
	p.endpoints[idx].requests.Add(1)
	return p.clients[idx]
}

// Clients returns every endpoint handle for manual fan-out.
func (p *Pool) Clients() []chain.Backend {
	out := make([]chain.Backend, len(p.clients))
	copy(out, p.clients)
	return out
}

// Stats returns request counts keyed by endpoint URL.
func (p *Pool) Stats() map[string]uint64 {
	stats := make(map[string]uint64, len(p.endpoints))
	for _, ep := range p.endpoints {
		stats[ep.URL] += ep.Requests()
	}
	return stats
}

// throttled waits on the endpoint limiter before every call.
type throttled struct {
	ep *Endpoint
}

func (t *throttled) wait(ctx context.Context) error {
	if t.ep.limiter == nil {
		return nil
	}
	return t.ep.limiter.Wait(ctx)
}

func (t *throttled) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.ep.backend.CallContract(ctx, msg, blockNumber)
}

func (t *throttled) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.ep.backend.FilterLogs(ctx, fromBlock, toBlock, addresses, topics)
}

func (t *throttled) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := t.wait(ctx); err != nil {
		return 0, err
	}
	return t.ep.backend.LatestBlockNumber(ctx)
}

func (t *throttled) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if err := t.wait(ctx); err != nil {
		return 0, err
	}
	return t.ep.backend.BlockTimestamp(ctx, number)
}

func (t *throttled) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.ep.backend.SuggestGasPrice(ctx)
}
