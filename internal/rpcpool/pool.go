// Package rpcpool holds a rotating pool of JSON-RPC endpoints and exposes
// log-fetching and chain-head operations with bounded local retry. Ground
// truth: main_indexing.py's inline RPC retry/rotation loop, realized over
// go-ethereum's ethclient the way the teacher's geth-02-rpc-basics and
// geth-17-indexer dial and query an endpoint.
package rpcpool

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const (
	// MaxRetries is the number of attempts against the current endpoint
	// before the pool rotates to the next one.
	MaxRetries = 6
	// RetryDelay separates successive attempts against the same endpoint.
	RetryDelay = 1500 * time.Millisecond
)

// TransientError wraps an RPC failure that local retry already exhausted.
// The caller's next iteration observes a rotated endpoint.
type TransientError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("rpcpool: endpoint %s exhausted after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}
func (e *TransientError) Unwrap() error { return e.Err }

// endpointClient is the subset of *ethclient.Client the pool depends on.
// Narrowing to an interface lets tests substitute a fake endpoint without a
// live JSON-RPC server.
type endpointClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// dialFunc dials a named endpoint. Overridden in tests.
type dialFunc func(ctx context.Context, url string) (endpointClient, error)

func dialEthclient(ctx context.Context, url string) (endpointClient, error) {
	return ethclient.DialContext(ctx, url)
}

// Pool owns an ordered list of RPC endpoint URLs, a current index, and a
// lazily-dialed client for that index. It is single-writer by construction:
// only the Indexing Loop goroutine ever calls into it.
type Pool struct {
	mu          sync.Mutex
	urls        []string
	index       int
	client      endpointClient
	dial        dialFunc
	retryDelay  time.Duration
	maxRetries  uint64
	logger      *zap.Logger
	contract    common.Address
}

// New constructs a pool over the given endpoint URLs, ordered as configured.
// The YAM contract address is fixed per pool instance since GetLogs always
// filters on it.
func New(urls []string, contract common.Address, logger *zap.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("rpcpool: at least one endpoint is required")
	}
	return &Pool{
		urls: urls, contract: contract, logger: logger,
		// backoff.WithMaxRetries counts retries after the first attempt, so
		// MaxRetries-1 retries here gives MaxRetries total attempts against
		// the endpoint, matching spec.md §4.E/Scenario 6.
		dial: dialEthclient, retryDelay: RetryDelay, maxRetries: MaxRetries - 1,
	}, nil
}

func (p *Pool) currentURL() string { return p.urls[p.index] }

// CurrentIndex reports the endpoint index currently active, for diagnostics.
func (p *Pool) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// dialCurrent lazily dials (or redials, after rotation) the active endpoint.
func (p *Pool) dialCurrent(ctx context.Context) (endpointClient, error) {
	if p.client != nil {
		return p.client, nil
	}
	c, err := p.dial(ctx, p.currentURL())
	if err != nil {
		return nil, err
	}
	p.client = c
	return c, nil
}

// rotate advances the index (mod pool size) and discards the stale client.
func (p *Pool) rotate() {
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.index = (p.index + 1) % len(p.urls)
}

func (p *Pool) newRetry(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.retryDelay), p.maxRetries), ctx)
}

// GetLogs fetches contract logs over [from, to] (inclusive). On local retry
// exhaustion against the current endpoint, the pool rotates one step and
// returns *TransientError — it never loops across endpoints itself; the
// caller decides whether to retry next iteration.
func (p *Pool) GetLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	endpoint := p.currentURL()
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{p.contract},
	}

	var logs []types.Log
	attempts := 0
	op := func() error {
		attempts++
		client, err := p.dialCurrent(ctx)
		if err != nil {
			return err
		}
		logs, err = client.FilterLogs(ctx, query)
		return err
	}

	if err := backoff.Retry(op, p.newRetry(ctx)); err != nil {
		if p.logger != nil {
			p.logger.Warn("rpc endpoint exhausted, rotating",
				zap.String("endpoint", endpoint), zap.Int("attempts", attempts),
				zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
		}
		p.rotate()
		return nil, &TransientError{Endpoint: endpoint, Attempts: attempts, Err: err}
	}
	return logs, nil
}

// CurrentHead returns the current chain head block number, with the same
// local-retry-then-rotate discipline as GetLogs.
func (p *Pool) CurrentHead(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	endpoint := p.currentURL()
	var head uint64
	attempts := 0
	op := func() error {
		attempts++
		client, err := p.dialCurrent(ctx)
		if err != nil {
			return err
		}
		head, err = client.BlockNumber(ctx)
		return err
	}

	if err := backoff.Retry(op, p.newRetry(ctx)); err != nil {
		if p.logger != nil {
			p.logger.Warn("rpc endpoint exhausted fetching head, rotating",
				zap.String("endpoint", endpoint), zap.Int("attempts", attempts), zap.Error(err))
		}
		p.rotate()
		return 0, &TransientError{Endpoint: endpoint, Attempts: attempts, Err: err}
	}
	return head, nil
}

// Close releases the active client, if any.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
