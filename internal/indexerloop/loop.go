// Package indexerloop drives the system forward: window advance, cadence
// control, resynchronisation against the chain head, and periodic subgraph
// backfill. Ground truth: main_indexing.py's `while True` loop and
// initialize_indexing_module.py.
package indexerloop

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/chainevents"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/rpcpool"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/store"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/subgraph"
)

// logFetcher is the subset of *rpcpool.Pool the loop depends on.
type logFetcher interface {
	GetLogs(ctx context.Context, from, to uint64) ([]types.Log, error)
	CurrentHead(ctx context.Context) (uint64, error)
}

// eventStore is the subset of *store.Store the loop depends on.
type eventStore interface {
	LastIndexedBlock(ctx context.Context) (uint64, bool, error)
	CommitBatch(ctx context.Context, fromBlock, toBlock *uint64, events []chainevents.Event) error
}

// backfiller is the subset of *subgraph.Client the loop depends on.
type backfiller interface {
	BackfillRange(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]chainevents.Event, error)
}

// Tunables, preserved exactly from the original's constants.
const (
	BlockToRetrieve      = 3
	BlockBuffer          = 5
	CountBeforeResync    = 100
	CountPeriodicBackfill = 960
	BackfillWindow       = 17280

	// blockCadence is the per-block pacing target; slightly slower than
	// nominal block time so the loop never overruns the chain's tip.
	blockCadence = 5100 * time.Millisecond
)

// Loop is the single logical worker that owns the steady-state indexing
// cycle. One Loop per process; cancellation is cooperative.
type Loop struct {
	store    eventStore
	pool     logFetcher
	subgraph backfiller
	logger   *zap.Logger

	genesisBlock uint64

	fromBlock       uint64
	toBlock         uint64
	syncCounter     int
	backfillCounter int

	// now is time.Now by default; overridden in tests for deterministic
	// elapsed-time arithmetic in the tail sleep.
	now func() time.Time
	// sleep is the tail-sleep primitive; overridden in tests to avoid real
	// wall-clock waits.
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs a Loop. genesisBlock seeds the watermark on a fresh
// database, per spec.md §4.F's initialisation rule.
func New(st *store.Store, pool *rpcpool.Pool, sg *subgraph.Client, genesisBlock uint64, logger *zap.Logger) *Loop {
	return &Loop{
		store:        st,
		pool:         pool,
		subgraph:     sg,
		logger:       logger,
		genesisBlock: genesisBlock,
		now:          time.Now,
		sleep:        ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Init seeds the loop's window state from the durable watermark (or the
// configured genesis block on a fresh database) and performs one subgraph
// backfill from there to the current chain head before steady-state
// iteration begins.
func (l *Loop) Init(ctx context.Context) error {
	last, ok, err := l.store.LastIndexedBlock(ctx)
	if err != nil {
		return err
	}

	head, err := l.pool.CurrentHead(ctx)
	if err != nil {
		return err
	}

	var start uint64
	if ok {
		start = last + 1
	} else {
		start = l.genesisBlock
	}

	if l.logger != nil {
		l.logger.Info("initializing indexer",
			zap.Uint64("start_block", start), zap.Uint64("head", head))
	}

	if head > start {
		events, err := l.subgraph.BackfillRange(ctx, start, &head)
		if err != nil {
			if l.logger != nil {
				l.logger.Error("initial backfill failed", zap.Error(err))
			}
		} else if len(events) > 0 {
			if err := l.store.CommitBatch(ctx, nil, nil, events); err != nil {
				return err
			}
		}
	}

	l.fromBlock = start
	l.toBlock = start + BlockToRetrieve - 1
	return nil
}

// Run executes the steady-state loop until ctx is cancelled. It checks
// ctx.Err() at the top of each iteration and inside the tail sleep so
// shutdown never leaves a partial write: the batch commit per iteration is
// atomic, per spec.md §5.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := l.now()
		if err := l.runIteration(ctx); err != nil {
			return err
		}

		elapsed := l.now().Sub(start)
		budget := time.Duration(BlockToRetrieve) * blockCadence
		if remaining := budget - elapsed; remaining > 0 {
			l.sleep(ctx, remaining)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// runIteration performs one pass of steps 2-8 of the steady-state cycle.
// RPC and decode failures are logged and swallowed (the caller's next tick
// retries against a rotated endpoint); only a store.IntegrityError is
// returned, so Run propagates it and the outer supervisor restarts after
// backoff, per spec.md §7.
func (l *Loop) runIteration(ctx context.Context) error {
	logs, err := l.pool.GetLogs(ctx, l.fromBlock, l.toBlock)
	if err != nil {
		var transient *rpcpool.TransientError
		if errors.As(err, &transient) && l.logger != nil {
			l.logger.Warn("rpc fetch exhausted, will retry next tick", zap.Error(err))
		}
		return nil
	}

	events, err := chainevents.DecodeBatch(logs)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("decode batch aborted", zap.Error(err),
				zap.Uint64("from_block", l.fromBlock), zap.Uint64("to_block", l.toBlock))
		}
		return nil
	}

	from, to := l.fromBlock, l.toBlock
	if err := l.store.CommitBatch(ctx, &from, &to, events); err != nil {
		return err
	}

	l.fromBlock = l.toBlock + 1
	l.toBlock += BlockToRetrieve

	l.syncCounter++
	l.backfillCounter++

	if l.syncCounter > CountBeforeResync {
		l.resync(ctx)
	}
	if l.backfillCounter > CountPeriodicBackfill {
		l.periodicBackfill(ctx)
	}
	return nil
}

// resync re-anchors the window to the chain head, correcting for drift
// accumulated since the last resync.
func (l *Loop) resync(ctx context.Context) {
	head, err := l.pool.CurrentHead(ctx)
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("resync head lookup failed, deferring", zap.Error(err))
		}
		return
	}

	l.toBlock = head - BlockBuffer
	deviation := int64(l.toBlock) - int64(l.fromBlock) - BlockToRetrieve
	if deviation < 0 {
		l.fromBlock = head - BlockBuffer - BlockToRetrieve + 1
	}
	l.syncCounter = 0
}

// periodicBackfill reconciles the trailing BackfillWindow of blocks against
// the subgraph to close any gaps the RPC path may have missed.
func (l *Loop) periodicBackfill(ctx context.Context) {
	var from uint64
	if l.toBlock > BackfillWindow {
		from = l.toBlock - BackfillWindow
	}
	to := l.toBlock

	events, err := l.subgraph.BackfillRange(ctx, from, &to)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("periodic backfill failed, will retry next tick", zap.Error(err))
		}
		l.backfillCounter = 0
		return
	}
	if len(events) > 0 {
		if err := l.store.CommitBatch(ctx, nil, nil, events); err != nil && l.logger != nil {
			l.logger.Error("periodic backfill commit failed", zap.Error(err))
		}
	}
	l.backfillCounter = 0
}
