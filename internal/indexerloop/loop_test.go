package indexerloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/chainevents"
)

type fakeStore struct {
	lastBlock    uint64
	hasWatermark bool
	commits      int
	failCommit   error
}

func (f *fakeStore) LastIndexedBlock(ctx context.Context) (uint64, bool, error) {
	return f.lastBlock, f.hasWatermark, nil
}

func (f *fakeStore) CommitBatch(ctx context.Context, fromBlock, toBlock *uint64, events []chainevents.Event) error {
	f.commits++
	return f.failCommit
}

type fakePool struct {
	head    uint64
	logsErr error
}

func (f *fakePool) GetLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	return nil, f.logsErr
}

func (f *fakePool) CurrentHead(ctx context.Context) (uint64, error) {
	return f.head, nil
}

type fakeBackfiller struct {
	calls int
	err   error
}

func (f *fakeBackfiller) BackfillRange(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]chainevents.Event, error) {
	f.calls++
	return nil, f.err
}

func newTestLoop(st *fakeStore, pool *fakePool, bf *fakeBackfiller) *Loop {
	return &Loop{
		store: st, pool: pool, subgraph: bf,
		genesisBlock: 1000,
		now:          time.Now,
		sleep:        func(ctx context.Context, d time.Duration) {},
	}
}

func TestInitSeedsFromGenesisOnFreshDB(t *testing.T) {
	st := &fakeStore{hasWatermark: false}
	pool := &fakePool{head: 2000}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)

	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, uint64(1000), l.fromBlock)
	assert.Equal(t, uint64(1000+BlockToRetrieve-1), l.toBlock)
	assert.Equal(t, 1, bf.calls)
}

func TestInitResumesFromWatermark(t *testing.T) {
	st := &fakeStore{hasWatermark: true, lastBlock: 5000}
	pool := &fakePool{head: 5010}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)

	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, uint64(5001), l.fromBlock)
}

func TestRunIterationAdvancesWindowOnSuccess(t *testing.T) {
	st := &fakeStore{}
	pool := &fakePool{}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)
	l.fromBlock, l.toBlock = 10, 12

	require.NoError(t, l.runIteration(context.Background()))
	assert.Equal(t, uint64(13), l.fromBlock)
	assert.Equal(t, uint64(15), l.toBlock)
	assert.Equal(t, 1, st.commits)
}

func TestRunIterationSwallowsTransientRPCError(t *testing.T) {
	st := &fakeStore{}
	pool := &fakePool{logsErr: errors.New("connection refused")}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)
	l.fromBlock, l.toBlock = 10, 12

	require.NoError(t, l.runIteration(context.Background()))
	assert.Equal(t, uint64(10), l.fromBlock, "window must not advance on a failed fetch")
	assert.Equal(t, 0, st.commits)
}

func TestRunIterationPropagatesIntegrityError(t *testing.T) {
	want := errors.New("disk full")
	st := &fakeStore{failCommit: want}
	pool := &fakePool{}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)

	err := l.runIteration(context.Background())
	require.ErrorIs(t, err, want)
}

func TestResyncCorrectsNegativeDeviation(t *testing.T) {
	st := &fakeStore{}
	pool := &fakePool{head: 100}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)
	l.fromBlock, l.toBlock = 94, 96
	l.syncCounter = CountBeforeResync + 1

	l.resync(context.Background())
	assert.Equal(t, 0, l.syncCounter)
	assert.Equal(t, uint64(100-BlockBuffer), l.toBlock)
	assert.Equal(t, uint64(100-BlockBuffer-BlockToRetrieve+1), l.fromBlock)
}

func TestPeriodicBackfillResetsCounter(t *testing.T) {
	st := &fakeStore{}
	pool := &fakePool{}
	bf := &fakeBackfiller{}
	l := newTestLoop(st, pool, bf)
	l.toBlock = 20000
	l.backfillCounter = CountPeriodicBackfill + 1

	l.periodicBackfill(context.Background())
	assert.Equal(t, 0, l.backfillCounter)
	assert.Equal(t, 1, bf.calls)
}
