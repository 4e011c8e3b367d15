package rpcpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient always fails FilterLogs/BlockNumber; used to exercise retry
// exhaustion and rotation without a live JSON-RPC server.
type fakeClient struct {
	fail   bool
	closed bool
}

func (f *fakeClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if f.fail {
		return nil, errors.New("connection refused")
	}
	return []types.Log{{BlockNumber: 1}}, nil
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	if f.fail {
		return 0, errors.New("connection refused")
	}
	return 42, nil
}

func (f *fakeClient) Close() { f.closed = true }

func newTestPool(t *testing.T, endpoints []*fakeClient) *Pool {
	t.Helper()
	urls := make([]string, len(endpoints))
	for i := range endpoints {
		urls[i] = string(rune('a' + i))
	}
	p, err := New(urls, common.HexToAddress("0xYAM"), nil)
	require.NoError(t, err)
	p.retryDelay = time.Millisecond
	p.maxRetries = 2
	p.dial = func(ctx context.Context, url string) (endpointClient, error) {
		return endpoints[int(url[0]-'a')], nil
	}
	return p
}

// Scenario 6 — endpoint rotation: the first endpoint fails every request;
// after retry exhaustion the pool rotates so the next call targets the
// second endpoint.
func TestGetLogsRotatesOnExhaustion(t *testing.T) {
	bad := &fakeClient{fail: true}
	good := &fakeClient{fail: false}
	p := newTestPool(t, []*fakeClient{bad, good})

	_, err := p.GetLogs(context.Background(), 1, 3)
	require.Error(t, err)
	var transient *TransientError
	require.ErrorAs(t, err, &transient)
	assert.True(t, bad.closed)
	assert.Equal(t, 1, p.CurrentIndex())

	logs, err := p.GetLogs(context.Background(), 4, 6)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestCurrentHeadRotatesOnExhaustion(t *testing.T) {
	bad := &fakeClient{fail: true}
	good := &fakeClient{fail: false}
	p := newTestPool(t, []*fakeClient{bad, good})

	_, err := p.CurrentHead(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, p.CurrentIndex())

	head, err := p.CurrentHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), head)
}
