package status

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(v int64) *big.Int { return big.NewInt(v) }

// Scenario 1 — create, partial accept, sellout.
func TestResolveSoldOut(t *testing.T) {
	history := []Record{
		{Kind: KindCreated, BlockNumber: 1, LogIndex: 0, InitialAmount: amt(100)},
		{Kind: KindAccepted, BlockNumber: 2, LogIndex: 0, AmountBought: amt(40)},
		{Kind: KindAccepted, BlockNumber: 3, LogIndex: 0, AmountBought: amt(60)},
	}
	got, err := Resolve(history)
	require.NoError(t, err)
	assert.Equal(t, SoldOut, got)
}

// Scenario 2 — create, accept, update resets baseline, accept again.
func TestResolveUpdateResetsBaseline(t *testing.T) {
	history := []Record{
		{Kind: KindCreated, BlockNumber: 1, LogIndex: 0, InitialAmount: amt(100)},
		{Kind: KindAccepted, BlockNumber: 2, LogIndex: 0, AmountBought: amt(30)},
		{Kind: KindUpdated, BlockNumber: 3, LogIndex: 0, NewAmount: amt(50)},
		{Kind: KindAccepted, BlockNumber: 4, LogIndex: 0, AmountBought: amt(20)},
	}
	got, err := Resolve(history)
	require.NoError(t, err)
	assert.Equal(t, InProgress, got)
}

// Scenario 3 — deletion wins regardless of residual amount.
func TestResolveDeletedAfterPartialFill(t *testing.T) {
	history := []Record{
		{Kind: KindCreated, BlockNumber: 1, LogIndex: 0, InitialAmount: amt(100)},
		{Kind: KindAccepted, BlockNumber: 2, LogIndex: 0, AmountBought: amt(10)},
		{Kind: KindDeleted, BlockNumber: 3, LogIndex: 0},
	}
	got, err := Resolve(history)
	require.NoError(t, err)
	assert.Equal(t, Deleted, got)
}

func TestResolveInProgress(t *testing.T) {
	history := []Record{
		{Kind: KindCreated, BlockNumber: 1, LogIndex: 0, InitialAmount: amt(100)},
		{Kind: KindAccepted, BlockNumber: 2, LogIndex: 0, AmountBought: amt(10)},
	}
	got, err := Resolve(history)
	require.NoError(t, err)
	assert.Equal(t, InProgress, got)
}

func TestResolveUndeterminedOnOversell(t *testing.T) {
	history := []Record{
		{Kind: KindCreated, BlockNumber: 1, LogIndex: 0, InitialAmount: amt(100)},
		{Kind: KindAccepted, BlockNumber: 2, LogIndex: 0, AmountBought: amt(150)},
	}
	_, err := Resolve(history)
	require.ErrorIs(t, err, ErrUndetermined)
}

// Property 7: pure function of the history, independent of supplied order.
func TestResolveIndependentOfSuppliedOrder(t *testing.T) {
	forward := []Record{
		{Kind: KindCreated, BlockNumber: 1, LogIndex: 0, InitialAmount: amt(100)},
		{Kind: KindAccepted, BlockNumber: 2, LogIndex: 0, AmountBought: amt(40)},
		{Kind: KindAccepted, BlockNumber: 3, LogIndex: 0, AmountBought: amt(60)},
	}
	reversed := []Record{forward[2], forward[0], forward[1]}

	gotForward, err := Resolve(forward)
	require.NoError(t, err)
	gotReversed, err := Resolve(reversed)
	require.NoError(t, err)
	assert.Equal(t, gotForward, gotReversed)
}
