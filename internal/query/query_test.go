package query

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/chainevents"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/store"
)

func newTestSurface(t *testing.T) (*store.Store, *Surface) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.db")
	s, err := store.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, New(s)
}

func ptr[T any](v T) *T { return &v }

// Invariant 6: query_accepted(buyer, {A}, t1, t2) returns exactly the
// OfferAccepted rows matching buyer/time-window, ascending by timestamp.
func TestAcceptedOffersByBuyer(t *testing.T) {
	s, q := newTestSurface(t)
	ctx := context.Background()

	ts1 := int64(1000)
	ts2 := int64(2000)
	ts3 := int64(3000)

	require.NoError(t, s.CommitBatch(ctx, ptr(uint64(1)), ptr(uint64(1)), []chainevents.Event{
		chainevents.OfferCreated{
			LogMeta:    chainevents.LogMeta{BlockNumber: 1, LogIndex: 0, TransactionHash: "0xc1"},
			OfferID:    1, Seller: "0xSeller1", Price: big.NewInt(1), Amount: big.NewInt(100),
			OfferToken: "0xOfferToken", BuyerToken: "0xBuyerToken",
		},
	}))
	require.NoError(t, s.CommitBatch(ctx, ptr(uint64(2)), ptr(uint64(2)), []chainevents.Event{
		chainevents.OfferAccepted{
			LogMeta: chainevents.LogMeta{BlockNumber: 2, LogIndex: 0, TransactionHash: "0xa1", Timestamp: &ts1},
			OfferID: 1, Buyer: "0xBuyerA", Price: big.NewInt(1), Amount: big.NewInt(40),
		},
	}))
	require.NoError(t, s.CommitBatch(ctx, ptr(uint64(3)), ptr(uint64(3)), []chainevents.Event{
		chainevents.OfferAccepted{
			LogMeta: chainevents.LogMeta{BlockNumber: 3, LogIndex: 0, TransactionHash: "0xa2", Timestamp: &ts2},
			OfferID: 1, Buyer: "0xBuyerB", Price: big.NewInt(1), Amount: big.NewInt(60),
		},
	}))
	require.NoError(t, s.CommitBatch(ctx, ptr(uint64(4)), ptr(uint64(4)), []chainevents.Event{
		chainevents.OfferAccepted{
			LogMeta: chainevents.LogMeta{BlockNumber: 4, LogIndex: 0, TransactionHash: "0xa3", Timestamp: &ts3},
			OfferID: 1, Buyer: "0xBuyerA", Price: big.NewInt(1), Amount: big.NewInt(10),
		},
	}))

	from := time.Unix(0, 0).UTC()
	to := time.Unix(2500, 0).UTC()
	results, err := q.AcceptedOffers(ctx, RoleBuyer, []string{"0xBuyerA"}, from, to)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "0xBuyerA", results[0].BuyerAddress)
	assert.Equal(t, "40", results[0].AmountBought)
}

func TestAcceptedOffersBySeller(t *testing.T) {
	s, q := newTestSurface(t)
	ctx := context.Background()

	ts := int64(5000)
	require.NoError(t, s.CommitBatch(ctx, ptr(uint64(1)), ptr(uint64(1)), []chainevents.Event{
		chainevents.OfferCreated{
			LogMeta:    chainevents.LogMeta{BlockNumber: 1, LogIndex: 0, TransactionHash: "0xc1"},
			OfferID:    9, Seller: "0xSellerX", Price: big.NewInt(1), Amount: big.NewInt(50),
			OfferToken: "0xOfferToken", BuyerToken: "0xBuyerToken",
		},
	}))
	require.NoError(t, s.CommitBatch(ctx, ptr(uint64(2)), ptr(uint64(2)), []chainevents.Event{
		chainevents.OfferAccepted{
			LogMeta: chainevents.LogMeta{BlockNumber: 2, LogIndex: 0, TransactionHash: "0xa1", Timestamp: &ts},
			OfferID: 9, Buyer: "0xBuyerZ", Price: big.NewInt(1), Amount: big.NewInt(50),
		},
	}))

	from := time.Unix(0, 0).UTC()
	to := time.Unix(10000, 0).UTC()
	results, err := q.AcceptedOffers(ctx, RoleSeller, []string{"0xSellerX"}, from, to)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "0xSellerX", results[0].SellerAddress)
}

func TestAcceptedOffersEmptyAddressSet(t *testing.T) {
	_, q := newTestSurface(t)
	results, err := q.AcceptedOffers(context.Background(), RoleBuyer, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, results)
}
