package subgraph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	timeAfter = func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
}

func rowJSON(id string, offerID int, block int, ts int64) string {
	return fmt.Sprintf(`{
		"id": %q, "offerId": "%d", "offerToken": "0xoffer", "buyerToken": "0xbuyer",
		"seller": "0xseller", "buyer": "0xbuyer2", "price": "1000000", "amount": "100",
		"transactionHash": "0xtx", "logIndex": 0, "blockNumber": "%d", "timestamp": "%d"
	}`, id, offerID, block, ts)
}

// TestFetchOfferCreatedPaginates exercises the cursor-based two-page case:
// a full first page of pageSize rows, then a short final page.
func TestFetchOfferCreatedPaginates(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var rows []string
		if n == 1 {
			for i := 0; i < pageSize; i++ {
				rows = append(rows, rowJSON(fmt.Sprintf("id-%04d", i), i, 100, int64(1000+i)))
			}
		} else {
			rows = append(rows, rowJSON("id-last", 9999, 200, 2000))
		}
		resp := fmt.Sprintf(`{"data":{"offerCreateds":[%s]}}`, joinJSON(rows))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	events, err := c.FetchOfferCreated(context.Background(), 100, nil)
	require.NoError(t, err)
	assert.Len(t, events, pageSize+1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, uint64(9999), events[len(events)-1].OfferID)
}

func TestFetchOfferCreatedGraphQLError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad query"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	events, err := c.FetchOfferCreated(context.Background(), 100, nil)
	require.Error(t, err)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Nil(t, events)
}

func TestBackfillRangeAbortsOnFirstFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "test-key", nil)
	events, err := c.BackfillRange(context.Background(), 100, nil)
	require.Error(t, err)
	assert.Nil(t, events)
}

func joinJSON(rows []string) string {
	out := ""
	for i, r := range rows {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}
