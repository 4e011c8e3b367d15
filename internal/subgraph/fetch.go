package subgraph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/chainevents"
)

// offerCreatedRow mirrors the subgraph's offerCreated entity fields exactly
// (fetch_offer_created_from_block_range.py's selection set).
type offerCreatedRow struct {
	ID              string `json:"id"`
	OfferID         string `json:"offerId"`
	OfferToken      string `json:"offerToken"`
	BuyerToken      string `json:"buyerToken"`
	Seller          string `json:"seller"`
	Buyer           string `json:"buyer"`
	Price           string `json:"price"`
	Amount          string `json:"amount"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint   `json:"logIndex"`
	BlockNumber     string `json:"blockNumber"`
	Timestamp       string `json:"timestamp"`
}

type offerAcceptedRow struct {
	ID              string `json:"id"`
	OfferID         string `json:"offerId"`
	OfferToken      string `json:"offerToken"`
	BuyerToken      string `json:"buyerToken"`
	Seller          string `json:"seller"`
	Buyer           string `json:"buyer"`
	Price           string `json:"price"`
	Amount          string `json:"amount"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint   `json:"logIndex"`
	BlockNumber     string `json:"blockNumber"`
	Timestamp       string `json:"timestamp"`
}

type offerUpdatedRow struct {
	ID              string `json:"id"`
	OfferID         string `json:"offerId"`
	OldPrice        string `json:"oldPrice"`
	OldAmount       string `json:"oldAmount"`
	NewPrice        string `json:"newPrice"`
	NewAmount       string `json:"newAmount"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint   `json:"logIndex"`
	BlockNumber     string `json:"blockNumber"`
	Timestamp       string `json:"timestamp"`
}

type offerDeletedRow struct {
	ID              string `json:"id"`
	OfferID         string `json:"offerId"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint   `json:"logIndex"`
	BlockNumber     string `json:"blockNumber"`
	Timestamp       string `json:"timestamp"`
}

// fetchPage fetches one page of the shared cursor-based pagination: up to
// pageSize (1000) rows after lastID, ascending orderBy id. The Fetch*
// functions below loop over it, stop on a short page, and wait ~100ms
// between pages. entityField names the top-level GraphQL response key for
// the given event kind (e.g. "offerCreateds").
func fetchPage[T any](ctx context.Context, c *Client, entityField, selection string, fromBlock uint64, toBlock *uint64, lastID string) ([]T, error) {
	query := fmt.Sprintf(`
		query($first: Int!, $lastId: String!) {
			%s(
				first: $first,
				where: { %s, id_gt: $lastId },
				orderBy: id,
				orderDirection: asc
			) {
				%s
			}
		}
	`, entityField, blockRangeFilter(fromBlock, toBlock), selection)

	var result map[string][]T
	if err := c.post(ctx, query, map[string]interface{}{
		"first":  pageSize,
		"lastId": lastID,
	}, &result); err != nil {
		return nil, err
	}
	return result[entityField], nil
}

const createdSelection = `id offerId offerToken buyerToken seller buyer price amount transactionHash logIndex blockNumber timestamp`
const acceptedSelection = `id offerId offerToken buyerToken seller buyer price amount transactionHash logIndex blockNumber timestamp`
const updatedSelection = `id offerId oldPrice oldAmount newPrice newAmount transactionHash logIndex blockNumber timestamp`
const deletedSelection = `id offerId transactionHash logIndex blockNumber timestamp`

// FetchOfferCreated pages through every offerCreated entity in
// [fromBlock, toBlock]. toBlock nil means "to latest".
func (c *Client) FetchOfferCreated(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]chainevents.OfferCreated, error) {
	var out []chainevents.OfferCreated
	lastID := ""
	for {
		rows, err := fetchPage[offerCreatedRow](ctx, c, "offerCreateds", createdSelection, fromBlock, toBlock, lastID)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("subgraph fetch failed", zap.String("kind", "OfferCreated"), zap.Error(err))
			}
			return nil, &FetchError{EventKind: "OfferCreated", Err: err}
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			e, err := toOfferCreated(r)
			if err != nil {
				return nil, &FetchError{EventKind: "OfferCreated", Err: err}
			}
			out = append(out, e)
		}
		lastID = rows[len(rows)-1].ID
		if len(rows) < pageSize {
			break
		}
		sleepBetweenPages(ctx)
	}
	return out, nil
}

// FetchOfferAccepted pages through every offerAccepted entity.
func (c *Client) FetchOfferAccepted(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]chainevents.OfferAccepted, error) {
	var out []chainevents.OfferAccepted
	lastID := ""
	for {
		rows, err := fetchPage[offerAcceptedRow](ctx, c, "offerAccepteds", acceptedSelection, fromBlock, toBlock, lastID)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("subgraph fetch failed", zap.String("kind", "OfferAccepted"), zap.Error(err))
			}
			return nil, &FetchError{EventKind: "OfferAccepted", Err: err}
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			e, err := toOfferAccepted(r)
			if err != nil {
				return nil, &FetchError{EventKind: "OfferAccepted", Err: err}
			}
			out = append(out, e)
		}
		lastID = rows[len(rows)-1].ID
		if len(rows) < pageSize {
			break
		}
		sleepBetweenPages(ctx)
	}
	return out, nil
}

// FetchOfferUpdated pages through every offerUpdated entity.
func (c *Client) FetchOfferUpdated(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]chainevents.OfferUpdated, error) {
	var out []chainevents.OfferUpdated
	lastID := ""
	for {
		rows, err := fetchPage[offerUpdatedRow](ctx, c, "offerUpdateds", updatedSelection, fromBlock, toBlock, lastID)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("subgraph fetch failed", zap.String("kind", "OfferUpdated"), zap.Error(err))
			}
			return nil, &FetchError{EventKind: "OfferUpdated", Err: err}
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			e, err := toOfferUpdated(r)
			if err != nil {
				return nil, &FetchError{EventKind: "OfferUpdated", Err: err}
			}
			out = append(out, e)
		}
		lastID = rows[len(rows)-1].ID
		if len(rows) < pageSize {
			break
		}
		sleepBetweenPages(ctx)
	}
	return out, nil
}

// FetchOfferDeleted pages through every offerDeleted entity.
func (c *Client) FetchOfferDeleted(ctx context.Context, fromBlock uint64, toBlock *uint64) ([]chainevents.OfferDeleted, error) {
	var out []chainevents.OfferDeleted
	lastID := ""
	for {
		rows, err := fetchPage[offerDeletedRow](ctx, c, "offerDeleteds", deletedSelection, fromBlock, toBlock, lastID)
		if err != nil {
			if c.logger != nil {
				c.logger.Error("subgraph fetch failed", zap.String("kind", "OfferDeleted"), zap.Error(err))
			}
			return nil, &FetchError{EventKind: "OfferDeleted", Err: err}
		}
		if len(rows) == 0 {
			break
		}
		for _, r := range rows {
			e, err := toOfferDeleted(r)
			if err != nil {
				return nil, &FetchError{EventKind: "OfferDeleted", Err: err}
			}
			out = append(out, e)
		}
		lastID = rows[len(rows)-1].ID
		if len(rows) < pageSize {
			break
		}
		sleepBetweenPages(ctx)
	}
	return out, nil
}

func sleepBetweenPages(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-timeAfter(interPageWait):
	}
}

func toOfferCreated(r offerCreatedRow) (chainevents.OfferCreated, error) {
	offerID, err := parseUint64(r.OfferID)
	if err != nil {
		return chainevents.OfferCreated{}, err
	}
	blockNumber, err := parseUint64(r.BlockNumber)
	if err != nil {
		return chainevents.OfferCreated{}, err
	}
	price, err := bigFromDecimal(r.Price)
	if err != nil {
		return chainevents.OfferCreated{}, err
	}
	amount, err := bigFromDecimal(r.Amount)
	if err != nil {
		return chainevents.OfferCreated{}, err
	}
	meta, err := metaFromRow(r.TransactionHash, r.LogIndex, blockNumber, r.Timestamp)
	if err != nil {
		return chainevents.OfferCreated{}, err
	}
	return chainevents.OfferCreated{
		LogMeta:    meta,
		OfferID:    offerID,
		Seller:     r.Seller,
		Buyer:      r.Buyer,
		Price:      price,
		Amount:     amount,
		OfferToken: r.OfferToken,
		BuyerToken: r.BuyerToken,
	}, nil
}

func toOfferAccepted(r offerAcceptedRow) (chainevents.OfferAccepted, error) {
	offerID, err := parseUint64(r.OfferID)
	if err != nil {
		return chainevents.OfferAccepted{}, err
	}
	blockNumber, err := parseUint64(r.BlockNumber)
	if err != nil {
		return chainevents.OfferAccepted{}, err
	}
	price, err := bigFromDecimal(r.Price)
	if err != nil {
		return chainevents.OfferAccepted{}, err
	}
	amount, err := bigFromDecimal(r.Amount)
	if err != nil {
		return chainevents.OfferAccepted{}, err
	}
	meta, err := metaFromRow(r.TransactionHash, r.LogIndex, blockNumber, r.Timestamp)
	if err != nil {
		return chainevents.OfferAccepted{}, err
	}
	return chainevents.OfferAccepted{
		LogMeta:    meta,
		OfferID:    offerID,
		Seller:     r.Seller,
		Buyer:      r.Buyer,
		Price:      price,
		Amount:     amount,
		OfferToken: r.OfferToken,
		BuyerToken: r.BuyerToken,
	}, nil
}

func toOfferUpdated(r offerUpdatedRow) (chainevents.OfferUpdated, error) {
	offerID, err := parseUint64(r.OfferID)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	blockNumber, err := parseUint64(r.BlockNumber)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	oldPrice, err := bigFromDecimal(r.OldPrice)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	oldAmount, err := bigFromDecimal(r.OldAmount)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	newPrice, err := bigFromDecimal(r.NewPrice)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	newAmount, err := bigFromDecimal(r.NewAmount)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	meta, err := metaFromRow(r.TransactionHash, r.LogIndex, blockNumber, r.Timestamp)
	if err != nil {
		return chainevents.OfferUpdated{}, err
	}
	return chainevents.OfferUpdated{
		LogMeta:   meta,
		OfferID:   offerID,
		OldPrice:  oldPrice,
		OldAmount: oldAmount,
		NewPrice:  newPrice,
		NewAmount: newAmount,
	}, nil
}

func toOfferDeleted(r offerDeletedRow) (chainevents.OfferDeleted, error) {
	offerID, err := parseUint64(r.OfferID)
	if err != nil {
		return chainevents.OfferDeleted{}, err
	}
	blockNumber, err := parseUint64(r.BlockNumber)
	if err != nil {
		return chainevents.OfferDeleted{}, err
	}
	meta, err := metaFromRow(r.TransactionHash, r.LogIndex, blockNumber, r.Timestamp)
	if err != nil {
		return chainevents.OfferDeleted{}, err
	}
	return chainevents.OfferDeleted{
		LogMeta: meta,
		OfferID: offerID,
	}, nil
}

func parseUint64(s string) (uint64, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("subgraph: malformed integer %q: %w", s, err)
	}
	return v, nil
}
