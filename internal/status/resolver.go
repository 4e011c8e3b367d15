// Package status computes an offer's lifecycle status from its ordered
// event history. It is a pure function — no I/O, no persistence — ground
// truth: the original's db_operations/internal/_get_status_offer.py.
package status

import (
	"errors"
	"math/big"
	"sort"
)

// Status is the verdict an offer's event history resolves to.
type Status string

const (
	InProgress Status = "InProgress"
	SoldOut    Status = "SoldOut"
	Deleted    Status = "Deleted"
)

// ErrUndetermined signals a negative remaining amount — a data-corruption
// condition. The caller logs it as an anomaly and leaves the offer's
// persisted status unchanged; it is never returned as a batch failure.
var ErrUndetermined = errors.New("status: remaining amount is negative")

// Kind tags a Record with the event type it was built from.
type Kind string

const (
	KindCreated  Kind = "OfferCreated"
	KindAccepted Kind = "OfferAccepted"
	KindUpdated  Kind = "OfferUpdated"
	KindDeleted  Kind = "OfferDeleted"
)

// Record is one entry in an offer's merged history: either the originating
// OfferCreated row (Kind == KindCreated, with InitialAmount populated) or a
// subsequent OfferEvent row.
type Record struct {
	Kind        Kind
	BlockNumber uint64
	LogIndex    uint

	// InitialAmount is populated on the OfferCreated record and represents
	// the offer's original listed amount.
	InitialAmount *big.Int
	// NewAmount is populated on OfferUpdated records — the reset baseline.
	NewAmount *big.Int
	// AmountBought is populated on OfferAccepted records.
	AmountBought *big.Int
}

// Resolve computes the status of an offer given its complete, not
// necessarily sorted, event history (the OfferCreated row plus every
// OfferEvent row for that offer_id). It sorts defensively by
// (block_number, log_index) before replaying, since spec invariant 5
// requires the verdict to be independent of supplied ordering within a
// single chronological history.
func Resolve(history []Record) (Status, error) {
	if len(history) == 0 {
		return "", errors.New("status: empty history")
	}

	records := make([]Record, len(history))
	copy(records, history)
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].BlockNumber != records[j].BlockNumber {
			return records[i].BlockNumber < records[j].BlockNumber
		}
		return records[i].LogIndex < records[j].LogIndex
	})

	if records[len(records)-1].Kind == KindDeleted {
		return Deleted, nil
	}

	// Find the latest OfferUpdated; if present, the baseline resets there
	// and everything before it is forgotten.
	lastUpdate := -1
	for i, r := range records {
		if r.Kind == KindUpdated {
			lastUpdate = i
		}
	}
	if lastUpdate >= 0 {
		records = records[lastUpdate:]
	}

	baseline := records[0]
	var remaining *big.Int
	switch baseline.Kind {
	case KindCreated:
		if baseline.InitialAmount == nil {
			return "", errors.New("status: OfferCreated record missing initial amount")
		}
		remaining = new(big.Int).Set(baseline.InitialAmount)
	case KindUpdated:
		if baseline.NewAmount == nil {
			return "", errors.New("status: OfferUpdated record missing new amount")
		}
		remaining = new(big.Int).Set(baseline.NewAmount)
	default:
		return "", errors.New("status: history does not start with OfferCreated or OfferUpdated")
	}

	for _, r := range records[1:] {
		if r.Kind != KindAccepted {
			continue
		}
		if r.AmountBought == nil {
			return "", errors.New("status: OfferAccepted record missing amount bought")
		}
		remaining.Sub(remaining, r.AmountBought)
	}

	switch remaining.Sign() {
	case 0:
		return SoldOut, nil
	case 1:
		return InProgress, nil
	default:
		return "", ErrUndetermined
	}
}
