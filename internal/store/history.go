package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/status"
)

// loadHistory reads the originating offer row plus every offer_events row
// for offerID and converts them into status.Record values, ready for
// status.Resolve. It returns an empty slice, not an error, when the offer
// does not exist yet (the OfferCreated row may not have landed within a
// reconciliation merge).
func (s *Store) loadHistory(ctx context.Context, offerID uint64) ([]status.Record, error) {
	var initialAmount string
	var createdBlock uint64
	var createdLogIndex uint
	err := s.db.QueryRowContext(ctx,
		`SELECT initial_amount, block_number, log_index FROM offers WHERE offer_id = ?`,
		offerID,
	).Scan(&initialAmount, &createdBlock, &createdLogIndex)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, &IntegrityError{Op: "load offer", Err: err}
	}

	initial, ok := new(big.Int).SetString(initialAmount, 10)
	if !ok {
		return nil, &IntegrityError{Op: "load offer", Err: fmt.Errorf("offer %d: malformed initial_amount %q", offerID, initialAmount)}
	}

	records := []status.Record{{
		Kind:          status.KindCreated,
		BlockNumber:   createdBlock,
		LogIndex:      createdLogIndex,
		InitialAmount: initial,
	}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, block_number, log_index, amount, price, amount_bought
		 FROM offer_events WHERE offer_id = ? ORDER BY block_number, log_index`,
		offerID,
	)
	if err != nil {
		return nil, &IntegrityError{Op: "load offer events", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var blockNumber uint64
		var logIndex uint
		var amount, price, amountBought sql.NullString
		if err := rows.Scan(&eventType, &blockNumber, &logIndex, &amount, &price, &amountBought); err != nil {
			return nil, &IntegrityError{Op: "scan offer event", Err: err}
		}

		rec := status.Record{BlockNumber: blockNumber, LogIndex: logIndex}
		switch eventType {
		case "OfferAccepted":
			rec.Kind = status.KindAccepted
			bought, ok := new(big.Int).SetString(amountBought.String, 10)
			if !ok {
				return nil, &IntegrityError{Op: "load offer events", Err: fmt.Errorf("offer %d: malformed amount_bought %q", offerID, amountBought.String)}
			}
			rec.AmountBought = bought
		case "OfferUpdated":
			rec.Kind = status.KindUpdated
			newAmount, ok := new(big.Int).SetString(amount.String, 10)
			if !ok {
				return nil, &IntegrityError{Op: "load offer events", Err: fmt.Errorf("offer %d: malformed amount %q", offerID, amount.String)}
			}
			rec.NewAmount = newAmount
		case "OfferDeleted":
			rec.Kind = status.KindDeleted
		default:
			return nil, &IntegrityError{Op: "load offer events", Err: fmt.Errorf("offer %d: unrecognised event_type %q", offerID, eventType)}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntegrityError{Op: "load offer events", Err: err}
	}

	return records, nil
}
