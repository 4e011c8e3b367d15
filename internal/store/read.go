package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// parseTimestamp reverses formatTimestamp. DATETIME columns are written in
// formatTimestamp's layout; the sqlite driver hands them back as time.Time,
// which database/sql renders into a string as RFC 3339, so both forms are
// accepted (internal/query parses its own copy of these rows the same way).
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
}

// GetOffer returns the offers row for offerID, or (nil, nil) if it does not
// exist. Exposed for diagnostics and for callers needing the full row
// rather than just the resolved status.
func (s *Store) GetOffer(ctx context.Context, offerID uint64) (*Offer, error) {
	var o Offer
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT offer_id, seller_address, initial_amount, price_per_unit, offer_token,
		        buyer_token, status, block_number, transaction_hash, log_index, creation_timestamp
		 FROM offers WHERE offer_id = ?`,
		offerID,
	).Scan(
		&o.OfferID, &o.SellerAddress, &o.InitialAmount, &o.PricePerUnit, &o.OfferToken,
		&o.BuyerToken, &o.Status, &o.BlockNumber, &o.TransactionHash, &o.LogIndex, &createdAt,
	)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, &IntegrityError{Op: "get offer", Err: err}
	}

	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, &IntegrityError{Op: "get offer", Err: fmt.Errorf("offer %d: %w", offerID, err)}
	}
	o.CreationTimestamp = ts
	return &o, nil
}

// ListOfferEvents returns every offer_events row for offerID, ascending by
// (block_number, log_index) — the same order CommitBatch requires events to
// arrive in.
func (s *Store) ListOfferEvents(ctx context.Context, offerID uint64) ([]OfferEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unique_id, offer_id, event_type, amount, price, buyer_address, amount_bought,
		        price_bought, block_number, transaction_hash, log_index, event_timestamp
		 FROM offer_events WHERE offer_id = ? ORDER BY block_number, log_index`,
		offerID,
	)
	if err != nil {
		return nil, &IntegrityError{Op: "list offer events", Err: err}
	}
	defer rows.Close()

	var events []OfferEvent
	for rows.Next() {
		var e OfferEvent
		var amount, price, buyerAddress, amountBought, priceBought sql.NullString
		var eventTimestamp string
		if err := rows.Scan(
			&e.UniqueID, &e.OfferID, &e.EventType, &amount, &price, &buyerAddress, &amountBought,
			&priceBought, &e.BlockNumber, &e.TransactionHash, &e.LogIndex, &eventTimestamp,
		); err != nil {
			return nil, &IntegrityError{Op: "scan offer event", Err: err}
		}
		e.Amount, e.Price, e.BuyerAddress = amount.String, price.String, buyerAddress.String
		e.AmountBought, e.PriceBought = amountBought.String, priceBought.String

		ts, err := parseTimestamp(eventTimestamp)
		if err != nil {
			return nil, &IntegrityError{Op: "list offer events", Err: fmt.Errorf("offer %d: %w", offerID, err)}
		}
		e.EventTimestamp = ts
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntegrityError{Op: "list offer events", Err: err}
	}
	return events, nil
}

// WatermarkEntries returns every committed block-range entry, ascending by
// insertion order, for diagnostics and for the watermark tests to assert
// against the same public shape callers would see.
func (s *Store) WatermarkEntries(ctx context.Context) ([]WatermarkEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT indexing_id, from_block, to_block FROM indexing_watermark ORDER BY indexing_id`,
	)
	if err != nil {
		return nil, &IntegrityError{Op: "list watermark entries", Err: err}
	}
	defer rows.Close()

	var entries []WatermarkEntry
	for rows.Next() {
		var e WatermarkEntry
		if err := rows.Scan(&e.ID, &e.FromBlock, &e.ToBlock); err != nil {
			return nil, &IntegrityError{Op: "scan watermark entry", Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntegrityError{Op: "list watermark entries", Err: err}
	}
	return entries, nil
}
