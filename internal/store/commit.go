package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/chainevents"
	"github.com/RealToken-Community/yam-transactions-report-generator/internal/status"
)

// CommitBatch atomically persists a decoded batch of events and advances the
// watermark, per spec.md §4.B. Events are applied in the order supplied,
// which must already be chronological by (block_number, log_index).
//
// fromBlock/toBlock are nil for a reconciliation backfill batch — such
// batches update rows but never touch the watermark (spec.md §4.B).
func (s *Store) CommitBatch(ctx context.Context, fromBlock, toBlock *uint64, events []chainevents.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &IntegrityError{Op: "begin batch", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, ev := range events {
		switch e := ev.(type) {
		case chainevents.OfferCreated:
			if err := insertOfferCreated(ctx, tx, e); err != nil {
				return err
			}

		case chainevents.OfferAccepted:
			if err := insertOfferAccepted(ctx, tx, e); err != nil {
				return err
			}
			// Commit visibility checkpoint: the batch so far (including
			// this OfferAccepted row) becomes durable and visible to
			// concurrent readers before the Status Resolver runs, so it
			// observes its own row. The remainder of the batch continues
			// in a fresh transaction.
			if err := tx.Commit(); err != nil {
				return &IntegrityError{Op: "commit accepted checkpoint", Err: err}
			}
			committed = true

			if err := s.resolveAndUpdateStatus(ctx, e.OfferID); err != nil {
				return err
			}

			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return &IntegrityError{Op: "resume batch after checkpoint", Err: err}
			}
			committed = false

		case chainevents.OfferUpdated:
			if err := insertOfferUpdated(ctx, tx, e); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE offers SET status = 'InProgress' WHERE offer_id = ?`, e.OfferID); err != nil {
				return &IntegrityError{Op: "set status InProgress", Err: err}
			}

		case chainevents.OfferDeleted:
			if err := insertOfferDeleted(ctx, tx, e); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE offers SET status = 'Deleted' WHERE offer_id = ?`, e.OfferID); err != nil {
				return &IntegrityError{Op: "set status Deleted", Err: err}
			}

		default:
			return &IntegrityError{Op: "commit batch", Err: fmt.Errorf("unrecognised event variant %T", ev)}
		}
	}

	if err := applyWatermark(ctx, tx, fromBlock, toBlock); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &IntegrityError{Op: "commit batch", Err: err}
	}
	committed = true

	if s.logger != nil {
		s.logger.Debug("batch committed", zap.Int("events", len(events)))
	}
	return nil
}

func insertOfferCreated(ctx context.Context, tx *sql.Tx, e chainevents.OfferCreated) error {
	ts := eventTimestamp(e.LogMeta)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO offers (
			offer_id, seller_address, initial_amount, price_per_unit,
			offer_token, buyer_token, block_number, transaction_hash, log_index,
			creation_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (offer_id) DO NOTHING
	`,
		e.OfferID, e.Seller, e.Amount.String(), e.Price.String(),
		e.OfferToken, e.BuyerToken, e.BlockNumber, e.TransactionHash, e.LogIndex,
		formatTimestamp(ts),
	)
	if err != nil {
		return &IntegrityError{Op: "insert OfferCreated", Err: err}
	}
	return nil
}

func insertOfferAccepted(ctx context.Context, tx *sql.Tx, e chainevents.OfferAccepted) error {
	ts := eventTimestamp(e.LogMeta)
	uniqueID := uniqueEventID(e.TransactionHash, e.LogIndex)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO offer_events (
			unique_id, offer_id, event_type, buyer_address, amount_bought, price_bought,
			transaction_hash, block_number, log_index, event_timestamp
		) VALUES (?, ?, 'OfferAccepted', ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (unique_id) DO NOTHING
	`,
		uniqueID, e.OfferID, e.Buyer, e.Amount.String(), e.Price.String(),
		e.TransactionHash, e.BlockNumber, e.LogIndex, formatTimestamp(ts),
	)
	if err != nil {
		return &IntegrityError{Op: "insert OfferAccepted", Err: err}
	}
	return nil
}

func insertOfferUpdated(ctx context.Context, tx *sql.Tx, e chainevents.OfferUpdated) error {
	ts := eventTimestamp(e.LogMeta)
	uniqueID := uniqueEventID(e.TransactionHash, e.LogIndex)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO offer_events (
			unique_id, offer_id, event_type, amount, price,
			transaction_hash, block_number, log_index, event_timestamp
		) VALUES (?, ?, 'OfferUpdated', ?, ?, ?, ?, ?, ?)
		ON CONFLICT (unique_id) DO NOTHING
	`,
		uniqueID, e.OfferID, e.NewAmount.String(), e.NewPrice.String(),
		e.TransactionHash, e.BlockNumber, e.LogIndex, formatTimestamp(ts),
	)
	if err != nil {
		return &IntegrityError{Op: "insert OfferUpdated", Err: err}
	}
	return nil
}

func insertOfferDeleted(ctx context.Context, tx *sql.Tx, e chainevents.OfferDeleted) error {
	ts := eventTimestamp(e.LogMeta)
	uniqueID := uniqueEventID(e.TransactionHash, e.LogIndex)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO offer_events (
			unique_id, offer_id, event_type,
			transaction_hash, block_number, log_index, event_timestamp
		) VALUES (?, ?, 'OfferDeleted', ?, ?, ?, ?)
		ON CONFLICT (unique_id) DO NOTHING
	`,
		uniqueID, e.OfferID, e.TransactionHash, e.BlockNumber, e.LogIndex, formatTimestamp(ts),
	)
	if err != nil {
		return &IntegrityError{Op: "insert OfferDeleted", Err: err}
	}
	return nil
}

func uniqueEventID(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s_%d", txHash, logIndex)
}

// eventTimestamp derives event_timestamp from the event's own timestamp
// field when present (the Subgraph Client always supplies one); the RPC
// decode path never does and falls back to wall clock, per spec.md §4.B.
func eventTimestamp(meta chainevents.LogMeta) time.Time {
	if meta.Timestamp != nil {
		return time.Unix(*meta.Timestamp, 0).UTC()
	}
	return time.Now().UTC()
}

// resolveAndUpdateStatus loads the merged history for offerID, runs the
// Status Resolver, and — if the verdict differs from InProgress — updates
// Offer.status. An ErrUndetermined verdict is logged as a data anomaly and
// never fails the batch, per spec.md §7.
func (s *Store) resolveAndUpdateStatus(ctx context.Context, offerID uint64) error {
	history, err := s.loadHistory(ctx, offerID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		// Transient ordering gap within a reconciliation merge: the
		// OfferCreated row hasn't landed yet. Nothing to resolve yet.
		return nil
	}

	verdict, err := status.Resolve(history)
	if err != nil {
		if err == status.ErrUndetermined {
			if s.logger != nil {
				s.logger.Warn("resolver undetermined: negative remaining amount",
					zap.Uint64("offer_id", offerID))
			}
			return nil
		}
		return &IntegrityError{Op: "resolve status", Err: err}
	}

	if string(verdict) == "InProgress" {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE offers SET status = ? WHERE offer_id = ?`, string(verdict), offerID); err != nil {
		return &IntegrityError{Op: "apply resolved status", Err: err}
	}
	return nil
}
