package store

import (
	"context"
	"database/sql"
)

// applyWatermark advances the indexing watermark by the extend-vs-new-entry
// rule (spec.md §4.B). A reconciliation backfill batch supplies nil/nil and
// is a deliberate no-op: merged subgraph history touches rows, never the
// watermark.
func applyWatermark(ctx context.Context, tx *sql.Tx, fromBlock, toBlock *uint64) error {
	if fromBlock == nil || toBlock == nil {
		return nil
	}
	f, t := *fromBlock, *toBlock

	var latestID int64
	var latestFrom, latestTo uint64
	err := tx.QueryRowContext(ctx,
		`SELECT indexing_id, from_block, to_block FROM indexing_watermark ORDER BY indexing_id DESC LIMIT 1`,
	).Scan(&latestID, &latestFrom, &latestTo)

	switch {
	case err == sql.ErrNoRows:
		return insertWatermark(ctx, tx, f, t)
	case err != nil:
		return &IntegrityError{Op: "read watermark", Err: err}
	}

	// Adjacency/overlap against the most recent entry only: the new batch
	// connects to it from either side. Checked against that single entry —
	// never against earlier entries, even if the extension would newly
	// touch one (no transitive merge; spec.md §9 Open Questions).
	if f <= latestTo+1 && latestFrom <= t+1 {
		newFrom, newTo := latestFrom, latestTo
		if f < newFrom {
			newFrom = f
		}
		if t > newTo {
			newTo = t
		}
		if newFrom == latestFrom && newTo == latestTo {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE indexing_watermark SET from_block = ?, to_block = ? WHERE indexing_id = ?`,
			newFrom, newTo, latestID,
		); err != nil {
			return &IntegrityError{Op: "extend watermark", Err: err}
		}
		return nil
	}

	// Disjoint from the latest entry: a gap on either side. Record a new,
	// separate entry rather than merging across it.
	return insertWatermark(ctx, tx, f, t)
}

func insertWatermark(ctx context.Context, tx *sql.Tx, from, to uint64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO indexing_watermark (from_block, to_block) VALUES (?, ?)`,
		from, to,
	); err != nil {
		return &IntegrityError{Op: "insert watermark", Err: err}
	}
	return nil
}
