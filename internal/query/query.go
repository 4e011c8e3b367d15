// Package query is the read-only surface used by downstream report
// generation: "accepted offers involving address set A between T1 and T2,
// as buyer or as seller." Ground truth:
// query_db/get_accepted_offers_by_buyer_datetime.py and its seller-side
// twin, collapsed into one role-parameterised operation since the two
// originals were byte-for-byte identical but for the join column.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/RealToken-Community/yam-transactions-report-generator/internal/store"
)

// Role selects which address column on the accepted-offer join is matched
// against the supplied address set.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Surface runs read-only queries against a Store's underlying database
// handle. It never opens its own write transaction — the Event Store
// (internal/store) remains the sole writer.
type Surface struct {
	db *sql.DB
}

// New wraps the Store's database handle for read access. The underlying
// *sql.DB is shared with the Store instance that owns it; SQLite's WAL mode
// (configured at store.Open time) makes concurrent reads against a
// single in-flight writer safe.
func New(s *store.Store) *Surface {
	return &Surface{db: s.Conn()}
}

// AcceptedOffers returns every OfferAccepted event involving one of the
// given addresses in the given role, within [tFrom, tTo] inclusive,
// ascending by event_timestamp. Addresses must already be checksum-cased;
// callers are responsible for validating them.
func (s *Surface) AcceptedOffers(ctx context.Context, role Role, addresses []string, tFrom, tTo time.Time) ([]store.AcceptedOffer, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	var addressColumn string
	switch role {
	case RoleBuyer:
		addressColumn = "e.buyer_address"
	case RoleSeller:
		addressColumn = "o.seller_address"
	default:
		return nil, fmt.Errorf("query: unknown role %q", role)
	}

	placeholders := make([]string, len(addresses))
	args := make([]interface{}, 0, len(addresses)+2)
	for i, addr := range addresses {
		placeholders[i] = "?"
		args = append(args, addr)
	}
	args = append(args, tFrom.UTC().Format("2006-01-02 15:04:05"), tTo.UTC().Format("2006-01-02 15:04:05"))

	sqlQuery := fmt.Sprintf(`
		SELECT
			o.offer_id, e.buyer_address, o.seller_address, o.offer_token, o.buyer_token,
			e.amount_bought, e.price_bought, e.block_number, e.transaction_hash, e.event_timestamp
		FROM offer_events e
		JOIN offers o ON o.offer_id = e.offer_id
		WHERE e.event_type = 'OfferAccepted'
		  AND %s IN (%s)
		  AND e.event_timestamp BETWEEN ? AND ?
		ORDER BY e.event_timestamp ASC
	`, addressColumn, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query: accepted offers: %w", err)
	}
	defer rows.Close()

	var results []store.AcceptedOffer
	for rows.Next() {
		var row store.AcceptedOffer
		var ts string
		if err := rows.Scan(
			&row.OfferID, &row.BuyerAddress, &row.SellerAddress, &row.OfferToken, &row.BuyerToken,
			&row.AmountBought, &row.PriceBought, &row.BlockNumber, &row.TransactionHash, &ts,
		); err != nil {
			return nil, fmt.Errorf("query: scan accepted offer: %w", err)
		}
		// The driver returns DATETIME text as time.Time, which Scan renders
		// as RFC 3339; the stored layout is accepted as well.
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			parsed, err = time.ParseInLocation("2006-01-02 15:04:05", ts, time.UTC)
		}
		if err != nil {
			return nil, fmt.Errorf("query: parse event_timestamp %q: %w", ts, err)
		}
		row.EventTimestamp = parsed.UTC()
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: accepted offers: %w", err)
	}
	return results, nil
}
