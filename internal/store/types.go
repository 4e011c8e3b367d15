package store

import "time"

// Offer mirrors the `offers` table row, per spec.md §3. Amounts and prices
// are kept as base-10 decimal strings in persistence; only the Status
// Resolver converts them to *big.Int, and only in memory.
type Offer struct {
	OfferID           uint64
	SellerAddress     string
	InitialAmount     string
	PricePerUnit      string
	OfferToken        string
	BuyerToken        string
	Status            string
	BlockNumber       uint64
	TransactionHash   string
	LogIndex          uint
	CreationTimestamp time.Time
}

// OfferEvent mirrors the `offer_events` table row. Which fields are
// populated depends on EventType, per spec.md §4.B's per-kind write rules.
type OfferEvent struct {
	UniqueID        string
	OfferID         uint64
	EventType       string
	Amount          string
	Price           string
	BuyerAddress    string
	AmountBought    string
	PriceBought     string
	BlockNumber     uint64
	TransactionHash string
	LogIndex        uint
	EventTimestamp  time.Time
}

// WatermarkEntry is one committed, contiguous block range.
type WatermarkEntry struct {
	ID        int64
	FromBlock uint64
	ToBlock   uint64
}

// AcceptedOffer is the join result the Query Surface (component G) returns:
// an OfferAccepted event enriched with the offer's token pair and seller.
type AcceptedOffer struct {
	OfferID         uint64
	BuyerAddress    string
	SellerAddress   string
	OfferToken      string
	BuyerToken      string
	AmountBought    string
	PriceBought     string
	BlockNumber     uint64
	TransactionHash string
	EventTimestamp  time.Time
}
