// Package chainevents decodes raw YAM contract log records into typed
// marketplace events.
package chainevents

import "math/big"

// Kind tags a decoded event with the variant it was decoded from. It is the
// discriminator the event store switches on at the persistence boundary.
type Kind string

const (
	KindOfferCreated  Kind = "OfferCreated"
	KindOfferAccepted Kind = "OfferAccepted"
	KindOfferUpdated  Kind = "OfferUpdated"
	KindOfferDeleted  Kind = "OfferDeleted"
)

// LogMeta carries the blockchain coordinates every decoded event shares,
// regardless of kind.
type LogMeta struct {
	TransactionHash string
	LogIndex        uint
	BlockNumber     uint64
	// Timestamp is the event's own Unix-seconds timestamp when the source
	// supplies one (the Subgraph Client always does; the RPC decode path
	// never does and leaves this nil so the store falls back to wall clock).
	Timestamp *int64
}

// Event is the tagged variant produced by Decode. Exactly one of the four
// concrete types below satisfies it for any given log.
type Event interface {
	Kind() Kind
	Meta() LogMeta
}

// OfferCreated is emitted the first time an offer is listed on the
// marketplace contract.
type OfferCreated struct {
	LogMeta
	OfferID    uint64
	Seller     string
	Buyer      string
	Price      *big.Int
	Amount     *big.Int
	OfferToken string
	BuyerToken string
}

func (OfferCreated) Kind() Kind      { return KindOfferCreated }
func (e OfferCreated) Meta() LogMeta { return e.LogMeta }

// OfferAccepted is emitted on a partial or full fill of an existing offer.
type OfferAccepted struct {
	LogMeta
	OfferID    uint64
	Seller     string
	Buyer      string
	Price      *big.Int
	Amount     *big.Int
	OfferToken string
	BuyerToken string
}

func (OfferAccepted) Kind() Kind      { return KindOfferAccepted }
func (e OfferAccepted) Meta() LogMeta { return e.LogMeta }

// OfferUpdated is emitted when the seller amends the remaining amount or
// unit price of a still-open offer.
type OfferUpdated struct {
	LogMeta
	OfferID   uint64
	OldPrice  *big.Int
	OldAmount *big.Int
	NewPrice  *big.Int
	NewAmount *big.Int
}

func (OfferUpdated) Kind() Kind      { return KindOfferUpdated }
func (e OfferUpdated) Meta() LogMeta { return e.LogMeta }

// OfferDeleted is emitted when the seller cancels an offer outright.
type OfferDeleted struct {
	LogMeta
	OfferID uint64
}

func (OfferDeleted) Kind() Kind      { return KindOfferDeleted }
func (e OfferDeleted) Meta() LogMeta { return e.LogMeta }
