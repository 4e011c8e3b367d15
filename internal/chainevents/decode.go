package chainevents

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeError is returned when a log carrying a recognised topic cannot be
// unpacked as that event's ABI shape. The batch that produced it aborts; the
// caller retries the same block range against a rotated endpoint.
type DecodeError struct {
	BlockNumber uint64
	LogIndex    uint
	Kind        Kind
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("chainevents: decode %s at block %d log %d: %v", e.Kind, e.BlockNumber, e.LogIndex, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode turns a single raw log into its typed event. It returns (nil, nil)
// for logs whose topic0 isn't one of the four recognised YAM events — the
// caller skips these silently, they are not an error.
func Decode(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, nil
	}
	kind, ok := topicKind[log.Topics[0].Hex()]
	if !ok {
		return nil, nil
	}

	meta := LogMeta{
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.Index,
		BlockNumber:     log.BlockNumber,
	}

	switch kind {
	case KindOfferCreated:
		return decodeOfferCreated(log, meta)
	case KindOfferAccepted:
		return decodeOfferAccepted(log, meta)
	case KindOfferUpdated:
		return decodeOfferUpdated(log, meta)
	case KindOfferDeleted:
		return decodeOfferDeleted(log, meta)
	default:
		return nil, nil
	}
}

func addressFromTopic(t common.Hash) string {
	return common.BytesToAddress(t.Bytes()).Hex()
}

func offerIDFromTopic(t common.Hash) uint64 {
	return new(big.Int).SetBytes(t.Bytes()).Uint64()
}

func decodeOfferCreated(log types.Log, meta LogMeta) (Event, error) {
	if len(log.Topics) < 4 {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferCreated, Err: fmt.Errorf("want 4 topics, got %d", len(log.Topics))}
	}

	var data struct {
		Seller common.Address
		Buyer  common.Address
		Price  *big.Int
		Amount *big.Int
	}
	if err := parsedYamABI.UnpackIntoInterface(&data, "OfferCreated", log.Data); err != nil {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferCreated, Err: err}
	}

	return OfferCreated{
		LogMeta:    meta,
		OfferID:    offerIDFromTopic(log.Topics[3]),
		OfferToken: addressFromTopic(log.Topics[1]),
		BuyerToken: addressFromTopic(log.Topics[2]),
		Seller:     data.Seller.Hex(),
		Buyer:      data.Buyer.Hex(),
		Price:      data.Price,
		Amount:     data.Amount,
	}, nil
}

func decodeOfferAccepted(log types.Log, meta LogMeta) (Event, error) {
	if len(log.Topics) < 4 {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferAccepted, Err: fmt.Errorf("want 4 topics, got %d", len(log.Topics))}
	}

	var data struct {
		OfferToken common.Address
		BuyerToken common.Address
		Price      *big.Int
		Amount     *big.Int
	}
	if err := parsedYamABI.UnpackIntoInterface(&data, "OfferAccepted", log.Data); err != nil {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferAccepted, Err: err}
	}

	return OfferAccepted{
		LogMeta:    meta,
		OfferID:    offerIDFromTopic(log.Topics[1]),
		Seller:     addressFromTopic(log.Topics[2]),
		Buyer:      addressFromTopic(log.Topics[3]),
		OfferToken: data.OfferToken.Hex(),
		BuyerToken: data.BuyerToken.Hex(),
		Price:      data.Price,
		Amount:     data.Amount,
	}, nil
}

func decodeOfferUpdated(log types.Log, meta LogMeta) (Event, error) {
	if len(log.Topics) < 4 {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferUpdated, Err: fmt.Errorf("want 4 topics, got %d", len(log.Topics))}
	}

	var data struct {
		OldPrice  *big.Int
		OldAmount *big.Int
	}
	if err := parsedYamABI.UnpackIntoInterface(&data, "OfferUpdated", log.Data); err != nil {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferUpdated, Err: err}
	}

	return OfferUpdated{
		LogMeta:   meta,
		OfferID:   offerIDFromTopic(log.Topics[1]),
		NewPrice:  new(big.Int).SetBytes(log.Topics[2].Bytes()),
		NewAmount: new(big.Int).SetBytes(log.Topics[3].Bytes()),
		OldPrice:  data.OldPrice,
		OldAmount: data.OldAmount,
	}, nil
}

func decodeOfferDeleted(log types.Log, meta LogMeta) (Event, error) {
	if len(log.Topics) < 2 {
		return nil, &DecodeError{BlockNumber: meta.BlockNumber, LogIndex: meta.LogIndex, Kind: KindOfferDeleted, Err: fmt.Errorf("want 2 topics, got %d", len(log.Topics))}
	}
	return OfferDeleted{
		LogMeta: meta,
		OfferID: offerIDFromTopic(log.Topics[1]),
	}, nil
}

// DecodeBatch decodes every log in order, stopping at the first decode
// failure — the caller aborts the whole batch on error, per spec.
func DecodeBatch(logs []types.Log) ([]Event, error) {
	events := make([]Event, 0, len(logs))
	for _, lg := range logs {
		ev, err := Decode(lg)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
