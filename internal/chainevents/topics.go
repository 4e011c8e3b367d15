package chainevents

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// yamABI is the fragment of the YAM v1 marketplace contract ABI covering the
// four events this indexer cares about. Only event definitions are needed:
// the codec never calls the contract, it only decodes logs it already has.
const yamABI = `[
	{"anonymous":false,"type":"event","name":"OfferCreated","inputs":[
		{"indexed":true,"name":"offerToken","type":"address"},
		{"indexed":true,"name":"buyerToken","type":"address"},
		{"indexed":true,"name":"offerId","type":"uint256"},
		{"indexed":false,"name":"seller","type":"address"},
		{"indexed":false,"name":"buyer","type":"address"},
		{"indexed":false,"name":"price","type":"uint256"},
		{"indexed":false,"name":"amount","type":"uint256"}
	]},
	{"anonymous":false,"type":"event","name":"OfferAccepted","inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"},
		{"indexed":true,"name":"seller","type":"address"},
		{"indexed":true,"name":"buyer","type":"address"},
		{"indexed":false,"name":"offerToken","type":"address"},
		{"indexed":false,"name":"buyerToken","type":"address"},
		{"indexed":false,"name":"price","type":"uint256"},
		{"indexed":false,"name":"amount","type":"uint256"}
	]},
	{"anonymous":false,"type":"event","name":"OfferUpdated","inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"},
		{"indexed":true,"name":"newPrice","type":"uint256"},
		{"indexed":true,"name":"newAmount","type":"uint256"},
		{"indexed":false,"name":"oldPrice","type":"uint256"},
		{"indexed":false,"name":"oldAmount","type":"uint256"}
	]},
	{"anonymous":false,"type":"event","name":"OfferDeleted","inputs":[
		{"indexed":true,"name":"offerId","type":"uint256"}
	]}
]`

// parsedYamABI is parsed once at package init, the same way the teacher
// modules parse their ERC-20 ABI fragment (geth-09-events, geth-17-indexer).
// mustParseYAMABI runs as part of parsedYamABI's own var initializer, not
// inside init(): the variable phase runs before init() functions, and
// topicKind below depends on parsedYamABI already holding the parsed value
// at that point.
var parsedYamABI = mustParseYAMABI()

func mustParseYAMABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(yamABI))
	if err != nil {
		panic("chainevents: invalid embedded YAM ABI: " + err.Error())
	}
	return parsed
}

// topicKind maps a log's topic0 (event signature hash) to the event kind it
// identifies. Unknown topics are not present in this map; the decoder skips
// them rather than erroring, per spec.
var topicKind = map[string]Kind{
	parsedYamABI.Events["OfferCreated"].ID.Hex():  KindOfferCreated,
	parsedYamABI.Events["OfferAccepted"].ID.Hex(): KindOfferAccepted,
	parsedYamABI.Events["OfferUpdated"].ID.Hex():  KindOfferUpdated,
	parsedYamABI.Events["OfferDeleted"].ID.Hex():  KindOfferDeleted,
}
