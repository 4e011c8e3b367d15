package store

const schema = `
CREATE TABLE IF NOT EXISTS offers (
	offer_id           INTEGER PRIMARY KEY,
	seller_address      TEXT NOT NULL,
	initial_amount      TEXT NOT NULL,
	price_per_unit       TEXT NOT NULL,
	offer_token         TEXT NOT NULL,
	buyer_token         TEXT NOT NULL,
	status              TEXT NOT NULL CHECK (status IN ('InProgress', 'SoldOut', 'Deleted')) DEFAULT 'InProgress',
	block_number        INTEGER NOT NULL,
	transaction_hash     TEXT NOT NULL,
	log_index           INTEGER NOT NULL,
	creation_timestamp   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS offer_events (
	unique_id        TEXT PRIMARY KEY NOT NULL,
	offer_id         INTEGER NOT NULL,
	event_type       TEXT NOT NULL CHECK (event_type IN ('OfferCreated', 'OfferUpdated', 'OfferAccepted', 'OfferDeleted')),
	amount           TEXT,
	price            TEXT,
	buyer_address    TEXT,
	amount_bought    TEXT,
	price_bought     TEXT,
	block_number     INTEGER NOT NULL,
	transaction_hash TEXT NOT NULL,
	log_index        INTEGER NOT NULL,
	event_timestamp  DATETIME NOT NULL,
	FOREIGN KEY (offer_id) REFERENCES offers (offer_id)
);

CREATE TABLE IF NOT EXISTS indexing_watermark (
	indexing_id INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
	from_block  INTEGER NOT NULL,
	to_block    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_offer_events_type_timestamp ON offer_events (event_type, event_timestamp);
CREATE INDEX IF NOT EXISTS idx_offer_events_buyer_address ON offer_events (buyer_address);
CREATE INDEX IF NOT EXISTS idx_offers_seller_address ON offers (seller_address);
CREATE INDEX IF NOT EXISTS idx_offer_events_offer_id ON offer_events (offer_id);
`
