package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS multicalls (
	id               TEXT PRIMARY KEY,
	indexer          TEXT NOT NULL,
	block_number     BIGINT NOT NULL,
	gas_used         NUMERIC NOT NULL,
	legacy_gas_used  NUMERIC NOT NULL,
	gas_saved        NUMERIC NOT NULL,
	gas_reduction    NUMERIC NOT NULL,
	allocate_count   BIGINT NOT NULL DEFAULT 0,
	reallocate_count BIGINT NOT NULL DEFAULT 0,
	unallocate_count BIGINT NOT NULL DEFAULT 0,
	actions_count    BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS multicalls_indexer_idx ON multicalls (indexer);

CREATE TABLE IF NOT EXISTS indexers (
	id                          TEXT PRIMARY KEY,
	allocates_bundled           BIGINT NOT NULL DEFAULT 0,
	reallocates_bundled         BIGINT NOT NULL DEFAULT 0,
	unallocates_bundled         BIGINT NOT NULL DEFAULT 0,
	total_actions_bundled       BIGINT NOT NULL DEFAULT 0,
	total_gas_used              NUMERIC NOT NULL,
	total_legacy_gas_used       NUMERIC NOT NULL,
	total_gas_saved             NUMERIC NOT NULL,
	gas_reduction               NUMERIC NOT NULL,
	multicall_transactions      BIGINT NOT NULL DEFAULT 0,
	avg_gas_saved_per_multicall NUMERIC NOT NULL,
	avg_actions_per_multicall   NUMERIC NOT NULL,
	created_at                  TIMESTAMPTZ NOT NULL,
	updated_at                  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_events (
	tx_hash    TEXT NOT NULL,
	log_index  BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name                 TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
`
