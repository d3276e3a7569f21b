package postgres

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address   TEXT PRIMARY KEY,
	token_a        TEXT NOT NULL,
	token_b        TEXT NOT NULL,
	fee_rate_bps   INTEGER NOT NULL,
	first_seen_seq BIGINT NOT NULL,
	first_seen_ts  BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_events (
	seq             BIGINT PRIMARY KEY,
	ts              BIGINT NOT NULL,
	kind            TEXT NOT NULL,
	pool_address    TEXT NOT NULL,
	actor           TEXT NOT NULL,
	token           TEXT NOT NULL,
	token_a         TEXT NOT NULL,
	token_b         TEXT NOT NULL,
	fee_rate_bps    INTEGER NOT NULL,
	direction       TEXT NOT NULL,
	amount          NUMERIC(20,0) NOT NULL,
	amount_a        NUMERIC(20,0) NOT NULL,
	amount_b        NUMERIC(20,0) NOT NULL,
	lp_tokens       NUMERIC(20,0) NOT NULL,
	amount_in       NUMERIC(20,0) NOT NULL,
	amount_out      NUMERIC(20,0) NOT NULL,
	fee             NUMERIC(20,0) NOT NULL,
	reserve_a       NUMERIC(20,0) NOT NULL,
	reserve_b       NUMERIC(20,0) NOT NULL,
	total_lp_supply NUMERIC(20,0) NOT NULL,
	ingested_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS pool_events_pool_ts ON pool_events (pool_address, ts);

CREATE TABLE IF NOT EXISTS pool_rejections (
	seq          BIGINT PRIMARY KEY,
	ts           BIGINT NOT NULL,
	op           TEXT NOT NULL,
	pool_address TEXT NOT NULL,
	actor        TEXT NOT NULL,
	code         TEXT NOT NULL,
	class        TEXT NOT NULL,
	error        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_address        TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	liquidity_events    BIGINT NOT NULL,
	volume_a            NUMERIC NOT NULL,
	volume_b            NUMERIC NOT NULL,
	fee_a               NUMERIC NOT NULL,
	fee_b               NUMERIC NOT NULL,
	reserve_a           NUMERIC NOT NULL,
	reserve_b           NUMERIC NOT NULL,
	lp_supply           NUMERIC NOT NULL,
	price               NUMERIC,
	fee_rate_a          NUMERIC,
	fee_rate_b          NUMERIC,
	apr                 NUMERIC,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS minidex_state (
	name           TEXT PRIMARY KEY,
	last_processed BIGINT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
`
