package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"minidex/internal/model"
)

// Store provides Postgres persistence for events, pools and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables used by the store if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutEventBatch inserts events. Re-inserting a sequence number is a no-op,
// so a retried batch does not duplicate rows.
func (s *Store) PutEventBatch(ctx context.Context, events []model.EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO pool_events (
				seq, ts, kind, pool_address, actor, token, token_a, token_b, fee_rate_bps, direction,
				amount, amount_a, amount_b, lp_tokens, amount_in, amount_out, fee,
				reserve_a, reserve_b, total_lp_supply, ingested_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(ev.Seq),
			int64(ev.Timestamp),
			string(ev.Kind),
			ev.Pool,
			ev.Actor,
			ev.Token,
			ev.TokenA,
			ev.TokenB,
			int32(ev.FeeRateBps),
			ev.Direction,
			numeric(ev.Amount),
			numeric(ev.AmountA),
			numeric(ev.AmountB),
			numeric(ev.LPTokens),
			numeric(ev.AmountIn),
			numeric(ev.AmountOut),
			numeric(ev.Fee),
			numeric(ev.ReserveA),
			numeric(ev.ReserveB),
			numeric(ev.TotalLPSupply),
			ev.IngestedAt,
		)
	}
	return s.sendBatch(ctx, batch)
}

// PutRejectionBatch inserts rejected operations.
func (s *Store) PutRejectionBatch(ctx context.Context, rejections []model.Rejection) error {
	if len(rejections) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rejections {
		batch.Queue(`
			INSERT INTO pool_rejections (seq, ts, op, pool_address, actor, code, class, error)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(r.Seq),
			int64(r.Timestamp),
			string(r.Op),
			r.Pool,
			r.Actor,
			r.Code,
			r.Class,
			r.Error,
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertPools inserts or updates pool metadata. A zero first-seen seq or ts
// means unknown and never replaces a known value.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_address, token_a, token_b, fee_rate_bps, first_seen_seq, first_seen_ts, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				token_a = EXCLUDED.token_a,
				token_b = EXCLUDED.token_b,
				fee_rate_bps = EXCLUDED.fee_rate_bps,
				first_seen_seq = COALESCE(LEAST(NULLIF(pools.first_seen_seq, 0), NULLIF(EXCLUDED.first_seen_seq, 0)), 0),
				first_seen_ts = COALESCE(LEAST(NULLIF(pools.first_seen_ts, 0), NULLIF(EXCLUDED.first_seen_ts, 0)), 0),
				updated_at = now()
		`,
			pool.Address,
			pool.TokenA,
			pool.TokenB,
			int32(pool.FeeRateBps),
			int64(pool.FirstSeenSeq),
			int64(pool.FirstSeenTS),
		)
	}
	return s.sendBatch(ctx, batch)
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, liquidity_events, volume_a, volume_b, fee_a, fee_b,
				reserve_a, reserve_b, lp_supply, price, fee_rate_a, fee_rate_b, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				liquidity_events = EXCLUDED.liquidity_events,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				lp_supply = EXCLUDED.lp_supply,
				price = EXCLUDED.price,
				fee_rate_a = EXCLUDED.fee_rate_a,
				fee_rate_b = EXCLUDED.fee_rate_b,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.LiquidityEvents),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			m.ReserveA,
			m.ReserveB,
			m.LPSupply,
			m.Price,
			m.FeeRateA,
			m.FeeRateB,
			m.APR,
		)
	}
	return s.sendBatch(ctx, batch)
}

// LoadState returns last_processed for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var last int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM minidex_state WHERE name=$1`, name)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(last), true, nil
}

// SaveState upserts last_processed for a name.
func (s *Store) SaveState(ctx context.Context, name string, last uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO minidex_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(last))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// numeric passes a uint64 as text so NUMERIC columns keep the full range.
func numeric(v uint64) string {
	return fmt.Sprintf("%d", v)
}
