package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS dlmm_pools (
	wallet           TEXT        NOT NULL,
	pool_key         TEXT        NOT NULL,
	token_x_mint     TEXT        NOT NULL,
	token_y_mint     TEXT        NOT NULL,
	name_x           TEXT        NOT NULL,
	name_y           TEXT        NOT NULL,
	token_x_decimals SMALLINT    NOT NULL,
	token_y_decimals SMALLINT    NOT NULL,
	bin_step         INTEGER     NOT NULL,
	active_bin       INTEGER     NOT NULL,
	price            NUMERIC     NOT NULL,
	invocation_id    TEXT        NOT NULL,
	fetched_at       TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (wallet, pool_key)
);

CREATE TABLE IF NOT EXISTS dlmm_positions (
	position_key    TEXT        PRIMARY KEY,
	wallet          TEXT        NOT NULL,
	pool_key        TEXT        NOT NULL,
	lower_bin_id    INTEGER     NOT NULL,
	upper_bin_id    INTEGER     NOT NULL,
	total_x_amount  NUMERIC     NOT NULL,
	total_y_amount  NUMERIC     NOT NULL,
	fee_x           NUMERIC     NOT NULL,
	fee_y           NUMERIC     NOT NULL,
	claimed_fee_x   NUMERIC     NOT NULL,
	claimed_fee_y   NUMERIC     NOT NULL,
	last_updated_at TIMESTAMPTZ NOT NULL,
	invocation_id   TEXT        NOT NULL,
	fetched_at      TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS dlmm_positions_wallet_pool_idx ON dlmm_positions (wallet, pool_key);
`

// Store persists wallet snapshots to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("pg dsn is required")
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

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutSnapshot upserts every pool and position of snap in one transaction.
func (s *Store) PutSnapshot(ctx context.Context, snap model.Snapshot) error {
	if len(snap.Pools) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertPools(ctx, tx, snap); err != nil {
		return err
	}
	if err := upsertPositions(ctx, tx, snap); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func upsertPools(ctx context.Context, tx pgx.Tx, snap model.Snapshot) error {
	batch := &pgx.Batch{}
	for _, key := range snap.Pools.Keys() {
		pool := snap.Pools[key]
		batch.Queue(`
			INSERT INTO dlmm_pools (
				wallet, pool_key, token_x_mint, token_y_mint, name_x, name_y,
				token_x_decimals, token_y_decimals, bin_step, active_bin, price,
				invocation_id, fetched_at, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (wallet, pool_key)
			DO UPDATE SET
				token_x_mint = EXCLUDED.token_x_mint,
				token_y_mint = EXCLUDED.token_y_mint,
				name_x = EXCLUDED.name_x,
				name_y = EXCLUDED.name_y,
				token_x_decimals = EXCLUDED.token_x_decimals,
				token_y_decimals = EXCLUDED.token_y_decimals,
				bin_step = EXCLUDED.bin_step,
				active_bin = EXCLUDED.active_bin,
				price = EXCLUDED.price,
				invocation_id = EXCLUDED.invocation_id,
				fetched_at = EXCLUDED.fetched_at,
				updated_at = now()
		`,
			snap.Wallet,
			pool.PoolKey,
			pool.TokenXMint,
			pool.TokenYMint,
			pool.NameX,
			pool.NameY,
			int16(pool.TokenXDecimals),
			int16(pool.TokenYDecimals),
			int32(pool.BinStep),
			pool.ActiveBin,
			pool.Price.String(),
			snap.InvocationID,
			snap.FetchedAt,
		)
	}
	return sendBatch(ctx, tx, batch, "upsert pools")
}

func upsertPositions(ctx context.Context, tx pgx.Tx, snap model.Snapshot) error {
	batch := &pgx.Batch{}
	for _, key := range snap.Pools.Keys() {
		pool := snap.Pools[key]
		for _, pos := range pool.Positions {
			batch.Queue(`
				INSERT INTO dlmm_positions (
					position_key, wallet, pool_key, lower_bin_id, upper_bin_id,
					total_x_amount, total_y_amount, fee_x, fee_y, claimed_fee_x, claimed_fee_y,
					last_updated_at, invocation_id, fetched_at, created_at, updated_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
				ON CONFLICT (position_key)
				DO UPDATE SET
					wallet = EXCLUDED.wallet,
					pool_key = EXCLUDED.pool_key,
					lower_bin_id = EXCLUDED.lower_bin_id,
					upper_bin_id = EXCLUDED.upper_bin_id,
					total_x_amount = EXCLUDED.total_x_amount,
					total_y_amount = EXCLUDED.total_y_amount,
					fee_x = EXCLUDED.fee_x,
					fee_y = EXCLUDED.fee_y,
					claimed_fee_x = EXCLUDED.claimed_fee_x,
					claimed_fee_y = EXCLUDED.claimed_fee_y,
					last_updated_at = EXCLUDED.last_updated_at,
					invocation_id = EXCLUDED.invocation_id,
					fetched_at = EXCLUDED.fetched_at,
					updated_at = now()
			`,
				pos.PublicKey,
				snap.Wallet,
				pool.PoolKey,
				pos.LowerBinID,
				pos.UpperBinID,
				pos.TotalXAmount.String(),
				pos.TotalYAmount.String(),
				pos.FeeX.String(),
				pos.FeeY.String(),
				pos.ClaimedFeeX.String(),
				pos.ClaimedFeeY.String(),
				pos.LastUpdatedAt,
				snap.InvocationID,
				snap.FetchedAt,
			)
		}
	}
	return sendBatch(ctx, tx, batch, "upsert positions")
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, what string) error {
	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
	}
	return nil
}
