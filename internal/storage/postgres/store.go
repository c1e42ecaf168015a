package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenpulse/internal/model"
)

// Store provides Postgres persistence for aggregated token windows.
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

// UpsertTokenWindows inserts or updates window aggregates for a token.
func (s *Store) UpsertTokenWindows(ctx context.Context, token string, windows []model.Window) error {
	if len(windows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, w := range windows {
		batch.Queue(`
			INSERT INTO token_windows (
				token_address, window_start_ts, window_end_ts, start_block, end_block,
				total_txns, buy_count, sell_count, active_address_count,
				last_token_price, latest_token_price, avg_token_price,
				token_volume, token_volume_usd, eth_price, btc_price, multi_swap,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (token_address, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				start_block = EXCLUDED.start_block,
				end_block = EXCLUDED.end_block,
				total_txns = EXCLUDED.total_txns,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				active_address_count = EXCLUDED.active_address_count,
				last_token_price = EXCLUDED.last_token_price,
				latest_token_price = EXCLUDED.latest_token_price,
				avg_token_price = EXCLUDED.avg_token_price,
				token_volume = EXCLUDED.token_volume,
				token_volume_usd = EXCLUDED.token_volume_usd,
				eth_price = EXCLUDED.eth_price,
				btc_price = EXCLUDED.btc_price,
				multi_swap = EXCLUDED.multi_swap,
				updated_at = now()
		`,
			token,
			w.Start,
			w.End,
			int64(w.StartBlock),
			int64(w.EndBlock),
			int64(w.TotalTxns),
			int64(w.BuyCount),
			int64(w.SellCount),
			int64(w.ActiveAddressCount),
			w.LastTokenPrice,
			w.LatestTokenPrice,
			w.AvgTokenPrice,
			w.TokenVolume,
			w.TokenVolumeUSD,
			w.EthPrice,
			w.BtcPrice,
			w.MultiSwap,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range windows {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last processed window start for a token.
func (s *Store) LoadState(ctx context.Context, token string) (int64, bool, error) {
	if token == "" {
		return 0, false, fmt.Errorf("token address required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_window_start FROM collector_state WHERE token_address=$1`, token)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts the last processed window start for a token.
func (s *Store) SaveState(ctx context.Context, token string, ts int64) error {
	if token == "" {
		return fmt.Errorf("token address required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collector_state (token_address, last_window_start, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (token_address) DO UPDATE
		SET last_window_start = EXCLUDED.last_window_start, updated_at = now()
	`, token, ts)
	return err
}
