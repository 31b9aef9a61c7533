package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidationScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS monitored_positions (
	user_address text PRIMARY KEY,
	health_factor numeric NOT NULL,
	total_collateral_base numeric NOT NULL,
	total_debt_base numeric NOT NULL,
	available_borrows_base numeric NOT NULL,
	last_update timestamptz NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS batch_opportunities (
	batch_id text PRIMARY KEY,
	debt_asset text NOT NULL,
	target_count integer NOT NULL,
	total_debt_to_cover numeric NOT NULL,
	total_expected_profit_usd double precision NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS settlement_records (
	batch_id text NOT NULL,
	user_address text NOT NULL,
	collateral_asset text NOT NULL,
	debt_asset text NOT NULL,
	debt_to_cover numeric NOT NULL,
	expected_profit_usd double precision NOT NULL,
	flash_source text NOT NULL,
	status text NOT NULL,
	error text,
	tx_hash text,
	recorded_at timestamptz NOT NULL,
	PRIMARY KEY (batch_id, user_address)
);
CREATE TABLE IF NOT EXISTS scanner_state (
	name text PRIMARY KEY,
	last_scanned_block bigint NOT NULL,
	last_scanned_ts bigint NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for positions, the journal and scan state.
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

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SavePositions upserts the monitored positions and deletes rows for users no
// longer in the set, in one transaction.
func (s *Store) SavePositions(ctx context.Context, positions []model.Position) error {
	users := make([]string, 0, len(positions))
	batch := &pgx.Batch{}
	for _, p := range positions {
		users = append(users, p.User.Hex())
		batch.Queue(`
			INSERT INTO monitored_positions (
				user_address, health_factor, total_collateral_base, total_debt_base,
				available_borrows_base, last_update, updated_at
			) VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6, now())
			ON CONFLICT (user_address)
			DO UPDATE SET
				health_factor = EXCLUDED.health_factor,
				total_collateral_base = EXCLUDED.total_collateral_base,
				total_debt_base = EXCLUDED.total_debt_base,
				available_borrows_base = EXCLUDED.available_borrows_base,
				last_update = EXCLUDED.last_update,
				updated_at = now()
		`,
			p.User.Hex(),
			numeric(p.HealthFactor),
			numeric(p.TotalCollateralBase),
			numeric(p.TotalDebtBase),
			numeric(p.AvailableBorrowsBase),
			p.LastUpdate,
		)
	}
	batch.Queue(`DELETE FROM monitored_positions WHERE NOT (user_address = ANY($1))`, users)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("save positions: %w", err)
			}
		}
		return br.Close()
	})
}

// MonitoredUsers returns the users of the last saved set.
func (s *Store) MonitoredUsers(ctx context.Context) ([]common.Address, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_address FROM monitored_positions ORDER BY user_address`)
	if err != nil {
		return nil, fmt.Errorf("query monitored users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (common.Address, error) {
		var hex string
		if err := row.Scan(&hex); err != nil {
			return common.Address{}, err
		}
		if !common.IsHexAddress(hex) {
			return common.Address{}, fmt.Errorf("invalid user address %q", hex)
		}
		return common.HexToAddress(hex), nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan monitored users: %w", err)
	}
	return users, nil
}

// WriteOpportunities stores grouped batches.
func (s *Store) WriteOpportunities(ctx context.Context, batches []model.BatchOpportunity) error {
	if len(batches) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range batches {
		batch.Queue(`
			INSERT INTO batch_opportunities (
				batch_id, debt_asset, target_count, total_debt_to_cover, total_expected_profit_usd, created_at
			) VALUES ($1, $2, $3, $4::numeric, $5, now())
			ON CONFLICT (batch_id) DO NOTHING
		`,
			b.ID,
			b.DebtAsset.String(),
			len(b.Targets),
			numeric(b.TotalDebtToCover),
			b.TotalExpectedProfit,
		)
	}
	return s.sendBatch(ctx, batch, len(batches))
}

// WriteSettlements stores per-target settlement outcomes.
func (s *Store) WriteSettlements(ctx context.Context, records []model.SettlementRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO settlement_records (
				batch_id, user_address, collateral_asset, debt_asset, debt_to_cover,
				expected_profit_usd, flash_source, status, error, tx_hash, recorded_at
			) VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
			ON CONFLICT (batch_id, user_address)
			DO UPDATE SET
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				tx_hash = EXCLUDED.tx_hash,
				recorded_at = EXCLUDED.recorded_at
		`,
			r.BatchID,
			r.Target.User.Hex(),
			r.Target.CollateralAsset.String(),
			r.Target.DebtAsset.String(),
			numeric(r.Target.DebtToCover),
			r.Target.ExpectedProfit,
			string(r.Target.FlashSource.ID),
			string(r.Status),
			r.Error,
			r.TxHash,
			r.Timestamp,
		)
	}
	return s.sendBatch(ctx, batch, len(records))
}

// LoadSyncState returns the scan checkpoint stored under name.
func (s *Store) LoadSyncState(ctx context.Context, name string) (model.SyncState, bool, error) {
	if name == "" {
		return model.SyncState{}, false, fmt.Errorf("state name required")
	}
	var block, ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_scanned_block, last_scanned_ts FROM scanner_state WHERE name=$1`, name)
	if err := row.Scan(&block, &ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncState{}, false, nil
		}
		return model.SyncState{}, false, err
	}
	return model.SyncState{LastScannedBlock: uint64(block), LastScannedTimestamp: ts}, true, nil
}

// SaveSyncState upserts the scan checkpoint for name.
func (s *Store) SaveSyncState(ctx context.Context, name string, state model.SyncState) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scanner_state (name, last_scanned_block, last_scanned_ts, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_scanned_block = EXCLUDED.last_scanned_block,
			last_scanned_ts = EXCLUDED.last_scanned_ts,
			updated_at = now()
	`, name, int64(state.LastScannedBlock), state.LastScannedTimestamp)
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
