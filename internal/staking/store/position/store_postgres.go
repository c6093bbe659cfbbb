package position

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"mintgate/internal/staking/models"
	id "mintgate/pkg/domain"
)

// PostgresStore persists positions and pool state in PostgreSQL so the
// accrual ledger survives restarts. Accumulators are stored as decimal
// strings (numeric(78,0)) to keep full 256-bit precision.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed position store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema for reference; applied by deployment migrations.
//
//	CREATE TABLE stake_positions (
//	    identity              text PRIMARY KEY,
//	    staked_amount         bigint NOT NULL,
//	    reward_per_token_paid numeric(78,0) NOT NULL,
//	    pending_reward        bigint NOT NULL
//	);
//	CREATE TABLE staking_pool (
//	    singleton               boolean PRIMARY KEY DEFAULT true CHECK (singleton),
//	    total_staked            bigint NOT NULL,
//	    reward_rate             bigint NOT NULL,
//	    reward_per_token_stored numeric(78,0) NOT NULL,
//	    last_update_time        timestamptz NOT NULL
//	);

func (s *PostgresStore) Get(ctx context.Context, identity id.Identity) (*models.Position, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT staked_amount, reward_per_token_paid::text, pending_reward
		   FROM stake_positions WHERE identity = $1`, identity.String())

	var (
		staked  int64
		paidDec string
		pending int64
	)
	if err := row.Scan(&staked, &paidDec, &pending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	paid, err := uint256.FromDecimal(paidDec)
	if err != nil {
		return nil, fmt.Errorf("decode reward_per_token_paid: %w", err)
	}
	return &models.Position{
		Identity:           identity,
		StakedAmount:       uint64(staked),
		RewardPerTokenPaid: paid,
		PendingReward:      uint64(pending),
	}, nil
}

func (s *PostgresStore) Put(ctx context.Context, pos *models.Position) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stake_positions (identity, staked_amount, reward_per_token_paid, pending_reward)
		 VALUES ($1, $2, $3::numeric, $4)
		 ON CONFLICT (identity) DO UPDATE SET
		     staked_amount = EXCLUDED.staked_amount,
		     reward_per_token_paid = EXCLUDED.reward_per_token_paid,
		     pending_reward = EXCLUDED.pending_reward`,
		pos.Identity.String(), int64(pos.StakedAmount), pos.RewardPerTokenPaid.Dec(), int64(pos.PendingReward))
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

func (s *PostgresStore) Pool(ctx context.Context) (*models.PoolState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT total_staked, reward_rate, reward_per_token_stored::text, last_update_time
		   FROM staking_pool WHERE singleton`)

	var (
		total     int64
		rate      int64
		storedDec string
		updatedAt time.Time
	)
	if err := row.Scan(&total, &rate, &storedDec, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	stored, err := uint256.FromDecimal(storedDec)
	if err != nil {
		return nil, fmt.Errorf("decode reward_per_token_stored: %w", err)
	}
	return &models.PoolState{
		TotalStaked:          uint64(total),
		RewardRate:           uint64(rate),
		RewardPerTokenStored: stored,
		LastUpdateTime:       updatedAt,
	}, nil
}

func (s *PostgresStore) PutPool(ctx context.Context, pool *models.PoolState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO staking_pool (singleton, total_staked, reward_rate, reward_per_token_stored, last_update_time)
		 VALUES (true, $1, $2, $3::numeric, $4)
		 ON CONFLICT (singleton) DO UPDATE SET
		     total_staked = EXCLUDED.total_staked,
		     reward_rate = EXCLUDED.reward_rate,
		     reward_per_token_stored = EXCLUDED.reward_per_token_stored,
		     last_update_time = EXCLUDED.last_update_time`,
		int64(pool.TotalStaked), int64(pool.RewardRate), pool.RewardPerTokenStored.Dec(), pool.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("put pool: %w", err)
	}
	return nil
}

func (s *PostgresStore) All(ctx context.Context) ([]*models.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, staked_amount, reward_per_token_paid::text, pending_reward FROM stake_positions`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var out []*models.Position
	for rows.Next() {
		var (
			identity string
			staked   int64
			paidDec  string
			pending  int64
		)
		if err := rows.Scan(&identity, &staked, &paidDec, &pending); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		paid, err := uint256.FromDecimal(paidDec)
		if err != nil {
			return nil, fmt.Errorf("decode reward_per_token_paid: %w", err)
		}
		out = append(out, &models.Position{
			Identity:           id.Identity(identity),
			StakedAmount:       uint64(staked),
			RewardPerTokenPaid: paid,
			PendingReward:      uint64(pending),
		})
	}
	return out, rows.Err()
}
