package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mintgate/internal/distributor/models"
	id "mintgate/pkg/domain"
	"mintgate/pkg/merkle"
)

// PostgresStore persists claim markers and round state in PostgreSQL. The
// primary key on (round, identity) makes the claim marker race-safe across
// replicas.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed claims store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema for reference; applied by deployment migrations.
//
//	CREATE TABLE claim_rounds (
//	    singleton    boolean PRIMARY KEY DEFAULT true CHECK (singleton),
//	    round        bigint NOT NULL,
//	    root         text NOT NULL,
//	    published_at timestamptz NOT NULL
//	);
//	CREATE TABLE claim_markers (
//	    round    bigint NOT NULL,
//	    identity text NOT NULL,
//	    PRIMARY KEY (round, identity)
//	);

func (s *PostgresStore) Round(ctx context.Context) (*models.RoundState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT round, root, published_at FROM claim_rounds WHERE singleton`)

	var (
		round       int64
		rootText    string
		publishedAt time.Time
	)
	if err := row.Scan(&round, &rootText, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get round: %w", err)
	}
	root, err := merkle.ParseHash(rootText)
	if err != nil {
		return nil, fmt.Errorf("decode root: %w", err)
	}
	return &models.RoundState{
		Round:       id.Round(round),
		Root:        root,
		PublishedAt: publishedAt,
	}, nil
}

func (s *PostgresStore) PutRound(ctx context.Context, round *models.RoundState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claim_rounds (singleton, round, root, published_at)
		 VALUES (true, $1, $2, $3)
		 ON CONFLICT (singleton) DO UPDATE SET
		     round = EXCLUDED.round,
		     root = EXCLUDED.root,
		     published_at = EXCLUDED.published_at`,
		int64(round.Round), round.Root.String(), round.PublishedAt)
	if err != nil {
		return fmt.Errorf("put round: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsClaimed(ctx context.Context, round id.Round, identity id.Identity) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM claim_markers WHERE round = $1 AND identity = $2)`,
		int64(round), identity.String())
	var claimed bool
	if err := row.Scan(&claimed); err != nil {
		return false, fmt.Errorf("check claim marker: %w", err)
	}
	return claimed, nil
}

func (s *PostgresStore) MarkClaimed(ctx context.Context, round id.Round, identity id.Identity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO claim_markers (round, identity) VALUES ($1, $2)`,
		int64(round), identity.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return models.ErrAlreadyClaimed
		}
		return fmt.Errorf("mark claimed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unmark(ctx context.Context, round id.Round, identity id.Identity) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM claim_markers WHERE round = $1 AND identity = $2`,
		int64(round), identity.String())
	if err != nil {
		return fmt.Errorf("unmark claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context, round id.Round) (uint64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM claim_markers WHERE round = $1`, int64(round))
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return uint64(n), nil
}
