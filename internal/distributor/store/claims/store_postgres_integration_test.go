//go:build integration

package claims_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mintgate/internal/distributor/models"
	"mintgate/internal/distributor/store/claims"
	id "mintgate/pkg/domain"
	"mintgate/pkg/merkle"
	"mintgate/pkg/testutil/containers"
)

const schema = `
CREATE TABLE IF NOT EXISTS claim_rounds (
    singleton    boolean PRIMARY KEY DEFAULT true CHECK (singleton),
    round        bigint NOT NULL,
    root         text NOT NULL,
    published_at timestamptz NOT NULL
);
CREATE TABLE IF NOT EXISTS claim_markers (
    round    bigint NOT NULL,
    identity text NOT NULL,
    PRIMARY KEY (round, identity)
);`

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *claims.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	_, err := s.postgres.DB.Exec(schema)
	s.Require().NoError(err)
	s.store = claims.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.DB.Exec(`TRUNCATE claim_rounds, claim_markers`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) identity(seed string) id.Identity {
	identity, err := id.ParseIdentity("0x" + strings.Repeat(seed, 20))
	s.Require().NoError(err)
	return identity
}

func (s *PostgresStoreSuite) TestRound_EmptyThenRoundTrip() {
	ctx := context.Background()

	round, err := s.store.Round(ctx)
	s.Require().NoError(err)
	s.Nil(round)

	root := merkle.LeafHash(s.identity("aa"), 50, 3)
	state := &models.RoundState{
		Round:       3,
		Root:        root,
		PublishedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
	s.Require().NoError(s.store.PutRound(ctx, state))

	got, err := s.store.Round(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(state.Round, got.Round)
	s.Equal(state.Root, got.Root)
	s.True(state.PublishedAt.Equal(got.PublishedAt))

	// The singleton row is overwritten on the next publication.
	state.Round = 4
	s.Require().NoError(s.store.PutRound(ctx, state))
	got, err = s.store.Round(ctx)
	s.Require().NoError(err)
	s.Equal(id.Round(4), got.Round)
}

func (s *PostgresStoreSuite) TestMarkClaimed_DuplicateIsConflict() {
	ctx := context.Background()
	alice := s.identity("aa")

	claimed, err := s.store.IsClaimed(ctx, 1, alice)
	s.Require().NoError(err)
	s.False(claimed)

	s.Require().NoError(s.store.MarkClaimed(ctx, 1, alice))

	claimed, err = s.store.IsClaimed(ctx, 1, alice)
	s.Require().NoError(err)
	s.True(claimed)

	err = s.store.MarkClaimed(ctx, 1, alice)
	s.Require().ErrorIs(err, models.ErrAlreadyClaimed)

	// A different round is a fresh entitlement.
	s.Require().NoError(s.store.MarkClaimed(ctx, 2, alice))
}

func (s *PostgresStoreSuite) TestUnmarkAndCount() {
	ctx := context.Background()
	alice := s.identity("aa")
	bob := s.identity("bb")

	s.Require().NoError(s.store.MarkClaimed(ctx, 1, alice))
	s.Require().NoError(s.store.MarkClaimed(ctx, 1, bob))

	n, err := s.store.Count(ctx, 1)
	s.Require().NoError(err)
	s.Equal(uint64(2), n)

	s.Require().NoError(s.store.Unmark(ctx, 1, alice))

	claimed, err := s.store.IsClaimed(ctx, 1, alice)
	s.Require().NoError(err)
	s.False(claimed)

	n, err = s.store.Count(ctx, 1)
	s.Require().NoError(err)
	s.Equal(uint64(1), n)
}
