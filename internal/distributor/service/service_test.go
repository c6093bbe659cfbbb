package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mintgate/internal/distributor/models"
	"mintgate/internal/distributor/store/claims"
	"mintgate/internal/ledger"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/merkle"
	"mintgate/pkg/requestcontext"
)

const testRewardAmount = 100

type DistributorServiceSuite struct {
	suite.Suite
	tokens   *ledger.InMemoryLedger
	store    *claims.InMemoryStore
	service  *Service
	treasury id.Identity
	alice    id.Identity
	bob      id.Identity
	epoch    time.Time
}

func TestDistributorServiceSuite(t *testing.T) {
	suite.Run(t, new(DistributorServiceSuite))
}

func (s *DistributorServiceSuite) SetupTest() {
	s.treasury = s.identity("01")
	s.alice = s.identity("aa")
	s.bob = s.identity("bb")
	s.epoch = time.Unix(1_700_000_000, 0)

	s.tokens = ledger.NewInMemory(s.treasury)
	s.tokens.Credit(s.treasury, 10_000)
	s.store = claims.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = New(s.store, s.tokens, testRewardAmount, WithLogger(logger))
	s.Require().NoError(err)
}

func (s *DistributorServiceSuite) identity(seed string) id.Identity {
	identity, err := id.ParseIdentity("0x" + strings.Repeat(seed, 20))
	s.Require().NoError(err)
	return identity
}

func (s *DistributorServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.epoch)
}

// publishAllowlist builds a tree over the given identities for round and
// publishes its root. Returns each identity's proof.
func (s *DistributorServiceSuite) publishAllowlist(round id.Round, identities ...id.Identity) map[id.Identity][]merkle.Hash {
	leaves := make([]merkle.Hash, len(identities))
	for i, identity := range identities {
		leaves[i] = merkle.LeafHash(identity, testRewardAmount, round)
	}
	root, proofs, err := merkle.BuildTree(leaves)
	s.Require().NoError(err)
	s.Require().NoError(s.service.SetRoot(s.ctx(), round, root))

	out := make(map[id.Identity][]merkle.Hash, len(identities))
	for i, identity := range identities {
		out[identity] = proofs[i]
	}
	return out
}

func (s *DistributorServiceSuite) TestSetRoot_RejectsZeroRoot() {
	err := s.service.SetRoot(s.ctx(), 1, merkle.ZeroHash)
	s.Require().ErrorIs(err, models.ErrRootZero)
}

func (s *DistributorServiceSuite) TestSetRoot_RejectsRoundRegression() {
	s.publishAllowlist(5, s.alice)

	leaf := merkle.LeafHash(s.alice, testRewardAmount, 4)
	err := s.service.SetRoot(s.ctx(), 4, leaf)
	s.Require().ErrorIs(err, models.ErrRoundRegression)
}

func (s *DistributorServiceSuite) TestSetRoot_SameRoundRotationKeepsMarkers() {
	proofs := s.publishAllowlist(1, s.alice, s.bob)
	s.Require().NoError(s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice]))

	// Rotate the root within the same round; alice's marker survives.
	rotated := s.publishAllowlist(1, s.alice, s.bob)
	err := s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, rotated[s.alice])
	s.Require().ErrorIs(err, models.ErrAlreadyClaimed)

	// Bob's entitlement is unaffected by the rotation.
	s.Require().NoError(s.service.Claim(s.ctx(), s.bob, testRewardAmount, 1, rotated[s.bob]))
}

func (s *DistributorServiceSuite) TestClaim_PaysEachAllowlistedIdentityOnce() {
	proofs := s.publishAllowlist(1, s.alice, s.bob)

	s.Require().NoError(s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice]))
	s.Require().NoError(s.service.Claim(s.ctx(), s.bob, testRewardAmount, 1, proofs[s.bob]))

	for _, who := range []id.Identity{s.alice, s.bob} {
		balance, err := s.tokens.BalanceOf(context.Background(), who)
		s.Require().NoError(err)
		s.Equal(uint64(testRewardAmount), balance)
	}

	err := s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice])
	s.Require().ErrorIs(err, models.ErrAlreadyClaimed)

	balance, err := s.tokens.BalanceOf(context.Background(), s.alice)
	s.Require().NoError(err)
	s.Equal(uint64(testRewardAmount), balance, "double claim must not pay twice")
}

func (s *DistributorServiceSuite) TestClaim_NoActiveRound() {
	err := s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, nil)
	s.Require().ErrorIs(err, models.ErrNoActiveRound)
}

func (s *DistributorServiceSuite) TestClaim_StaleRoundRejectedEvenWithValidProof() {
	proofs := s.publishAllowlist(1, s.alice, s.bob)
	s.publishAllowlist(2, s.bob)

	// Alice's round-1 proof is genuine but the active round has moved on.
	err := s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice])
	s.Require().ErrorIs(err, models.ErrWrongRound)
}

func (s *DistributorServiceSuite) TestClaim_WrongAmount() {
	proofs := s.publishAllowlist(1, s.alice)

	err := s.service.Claim(s.ctx(), s.alice, testRewardAmount+1, 1, proofs[s.alice])
	s.Require().ErrorIs(err, models.ErrWrongAmount)
}

func (s *DistributorServiceSuite) TestClaim_InvalidProof() {
	proofs := s.publishAllowlist(1, s.alice, s.bob)

	// Bob presents alice's proof.
	err := s.service.Claim(s.ctx(), s.bob, testRewardAmount, 1, proofs[s.alice])
	s.Require().ErrorIs(err, models.ErrInvalidProof)

	// An unlisted identity cannot claim with any listed proof.
	carol := s.identity("cc")
	err = s.service.Claim(s.ctx(), carol, testRewardAmount, 1, proofs[s.bob])
	s.Require().ErrorIs(err, models.ErrInvalidProof)
}

func (s *DistributorServiceSuite) TestClaim_PayoutFailureClearsMarker() {
	// Drain the pool so the payout fails after the marker is set.
	drain := s.identity("dd")
	s.Require().NoError(s.tokens.TransferFrom(context.Background(), s.treasury, drain, 10_000))

	proofs := s.publishAllowlist(1, s.alice)
	err := s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice])
	s.Require().ErrorIs(err, models.ErrTransferFailed)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	claimed, err := s.store.IsClaimed(context.Background(), 1, s.alice)
	s.Require().NoError(err)
	s.False(claimed, "entitlement must survive a failed payout")

	// Refund the pool; the claim now goes through.
	s.tokens.Credit(s.treasury, 10_000)
	s.Require().NoError(s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice]))
}

func (s *DistributorServiceSuite) TestRescue_SweepsPoolFunds() {
	recipient := s.identity("ee")
	s.Require().NoError(s.service.Rescue(s.ctx(), recipient, 2_500))

	balance, err := s.tokens.BalanceOf(context.Background(), recipient)
	s.Require().NoError(err)
	s.Equal(uint64(2_500), balance)

	err = s.service.Rescue(s.ctx(), recipient, 100_000)
	s.Require().ErrorIs(err, models.ErrTransferFailed)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	s.Require().ErrorIs(
		s.service.Rescue(s.ctx(), recipient, 0),
		dErrors.New(dErrors.CodeInvalidInput, "rescue amount must be positive"))
}

func (s *DistributorServiceSuite) TestStatus() {
	_, err := s.service.Status(s.ctx(), s.alice)
	s.Require().ErrorIs(err, models.ErrNoActiveRound)

	proofs := s.publishAllowlist(3, s.alice)

	status, err := s.service.Status(s.ctx(), s.alice)
	s.Require().NoError(err)
	s.Equal(id.Round(3), status.Round)
	s.False(status.Claimed)

	s.Require().NoError(s.service.Claim(s.ctx(), s.alice, testRewardAmount, 3, proofs[s.alice]))

	status, err = s.service.Status(s.ctx(), s.alice)
	s.Require().NoError(err)
	s.True(status.Claimed)
	s.Equal(uint64(testRewardAmount), status.Amount)
}

func (s *DistributorServiceSuite) TestSingleLeafAllowlist() {
	// A one-entry allowlist has an empty proof: the leaf is the root.
	proofs := s.publishAllowlist(1, s.alice)
	s.Empty(proofs[s.alice])
	s.Require().NoError(s.service.Claim(s.ctx(), s.alice, testRewardAmount, 1, proofs[s.alice]))
}
