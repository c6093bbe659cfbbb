package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mintgate/internal/ledger"
	"mintgate/internal/mint/models"
	"mintgate/internal/mint/store/cooldown"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/requestcontext"
)

const (
	testMaxSupply = 10
	testUnitPrice = 100
	testCooldown  = time.Hour
)

type MintServiceSuite struct {
	suite.Suite
	tokens   *ledger.InMemoryLedger
	native   *ledger.InMemoryNativeLedger
	service  *Service
	treasury id.Identity
	alice    id.Identity
	bob      id.Identity
	epoch    time.Time
}

func TestMintServiceSuite(t *testing.T) {
	suite.Run(t, new(MintServiceSuite))
}

func (s *MintServiceSuite) SetupTest() {
	s.treasury = s.identity("01")
	s.alice = s.identity("aa")
	s.bob = s.identity("bb")
	s.epoch = time.Unix(1_700_000_000, 0)

	s.tokens = ledger.NewInMemory(s.treasury)
	s.native = ledger.NewInMemoryNative()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = New(
		Policy{MaxSupply: testMaxSupply, UnitPrice: testUnitPrice, Cooldown: testCooldown},
		s.tokens,
		s.native,
		cooldown.New(),
		WithLogger(logger),
	)
	s.Require().NoError(err)
}

func (s *MintServiceSuite) identity(seed string) id.Identity {
	var hex string
	for i := 0; i < 20; i++ {
		hex += seed
	}
	identity, err := id.ParseIdentity("0x" + hex)
	s.Require().NoError(err)
	return identity
}

func (s *MintServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.epoch.Add(offset))
}

func (s *MintServiceSuite) TestNew_RejectsZeroMaxSupply() {
	_, err := New(Policy{MaxSupply: 0}, s.tokens, s.native, cooldown.New())
	s.Error(err)
}

func (s *MintServiceSuite) TestMint_AllocatesSequentialUnitIDs() {
	receipt, err := s.service.Mint(s.at(0), s.alice, 3, 3*testUnitPrice)
	s.Require().NoError(err)

	s.Equal([]uint64{1, 2, 3}, receipt.UnitIDs)
	s.Equal(uint64(3*testUnitPrice), receipt.Cost)
	s.Equal(uint64(0), receipt.Refund)

	for _, unitID := range receipt.UnitIDs {
		owner, ok := s.tokens.UnitOwner(unitID)
		s.Require().True(ok)
		s.Equal(s.alice, owner)
	}

	// A second minter continues the sequence.
	receipt, err = s.service.Mint(s.at(time.Minute), s.bob, 2, 2*testUnitPrice)
	s.Require().NoError(err)
	s.Equal([]uint64{4, 5}, receipt.UnitIDs)
}

func (s *MintServiceSuite) TestMint_ZeroQuantity() {
	_, err := s.service.Mint(s.at(0), s.alice, 0, 0)
	s.Require().ErrorIs(err, models.ErrZeroQuantity)
	s.Equal(uint64(0), s.service.State(context.Background()).TotalMinted)
}

func (s *MintServiceSuite) TestMint_SupplyCapExactThenExceeded() {
	// Mint exactly up to the cap across distinct identities (cooldown).
	for i := 0; i < testMaxSupply; i++ {
		minter := s.identity(fmt.Sprintf("%02x", 0x10+i))
		_, err := s.service.Mint(s.at(time.Duration(i)*time.Second), minter, 1, testUnitPrice)
		s.Require().NoError(err)
	}
	s.Equal(uint64(testMaxSupply), s.service.State(context.Background()).TotalMinted)

	// One more unit fails and leaves the counter untouched.
	_, err := s.service.Mint(s.at(time.Minute), s.identity("fe"), 1, testUnitPrice)
	s.Require().ErrorIs(err, models.ErrSupplyExceeded)
	s.Equal(uint64(testMaxSupply), s.service.State(context.Background()).TotalMinted)
}

// brokenCooldownStore fails every write, modeling a Redis outage.
type brokenCooldownStore struct{}

func (brokenCooldownStore) Last(context.Context, id.Identity) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (brokenCooldownStore) Touch(context.Context, id.Identity, time.Time) error {
	return errors.New("cooldown store down")
}

func (s *MintServiceSuite) TestMint_CooldownRecordFailureLeavesStateUntouched() {
	svc, err := New(
		Policy{MaxSupply: testMaxSupply, UnitPrice: testUnitPrice, Cooldown: testCooldown},
		s.tokens, s.native, brokenCooldownStore{})
	s.Require().NoError(err)

	_, err = svc.Mint(s.at(0), s.alice, 3, 3*testUnitPrice)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	state := svc.State(context.Background())
	s.Equal(uint64(0), state.TotalMinted, "failed cooldown record must not consume supply")
	s.Equal(uint64(0), state.Proceeds)
	_, minted := s.tokens.UnitOwner(1)
	s.False(minted)
}

func (s *MintServiceSuite) TestMint_PartialUnitFailureChargesMintedPrefix() {
	// Unit ID 2 is already taken, so a 3-unit mint fails after dispatching
	// unit 1.
	s.Require().NoError(s.tokens.MintUnit(context.Background(), s.bob, 2))

	_, err := s.service.Mint(s.at(0), s.alice, 3, 3*testUnitPrice)
	s.Require().Error(err)

	state := s.service.State(context.Background())
	s.Equal(uint64(3), state.TotalMinted, "dispatched IDs are never reused")
	s.Equal(uint64(testUnitPrice), state.Proceeds, "only the minted prefix is charged")

	owner, minted := s.tokens.UnitOwner(1)
	s.Require().True(minted)
	s.Equal(s.alice, owner)
	_, minted = s.tokens.UnitOwner(3)
	s.False(minted)
}

func (s *MintServiceSuite) TestMint_CostOverflowRejected() {
	svc, err := New(
		Policy{MaxSupply: math.MaxUint64, UnitPrice: math.MaxUint64/2 + 1, Cooldown: testCooldown},
		s.tokens, s.native, cooldown.New())
	s.Require().NoError(err)

	// 3 * unitPrice wraps around; the payment check must not be fooled.
	_, err = svc.Mint(s.at(0), s.alice, 3, 100)
	s.Require().ErrorIs(err, models.ErrInsufficientPayment)
	s.Equal(uint64(0), svc.State(context.Background()).TotalMinted)
}

func (s *MintServiceSuite) TestMint_InsufficientPayment() {
	_, err := s.service.Mint(s.at(0), s.alice, 2, 2*testUnitPrice-1)
	s.Require().ErrorIs(err, models.ErrInsufficientPayment)
	s.Equal(uint64(0), s.service.State(context.Background()).TotalMinted)
}

func (s *MintServiceSuite) TestMint_CooldownGate() {
	_, err := s.service.Mint(s.at(0), s.alice, 1, testUnitPrice)
	s.Require().NoError(err)

	// One second before the window closes: rejected.
	_, err = s.service.Mint(s.at(testCooldown-time.Second), s.alice, 1, testUnitPrice)
	s.Require().ErrorIs(err, models.ErrCooldownActive)

	// At exactly the cooldown boundary: allowed.
	_, err = s.service.Mint(s.at(testCooldown), s.alice, 1, testUnitPrice)
	s.Require().NoError(err)
}

func (s *MintServiceSuite) TestMint_CooldownIsPerIdentity() {
	_, err := s.service.Mint(s.at(0), s.alice, 1, testUnitPrice)
	s.Require().NoError(err)

	_, err = s.service.Mint(s.at(time.Second), s.bob, 1, testUnitPrice)
	s.NoError(err, "bob's first mint is not gated by alice's cooldown")
}

func (s *MintServiceSuite) TestMint_OverpaymentRefunded() {
	receipt, err := s.service.Mint(s.at(0), s.alice, 1, testUnitPrice+40)
	s.Require().NoError(err)

	s.Equal(uint64(40), receipt.Refund)
	s.Equal(uint64(40), s.native.NativeBalanceOf(s.alice))
	s.Equal(uint64(0), s.service.State(context.Background()).RetainedSurplus)
}

func (s *MintServiceSuite) TestMint_FailedRefundDoesNotRollBack() {
	s.native.SetRejecting(s.alice, true)

	receipt, err := s.service.Mint(s.at(0), s.alice, 1, testUnitPrice+40)
	s.Require().NoError(err, "a refused refund must not block the mint")

	s.Equal(uint64(0), receipt.Refund)
	s.Equal([]uint64{1}, receipt.UnitIDs)

	state := s.service.State(context.Background())
	s.Equal(uint64(1), state.TotalMinted)
	s.Equal(uint64(40), state.RetainedSurplus, "surplus retained for privileged withdrawal")
}

func (s *MintServiceSuite) TestMint_PausedRejectsUntilUnpaused() {
	ctx := s.at(0)
	s.service.Pause(ctx)

	_, err := s.service.Mint(ctx, s.alice, 1, testUnitPrice)
	s.Require().ErrorIs(err, models.ErrMintPaused)

	s.service.Unpause(ctx)
	_, err = s.service.Mint(ctx, s.alice, 1, testUnitPrice)
	s.NoError(err)
}

func (s *MintServiceSuite) TestWithdrawProceeds() {
	s.native.SetRejecting(s.alice, true)
	_, err := s.service.Mint(s.at(0), s.alice, 1, testUnitPrice+25)
	s.Require().NoError(err)

	operator := s.identity("0d")
	amount, err := s.service.WithdrawProceeds(context.Background(), operator)
	s.Require().NoError(err)
	s.Equal(uint64(testUnitPrice+25), amount, "proceeds plus retained surplus")
	s.Equal(uint64(testUnitPrice+25), s.native.NativeBalanceOf(operator))

	state := s.service.State(context.Background())
	s.Equal(uint64(0), state.Proceeds)
	s.Equal(uint64(0), state.RetainedSurplus)
}

func (s *MintServiceSuite) TestWithdrawProceeds_FailureLeavesBalance() {
	_, err := s.service.Mint(s.at(0), s.alice, 1, testUnitPrice)
	s.Require().NoError(err)

	operator := s.identity("0d")
	s.native.SetRejecting(operator, true)

	_, err = s.service.WithdrawProceeds(context.Background(), operator)
	s.Require().ErrorIs(err, models.ErrTransferFailed)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Equal(uint64(testUnitPrice), s.service.State(context.Background()).Proceeds)
}

func (s *MintServiceSuite) TestRoyaltyConfig() {
	ctx := context.Background()
	s.Require().NoError(s.service.SetRoyalty(ctx, s.bob.String(), 250))

	state := s.service.State(ctx)
	s.Require().NotNil(state.Royalty)
	s.Equal(uint16(250), state.Royalty.Bps)

	s.Error(s.service.SetRoyalty(ctx, s.bob.String(), 10_001))

	s.service.DeleteRoyalty(ctx)
	s.Nil(s.service.State(ctx).Royalty)
}
