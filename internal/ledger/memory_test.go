package ledger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	id "mintgate/pkg/domain"
)

type InMemoryLedgerSuite struct {
	suite.Suite
	ledger   *InMemoryLedger
	treasury id.Identity
	alice    id.Identity
	bob      id.Identity
}

func TestInMemoryLedgerSuite(t *testing.T) {
	suite.Run(t, new(InMemoryLedgerSuite))
}

func (s *InMemoryLedgerSuite) SetupTest() {
	var err error
	s.treasury, err = id.ParseIdentity("0x" + strings.Repeat("00", 19) + "01")
	s.Require().NoError(err)
	s.alice, err = id.ParseIdentity("0x" + strings.Repeat("aa", 20))
	s.Require().NoError(err)
	s.bob, err = id.ParseIdentity("0x" + strings.Repeat("bb", 20))
	s.Require().NoError(err)
	s.ledger = NewInMemory(s.treasury)
}

func (s *InMemoryLedgerSuite) TestTransferMovesBalance() {
	ctx := context.Background()
	s.ledger.Credit(s.treasury, 100)

	s.Require().NoError(s.ledger.Transfer(ctx, s.alice, 40))

	got, err := s.ledger.BalanceOf(ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(uint64(40), got)

	got, err = s.ledger.BalanceOf(ctx, s.treasury)
	s.Require().NoError(err)
	s.Equal(uint64(60), got)
}

func (s *InMemoryLedgerSuite) TestTransferInsufficientBalanceIsAtomic() {
	ctx := context.Background()
	s.ledger.Credit(s.alice, 10)

	err := s.ledger.TransferFrom(ctx, s.alice, s.bob, 11)
	s.Require().ErrorIs(err, ErrInsufficientBalance)

	// No partial movement.
	got, err := s.ledger.BalanceOf(ctx, s.alice)
	s.Require().NoError(err)
	s.Equal(uint64(10), got)
	got, err = s.ledger.BalanceOf(ctx, s.bob)
	s.Require().NoError(err)
	s.Equal(uint64(0), got)
}

func (s *InMemoryLedgerSuite) TestMintUnitRejectsReuse() {
	ctx := context.Background()

	s.Require().NoError(s.ledger.MintUnit(ctx, s.alice, 1))
	s.Require().ErrorIs(s.ledger.MintUnit(ctx, s.bob, 1), ErrUnitExists)

	owner, ok := s.ledger.UnitOwner(1)
	s.True(ok)
	s.Equal(s.alice, owner)
}

func (s *InMemoryLedgerSuite) TestNativeLedgerRejectingRecipient() {
	ctx := context.Background()
	native := NewInMemoryNative()

	s.Require().NoError(native.Pay(ctx, s.alice, 5))
	s.Equal(uint64(5), native.NativeBalanceOf(s.alice))

	native.SetRejecting(s.bob, true)
	s.Require().Error(native.Pay(ctx, s.bob, 5))
	s.Equal(uint64(0), native.NativeBalanceOf(s.bob))
}
