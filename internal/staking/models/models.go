package models

import (
	"time"

	"github.com/holiman/uint256"

	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// Staking failure kinds. Claiming a zero reward is a silent no-op, not an
// error.
var (
	ErrZeroAmount        = dErrors.New(dErrors.CodeInvalidInput, "amount must be greater than zero")
	ErrInsufficientStake = dErrors.New(dErrors.CodeConflict, "insufficient staked balance")
	ErrTransferFailed    = dErrors.New(dErrors.CodeUnavailable, "token transfer failed")
)

// Scale is the Fixed18 multiplier for reward-per-token accounting. All
// divisions by Scale use floor semantics, so the engine only ever
// under-pays, by strictly less than one base unit per settlement.
var Scale = uint256.MustFromDecimal("1000000000000000000")

// Position is one identity's stake. Positions are created on first stake and
// never removed; a fully exited position remains as a zero tombstone.
type Position struct {
	Identity           id.Identity
	StakedAmount       uint64
	RewardPerTokenPaid *uint256.Int
	PendingReward      uint64
}

// NewPosition returns an empty position for an identity.
func NewPosition(identity id.Identity) *Position {
	return &Position{
		Identity:           identity,
		RewardPerTokenPaid: uint256.NewInt(0),
	}
}

// Clone returns a deep copy so stores never hand out aliased accumulators.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Identity:           p.Identity,
		StakedAmount:       p.StakedAmount,
		RewardPerTokenPaid: p.RewardPerTokenPaid.Clone(),
		PendingReward:      p.PendingReward,
	}
}

// PoolState is the global accumulator. RewardPerTokenStored is Fixed18 and
// monotonically non-decreasing.
type PoolState struct {
	TotalStaked          uint64
	RewardRate           uint64
	RewardPerTokenStored *uint256.Int
	LastUpdateTime       time.Time
}

// NewPoolState returns a pool with the given reward rate, settled as of now.
func NewPoolState(rewardRate uint64, now time.Time) *PoolState {
	return &PoolState{
		RewardRate:           rewardRate,
		RewardPerTokenStored: uint256.NewInt(0),
		LastUpdateTime:       now,
	}
}

// Clone returns a deep copy.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	return &PoolState{
		TotalStaked:          p.TotalStaked,
		RewardRate:           p.RewardRate,
		RewardPerTokenStored: p.RewardPerTokenStored.Clone(),
		LastUpdateTime:       p.LastUpdateTime,
	}
}

// PositionView is the read model served by the position endpoint.
type PositionView struct {
	Identity     id.Identity `json:"identity"`
	StakedAmount uint64      `json:"staked_amount"`
	EarnedReward uint64      `json:"earned_reward"`
}

// PoolView is the read model for pool status.
type PoolView struct {
	TotalStaked uint64 `json:"total_staked"`
	RewardRate  uint64 `json:"reward_rate"`
}
