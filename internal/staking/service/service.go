// Package service implements the staking rewards engine.
//
// Rewards accrue through the reward-per-share accumulator: a global Fixed18
// running total of reward per staked unit, advanced lazily at the start of
// every operation, with each position tracking the accumulator value it was
// last settled against. All divisions floor, so the engine never overpays;
// the truncation remainder (strictly less than one base unit per settlement)
// is the only leakage.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"mintgate/internal/ledger"
	"mintgate/internal/staking/metrics"
	"mintgate/internal/staking/models"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/platform/audit"
	"mintgate/pkg/requestcontext"
)

// PositionStore persists positions and the pool accumulator.
type PositionStore interface {
	Get(ctx context.Context, identity id.Identity) (*models.Position, error)
	Put(ctx context.Context, pos *models.Position) error
	Pool(ctx context.Context) (*models.PoolState, error)
	PutPool(ctx context.Context, pool *models.PoolState) error
	All(ctx context.Context) ([]*models.Position, error)
}

// AuditPublisher emits audit events for financial operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the accrual ledger. A single mutex serializes operations per
// instance; external transfers happen at fixed points with local state either
// already committed (payouts) or not yet touched (stake pulls).
type Service struct {
	store    PositionStore
	ledger   ledger.TokenLedger
	treasury id.Identity

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher

	mu          sync.Mutex
	initialRate uint64
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// New constructs the engine. The pool is created lazily on first use with
// initialRate; a persisted pool takes precedence.
func New(store PositionStore, tokens ledger.TokenLedger, treasury id.Identity, initialRate uint64, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("position store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token ledger is required")
	}
	if treasury.IsNull() {
		return nil, fmt.Errorf("treasury identity is required")
	}

	svc := &Service{
		store:       store,
		ledger:      tokens,
		treasury:    treasury,
		initialRate: initialRate,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// settle advances the global accumulator to now and, for a non-null identity,
// folds the accrued difference into that position's pending reward.
// Must run before any balance mutation or reward read.
func (s *Service) settle(ctx context.Context, identity id.Identity, now time.Time) (*models.PoolState, *models.Position, error) {
	pool, err := s.store.Pool(ctx)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pool state")
	}
	if pool == nil {
		pool = models.NewPoolState(s.initialRate, now)
	}
	// The logical clock is non-decreasing; clamp against stale contexts.
	if now.Before(pool.LastUpdateTime) {
		now = pool.LastUpdateTime
	}

	if pool.TotalStaked > 0 {
		elapsed := uint64(now.Sub(pool.LastUpdateTime) / time.Second)
		if elapsed > 0 {
			// rewardPerTokenStored += elapsed * rate * SCALE / totalStaked
			delta := new(uint256.Int).Mul(uint256.NewInt(elapsed), uint256.NewInt(pool.RewardRate))
			delta.Mul(delta, models.Scale)
			delta.Div(delta, uint256.NewInt(pool.TotalStaked))
			pool.RewardPerTokenStored.Add(pool.RewardPerTokenStored, delta)
		}
	}
	pool.LastUpdateTime = now
	if err := s.store.PutPool(ctx, pool); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool state")
	}

	if s.metrics != nil {
		s.metrics.IncrementSettlements()
	}
	if identity.IsNull() {
		return pool, nil, nil
	}

	pos, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load position")
	}
	if pos == nil {
		pos = models.NewPosition(identity)
	}
	// pending += staked * (stored - paid) / SCALE, floored
	diff := new(uint256.Int).Sub(pool.RewardPerTokenStored, pos.RewardPerTokenPaid)
	accrued := diff.Mul(diff, uint256.NewInt(pos.StakedAmount))
	accrued.Div(accrued, models.Scale)
	pos.PendingReward += accrued.Uint64()
	pos.RewardPerTokenPaid = pool.RewardPerTokenStored.Clone()
	if err := s.store.Put(ctx, pos); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store position")
	}
	return pool, pos, nil
}

// Stake pulls amount from the identity into the treasury escrow and credits
// the position. The pull happens before any balance mutation so a failed
// transfer leaves stake balances untouched.
func (s *Service) Stake(ctx context.Context, identity id.Identity, amount uint64) error {
	if identity.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	if amount == 0 {
		return models.ErrZeroAmount
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	pool, pos, err := s.settle(ctx, identity, now)
	if err != nil {
		return err
	}

	if err := s.ledger.TransferFrom(ctx, identity, s.treasury, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "token transfer failed")
	}

	pool.TotalStaked += amount
	pos.StakedAmount += amount
	if err := s.store.PutPool(ctx, pool); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool state")
	}
	if err := s.store.Put(ctx, pos); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store position")
	}

	if s.metrics != nil {
		s.metrics.SetTotalStaked(pool.TotalStaked)
	}
	s.emit(ctx, audit.Event{
		Category: audit.CategoryFinancial,
		Identity: identity,
		Action:   string(audit.EventStaked),
		Amount:   amount,
	})
	return nil
}

// Withdraw pushes amount back to the identity. Balances are decremented
// before the push and restored if it fails, so a failed withdraw is a no-op.
func (s *Service) Withdraw(ctx context.Context, identity id.Identity, amount uint64) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawLocked(ctx, identity, amount, now)
}

func (s *Service) withdrawLocked(ctx context.Context, identity id.Identity, amount uint64, now time.Time) error {
	if identity.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	pool, pos, err := s.settle(ctx, identity, now)
	if err != nil {
		return err
	}
	if amount == 0 {
		return models.ErrZeroAmount
	}
	if pos.StakedAmount < amount {
		return models.ErrInsufficientStake
	}

	pool.TotalStaked -= amount
	pos.StakedAmount -= amount
	if err := s.store.PutPool(ctx, pool); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool state")
	}
	if err := s.store.Put(ctx, pos); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store position")
	}

	if err := s.ledger.Transfer(ctx, identity, amount); err != nil {
		// Mandatory push failed: restore both balances before reporting.
		pool.TotalStaked += amount
		pos.StakedAmount += amount
		if putErr := s.store.PutPool(ctx, pool); putErr != nil {
			return dErrors.Wrap(putErr, dErrors.CodeInvariantViolation, "failed to restore pool state after transfer failure")
		}
		if putErr := s.store.Put(ctx, pos); putErr != nil {
			return dErrors.Wrap(putErr, dErrors.CodeInvariantViolation, "failed to restore position after transfer failure")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "token transfer failed")
	}

	if s.metrics != nil {
		s.metrics.SetTotalStaked(pool.TotalStaked)
	}
	s.emit(ctx, audit.Event{
		Category: audit.CategoryFinancial,
		Identity: identity,
		Action:   string(audit.EventWithdrawn),
		Amount:   amount,
	})
	return nil
}

// ClaimReward pays out the settled pending reward. A zero pending reward is
// a silent no-op. The pending balance is zeroed before the payout and
// restored if the transfer fails.
func (s *Service) ClaimReward(ctx context.Context, identity id.Identity) (uint64, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimLocked(ctx, identity, now)
}

func (s *Service) claimLocked(ctx context.Context, identity id.Identity, now time.Time) (uint64, error) {
	if identity.IsNull() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	_, pos, err := s.settle(ctx, identity, now)
	if err != nil {
		return 0, err
	}
	reward := pos.PendingReward
	if reward == 0 {
		return 0, nil
	}

	pos.PendingReward = 0
	if err := s.store.Put(ctx, pos); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store position")
	}

	if err := s.ledger.Transfer(ctx, identity, reward); err != nil {
		pos.PendingReward = reward
		if putErr := s.store.Put(ctx, pos); putErr != nil {
			return 0, dErrors.Wrap(putErr, dErrors.CodeInvariantViolation, "failed to restore pending reward after transfer failure")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "token transfer failed")
	}

	if s.metrics != nil {
		s.metrics.AddRewardsPaid(reward)
	}
	s.emit(ctx, audit.Event{
		Category: audit.CategoryFinancial,
		Identity: identity,
		Action:   string(audit.EventRewardPaid),
		Amount:   reward,
	})
	return reward, nil
}

// Exit withdraws the full staked balance, then claims the pending reward —
// exactly the two operations in sequence. An identity with no stake simply
// claims.
func (s *Service) Exit(ctx context.Context, identity id.Identity) (uint64, error) {
	if identity.IsNull() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.store.Get(ctx, identity)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load position")
	}
	if pos != nil && pos.StakedAmount > 0 {
		if err := s.withdrawLocked(ctx, identity, pos.StakedAmount, now); err != nil {
			return 0, err
		}
	}
	return s.claimLocked(ctx, identity, now)
}

// SetRewardRate settles globally, then overwrites the rate: accrual before
// the change is computed with the old rate. Privileged.
func (s *Service) SetRewardRate(ctx context.Context, newRate uint64) error {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	pool, _, err := s.settle(ctx, id.NullIdentity, now)
	if err != nil {
		return err
	}
	pool.RewardRate = newRate
	if err := s.store.PutPool(ctx, pool); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pool state")
	}

	s.emit(ctx, audit.Event{
		Category: audit.CategorySecurity,
		Action:   string(audit.EventRewardRateChanged),
		Amount:   newRate,
	})
	return nil
}

// Earned reports the reward the identity could claim right now, without
// mutating any state.
func (s *Service) Earned(ctx context.Context, identity id.Identity) (uint64, error) {
	if identity.IsNull() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	pool, err := s.store.Pool(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pool state")
	}
	if pool == nil {
		return 0, nil
	}
	pos, err := s.store.Get(ctx, identity)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load position")
	}
	if pos == nil {
		return 0, nil
	}

	// Project the accumulator forward without persisting.
	stored := pool.RewardPerTokenStored.Clone()
	if pool.TotalStaked > 0 && now.After(pool.LastUpdateTime) {
		elapsed := uint64(now.Sub(pool.LastUpdateTime) / time.Second)
		delta := new(uint256.Int).Mul(uint256.NewInt(elapsed), uint256.NewInt(pool.RewardRate))
		delta.Mul(delta, models.Scale)
		delta.Div(delta, uint256.NewInt(pool.TotalStaked))
		stored.Add(stored, delta)
	}
	diff := new(uint256.Int).Sub(stored, pos.RewardPerTokenPaid)
	accrued := diff.Mul(diff, uint256.NewInt(pos.StakedAmount))
	accrued.Div(accrued, models.Scale)
	return pos.PendingReward + accrued.Uint64(), nil
}

// Position returns the read model for an identity.
func (s *Service) Position(ctx context.Context, identity id.Identity) (*models.PositionView, error) {
	earned, err := s.Earned(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pos, err := s.store.Get(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load position")
	}
	view := &models.PositionView{Identity: identity, EarnedReward: earned}
	if pos != nil {
		view.StakedAmount = pos.StakedAmount
	}
	return view, nil
}

// Pool returns the pool read model.
func (s *Service) Pool(ctx context.Context) (*models.PoolView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool, err := s.store.Pool(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pool state")
	}
	if pool == nil {
		return &models.PoolView{RewardRate: s.initialRate}, nil
	}
	return &models.PoolView{TotalStaked: pool.TotalStaked, RewardRate: pool.RewardRate}, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
