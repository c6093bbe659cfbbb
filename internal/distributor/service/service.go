// Package service implements the merkle claim distributor.
//
// An operator publishes a merkle root committing to the allowlist of a
// distribution round. Identities claim once per round by presenting a proof;
// the claim marker is set before the payout and cleared again if the payout
// fails, so a failed transfer never burns an entitlement.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mintgate/internal/distributor/metrics"
	"mintgate/internal/distributor/models"
	"mintgate/internal/ledger"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/merkle"
	"mintgate/pkg/platform/audit"
	"mintgate/pkg/requestcontext"
)

// ClaimStore persists claim markers and the active round.
type ClaimStore interface {
	Round(ctx context.Context) (*models.RoundState, error)
	PutRound(ctx context.Context, round *models.RoundState) error
	IsClaimed(ctx context.Context, round id.Round, identity id.Identity) (bool, error)
	MarkClaimed(ctx context.Context, round id.Round, identity id.Identity) error
	Unmark(ctx context.Context, round id.Round, identity id.Identity) error
	Count(ctx context.Context, round id.Round) (uint64, error)
}

// AuditPublisher emits audit events for claims and root rotations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates claims against the active root and pays them from the
// treasury pool. A single mutex serializes claim validation with root
// rotation so a claim never verifies against one root and marks under another.
type Service struct {
	store        ClaimStore
	ledger       ledger.TokenLedger
	rewardAmount uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher

	mu sync.Mutex
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

// New constructs the distributor. rewardAmount is the fixed payout every
// allowlist entry is entitled to.
func New(store ClaimStore, tokens ledger.TokenLedger, rewardAmount uint64, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("claim store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token ledger is required")
	}
	if rewardAmount == 0 {
		return nil, fmt.Errorf("reward amount must be positive")
	}

	svc := &Service{
		store:        store,
		ledger:       tokens,
		rewardAmount: rewardAmount,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SetRoot publishes the root for a round. The round may equal the active one
// (rotating a mispublished root) but never regress; claim markers from the
// replaced root remain, so rotation cannot reopen spent entitlements.
// Privileged.
func (s *Service) SetRoot(ctx context.Context, round id.Round, root merkle.Hash) error {
	if root.IsZero() {
		return models.ErrRootZero
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Round(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load round state")
	}
	if current != nil && round < current.Round {
		return models.ErrRoundRegression
	}

	state := &models.RoundState{
		Round:       round,
		Root:        root,
		PublishedAt: requestcontext.Now(ctx),
	}
	if err := s.store.PutRound(ctx, state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store round state")
	}

	if s.metrics != nil {
		s.metrics.IncrementRootRotations()
	}
	s.logger.InfoContext(ctx, "merkle root published",
		"round", round, "root", root.String(), "request_id", requestcontext.RequestID(ctx))
	s.emit(ctx, audit.Event{
		Category: audit.CategorySecurity,
		Action:   string(audit.EventRootRotated),
		Round:    round,
		Detail:   root.String(),
	})
	return nil
}

// Claim pays the round reward to the identity if the (identity, amount,
// round) leaf proves against the active root and the identity has not claimed
// in this round yet. The marker is set before the payout and cleared on
// payout failure.
func (s *Service) Claim(ctx context.Context, identity id.Identity, amount uint64, round id.Round, proof []merkle.Hash) error {
	if identity.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Round(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load round state")
	}
	if current == nil {
		return s.reject(models.ErrNoActiveRound, "no_active_round")
	}
	if round != current.Round {
		return s.reject(models.ErrWrongRound, "wrong_round")
	}
	if amount != s.rewardAmount {
		return s.reject(models.ErrWrongAmount, "wrong_amount")
	}

	claimed, err := s.store.IsClaimed(ctx, round, identity)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim marker")
	}
	if claimed {
		return s.reject(models.ErrAlreadyClaimed, "already_claimed")
	}

	leaf := merkle.LeafHash(identity, amount, round)
	if !merkle.Verify(leaf, proof, current.Root) {
		return s.reject(models.ErrInvalidProof, "invalid_proof")
	}

	// Mark before paying so a concurrent claim on another replica loses the
	// marker race rather than double paying.
	if err := s.store.MarkClaimed(ctx, round, identity); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return s.reject(models.ErrAlreadyClaimed, "already_claimed")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark claim")
	}

	if err := s.ledger.Transfer(ctx, identity, amount); err != nil {
		if unmarkErr := s.store.Unmark(ctx, round, identity); unmarkErr != nil {
			s.logger.ErrorContext(ctx, "failed to clear claim marker after payout failure",
				"round", round, "identity", identity, "error", unmarkErr)
			return dErrors.Wrap(unmarkErr, dErrors.CodeInvariantViolation, "claim marker stuck after payout failure")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "payout transfer failed")
	}

	if s.metrics != nil {
		s.metrics.IncrementClaimsPaid()
	}
	s.logger.InfoContext(ctx, "claim paid",
		"round", round, "identity", identity, "amount", amount,
		"request_id", requestcontext.RequestID(ctx))
	s.emit(ctx, audit.Event{
		Category: audit.CategoryFinancial,
		Identity: identity,
		Action:   string(audit.EventClaimed),
		Amount:   amount,
		Round:    round,
	})
	return nil
}

// Rescue sweeps amount from the distributor pool to a recipient, regardless
// of round state. Unclaimed entitlements are recovered this way after a
// round closes. Privileged.
func (s *Service) Rescue(ctx context.Context, to id.Identity, amount uint64) error {
	if to.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "recipient is required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "rescue amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Transfer(ctx, to, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "payout transfer failed")
	}

	s.logger.InfoContext(ctx, "pool funds rescued",
		"recipient", to, "amount", amount, "request_id", requestcontext.RequestID(ctx))
	s.emit(ctx, audit.Event{
		Category: audit.CategorySecurity,
		Identity: to,
		Action:   string(audit.EventRescued),
		Amount:   amount,
	})
	return nil
}

// Status reports whether the identity has claimed in the active round.
func (s *Service) Status(ctx context.Context, identity id.Identity) (*models.ClaimStatus, error) {
	if identity.IsNull() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Round(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load round state")
	}
	if current == nil {
		return nil, models.ErrNoActiveRound
	}
	claimed, err := s.store.IsClaimed(ctx, current.Round, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim marker")
	}

	status := &models.ClaimStatus{
		Round:   current.Round,
		Claimed: claimed,
		Root:    current.Root,
	}
	if claimed {
		status.Amount = s.rewardAmount
	}
	return status, nil
}

// Round returns the active round state, or nil before the first publication.
func (s *Service) Round(ctx context.Context) (*models.RoundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Round(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load round state")
	}
	return current, nil
}

func (s *Service) reject(err error, reason string) error {
	if s.metrics != nil {
		s.metrics.IncrementClaimsRejected(reason)
	}
	return err
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
