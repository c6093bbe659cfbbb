// Package service implements the mint controller: supply cap, per-identity
// purchase cooldown, payment validation with best-effort change return, and
// the privileged pause/metadata/withdraw surface.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"mintgate/internal/ledger"
	"mintgate/internal/mint/metrics"
	"mintgate/internal/mint/models"
	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/platform/audit"
	"mintgate/pkg/requestcontext"
)

// CooldownStore tracks the last committed mint per identity.
type CooldownStore interface {
	Last(ctx context.Context, identity id.Identity) (time.Time, bool, error)
	Touch(ctx context.Context, identity id.Identity, at time.Time) error
}

// AuditPublisher emits audit events for financial operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Policy is the immutable mint policy fixed at construction.
type Policy struct {
	MaxSupply uint64
	UnitPrice uint64
	Cooldown  time.Duration
}

// Service enforces the mint invariants. All mutations run under one mutex:
// operations on an instance are serialized, and every local state change is
// committed before any external transfer is attempted.
type Service struct {
	policy    Policy
	ledger    ledger.TokenLedger
	native    ledger.NativeLedger
	cooldowns CooldownStore

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher

	mu          sync.Mutex
	totalMinted uint64
	proceeds    uint64
	retained    uint64
	paused      bool
	baseURI     string
	royalty     *models.RoyaltyConfig
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

// New constructs a mint controller. MaxSupply must be positive.
func New(policy Policy, tokens ledger.TokenLedger, native ledger.NativeLedger, cooldowns CooldownStore, opts ...Option) (*Service, error) {
	if policy.MaxSupply == 0 {
		return nil, fmt.Errorf("max supply must be positive")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token ledger is required")
	}
	if native == nil {
		return nil, fmt.Errorf("native ledger is required")
	}
	if cooldowns == nil {
		return nil, fmt.Errorf("cooldown store is required")
	}

	svc := &Service{
		policy:    policy,
		ledger:    tokens,
		native:    native,
		cooldowns: cooldowns,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Mint allocates quantity sequential unit IDs to identity after checking, in
// order: pause, quantity, supply cap, payment, cooldown. Overpayment is
// refunded best-effort; a failed refund never rolls back the mint — the
// surplus is retained for privileged withdrawal.
func (s *Service) Mint(ctx context.Context, identity id.Identity, quantity, payment uint64) (*models.Receipt, error) {
	if identity.IsNull() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		s.reject("paused")
		return nil, models.ErrMintPaused
	}
	if quantity == 0 {
		s.reject("zero_quantity")
		return nil, models.ErrZeroQuantity
	}
	if quantity > s.policy.MaxSupply-s.totalMinted {
		s.reject("supply_exceeded")
		return nil, models.ErrSupplyExceeded
	}
	// A wrapped cost could let an underpayment slip through the check below;
	// no uint64 payment can cover a cost past the range anyway.
	if s.policy.UnitPrice > 0 && quantity > math.MaxUint64/s.policy.UnitPrice {
		s.reject("insufficient_payment")
		return nil, models.ErrInsufficientPayment
	}
	cost := s.policy.UnitPrice * quantity
	if payment < cost {
		s.reject("insufficient_payment")
		return nil, models.ErrInsufficientPayment
	}
	last, minted, err := s.cooldowns.Last(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read cooldown state")
	}
	if minted && now.Before(last.Add(s.policy.Cooldown)) {
		s.reject("cooldown_active")
		return nil, models.ErrCooldownActive
	}

	// All preconditions hold. Record the cooldown first: nothing external has
	// been dispatched yet, so a failed record aborts with no state change.
	if err := s.cooldowns.Touch(ctx, identity, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record cooldown")
	}

	first := s.totalMinted + 1
	s.totalMinted += quantity

	unitIDs := make([]uint64, 0, quantity)
	for unitID := first; unitID < first+quantity; unitID++ {
		if err := s.ledger.MintUnit(ctx, identity, unitID); err != nil {
			// Dispatched units cannot be recalled: the counter stays advanced
			// so IDs are never reused, and only the minted prefix is charged.
			s.proceeds += s.policy.UnitPrice * uint64(len(unitIDs))
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unit mint failed")
		}
		unitIDs = append(unitIDs, unitID)
	}
	s.proceeds += cost

	refund := payment - cost
	if refund > 0 {
		if err := s.native.Pay(ctx, identity, refund); err != nil {
			// Tolerated: a recipient refusing change must not block the mint.
			s.retained += refund
			refund = 0
			if s.metrics != nil {
				s.metrics.IncrementRefundFailures()
			}
			s.logger.WarnContext(ctx, "mint refund failed, surplus retained",
				"request_id", requestcontext.RequestID(ctx),
				"identity", identity,
				"surplus", payment-cost,
				"error", err,
			)
			s.emit(ctx, audit.Event{
				Category: audit.CategoryFinancial,
				Identity: identity,
				Action:   string(audit.EventRefundFailed),
				Amount:   payment - cost,
			})
		}
	}

	if s.metrics != nil {
		s.metrics.AddUnitsMinted(int(quantity))
	}
	s.emit(ctx, audit.Event{
		Category: audit.CategoryFinancial,
		Identity: identity,
		Action:   string(audit.EventUnitsMinted),
		Amount:   quantity,
		Detail:   fmt.Sprintf("units %d..%d", first, first+quantity-1),
	})

	return &models.Receipt{
		ID:       uuid.New(),
		UnitIDs:  unitIDs,
		Cost:     cost,
		Refund:   refund,
		MintedAt: now,
	}, nil
}

// Pause stops minting. Privileged.
func (s *Service) Pause(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.emit(ctx, audit.Event{Category: audit.CategorySecurity, Action: string(audit.EventMintPaused)})
}

// Unpause resumes minting. Privileged.
func (s *Service) Unpause(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.emit(ctx, audit.Event{Category: audit.CategorySecurity, Action: string(audit.EventMintUnpaused)})
}

// SetBaseURI updates the unit metadata pointer. Privileged.
func (s *Service) SetBaseURI(_ context.Context, baseURI string) error {
	if baseURI == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "base URI cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURI = baseURI
	return nil
}

// SetRoyalty configures the royalty-like fee on minted units. Privileged.
func (s *Service) SetRoyalty(_ context.Context, receiver string, bps uint16) error {
	if receiver == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "royalty receiver is required")
	}
	if bps > 10_000 {
		return dErrors.New(dErrors.CodeInvalidInput, "royalty basis points cannot exceed 10000")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.royalty = &models.RoyaltyConfig{Receiver: receiver, Bps: bps}
	return nil
}

// DeleteRoyalty removes the royalty configuration. Privileged.
func (s *Service) DeleteRoyalty(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.royalty = nil
}

// WithdrawProceeds pays all accumulated payment balance (sale proceeds plus
// retained refund surplus) to the given identity. Privileged; the payout is
// mandatory — on failure nothing is withdrawn.
func (s *Service) WithdrawProceeds(ctx context.Context, to id.Identity) (uint64, error) {
	if to.IsNull() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "withdraw recipient is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.proceeds + s.retained
	if amount == 0 {
		return 0, nil
	}
	if err := s.native.Pay(ctx, to, amount); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "proceeds transfer failed")
	}
	s.proceeds = 0
	s.retained = 0

	s.emit(ctx, audit.Event{
		Category: audit.CategorySecurity,
		Identity: to,
		Action:   string(audit.EventProceedsWithdraw),
		Amount:   amount,
	})
	return amount, nil
}

// State returns a snapshot for the status endpoint.
func (s *Service) State(_ context.Context) models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.State{
		TotalMinted:     s.totalMinted,
		MaxSupply:       s.policy.MaxSupply,
		UnitPrice:       s.policy.UnitPrice,
		Paused:          s.paused,
		BaseURI:         s.baseURI,
		Proceeds:        s.proceeds,
		RetainedSurplus: s.retained,
	}
	if s.royalty != nil {
		royalty := *s.royalty
		state.Royalty = &royalty
	}
	return state
}

func (s *Service) reject(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejected(reason)
	}
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
