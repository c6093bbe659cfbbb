package ledger

import (
	"context"
	"sync"

	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// InMemoryLedger is a mutex-guarded balance ledger. It backs the default
// deployment and every test; a chain-backed implementation satisfies the same
// interface.
type InMemoryLedger struct {
	mu         sync.RWMutex
	treasury   id.Identity
	balances   map[id.Identity]uint64
	unitOwners map[uint64]id.Identity
}

// NewInMemory constructs a ledger whose treasury account holds the service's
// own funds (stake escrow, distributor pool).
func NewInMemory(treasury id.Identity) *InMemoryLedger {
	return &InMemoryLedger{
		treasury:   treasury,
		balances:   make(map[id.Identity]uint64),
		unitOwners: make(map[uint64]id.Identity),
	}
}

// Treasury returns the service treasury identity.
func (l *InMemoryLedger) Treasury() id.Identity {
	return l.treasury
}

// Credit seeds a balance. Used at bootstrap (funding the distributor pool)
// and by tests.
func (l *InMemoryLedger) Credit(identity id.Identity, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[identity] += amount
}

func (l *InMemoryLedger) MintUnit(_ context.Context, to id.Identity, unitID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.unitOwners[unitID]; exists {
		return ErrUnitExists
	}
	if to.IsNull() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot mint a unit to the null identity")
	}
	l.unitOwners[unitID] = to
	return nil
}

func (l *InMemoryLedger) Transfer(ctx context.Context, to id.Identity, amount uint64) error {
	return l.TransferFrom(ctx, l.treasury, to, amount)
}

func (l *InMemoryLedger) TransferFrom(_ context.Context, from, to id.Identity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return ErrInsufficientBalance
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *InMemoryLedger) BalanceOf(_ context.Context, identity id.Identity) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[identity], nil
}

// UnitOwner reports the owner of a minted unit, if any.
func (l *InMemoryLedger) UnitOwner(unitID uint64) (id.Identity, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.unitOwners[unitID]
	return owner, ok
}

// InMemoryNativeLedger is a native-currency rail with the same semantics.
// Accounts marked as rejecting model refund recipients that refuse receipt.
type InMemoryNativeLedger struct {
	mu        sync.Mutex
	balances  map[id.Identity]uint64
	rejecting map[id.Identity]bool
}

// NewInMemoryNative constructs an empty native-currency ledger.
func NewInMemoryNative() *InMemoryNativeLedger {
	return &InMemoryNativeLedger{
		balances:  make(map[id.Identity]uint64),
		rejecting: make(map[id.Identity]bool),
	}
}

// SetRejecting marks an identity as refusing native-currency receipt, which
// makes Pay fail for it. Models the griefing refund recipient.
func (l *InMemoryNativeLedger) SetRejecting(identity id.Identity, rejecting bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejecting[identity] = rejecting
}

func (l *InMemoryNativeLedger) Pay(_ context.Context, to id.Identity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rejecting[to] {
		return dErrors.New(dErrors.CodeUnavailable, "recipient refused native transfer")
	}
	l.balances[to] += amount
	return nil
}

// NativeBalanceOf reports the native balance paid out to an identity.
func (l *InMemoryNativeLedger) NativeBalanceOf(identity id.Identity) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[identity]
}
