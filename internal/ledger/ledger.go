// Package ledger defines the Token Ledger collaborator consumed by the mint,
// staking, and distributor services, together with the native-currency
// payment rail used for refunds.
//
// The ledger is a passive balance store: services apply their own ordering
// discipline (state committed before external transfer) and treat every
// transfer as a potential failure point.
package ledger

import (
	"context"

	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

// Exported ledger failures. Transfers are atomic: on error no balance moved.
var (
	ErrInsufficientBalance = dErrors.New(dErrors.CodeConflict, "insufficient token balance")
	ErrUnitExists          = dErrors.New(dErrors.CodeInvariantViolation, "unit already minted")
)

// TokenLedger is the fungible/unit token collaborator.
type TokenLedger interface {
	// MintUnit assigns a freshly allocated unit ID to an identity.
	// Unit IDs are never reused; minting an existing ID is an invariant violation.
	MintUnit(ctx context.Context, to id.Identity, unitID uint64) error

	// Transfer moves amount from the service treasury to an identity.
	Transfer(ctx context.Context, to id.Identity, amount uint64) error

	// TransferFrom moves amount between two identities (stake escrow pull).
	TransferFrom(ctx context.Context, from, to id.Identity, amount uint64) error

	// BalanceOf reports the fungible balance of an identity.
	BalanceOf(ctx context.Context, identity id.Identity) (uint64, error)
}

// NativeLedger is the native-currency payment rail, used only for mint
// refunds and proceeds withdrawal. Pay may fail; callers decide whether the
// failure is fatal (withdrawals) or tolerated (refunds).
type NativeLedger interface {
	Pay(ctx context.Context, to id.Identity, amount uint64) error
}
