package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "mintgate/pkg/domain-errors"
)

// Mint failure kinds. Preconditions are checked before any mutation, so a
// failed mint never changes state.
var (
	ErrZeroQuantity        = dErrors.New(dErrors.CodeInvalidInput, "quantity must be greater than zero")
	ErrSupplyExceeded      = dErrors.New(dErrors.CodeConflict, "mint would exceed max supply")
	ErrInsufficientPayment = dErrors.New(dErrors.CodeValidation, "payment below required cost")
	ErrCooldownActive      = dErrors.New(dErrors.CodeConflict, "mint cooldown still active")
	ErrMintPaused          = dErrors.New(dErrors.CodeConflict, "minting is paused")
	ErrTransferFailed      = dErrors.New(dErrors.CodeUnavailable, "proceeds transfer failed")
)

// Receipt records a committed mint.
type Receipt struct {
	ID       uuid.UUID `json:"id"`
	UnitIDs  []uint64  `json:"unit_ids"`
	Cost     uint64    `json:"cost"`
	Refund   uint64    `json:"refund"`
	MintedAt time.Time `json:"minted_at"`
}

// RoyaltyConfig is the royalty-like fee configuration on minted units.
// Basis points out of 10_000.
type RoyaltyConfig struct {
	Receiver string `json:"receiver"`
	Bps      uint16 `json:"bps"`
}

// State is a read-only snapshot of the controller for the status endpoint.
type State struct {
	TotalMinted     uint64         `json:"total_minted"`
	MaxSupply       uint64         `json:"max_supply"`
	UnitPrice       uint64         `json:"unit_price"`
	Paused          bool           `json:"paused"`
	BaseURI         string         `json:"base_uri,omitempty"`
	Royalty         *RoyaltyConfig `json:"royalty,omitempty"`
	Proceeds        uint64         `json:"proceeds"`
	RetainedSurplus uint64         `json:"retained_surplus"`
}
