// Package models defines the claim distributor's domain types and failures.
package models

import (
	"time"

	id "mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
	"mintgate/pkg/merkle"
)

var (
	// ErrRootZero rejects publishing an all-zero root.
	ErrRootZero = dErrors.New(dErrors.CodeInvalidInput, "merkle root must not be zero")

	// ErrRoundRegression rejects publishing a root for an earlier round.
	ErrRoundRegression = dErrors.New(dErrors.CodeConflict, "round must not regress")

	// ErrNoActiveRound rejects claims before any root has been published.
	ErrNoActiveRound = dErrors.New(dErrors.CodeConflict, "no active distribution round")

	// ErrWrongRound rejects claims that do not target the active round.
	ErrWrongRound = dErrors.New(dErrors.CodeConflict, "claim does not target the active round")

	// ErrWrongAmount rejects claims whose amount differs from the configured
	// per-claim reward.
	ErrWrongAmount = dErrors.New(dErrors.CodeValidation, "claim amount does not match the round reward")

	// ErrAlreadyClaimed rejects a second claim by the same identity in a round.
	ErrAlreadyClaimed = dErrors.New(dErrors.CodeConflict, "reward already claimed for this round")

	// ErrInvalidProof rejects claims whose proof does not verify against the
	// active root.
	ErrInvalidProof = dErrors.New(dErrors.CodeValidation, "merkle proof does not verify")

	// ErrTransferFailed wraps a pool payout the ledger refused; for claims the
	// entitlement is restored before this is returned.
	ErrTransferFailed = dErrors.New(dErrors.CodeUnavailable, "payout transfer failed")
)

// RoundState is the active distribution round.
type RoundState struct {
	Round       id.Round    `json:"round"`
	Root        merkle.Hash `json:"root"`
	PublishedAt time.Time   `json:"published_at"`
}

// ClaimStatus is the per-identity read model for a round.
type ClaimStatus struct {
	Round   id.Round    `json:"round"`
	Claimed bool        `json:"claimed"`
	Amount  uint64      `json:"amount,omitempty"`
	Root    merkle.Hash `json:"root"`
}
