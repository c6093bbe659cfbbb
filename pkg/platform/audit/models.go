package audit

import (
	"time"

	id "mintgate/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryFinancial covers events that move tokens or native currency.
	// These require tamper-evident storage and long retention.
	CategoryFinancial EventCategory = "financial"

	// CategorySecurity covers privileged-surface actions (rate changes,
	// root rotations, rescues, pauses).
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and visibility.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Identity  id.Identity
	Action    string
	Amount    uint64
	Round     id.Round
	RequestID string
	// Detail carries action-specific context (unit ID ranges, roots, rates).
	Detail string
}

type AuditEvent string

const (
	// Mint events
	EventUnitsMinted      AuditEvent = "units_minted"
	EventRefundFailed     AuditEvent = "refund_failed"
	EventMintPaused       AuditEvent = "mint_paused"
	EventMintUnpaused     AuditEvent = "mint_unpaused"
	EventProceedsWithdraw AuditEvent = "proceeds_withdrawn"

	// Staking events
	EventStaked            AuditEvent = "staked"
	EventWithdrawn         AuditEvent = "withdrawn"
	EventRewardPaid        AuditEvent = "reward_paid"
	EventRewardRateChanged AuditEvent = "reward_rate_changed"

	// Distributor events
	EventRootRotated AuditEvent = "root_rotated"
	EventClaimed     AuditEvent = "claimed"
	EventRescued     AuditEvent = "rescued"
)
