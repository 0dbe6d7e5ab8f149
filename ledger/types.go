/*
Package ledger implements the invoice lifecycle core.

PURPOSE:
  This package contains the data model, state machine, and query layer for
  invoices recorded on a shared, authenticated ledger. Two mutually
  distrusting parties - a creator (biller) and a recipient (payer) -
  interact only through recorded state transitions.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: The sole mutable entity, keyed by a caller-chosen identifier
  - Status: Lifecycle state (Draft -> Sent -> Acknowledged -> Paid, with
    Cancelled reachable from any non-terminal state)
  - Identity: A verifiable principal (creator, recipient, or admin)
  - IndexRole / ConfigKey: Variant tags for the secondary storage namespaces

DESIGN PRINCIPLES:
  1. Explicit identity: every mutation names its acting identity; nothing
     is inferred from ambient context
  2. Status-guarded transitions: the transition table in service.go is the
     only way status ever changes
  3. Index/record consistency: every index entry points at a record whose
     creator/recipient field matches the indexed identity

SEE ALSO:
  - service.go: Lifecycle state machine and handlers
  - query.go: Read-only views
  - store.go: Storage and collaborator contracts
  - errors.go: Error taxonomy
*/
package ledger

import "time"

// =============================================================================
// IDENTITY
// =============================================================================

// Identity is a verifiable principal address. The core never interprets it;
// it only compares identities and hands them to the Verifier.
type Identity string

// =============================================================================
// STATUS - Lifecycle state
// =============================================================================

type Status string

const (
	StatusDraft        Status = "draft"
	StatusSent         Status = "sent"
	StatusAcknowledged Status = "acknowledged"
	StatusPaid         Status = "paid"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Pending reports whether the invoice is awaiting payment action
// (sent but not yet settled or cancelled).
func (s Status) Pending() bool {
	return s == StatusSent || s == StatusAcknowledged
}

// Valid reports whether s is one of the five lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAcknowledged, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// =============================================================================
// OPERATIONS - Named for error reporting and event topics
// =============================================================================

type Op string

const (
	OpCreate         Op = "create"
	OpEdit           Op = "edit"
	OpSend           Op = "send"
	OpAcknowledge    Op = "acknowledge"
	OpPay            Op = "pay"
	OpCancel         Op = "cancel"
	OpUpdateMetadata Op = "update_metadata"
)

// =============================================================================
// INVOICE - The core entity
// =============================================================================

// Invoice is the canonical record owned by the Store. Index entries are
// back-references by ID only.
type Invoice struct {
	ID        string
	Creator   Identity
	Recipient Identity

	// Amount is a positive integral value in the configured settlement
	// unit. Editable only while the invoice is a Draft.
	Amount int64

	// Metadata is free-form and replaced wholesale on update; there is no
	// partial key mutation.
	Metadata map[string]string

	Status Status

	CreatedAt     time.Time
	LastUpdatedAt time.Time

	// PaidAt is set exactly once, on the Paid transition.
	// Invariant: PaidAt != nil <=> Status == Paid.
	PaidAt *time.Time

	// AcknowledgmentNote is set only on the Acknowledged transition and
	// never cleared afterward.
	AcknowledgmentNote string
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// alias the durable record.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	if inv.Metadata != nil {
		out.Metadata = make(map[string]string, len(inv.Metadata))
		for k, v := range inv.Metadata {
			out.Metadata[k] = v
		}
	}
	if inv.PaidAt != nil {
		t := *inv.PaidAt
		out.PaidAt = &t
	}
	return &out
}

// =============================================================================
// STORAGE NAMESPACE TAGS
// =============================================================================

// IndexRole selects which secondary index an identity is looked up in.
type IndexRole string

const (
	RoleCreator   IndexRole = "creator"
	RoleRecipient IndexRole = "recipient"
)

// ConfigKey names a singleton configuration entry.
type ConfigKey string

const (
	ConfigSettlementAsset ConfigKey = "settlement_asset"
	ConfigAdmin           ConfigKey = "admin"
)
