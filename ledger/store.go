/*
store.go - Storage and collaborator contracts

PURPOSE:
  Defines the interfaces between the invoice core and its external
  collaborators: the durable store, the authorization gate, the clock,
  the settlement transfer mechanism, and the event sink. The core
  consumes these as narrow interfaces and never implements them.

STORAGE NAMESPACES:
  One durable key space holds three logical namespaces:
  - invoice-by-id records (the canonical entity)
  - creator/recipient ordered ID lists (derived, non-authoritative)
  - singleton configuration entries (settlement asset, admin)

ATOMICITY CONTRACT:
  A single Store call commits atomically, but one logical operation issues
  several writes (record + up to two index lists). TxStore.WithTx bounds
  those writes so they commit together or roll back together; every
  mutating handler in service.go runs inside WithTx.

ABSENT-KEY SEMANTICS:
  - GetInvoice returns (nil, nil) for an absent ID
  - Index returns an empty list for an identity never indexed
  - GetConfig returns ok=false for an unset key

IMPLEMENTATIONS:
  - store/sqlite: Durable SQLite store (production)
  - ledger/store:  In-memory store (tests/dev)

SEE ALSO:
  - service.go: The only writer
  - query.go: Read-only consumers
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// DURABLE STORE
// =============================================================================

// Store is the durable key-value surface the core runs against.
type Store interface {
	// GetInvoice returns the record for id, or (nil, nil) if absent.
	// Returned records are defensive copies.
	GetInvoice(ctx context.Context, id string) (*Invoice, error)

	// HasInvoice reports whether a record exists for id.
	HasInvoice(ctx context.Context, id string) (bool, error)

	// PutInvoice writes the record, replacing any previous value.
	PutInvoice(ctx context.Context, inv *Invoice) error

	// Index returns the ordered invoice ID list for identity under role.
	// An absent index reads as an empty list.
	Index(ctx context.Context, role IndexRole, identity Identity) ([]string, error)

	// PutIndex replaces the ordered ID list for identity under role.
	PutIndex(ctx context.Context, role IndexRole, identity Identity, ids []string) error

	// GetConfig returns a singleton configuration value, ok=false if unset.
	GetConfig(ctx context.Context, key ConfigKey) (value string, ok bool, err error)

	// PutConfig sets a singleton configuration value.
	PutConfig(ctx context.Context, key ConfigKey, value string) error
}

// TxStore wraps Store with transaction support.
// If fn returns an error, every write it issued is rolled back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUTHORIZATION GATE
// =============================================================================

// Verifier checks that an operation's claimed identity consented to the
// call. The contract the core relies on: verification is all-or-nothing,
// re-checked on every call (no session or caching), and fails closed. Any
// verifier failure propagates as ErrUnauthorized without inspection.
type Verifier interface {
	Verify(ctx context.Context, identity Identity) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, identity Identity) error

func (f VerifierFunc) Verify(ctx context.Context, identity Identity) error {
	return f(ctx, identity)
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies ledger timestamps. Monotonic per the host contract.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

// =============================================================================
// SETTLEMENT TRANSFER
// =============================================================================

// Settler moves amount units of the named settlement asset from one
// identity to another. A transfer is a single atomic external effect with
// no internal retry; on error the calling operation aborts entirely.
type Settler interface {
	Transfer(ctx context.Context, asset string, from, to Identity, amount int64) error
}

// =============================================================================
// EVENT SINK
// =============================================================================

// Publisher delivers structured events. Fire-and-forget: the core does not
// await, retry, or react to subscriber failures.
type Publisher interface {
	Publish(topic string, payload any)
}
