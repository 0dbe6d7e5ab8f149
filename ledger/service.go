/*
service.go - Invoice lifecycle state machine and handlers

PURPOSE:
  Validates and applies status transitions. This is the only writer in the
  system; every mutation flows through here.

TRANSITION TABLE:
  | Operation      | Caller    | Prior status          | New status   |
  |----------------|-----------|-----------------------|--------------|
  | Create         | creator   | (id absent)           | Draft        |
  | Edit           | creator   | Draft                 | Draft        |
  | Send           | creator   | Draft                 | Sent         |
  | Acknowledge    | recipient | Sent                  | Acknowledged |
  | Pay            | recipient | Sent or Acknowledged  | Paid         |
  | Cancel         | creator   | Draft/Sent/Acknowledged | Cancelled  |
  | UpdateMetadata | creator   | not Paid/Cancelled    | unchanged    |

HANDLER SHAPE:
  Every mutating handler follows the same discipline:
  1. Verify the acting identity (fails closed, per call)
  2. Inside Store.WithTx: load record, check role, check status, apply
     effects, write index lists before the record
  3. After commit: emit exactly one event

  Error ordering: a nonexistent invoice yields NotFound before any role
  check; a role mismatch yields Unauthorized before any status check.

ATOMICITY:
  Record and index writes for one operation commit together or roll back
  together (WithTx). The settlement transfer precedes the record write, so
  a failed transfer can never produce a Paid invoice.

CONCURRENCY:
  A single RWMutex serializes mutating operations, reproducing the host
  model the storage discipline assumes: no two handlers interleave writes
  to the same index list.

SEE ALSO:
  - query.go: Read-only views
  - events.go: Topics and payloads
  - errors.go: Error taxonomy
*/
package ledger

import (
	"context"
	"fmt"
	"sync"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service holds the invoice core and its collaborators.
type Service struct {
	Store   TxStore
	Auth    Verifier
	Clock   Clock
	Settler Settler
	Events  Publisher

	mu sync.RWMutex
}

// NewService wires the core against its collaborators.
func NewService(store TxStore, auth Verifier, clock Clock, settler Settler, events Publisher) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{Store: store, Auth: auth, Clock: clock, Settler: settler, Events: events}
}

func (s *Service) verify(ctx context.Context, identity Identity) error {
	if err := s.Auth.Verify(ctx, identity); err != nil {
		return fmt.Errorf("%w: identity %s: %v", ErrUnauthorized, identity, err)
	}
	return nil
}

// load fetches a record or fails NotFound. Role checks happen after this,
// so a missing invoice is always reported before an authorization mismatch.
func load(ctx context.Context, st Store, id string) (*Invoice, error) {
	inv, err := st.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, &NotFoundError{InvoiceID: id}
	}
	return inv, nil
}

func (s *Service) publish(topic string, payload any) {
	if s.Events != nil {
		s.Events.Publish(topic, payload)
	}
}

// =============================================================================
// INDEX MAINTENANCE
// =============================================================================

func appendIndex(ctx context.Context, st Store, role IndexRole, identity Identity, id string) error {
	ids, err := st.Index(ctx, role, identity)
	if err != nil {
		return err
	}
	return st.PutIndex(ctx, role, identity, append(ids, id))
}

// removeIndex rebuilds the list with id filtered out. Linear, which is fine
// at the per-identity invoice counts this domain sees.
func removeIndex(ctx context.Context, st Store, role IndexRole, identity Identity, id string) error {
	ids, err := st.Index(ctx, role, identity)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return st.PutIndex(ctx, role, identity, kept)
}

// =============================================================================
// INITIALIZATION & ADMIN
// =============================================================================

// Initialize stores the admin identity and settlement asset address.
// Callable once: re-initialization fails with ErrAlreadyInitialized.
// Subsequent asset changes go through UpdateSettlementAsset.
func (s *Service) Initialize(ctx context.Context, admin Identity, settlementAsset string) error {
	if err := s.verify(ctx, admin); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Store.WithTx(ctx, func(st Store) error {
		if _, ok, err := st.GetConfig(ctx, ConfigAdmin); err != nil {
			return err
		} else if ok {
			return ErrAlreadyInitialized
		}
		if err := st.PutConfig(ctx, ConfigAdmin, string(admin)); err != nil {
			return err
		}
		return st.PutConfig(ctx, ConfigSettlementAsset, settlementAsset)
	})
}

// UpdateSettlementAsset replaces the configured settlement asset address.
// The caller must match the stored admin identity.
func (s *Service) UpdateSettlementAsset(ctx context.Context, admin Identity, newAsset string) error {
	if err := s.verify(ctx, admin); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Store.WithTx(ctx, func(st Store) error {
		stored, ok, err := st.GetConfig(ctx, ConfigAdmin)
		if err != nil {
			return err
		}
		if !ok || Identity(stored) != admin {
			return fmt.Errorf("%w: %s is not the admin", ErrUnauthorized, admin)
		}
		return st.PutConfig(ctx, ConfigSettlementAsset, newAsset)
	})
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the caller-chosen identifier and the initial fields.
type CreateInput struct {
	ID        string
	Recipient Identity
	Amount    int64
	Metadata  map[string]string
}

// Create records a new Draft invoice and inserts it into both indexes.
func (s *Service) Create(ctx context.Context, creator Identity, in CreateInput) (*Invoice, error) {
	if err := s.verify(ctx, creator); err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("create invoice %q: %w", in.ID, ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		exists, err := st.HasInvoice(ctx, in.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("invoice %q: %w", in.ID, ErrAlreadyExists)
		}

		now := s.Clock.Now()
		inv := &Invoice{
			ID:            in.ID,
			Creator:       creator,
			Recipient:     in.Recipient,
			Amount:        in.Amount,
			Metadata:      in.Metadata,
			Status:        StatusDraft,
			CreatedAt:     now,
			LastUpdatedAt: now,
		}

		// Index entries land before the record so a reader never finds a
		// record whose role is missing from its index.
		if err := appendIndex(ctx, st, RoleCreator, creator, in.ID); err != nil {
			return err
		}
		if err := appendIndex(ctx, st, RoleRecipient, in.Recipient, in.ID); err != nil {
			return err
		}
		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoiceCreated, CreatedEvent{
		InvoiceID: out.ID,
		Creator:   out.Creator,
		Recipient: out.Recipient,
		Amount:    out.Amount,
	})
	return out.Clone(), nil
}

// =============================================================================
// EDIT
// =============================================================================

// EditInput carries optional replacements. Nil fields are left unchanged.
type EditInput struct {
	Recipient *Identity
	Amount    *int64
	Metadata  map[string]string
}

// Edit mutates a Draft invoice. A recipient change re-indexes the invoice:
// the old recipient's list is rebuilt without the ID, the new recipient's
// list gets it appended.
func (s *Service) Edit(ctx context.Context, creator Identity, id string, in EditInput) (*Invoice, error) {
	if err := s.verify(ctx, creator); err != nil {
		return nil, err
	}
	if in.Amount != nil && *in.Amount <= 0 {
		return nil, fmt.Errorf("edit invoice %q: %w", id, ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		inv, err := load(ctx, st, id)
		if err != nil {
			return err
		}
		if inv.Creator != creator {
			return &RoleError{Op: OpEdit, InvoiceID: id, Caller: creator, Required: RoleCreator}
		}
		if inv.Status != StatusDraft {
			return &TransitionError{Op: OpEdit, InvoiceID: id, Status: inv.Status}
		}

		if in.Recipient != nil && *in.Recipient != inv.Recipient {
			if err := removeIndex(ctx, st, RoleRecipient, inv.Recipient, id); err != nil {
				return err
			}
			if err := appendIndex(ctx, st, RoleRecipient, *in.Recipient, id); err != nil {
				return err
			}
			inv.Recipient = *in.Recipient
		}
		if in.Amount != nil {
			inv.Amount = *in.Amount
		}
		if in.Metadata != nil {
			inv.Metadata = in.Metadata
		}
		inv.LastUpdatedAt = s.Clock.Now()

		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoiceUpdated, UpdatedEvent{
		InvoiceID: out.ID,
		Creator:   out.Creator,
		UpdatedAt: out.LastUpdatedAt,
	})
	return out.Clone(), nil
}

// =============================================================================
// SEND
// =============================================================================

// Send moves a Draft invoice to Sent, freezing recipient and amount.
func (s *Service) Send(ctx context.Context, creator Identity, id string) (*Invoice, error) {
	if err := s.verify(ctx, creator); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		inv, err := load(ctx, st, id)
		if err != nil {
			return err
		}
		if inv.Creator != creator {
			return &RoleError{Op: OpSend, InvoiceID: id, Caller: creator, Required: RoleCreator}
		}
		if inv.Status != StatusDraft {
			return &TransitionError{Op: OpSend, InvoiceID: id, Status: inv.Status}
		}

		inv.Status = StatusSent
		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoiceSent, SentEvent{
		InvoiceID: out.ID,
		Creator:   out.Creator,
		Recipient: out.Recipient,
	})
	return out.Clone(), nil
}

// =============================================================================
// ACKNOWLEDGE
// =============================================================================

// Acknowledge moves a Sent invoice to Acknowledged, storing the optional
// note. The note is never cleared afterward.
func (s *Service) Acknowledge(ctx context.Context, recipient Identity, id, note string) (*Invoice, error) {
	if err := s.verify(ctx, recipient); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		inv, err := load(ctx, st, id)
		if err != nil {
			return err
		}
		if inv.Recipient != recipient {
			return &RoleError{Op: OpAcknowledge, InvoiceID: id, Caller: recipient, Required: RoleRecipient}
		}
		if inv.Status != StatusSent {
			return &TransitionError{Op: OpAcknowledge, InvoiceID: id, Status: inv.Status}
		}

		inv.Status = StatusAcknowledged
		inv.AcknowledgmentNote = note
		inv.LastUpdatedAt = s.Clock.Now()
		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoiceAcknowledged, AcknowledgedEvent{
		InvoiceID: out.ID,
		Recipient: out.Recipient,
		Note:      out.AcknowledgmentNote,
	})
	return out.Clone(), nil
}

// =============================================================================
// PAY
// =============================================================================

// Pay settles a Sent or Acknowledged invoice. The settlement transfer runs
// before the record write: if the transfer fails, the whole operation
// aborts and the status is unchanged.
func (s *Service) Pay(ctx context.Context, recipient Identity, id string) (*Invoice, error) {
	if err := s.verify(ctx, recipient); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		inv, err := load(ctx, st, id)
		if err != nil {
			return err
		}
		if inv.Recipient != recipient {
			return &RoleError{Op: OpPay, InvoiceID: id, Caller: recipient, Required: RoleRecipient}
		}
		switch inv.Status {
		case StatusSent, StatusAcknowledged:
			// payable
		case StatusPaid:
			return fmt.Errorf("invoice %q: %w", id, ErrAlreadyPaid)
		default:
			return &TransitionError{Op: OpPay, InvoiceID: id, Status: inv.Status}
		}

		asset, ok, err := st.GetConfig(ctx, ConfigSettlementAsset)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidToken
		}

		if err := s.Settler.Transfer(ctx, asset, inv.Recipient, inv.Creator, inv.Amount); err != nil {
			return &PaymentError{InvoiceID: id, Cause: err}
		}

		now := s.Clock.Now()
		inv.Status = StatusPaid
		inv.PaidAt = &now
		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoicePaid, PaidEvent{
		InvoiceID: out.ID,
		Creator:   out.Creator,
		Recipient: out.Recipient,
		Amount:    out.Amount,
		PaidAt:    *out.PaidAt,
	})
	return out.Clone(), nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel moves a non-terminal invoice to Cancelled. The record is retained
// for audit; it is never physically deleted.
func (s *Service) Cancel(ctx context.Context, creator Identity, id string) (*Invoice, error) {
	if err := s.verify(ctx, creator); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		inv, err := load(ctx, st, id)
		if err != nil {
			return err
		}
		if inv.Creator != creator {
			return &RoleError{Op: OpCancel, InvoiceID: id, Caller: creator, Required: RoleCreator}
		}
		if inv.Status.Terminal() {
			return &TransitionError{Op: OpCancel, InvoiceID: id, Status: inv.Status}
		}

		inv.Status = StatusCancelled
		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoiceCancelled, CancelledEvent{
		InvoiceID: out.ID,
		Creator:   out.Creator,
	})
	return out.Clone(), nil
}

// =============================================================================
// UPDATE METADATA
// =============================================================================

// UpdateMetadata replaces the metadata map wholesale. Allowed in any
// non-terminal status.
func (s *Service) UpdateMetadata(ctx context.Context, creator Identity, id string, metadata map[string]string) (*Invoice, error) {
	if err := s.verify(ctx, creator); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *Invoice
	err := s.Store.WithTx(ctx, func(st Store) error {
		inv, err := load(ctx, st, id)
		if err != nil {
			return err
		}
		if inv.Creator != creator {
			return &RoleError{Op: OpUpdateMetadata, InvoiceID: id, Caller: creator, Required: RoleCreator}
		}
		if inv.Status.Terminal() {
			return &TransitionError{Op: OpUpdateMetadata, InvoiceID: id, Status: inv.Status}
		}

		inv.Metadata = metadata
		inv.LastUpdatedAt = s.Clock.Now()
		if err := st.PutInvoice(ctx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(TopicInvoiceUpdated, UpdatedEvent{
		InvoiceID: out.ID,
		Creator:   out.Creator,
		UpdatedAt: out.LastUpdatedAt,
	})
	return out.Clone(), nil
}
