/*
events.go - Event shaping and the in-process broadcast bus

PURPOSE:
  Every successful mutation emits exactly one structured event, after the
  durable write commits and never on a failed operation. Payloads carry
  the invoice identifier plus the salient changed fields.

TOPICS:
  invoice_created       id, creator, recipient, amount
  invoice_sent          id, creator, recipient
  invoice_acknowledged  id, recipient, note
  invoice_paid          id, creator, recipient, amount, paid_at
  invoice_cancelled     id, creator
  invoice_updated       id, creator, updated_at (edit and metadata update)

SEE ALSO:
  - service.go: Emission points
  - store.go: Publisher contract
*/
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TOPICS
// =============================================================================

const (
	TopicInvoiceCreated      = "invoice_created"
	TopicInvoiceSent         = "invoice_sent"
	TopicInvoiceAcknowledged = "invoice_acknowledged"
	TopicInvoicePaid         = "invoice_paid"
	TopicInvoiceCancelled    = "invoice_cancelled"
	TopicInvoiceUpdated      = "invoice_updated"
)

// =============================================================================
// PAYLOADS
// =============================================================================

type CreatedEvent struct {
	InvoiceID string   `json:"invoice_id"`
	Creator   Identity `json:"creator"`
	Recipient Identity `json:"recipient"`
	Amount    int64    `json:"amount"`
}

type SentEvent struct {
	InvoiceID string   `json:"invoice_id"`
	Creator   Identity `json:"creator"`
	Recipient Identity `json:"recipient"`
}

type AcknowledgedEvent struct {
	InvoiceID string   `json:"invoice_id"`
	Recipient Identity `json:"recipient"`
	Note      string   `json:"note,omitempty"`
}

type PaidEvent struct {
	InvoiceID string    `json:"invoice_id"`
	Creator   Identity  `json:"creator"`
	Recipient Identity  `json:"recipient"`
	Amount    int64     `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
}

type CancelledEvent struct {
	InvoiceID string   `json:"invoice_id"`
	Creator   Identity `json:"creator"`
}

type UpdatedEvent struct {
	InvoiceID string    `json:"invoice_id"`
	Creator   Identity  `json:"creator"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// ENVELOPE + BUS
// =============================================================================

// Event is the envelope handed to subscribers.
type Event struct {
	ID        string
	Topic     string
	EmittedAt time.Time
	Payload   any
}

// Bus is an in-process broadcast Publisher. Subscribers run synchronously
// in registration order; a panicking subscriber is recovered and skipped.
type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
	now  func() time.Time
}

func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers fn for all future events. There is no unsubscribe;
// the bus lives as long as the process.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish broadcasts payload under topic. Subscriber failures are ignored.
func (b *Bus) Publish(topic string, payload any) {
	ev := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		EmittedAt: b.now(),
		Payload:   payload,
	}

	b.mu.RLock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() { _ = recover() }()
			fn(ev)
		}()
	}
}
