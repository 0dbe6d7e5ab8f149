/*
invariants_test.go - Executable invariants of the invoice lifecycle

PURPOSE:
  These tests validate the system-wide properties that must hold after
  every operation, not just individual handler behavior:

  1. Transition-table conformance: status after a sequence of operations
     equals the fold of the table over that sequence, and any operation
     outside its allowed prior statuses is rejected
  2. Idempotence-of-rejection: a rejected operation leaves the record,
     both index lists, and the event log unchanged
  3. Index/record consistency: every indexed ID resolves to a record
     whose creator/recipient matches the indexed identity
  4. amount > 0 for every stored record at every point
  5. paidAt is set if and only if status is Paid

READING THESE TESTS:
  Each test has GIVEN/WHEN/THEN comments explaining the scenario. The
  checkers at the bottom re-derive the invariants from the public query
  surface after every step.
*/
package ledger_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/ledger/store"
	"github.com/warp/invoice-ledger/settlement"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

type world struct {
	svc        *ledger.Service
	events     []ledger.Event
	ids        []string
	identities []ledger.Identity
}

func newWorld(t *testing.T) *world {
	t.Helper()

	w := &world{
		ids:        []string{},
		identities: []ledger.Identity{alice, bob, carol},
	}

	bus := ledger.NewBus()
	bus.Subscribe(func(ev ledger.Event) { w.events = append(w.events, ev) })

	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	clock := ledger.ClockFunc(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	})

	allowAll := ledger.VerifierFunc(func(context.Context, ledger.Identity) error { return nil })
	w.svc = ledger.NewService(store.NewTxMemory(), allowAll, clock, &settlement.Recorder{}, bus)

	if err := w.svc.Initialize(context.Background(), admin, testAsset); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	w.events = nil
	return w
}

// step applies one operation by name. Returns the error, if any.
func (w *world) step(t *testing.T, op ledger.Op, actor ledger.Identity, id string) error {
	t.Helper()
	ctx := context.Background()

	var err error
	switch op {
	case ledger.OpCreate:
		_, err = w.svc.Create(ctx, actor, ledger.CreateInput{ID: id, Recipient: bob, Amount: 100})
		if err == nil {
			w.ids = append(w.ids, id)
		}
	case ledger.OpSend:
		_, err = w.svc.Send(ctx, actor, id)
	case ledger.OpAcknowledge:
		_, err = w.svc.Acknowledge(ctx, actor, id, "noted")
	case ledger.OpPay:
		_, err = w.svc.Pay(ctx, actor, id)
	case ledger.OpCancel:
		_, err = w.svc.Cancel(ctx, actor, id)
	case ledger.OpUpdateMetadata:
		_, err = w.svc.UpdateMetadata(ctx, actor, id, map[string]string{"k": "v"})
	default:
		t.Fatalf("unknown op %s", op)
	}
	return err
}

// =============================================================================
// 1. TRANSITION-TABLE CONFORMANCE
// =============================================================================

func TestTransitionTable_ValidSequencesFold(t *testing.T) {
	// GIVEN: Every valid operation sequence from Draft
	// WHEN: The sequence is applied
	// THEN: The stored status equals the fold of the transition table

	sequences := []struct {
		name  string
		steps []ledger.Op
		want  ledger.Status
	}{
		{"draft only", []ledger.Op{}, ledger.StatusDraft},
		{"send", []ledger.Op{ledger.OpSend}, ledger.StatusSent},
		{"send ack", []ledger.Op{ledger.OpSend, ledger.OpAcknowledge}, ledger.StatusAcknowledged},
		{"send pay", []ledger.Op{ledger.OpSend, ledger.OpPay}, ledger.StatusPaid},
		{"send ack pay", []ledger.Op{ledger.OpSend, ledger.OpAcknowledge, ledger.OpPay}, ledger.StatusPaid},
		{"cancel from draft", []ledger.Op{ledger.OpCancel}, ledger.StatusCancelled},
		{"cancel from sent", []ledger.Op{ledger.OpSend, ledger.OpCancel}, ledger.StatusCancelled},
		{"cancel from acknowledged", []ledger.Op{ledger.OpSend, ledger.OpAcknowledge, ledger.OpCancel}, ledger.StatusCancelled},
	}

	for _, seq := range sequences {
		t.Run(seq.name, func(t *testing.T) {
			w := newWorld(t)
			if err := w.step(t, ledger.OpCreate, alice, "INV-1"); err != nil {
				t.Fatalf("create: %v", err)
			}
			for _, op := range seq.steps {
				actor := alice
				if op == ledger.OpAcknowledge || op == ledger.OpPay {
					actor = bob
				}
				if err := w.step(t, op, actor, "INV-1"); err != nil {
					t.Fatalf("%s: %v", op, err)
				}
			}
			got, err := w.svc.Get(context.Background(), "INV-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != seq.want {
				t.Errorf("status = %s, want %s", got.Status, seq.want)
			}
			w.checkInvariants(t)
		})
	}
}

func TestTransitionTable_InvalidPriorStatusRejected(t *testing.T) {
	// Every (reachable status, operation) pair outside the table must fail.
	cases := []struct {
		name  string
		setup []ledger.Op
		op    ledger.Op
		actor ledger.Identity
	}{
		{"ack on draft", nil, ledger.OpAcknowledge, bob},
		{"pay on draft", nil, ledger.OpPay, bob},
		{"send on sent", []ledger.Op{ledger.OpSend}, ledger.OpSend, alice},
		{"edit on sent", []ledger.Op{ledger.OpSend}, ledger.OpEdit, alice},
		{"ack on acknowledged", []ledger.Op{ledger.OpSend, ledger.OpAcknowledge}, ledger.OpAcknowledge, bob},
		{"send on paid", []ledger.Op{ledger.OpSend, ledger.OpPay}, ledger.OpSend, alice},
		{"cancel on paid", []ledger.Op{ledger.OpSend, ledger.OpPay}, ledger.OpCancel, alice},
		{"metadata on paid", []ledger.Op{ledger.OpSend, ledger.OpPay}, ledger.OpUpdateMetadata, alice},
		{"send on cancelled", []ledger.Op{ledger.OpCancel}, ledger.OpSend, alice},
		{"pay on cancelled", []ledger.Op{ledger.OpCancel}, ledger.OpPay, bob},
		{"cancel on cancelled", []ledger.Op{ledger.OpCancel}, ledger.OpCancel, alice},
		{"metadata on cancelled", []ledger.Op{ledger.OpCancel}, ledger.OpUpdateMetadata, alice},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t)
			if err := w.step(t, ledger.OpCreate, alice, "INV-1"); err != nil {
				t.Fatalf("create: %v", err)
			}
			for _, op := range tc.setup {
				actor := alice
				if op == ledger.OpAcknowledge || op == ledger.OpPay {
					actor = bob
				}
				if err := w.step(t, op, actor, "INV-1"); err != nil {
					t.Fatalf("setup %s: %v", op, err)
				}
			}

			var err error
			if tc.op == ledger.OpEdit {
				amount := int64(7)
				_, err = w.svc.Edit(context.Background(), tc.actor, "INV-1", ledger.EditInput{Amount: &amount})
			} else {
				err = w.step(t, tc.op, tc.actor, "INV-1")
			}
			if err == nil {
				t.Fatalf("%s should have been rejected", tc.op)
			}
			w.checkInvariants(t)
		})
	}
}

// =============================================================================
// 2. IDEMPOTENCE OF REJECTION
// =============================================================================

func TestRejection_LeavesStateUnchanged(t *testing.T) {
	// GIVEN: A sent invoice and a snapshot of record + indexes + event count
	// WHEN: A batch of doomed operations run
	// THEN: The snapshot compares equal afterward

	w := newWorld(t)
	ctx := context.Background()
	if err := w.step(t, ledger.OpCreate, alice, "INV-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.step(t, ledger.OpSend, alice, "INV-1"); err != nil {
		t.Fatalf("send: %v", err)
	}

	before := w.snapshot(t, "INV-1")
	eventsBefore := len(w.events)

	amount := int64(5)
	doomed := []func() error{
		func() error { err := w.step(t, ledger.OpSend, alice, "INV-1"); return err },      // wrong status
		func() error { err := w.step(t, ledger.OpPay, alice, "INV-1"); return err },       // wrong role
		func() error { err := w.step(t, ledger.OpAcknowledge, carol, "INV-1"); return err }, // wrong role
		func() error {
			_, err := w.svc.Edit(ctx, alice, "INV-1", ledger.EditInput{Amount: &amount})
			return err // wrong status
		},
		func() error {
			_, err := w.svc.Create(ctx, alice, ledger.CreateInput{ID: "INV-1", Recipient: carol, Amount: 9})
			return err // duplicate id
		},
	}
	for i, fn := range doomed {
		if err := fn(); err == nil {
			t.Fatalf("doomed operation %d unexpectedly succeeded", i)
		}
	}

	after := w.snapshot(t, "INV-1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rejected operations mutated state:\nbefore: %+v\nafter:  %+v", before, after)
	}
	if len(w.events) != eventsBefore {
		t.Errorf("rejected operations emitted %d events", len(w.events)-eventsBefore)
	}
}

type stateSnapshot struct {
	Record      *ledger.Invoice
	ByCreator   map[ledger.Identity][]string
	ByRecipient map[ledger.Identity][]string
}

func (w *world) snapshot(t *testing.T, id string) stateSnapshot {
	t.Helper()
	ctx := context.Background()

	rec, err := w.svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("snapshot get: %v", err)
	}
	s := stateSnapshot{
		Record:      rec,
		ByCreator:   make(map[ledger.Identity][]string),
		ByRecipient: make(map[ledger.Identity][]string),
	}
	for _, identity := range w.identities {
		created, err := w.svc.ListByCreator(ctx, identity)
		if err != nil {
			t.Fatalf("snapshot creator index: %v", err)
		}
		received, err := w.svc.ListByRecipient(ctx, identity)
		if err != nil {
			t.Fatalf("snapshot recipient index: %v", err)
		}
		s.ByCreator[identity] = created
		s.ByRecipient[identity] = received
	}
	return s
}

// =============================================================================
// 3-5. STANDING INVARIANT CHECKERS
// =============================================================================

// checkInvariants re-derives the standing invariants from the query surface.
func (w *world) checkInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	for _, identity := range w.identities {
		created, err := w.svc.ListByCreator(ctx, identity)
		if err != nil {
			t.Fatalf("creator index for %s: %v", identity, err)
		}
		for _, id := range created {
			inv, err := w.svc.Get(ctx, id)
			if err != nil {
				t.Fatalf("indexed id %s has no record: %v", id, err)
			}
			if inv.Creator != identity {
				t.Errorf("creator index diverged: %s lists %s, record says %s", identity, id, inv.Creator)
			}
		}

		received, err := w.svc.ListByRecipient(ctx, identity)
		if err != nil {
			t.Fatalf("recipient index for %s: %v", identity, err)
		}
		for _, id := range received {
			inv, err := w.svc.Get(ctx, id)
			if err != nil {
				t.Fatalf("indexed id %s has no record: %v", id, err)
			}
			if inv.Recipient != identity {
				t.Errorf("recipient index diverged: %s lists %s, record says %s", identity, id, inv.Recipient)
			}
		}
	}

	for _, id := range w.ids {
		inv, err := w.svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if inv.Amount <= 0 {
			t.Errorf("invoice %s stored with amount %d", id, inv.Amount)
		}
		if (inv.PaidAt != nil) != (inv.Status == ledger.StatusPaid) {
			t.Errorf("invoice %s: paidAt=%v but status=%s", id, inv.PaidAt, inv.Status)
		}
	}
}

func TestInvariants_HoldAcrossMixedSequence(t *testing.T) {
	// GIVEN: A busy ledger with edits, cancellations, and payments
	// THEN: The standing invariants hold after every single step

	w := newWorld(t)
	ctx := context.Background()

	steps := []func() error{
		func() error { return w.step(t, ledger.OpCreate, alice, "A-1") },
		func() error { return w.step(t, ledger.OpCreate, alice, "A-2") },
		func() error { return w.step(t, ledger.OpCreate, carol, "C-1") },
		func() error {
			newRecipient := carol
			_, err := w.svc.Edit(ctx, alice, "A-1", ledger.EditInput{Recipient: &newRecipient})
			return err
		},
		func() error { return w.step(t, ledger.OpSend, alice, "A-2") },
		func() error { return w.step(t, ledger.OpAcknowledge, bob, "A-2") },
		func() error { return w.step(t, ledger.OpPay, bob, "A-2") },
		func() error { return w.step(t, ledger.OpCancel, carol, "C-1") },
		func() error { return w.step(t, ledger.OpUpdateMetadata, alice, "A-1") },
	}

	for i, fn := range steps {
		if err := fn(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		w.checkInvariants(t)
	}
}
