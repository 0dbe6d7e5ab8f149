package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// LIST / JOIN VIEWS
// =============================================================================

func TestQuery_ListsPreserveInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "INV-3", alice, bob, 30)
	f.create(t, "INV-1", alice, bob, 10)
	f.create(t, "INV-2", alice, carol, 20)

	created, err := f.svc.ListByCreator(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-3", "INV-1", "INV-2"}, created, "index order is insertion order, not lexical")

	received, err := f.svc.ListByRecipient(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{"INV-3", "INV-1"}, received)
}

func TestQuery_UnknownIdentity_EmptyLists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids, err := f.svc.ListByCreator(ctx, "GNOBODY")
	require.NoError(t, err)
	assert.Empty(t, ids)

	invs, err := f.svc.InvoicesByRecipient(ctx, "GNOBODY")
	require.NoError(t, err)
	assert.Empty(t, invs)
}

func TestQuery_AllForIdentity(t *testing.T) {
	// GIVEN: Bob created one invoice and received another
	// WHEN: Fetching the combined view
	// THEN: Both sides appear under their keys

	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "OUT-1", bob, carol, 40)
	f.create(t, "IN-1", alice, bob, 100)

	views, err := f.svc.AllForIdentity(ctx, bob)
	require.NoError(t, err)

	require.Len(t, views[ledger.ViewCreated], 1)
	assert.Equal(t, "OUT-1", views[ledger.ViewCreated][0].ID)
	require.Len(t, views[ledger.ViewReceived], 1)
	assert.Equal(t, "IN-1", views[ledger.ViewReceived][0].ID)
}

func TestQuery_PendingFiltersToSentAndAcknowledged(t *testing.T) {
	// GIVEN: Alice has invoices in every status
	// WHEN: Fetching the pending view
	// THEN: Only Sent and Acknowledged invoices appear under awaiting_payment

	f := newFixture(t)
	ctx := context.Background()

	f.create(t, "DRAFT", alice, bob, 10)

	f.create(t, "SENT", alice, bob, 20)
	_, err := f.svc.Send(ctx, alice, "SENT")
	require.NoError(t, err)

	f.create(t, "ACKED", alice, bob, 30)
	_, err = f.svc.Send(ctx, alice, "ACKED")
	require.NoError(t, err)
	_, err = f.svc.Acknowledge(ctx, bob, "ACKED", "")
	require.NoError(t, err)

	f.create(t, "PAID", alice, bob, 40)
	_, err = f.svc.Send(ctx, alice, "PAID")
	require.NoError(t, err)
	_, err = f.svc.Pay(ctx, bob, "PAID")
	require.NoError(t, err)

	f.create(t, "GONE", alice, bob, 50)
	_, err = f.svc.Cancel(ctx, alice, "GONE")
	require.NoError(t, err)

	pending, err := f.svc.PendingForIdentity(ctx, alice)
	require.NoError(t, err)

	var awaiting []string
	for _, inv := range pending[ledger.ViewAwaitingPay] {
		awaiting = append(awaiting, inv.ID)
	}
	assert.Equal(t, []string{"SENT", "ACKED"}, awaiting)

	// Bob sees the same two from the recipient side.
	bobPending, err := f.svc.PendingForIdentity(ctx, bob)
	require.NoError(t, err)
	var action []string
	for _, inv := range bobPending[ledger.ViewPendingAction] {
		action = append(action, inv.ID)
	}
	assert.Equal(t, []string{"SENT", "ACKED"}, action)
}

func TestQuery_JoinSkipsMissingRecords(t *testing.T) {
	// GIVEN: An index entry whose record is missing (simulated divergence)
	// WHEN: Joining index against records
	// THEN: The dangling ID is skipped, not an error

	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "INV-1", alice, bob, 100)

	// Poke a dangling entry straight into the index.
	ids, err := f.store.Index(ctx, ledger.RoleCreator, alice)
	require.NoError(t, err)
	require.NoError(t, f.store.PutIndex(ctx, ledger.RoleCreator, alice, append(ids, "GHOST")))

	invs, err := f.svc.InvoicesByCreator(ctx, alice)
	require.NoError(t, err)
	require.Len(t, invs, 1)
	assert.Equal(t, "INV-1", invs[0].ID)
}

func TestQuery_GetReturnsCopy(t *testing.T) {
	// Mutating a query result must not leak into the stored record.
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, alice, ledger.CreateInput{
		ID: "INV-1", Recipient: bob, Amount: 100,
		Metadata: map[string]string{"memo": "original"},
	})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "INV-1")
	require.NoError(t, err)
	got.Metadata["memo"] = "tampered"
	got.Amount = -1

	again, err := f.svc.Get(ctx, "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Metadata["memo"])
	assert.Equal(t, int64(100), again.Amount)
}
