// query.go - Read-only views composed from the record and index stores.
//
// Queries perform no authorization and no mutation. Joins against the
// record store silently skip any indexed ID whose record is missing,
// defensive against index/record divergence.
package ledger

import "context"

// Combined-view map keys. Values match the wire names downstream
// consumers already depend on.
const (
	ViewCreated       = "created"
	ViewReceived      = "received"
	ViewAwaitingPay   = "awaiting_payment"
	ViewPendingAction = "pending_action"
)

// Get returns the invoice for id, or NotFound.
func (s *Service) Get(ctx context.Context, id string) (*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return load(ctx, s.Store, id)
}

// ListByCreator returns invoice IDs created by identity, insertion order.
func (s *Service) ListByCreator(ctx context.Context, identity Identity) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Store.Index(ctx, RoleCreator, identity)
}

// ListByRecipient returns invoice IDs addressed to identity, insertion order.
func (s *Service) ListByRecipient(ctx context.Context, identity Identity) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Store.Index(ctx, RoleRecipient, identity)
}

// InvoicesByCreator returns full records created by identity.
func (s *Service) InvoicesByCreator(ctx context.Context, identity Identity) ([]*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joinIndex(ctx, RoleCreator, identity)
}

// InvoicesByRecipient returns full records addressed to identity.
func (s *Service) InvoicesByRecipient(ctx context.Context, identity Identity) ([]*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.joinIndex(ctx, RoleRecipient, identity)
}

// AllForIdentity returns both sides for one identity, keyed
// "created" and "received".
func (s *Service) AllForIdentity(ctx context.Context, identity Identity) (map[string][]*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	created, err := s.joinIndex(ctx, RoleCreator, identity)
	if err != nil {
		return nil, err
	}
	received, err := s.joinIndex(ctx, RoleRecipient, identity)
	if err != nil {
		return nil, err
	}
	return map[string][]*Invoice{
		ViewCreated:  created,
		ViewReceived: received,
	}, nil
}

// PendingForIdentity filters both sides down to Sent/Acknowledged, keyed
// "awaiting_payment" (creator's outstanding) and "pending_action"
// (recipient's outstanding).
func (s *Service) PendingForIdentity(ctx context.Context, identity Identity) (map[string][]*Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	created, err := s.joinIndex(ctx, RoleCreator, identity)
	if err != nil {
		return nil, err
	}
	received, err := s.joinIndex(ctx, RoleRecipient, identity)
	if err != nil {
		return nil, err
	}
	return map[string][]*Invoice{
		ViewAwaitingPay:   filterPending(created),
		ViewPendingAction: filterPending(received),
	}, nil
}

// SettlementAsset returns the configured asset address, ok=false if the
// ledger has not been initialized.
func (s *Service) SettlementAsset(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Store.GetConfig(ctx, ConfigSettlementAsset)
}

func (s *Service) joinIndex(ctx context.Context, role IndexRole, identity Identity) ([]*Invoice, error) {
	ids, err := s.Store.Index(ctx, role, identity)
	if err != nil {
		return nil, err
	}
	out := make([]*Invoice, 0, len(ids))
	for _, id := range ids {
		inv, err := s.Store.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			continue // index/record divergence: skip, don't fail
		}
		out = append(out, inv)
	}
	return out, nil
}

func filterPending(invs []*Invoice) []*Invoice {
	out := make([]*Invoice, 0, len(invs))
	for _, inv := range invs {
		if inv.Status.Pending() {
			out = append(out, inv)
		}
	}
	return out
}
