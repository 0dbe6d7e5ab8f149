// Package store provides an in-memory TxStore implementation (for testing/dev).
package store

import (
	"context"
	"sync"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	invoices map[string]*ledger.Invoice
	indexes  map[indexKey][]string
	config   map[ledger.ConfigKey]string
}

type indexKey struct {
	Role     ledger.IndexRole
	Identity ledger.Identity
}

func NewMemory() *Memory {
	return &Memory{
		invoices: make(map[string]*ledger.Invoice),
		indexes:  make(map[indexKey][]string),
		config:   make(map[ledger.ConfigKey]string),
	}
}

func (m *Memory) GetInvoice(_ context.Context, id string) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invoices[id].Clone(), nil
}

func (m *Memory) HasInvoice(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.invoices[id]
	return ok, nil
}

func (m *Memory) PutInvoice(_ context.Context, inv *ledger.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv.Clone()
	return nil
}

func (m *Memory) Index(_ context.Context, role ledger.IndexRole, identity ledger.Identity) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Absent index reads as an empty list.
	ids := m.indexes[indexKey{Role: role, Identity: identity}]
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *Memory) PutIndex(_ context.Context, role ledger.IndexRole, identity ledger.Identity, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]string, len(ids))
	copy(stored, ids)
	m.indexes[indexKey{Role: role, Identity: identity}] = stored
	return nil
}

func (m *Memory) GetConfig(_ context.Context, key ledger.ConfigKey) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.config[key]
	return v, ok, nil
}

func (m *Memory) PutConfig(_ context.Context, key ledger.ConfigKey, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store. For the memory store this is
// simulated with a snapshot + restore on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	invoices := make(map[string]*ledger.Invoice, len(tm.invoices))
	for id, inv := range tm.invoices {
		invoices[id] = inv.Clone()
	}
	indexes := make(map[indexKey][]string, len(tm.indexes))
	for k, ids := range tm.indexes {
		indexes[k] = append([]string{}, ids...)
	}
	config := make(map[ledger.ConfigKey]string, len(tm.config))
	for k, v := range tm.config {
		config[k] = v
	}
	return memorySnapshot{invoices: invoices, indexes: indexes, config: config}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.invoices = s.invoices
	tm.indexes = s.indexes
	tm.config = s.config
}

type memorySnapshot struct {
	invoices map[string]*ledger.Invoice
	indexes  map[indexKey][]string
	config   map[ledger.ConfigKey]string
}
