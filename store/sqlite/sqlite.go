/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Durable storage for invoice records, the creator/recipient indexes, and
  the singleton configuration entries. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  invoices:      Canonical invoice records, one row per ID
  invoice_index: Ordered (role, identity) -> invoice ID lists
  config:        Singleton configuration entries (settlement asset, admin)

ATOMICITY:
  One lifecycle operation writes the record plus up to two index lists.
  WithTx wraps those writes in a single database transaction, so a failed
  handler leaves no partial write behind.

INDEX ORDER:
  invoice_index keeps an explicit seq column. PutIndex rewrites the whole
  list for one (role, identity), which preserves insertion order and keeps
  the linear-rebuild removal the edit handler uses trivially correct.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/invoices.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store, verifier, clock, settler, bus)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/invoice-ledger/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		creator TEXT NOT NULL,
		recipient TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		metadata TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_updated_at INTEGER NOT NULL,
		paid_at INTEGER,
		acknowledgment_note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS invoice_index (
		role TEXT NOT NULL,
		identity TEXT NOT NULL,
		seq INTEGER NOT NULL,
		invoice_id TEXT NOT NULL,
		PRIMARY KEY (role, identity, seq)
	);

	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERYER - shared between *sql.DB and *sql.Tx paths
// =============================================================================

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getInvoice(ctx context.Context, q queryer, id string) (*ledger.Invoice, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, creator, recipient, amount, metadata, status,
		       created_at, last_updated_at, paid_at, acknowledgment_note
		FROM invoices WHERE id = ?`, id)

	var (
		inv      ledger.Invoice
		metadata string
		status   string
		created  int64
		updated  int64
		paidAt   sql.NullInt64
	)
	err := row.Scan(&inv.ID, &inv.Creator, &inv.Recipient, &inv.Amount,
		&metadata, &status, &created, &updated, &paidAt, &inv.AcknowledgmentNote)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %q: %w", id, err)
	}

	inv.Status = ledger.Status(status)
	inv.CreatedAt = time.Unix(created, 0).UTC()
	inv.LastUpdatedAt = time.Unix(updated, 0).UTC()
	if paidAt.Valid {
		t := time.Unix(paidAt.Int64, 0).UTC()
		inv.PaidAt = &t
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &inv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %q: %w", id, err)
		}
	}
	return &inv, nil
}

func hasInvoice(ctx context.Context, q queryer, id string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM invoices WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice %q: %w", id, err)
	}
	return n > 0, nil
}

func putInvoice(ctx context.Context, q queryer, inv *ledger.Invoice) error {
	metadata := "{}"
	if inv.Metadata != nil {
		raw, err := json.Marshal(inv.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %q: %w", inv.ID, err)
		}
		metadata = string(raw)
	}

	var paidAt sql.NullInt64
	if inv.PaidAt != nil {
		paidAt = sql.NullInt64{Int64: inv.PaidAt.Unix(), Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices
			(id, creator, recipient, amount, metadata, status,
			 created_at, last_updated_at, paid_at, acknowledgment_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			creator = excluded.creator,
			recipient = excluded.recipient,
			amount = excluded.amount,
			metadata = excluded.metadata,
			status = excluded.status,
			created_at = excluded.created_at,
			last_updated_at = excluded.last_updated_at,
			paid_at = excluded.paid_at,
			acknowledgment_note = excluded.acknowledgment_note`,
		inv.ID, inv.Creator, inv.Recipient, inv.Amount, metadata, inv.Status,
		inv.CreatedAt.Unix(), inv.LastUpdatedAt.Unix(), paidAt, inv.AcknowledgmentNote)
	if err != nil {
		return fmt.Errorf("failed to write invoice %q: %w", inv.ID, err)
	}
	return nil
}

func loadIndex(ctx context.Context, q queryer, role ledger.IndexRole, identity ledger.Identity) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT invoice_id FROM invoice_index
		WHERE role = ? AND identity = ?
		ORDER BY seq`, role, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s index for %s: %w", role, identity, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func storeIndex(ctx context.Context, q queryer, role ledger.IndexRole, identity ledger.Identity, ids []string) error {
	if _, err := q.ExecContext(ctx, `
		DELETE FROM invoice_index WHERE role = ? AND identity = ?`, role, identity); err != nil {
		return fmt.Errorf("failed to clear %s index for %s: %w", role, identity, err)
	}
	for seq, id := range ids {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO invoice_index (role, identity, seq, invoice_id)
			VALUES (?, ?, ?, ?)`, role, identity, seq, id); err != nil {
			return fmt.Errorf("failed to write %s index for %s: %w", role, identity, err)
		}
	}
	return nil
}

func getConfig(ctx context.Context, q queryer, key ledger.ConfigKey) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load config %q: %w", key, err)
	}
	return value, true, nil
}

func putConfig(ctx context.Context, q queryer, key ledger.ConfigKey, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write config %q: %w", key, err)
	}
	return nil
}

// =============================================================================
// STORE METHODS (autocommit path)
// =============================================================================

func (s *Store) GetInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	return getInvoice(ctx, s.db, id)
}

func (s *Store) HasInvoice(ctx context.Context, id string) (bool, error) {
	return hasInvoice(ctx, s.db, id)
}

func (s *Store) PutInvoice(ctx context.Context, inv *ledger.Invoice) error {
	return putInvoice(ctx, s.db, inv)
}

func (s *Store) Index(ctx context.Context, role ledger.IndexRole, identity ledger.Identity) ([]string, error) {
	return loadIndex(ctx, s.db, role, identity)
}

func (s *Store) PutIndex(ctx context.Context, role ledger.IndexRole, identity ledger.Identity, ids []string) error {
	return storeIndex(ctx, s.db, role, identity, ids)
}

func (s *Store) GetConfig(ctx context.Context, key ledger.ConfigKey) (string, bool, error) {
	return getConfig(ctx, s.db, key)
}

func (s *Store) PutConfig(ctx context.Context, key ledger.ConfigKey, value string) error {
	return putConfig(ctx, s.db, key, value)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	return getInvoice(ctx, ts.tx, id)
}

func (ts *txStore) HasInvoice(ctx context.Context, id string) (bool, error) {
	return hasInvoice(ctx, ts.tx, id)
}

func (ts *txStore) PutInvoice(ctx context.Context, inv *ledger.Invoice) error {
	return putInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) Index(ctx context.Context, role ledger.IndexRole, identity ledger.Identity) ([]string, error) {
	return loadIndex(ctx, ts.tx, role, identity)
}

func (ts *txStore) PutIndex(ctx context.Context, role ledger.IndexRole, identity ledger.Identity, ids []string) error {
	return storeIndex(ctx, ts.tx, role, identity, ids)
}

func (ts *txStore) GetConfig(ctx context.Context, key ledger.ConfigKey) (string, bool, error) {
	return getConfig(ctx, ts.tx, key)
}

func (ts *txStore) PutConfig(ctx context.Context, key ledger.ConfigKey, value string) error {
	return putConfig(ctx, ts.tx, key, value)
}
