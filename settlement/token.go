/*
Package settlement implements the ledger.Settler contract.

PURPOSE:
  Moves settlement-asset value from payer to biller when an invoice is
  paid. TokenClient is an in-process token ledger: balances are tracked
  per (asset, identity) in base units using decimal arithmetic, with the
  invoice amount (whole asset units) scaled by the asset's configured
  decimal places.

ATOMICITY:
  Transfer is a single atomic effect: the debit and credit happen under
  one lock, and an insufficient balance fails the call with no change.
  There is no retry; the invoice core surfaces a failed transfer as
  PaymentFailed and aborts the pay operation.

SEE ALSO:
  - ledger/store.go: Settler contract
  - ledger/service.go: The pay handler
*/
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/invoice-ledger/ledger"
)

var (
	// ErrInsufficientFunds is returned when the payer's balance cannot
	// cover the transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidTransfer is returned for a non-positive transfer amount.
	ErrInvalidTransfer = errors.New("transfer amount must be positive")
)

// =============================================================================
// TOKEN CLIENT
// =============================================================================

// TokenClient is an in-process multi-asset token ledger.
type TokenClient struct {
	mu       sync.Mutex
	decimals int32
	balances map[balanceKey]decimal.Decimal
}

type balanceKey struct {
	Asset    string
	Identity ledger.Identity
}

// NewTokenClient creates a client whose assets carry the given number of
// decimal places (e.g. 7 for Stellar-style assets, 6 for USDC).
func NewTokenClient(decimals int32) *TokenClient {
	return &TokenClient{
		decimals: decimals,
		balances: make(map[balanceKey]decimal.Decimal),
	}
}

// Mint credits whole asset units to an identity. Test/dev funding hook.
func (c *TokenClient) Mint(asset string, identity ledger.Identity, units int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := balanceKey{Asset: asset, Identity: identity}
	c.balances[k] = c.balances[k].Add(c.toBase(units))
}

// Balance returns the base-unit balance for an identity.
func (c *TokenClient) Balance(asset string, identity ledger.Identity) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[balanceKey{Asset: asset, Identity: identity}]
}

// Transfer moves amount whole units of asset from one identity to another.
func (c *TokenClient) Transfer(_ context.Context, asset string, from, to ledger.Identity, amount int64) error {
	if amount <= 0 {
		return ErrInvalidTransfer
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	value := c.toBase(amount)
	fromKey := balanceKey{Asset: asset, Identity: from}
	toKey := balanceKey{Asset: asset, Identity: to}

	if c.balances[fromKey].LessThan(value) {
		return fmt.Errorf("%w: %s has %s, needs %s of %s",
			ErrInsufficientFunds, from, c.balances[fromKey], value, asset)
	}

	c.balances[fromKey] = c.balances[fromKey].Sub(value)
	c.balances[toKey] = c.balances[toKey].Add(value)
	return nil
}

// toBase scales whole asset units into base units.
func (c *TokenClient) toBase(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Shift(c.decimals)
}

// =============================================================================
// RECORDER - test double that logs transfers without moving value
// =============================================================================

// Recorder records every transfer and optionally fails them all.
type Recorder struct {
	mu        sync.Mutex
	FailWith  error
	Transfers []RecordedTransfer
}

type RecordedTransfer struct {
	Asset  string
	From   ledger.Identity
	To     ledger.Identity
	Amount int64
}

func (r *Recorder) Transfer(_ context.Context, asset string, from, to ledger.Identity, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.Transfers = append(r.Transfers, RecordedTransfer{Asset: asset, From: from, To: to, Amount: amount})
	return nil
}
