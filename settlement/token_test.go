package settlement_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/settlement"
)

const asset = "USDC:GISSUER"

func TestTokenClient_TransferMovesValue(t *testing.T) {
	c := settlement.NewTokenClient(7)
	c.Mint(asset, "GBOB", 500)

	require.NoError(t, c.Transfer(context.Background(), asset, "GBOB", "GALICE", 120))

	// 120 whole units at 7 decimals = 1_200_000_000 base units.
	assert.True(t, c.Balance(asset, "GALICE").Equal(decimal.NewFromInt(1_200_000_000)))
	assert.True(t, c.Balance(asset, "GBOB").Equal(decimal.NewFromInt(3_800_000_000)))
}

func TestTokenClient_InsufficientFunds(t *testing.T) {
	c := settlement.NewTokenClient(7)
	c.Mint(asset, "GBOB", 50)

	err := c.Transfer(context.Background(), asset, "GBOB", "GALICE", 51)
	require.ErrorIs(t, err, settlement.ErrInsufficientFunds)

	// Neither side moved.
	assert.True(t, c.Balance(asset, "GBOB").Equal(decimal.NewFromInt(500_000_000)))
	assert.True(t, c.Balance(asset, "GALICE").IsZero())
}

func TestTokenClient_ExactBalanceSpendsToZero(t *testing.T) {
	c := settlement.NewTokenClient(7)
	c.Mint(asset, "GBOB", 100)

	require.NoError(t, c.Transfer(context.Background(), asset, "GBOB", "GALICE", 100))
	assert.True(t, c.Balance(asset, "GBOB").IsZero())
}

func TestTokenClient_NonPositiveAmountRejected(t *testing.T) {
	c := settlement.NewTokenClient(7)
	c.Mint(asset, "GBOB", 100)

	assert.ErrorIs(t, c.Transfer(context.Background(), asset, "GBOB", "GALICE", 0), settlement.ErrInvalidTransfer)
	assert.ErrorIs(t, c.Transfer(context.Background(), asset, "GBOB", "GALICE", -5), settlement.ErrInvalidTransfer)
}

func TestTokenClient_AssetsAreIsolated(t *testing.T) {
	c := settlement.NewTokenClient(6)
	c.Mint("USDC:GISSUER", "GBOB", 100)

	err := c.Transfer(context.Background(), "EURC:GISSUER", "GBOB", "GALICE", 10)
	assert.ErrorIs(t, err, settlement.ErrInsufficientFunds)
}

func TestRecorder_CapturesTransfers(t *testing.T) {
	r := &settlement.Recorder{}

	require.NoError(t, r.Transfer(context.Background(), asset, "GBOB", "GALICE", 42))
	require.Len(t, r.Transfers, 1)
	assert.Equal(t, settlement.RecordedTransfer{
		Asset: asset, From: "GBOB", To: "GALICE", Amount: 42,
	}, r.Transfers[0])
}
