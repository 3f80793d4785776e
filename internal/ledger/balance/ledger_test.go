package balance

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/store/memory"
)

func TestLedger_ChargeAndRefund(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	cid := s.AddCustomer(models.Customer{CustomerName: "Ravi"})
	l := NewLedger()

	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		next, err := l.Charge(ctx, tx, cid, decimal.RequireFromString("1180"))
		require.NoError(t, err)
		assert.Equal(t, "1180", next.String())

		next, applied, err := l.Refund(ctx, tx, cid, decimal.RequireFromString("472"))
		require.NoError(t, err)
		assert.Equal(t, "708", next.String())
		assert.Equal(t, "472", applied.String())
		return nil
	}))

	got, err := Outstanding(ctx, s, cid)
	require.NoError(t, err)
	assert.Equal(t, "708", got.String())
}

func TestLedger_RefundFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	cid := s.AddCustomer(models.Customer{CustomerName: "Ravi", OutstandingBalance: decimal.RequireFromString("100.50")})
	l := NewLedger()

	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		next, applied, err := l.Refund(ctx, tx, cid, decimal.RequireFromString("407.20"))
		require.NoError(t, err)
		assert.True(t, next.IsZero())
		assert.Equal(t, "100.5", applied.String())
		return nil
	}))

	got, err := Outstanding(ctx, s, cid)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestLedger_Errors(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	cid := s.AddCustomer(models.Customer{CustomerName: "Ravi"})
	l := NewLedger()

	err := s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := l.Charge(ctx, tx, cid, decimal.NewFromInt(-1))
		return err
	})
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)

	err = s.InTx(ctx, func(tx ledger.Tx) error {
		_, _, err := l.Refund(ctx, tx, 77, decimal.NewFromInt(1))
		return err
	})
	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "customer", nf.Entity)
}
