// Package balance maintains each customer's outstanding balance.
package balance

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
)

type Writer interface {
	LockCustomer(ctx context.Context, id int64) (*models.Customer, error)
	SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Charge adds amount to the customer's balance and returns the new balance.
func (l *Ledger) Charge(ctx context.Context, tx Writer, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ledger.NewValidationError("amount", "charge must not be negative")
	}
	c, err := tx.LockCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	next := c.OutstandingBalance.Add(amount)
	if err := tx.SetCustomerBalance(ctx, customerID, next); err != nil {
		return decimal.Zero, fmt.Errorf("charge customer %d: %w", customerID, err)
	}
	return next, nil
}

// Refund subtracts amount, flooring the balance at zero. It returns the new
// balance and the part of amount that was actually applied.
func (l *Ledger) Refund(ctx context.Context, tx Writer, customerID int64, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, ledger.NewValidationError("amount", "refund must not be negative")
	}
	c, err := tx.LockCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	applied := decimal.Min(amount, c.OutstandingBalance)
	next := c.OutstandingBalance.Sub(applied)
	if err := tx.SetCustomerBalance(ctx, customerID, next); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("refund customer %d: %w", customerID, err)
	}
	return next, applied, nil
}

type Reader interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
}

func Outstanding(ctx context.Context, r Reader, customerID int64) (decimal.Decimal, error) {
	c, err := r.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.OutstandingBalance, nil
}
