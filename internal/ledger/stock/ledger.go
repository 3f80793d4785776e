// Package stock applies movements to the append-only stock ledger and keeps
// each product's cached counter equal to the sum of its movements.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
)

// Writer is the slice of ledger.Tx a movement write needs.
type Writer interface {
	LockProduct(ctx context.Context, id int64) (*models.Product, error)
	SetProductStock(ctx context.Context, id int64, stock int64) error
	AppendMovement(ctx context.Context, m *models.StockMovement) error
}

type Reader interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListMovements(ctx context.Context, productID int64) ([]models.StockMovement, error)
}

type Movement struct {
	ProductID            int64
	Delta                int64
	UnitCost             decimal.Decimal
	OriginDocumentNumber string
	Type                 string
	CreatedBy            int64
}

type Ledger struct {
	now func() time.Time
}

func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// ApplyMovement locks the product, checks the resulting level and writes the
// counter and exactly one ledger row inside tx. Only decreasing movements can
// fail the stock check.
func (l *Ledger) ApplyMovement(ctx context.Context, tx Writer, m Movement) (int64, error) {
	if m.Delta == 0 {
		return 0, ledger.NewValidationError("quantity", "movement must not be zero")
	}
	if m.OriginDocumentNumber == "" {
		return 0, ledger.NewValidationError("origin_document_number", "is required")
	}
	if m.UnitCost.IsNegative() {
		return 0, ledger.NewValidationError("unit_cost", "must not be negative")
	}

	product, err := tx.LockProduct(ctx, m.ProductID)
	if err != nil {
		return 0, err
	}

	level := product.CurrentStock + m.Delta
	if m.Delta < 0 && level < 0 {
		return 0, &ledger.InsufficientStockError{
			ProductID: m.ProductID,
			Available: product.CurrentStock,
			Requested: -m.Delta,
		}
	}

	if err := tx.SetProductStock(ctx, m.ProductID, level); err != nil {
		return 0, fmt.Errorf("update stock of product %d: %w", m.ProductID, err)
	}

	entry := &models.StockMovement{
		ProductID:            m.ProductID,
		MovementType:         m.Type,
		Quantity:             m.Delta,
		UnitCost:             m.UnitCost,
		OriginDocumentNumber: m.OriginDocumentNumber,
		CreatedBy:            m.CreatedBy,
		CreatedAt:            l.now(),
	}
	if err := tx.AppendMovement(ctx, entry); err != nil {
		return 0, fmt.Errorf("append movement for product %d: %w", m.ProductID, err)
	}

	return level, nil
}

func CurrentStock(ctx context.Context, r Reader, productID int64) (int64, error) {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.CurrentStock, nil
}

// LedgerSum is the signed sum of every movement of the product.
func LedgerSum(ctx context.Context, r Reader, productID int64) (int64, error) {
	movements, err := r.ListMovements(ctx, productID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, m := range movements {
		sum += m.Quantity
	}
	return sum, nil
}

// Reconcile returns a *ledger.DriftError when the counter and the ledger
// disagree.
func Reconcile(ctx context.Context, r Reader, productID int64) error {
	current, err := CurrentStock(ctx, r, productID)
	if err != nil {
		return err
	}
	sum, err := LedgerSum(ctx, r, productID)
	if err != nil {
		return err
	}
	if current != sum {
		return &ledger.DriftError{ProductID: productID, CurrentStock: current, LedgerSum: sum}
	}
	return nil
}
