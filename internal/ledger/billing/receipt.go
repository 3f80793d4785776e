package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/sequence"
	"syntra-ledger/internal/ledger/stock"
	"syntra-ledger/internal/ledger/tax"
)

// ReceiveStock books incoming goods under a GRN number. Receipts carry no tax
// and leave customer balances alone.
func (e *Engine) ReceiveStock(ctx context.Context, req ReceiptRequest) (*models.Document, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	for i, l := range req.Lines {
		if l.UnitCost.IsNegative() {
			return nil, ledger.NewValidationError(fmt.Sprintf("lines[%d].unit_cost", i), "must not be negative")
		}
	}

	date := e.now()
	return e.execute(ctx, models.DocumentTypeReceipt, sequence.SeriesReceipt, date, func(ctx context.Context, tx ledger.Tx, w *workflow) (*models.Document, error) {
		for _, l := range req.Lines {
			if _, err := tx.GetProduct(ctx, l.ProductID); err != nil {
				return nil, err
			}
		}

		w.enter(StageComputingTax)
		doc := &models.Document{
			Series:       sequence.SeriesReceipt,
			DocumentType: models.DocumentTypeReceipt,
			DocumentDate: date,
			Remarks:      optional(req.Remarks),
			CreatedBy:    req.Actor.UserID,
			CreatedAt:    date,
		}
		for _, l := range req.Lines {
			amount := tax.Round(l.UnitCost.Mul(decimal.NewFromInt(l.Quantity)))
			doc.Lines = append(doc.Lines, newLine(l.ProductID, nil, l.Quantity, l.UnitCost, decimal.Zero, amount, tax.Breakdown{}))
		}
		sumTotals(doc)

		w.enter(StageAllocatingNumber)
		number, err := e.sequences.Next(ctx, tx, sequence.SeriesReceipt, date)
		if err != nil {
			return nil, err
		}
		doc.DocumentNumber = number

		w.enter(StageMutatingStock)
		for _, l := range byProduct(doc.Lines) {
			_, err := e.stock.ApplyMovement(ctx, tx, stock.Movement{
				ProductID:            l.ProductID,
				Delta:                l.Quantity,
				UnitCost:             l.UnitPrice,
				OriginDocumentNumber: number,
				Type:                 models.MovementTypeReceipt,
				CreatedBy:            req.Actor.UserID,
			})
			if err != nil {
				return nil, err
			}
		}

		w.enter(StagePersistingTotals)
		if err := tx.CreateDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("create %s: %w", number, err)
		}
		return doc, nil
	})
}
