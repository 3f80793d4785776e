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

// CreateReturn takes goods back against a committed sale. Prices and tax are
// pinned to the original lines and the original's jurisdiction; current
// product rates are never consulted.
func (e *Engine) CreateReturn(ctx context.Context, req ReturnRequest) (*models.Document, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	date := e.now()
	return e.execute(ctx, models.DocumentTypeReturn, sequence.SeriesReturn, date, func(ctx context.Context, tx ledger.Tx, w *workflow) (*models.Document, error) {
		original, err := tx.LockDocument(ctx, req.OriginalDocumentID)
		if err != nil {
			return nil, err
		}
		if original.DocumentType != models.DocumentTypeSale {
			return nil, ledger.NewValidationError("original_document_id",
				fmt.Sprintf("%s is a %s document, only sales can be returned", original.DocumentNumber, original.DocumentType))
		}

		returned, err := tx.ReturnedLines(ctx, original.ID)
		if err != nil {
			return nil, fmt.Errorf("load returns of %s: %w", original.DocumentNumber, err)
		}

		type match struct {
			orig models.DocumentLine
			qty  int64
		}
		matches := make([]match, 0, len(req.Lines))
		pending := make(map[int64]int64, len(req.Lines))
		for _, rl := range req.Lines {
			orig, ok := original.Line(rl.OriginalLineID)
			if !ok {
				if e.cfg.StrictReturnLines {
					return nil, &ledger.NotFoundError{Entity: "document line", ID: rl.OriginalLineID}
				}
				w.logger.Warn("return line does not match the original document, skipping",
					"original_document", original.DocumentNumber, "original_line_id", rl.OriginalLineID, "quantity", rl.Quantity)
				continue
			}

			already := returned[orig.ID].Quantity + pending[orig.ID]
			if already+rl.Quantity > orig.Quantity {
				return nil, &ledger.ExcessReturnError{
					OriginalLineID:  orig.ID,
					ProductID:       orig.ProductID,
					Sold:            orig.Quantity,
					AlreadyReturned: already,
					Requested:       rl.Quantity,
				}
			}
			pending[orig.ID] += rl.Quantity
			matches = append(matches, match{orig: orig, qty: rl.Quantity})
		}
		if len(matches) == 0 {
			return nil, ledger.NewValidationError("lines", "no requested line matches "+original.DocumentNumber)
		}

		products := make(map[int64]*models.Product, len(matches))
		for _, m := range matches {
			if _, ok := products[m.orig.ProductID]; ok {
				continue
			}
			p, err := tx.GetProduct(ctx, m.orig.ProductID)
			if err != nil {
				return nil, err
			}
			products[p.ID] = p
		}

		w.enter(StageComputingTax)
		paymentMode := req.PaymentMode
		if paymentMode == "" {
			paymentMode = original.PaymentMode
		}
		originalID := original.ID
		doc := &models.Document{
			Series:             sequence.SeriesReturn,
			DocumentType:       models.DocumentTypeReturn,
			DocumentDate:       date,
			CustomerID:         original.CustomerID,
			OriginalDocumentID: &originalID,
			PaymentMode:        paymentMode,
			IsInterState:       original.IsInterState,
			Reason:             optional(req.Reason),
			CreatedBy:          req.Actor.UserID,
			CreatedAt:          date,
		}
		for _, m := range matches {
			amount := tax.Round(m.orig.UnitPrice.Mul(decimal.NewFromInt(m.qty)))
			b := returnTax(m.orig, m.qty, returned[m.orig.ID], original.IsInterState)
			r := returned[m.orig.ID]
			r.Quantity += m.qty
			r.CGST, r.SGST, r.IGST = r.CGST.Add(b.CGST), r.SGST.Add(b.SGST), r.IGST.Add(b.IGST)
			returned[m.orig.ID] = r

			lineID := m.orig.ID
			doc.Lines = append(doc.Lines, newLine(m.orig.ProductID, &lineID, m.qty, m.orig.UnitPrice, m.orig.TaxRate, amount, b))
		}
		sumTotals(doc)

		w.enter(StageAllocatingNumber)
		number, err := e.sequences.Next(ctx, tx, sequence.SeriesReturn, date)
		if err != nil {
			return nil, err
		}
		doc.DocumentNumber = number

		w.enter(StageMutatingStock)
		for _, l := range byProduct(doc.Lines) {
			_, err := e.stock.ApplyMovement(ctx, tx, stock.Movement{
				ProductID:            l.ProductID,
				Delta:                l.Quantity,
				UnitCost:             products[l.ProductID].CostPrice,
				OriginDocumentNumber: number,
				Type:                 models.MovementTypeReturn,
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
		if doc.CustomerID != nil {
			if _, _, err := e.balances.Refund(ctx, tx, *doc.CustomerID, doc.GrandTotal); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

// returnTax is the tax refunded for qty units of orig after earlier returns
// took back taken. The return that completes the line refunds the exact
// remainder; no component ever exceeds what is left of it.
func returnTax(orig models.DocumentLine, qty int64, taken ledger.Returned, interState bool) tax.Breakdown {
	left := tax.Breakdown{
		CGST: decimal.Max(orig.CGST.Sub(taken.CGST), decimal.Zero),
		SGST: decimal.Max(orig.SGST.Sub(taken.SGST), decimal.Zero),
		IGST: decimal.Max(orig.IGST.Sub(taken.IGST), decimal.Zero),
	}
	if taken.Quantity+qty >= orig.Quantity {
		return left
	}

	lineTax := orig.TaxTotal().Mul(decimal.NewFromInt(qty)).Div(decimal.NewFromInt(orig.Quantity))
	b := tax.Apportion(lineTax, interState)
	return tax.Breakdown{
		CGST: decimal.Min(b.CGST, left.CGST),
		SGST: decimal.Min(b.SGST, left.SGST),
		IGST: decimal.Min(b.IGST, left.IGST),
	}
}
