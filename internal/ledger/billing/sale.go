package billing

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/sequence"
	"syntra-ledger/internal/ledger/stock"
	"syntra-ledger/internal/ledger/tax"
)

// CreateSale bills the requested lines. Stock leaves the shop, the customer
// (when given) is charged the grand total and a BILL number is allocated.
func (e *Engine) CreateSale(ctx context.Context, req SaleRequest) (*models.Document, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}
	for i, l := range req.Lines {
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return nil, ledger.NewValidationError(fmt.Sprintf("lines[%d].unit_price", i), "must not be negative")
		}
	}

	date := e.now()
	return e.execute(ctx, models.DocumentTypeSale, sequence.SeriesBill, date, func(ctx context.Context, tx ledger.Tx, w *workflow) (*models.Document, error) {
		products := make(map[int64]*models.Product, len(req.Lines))
		for _, l := range req.Lines {
			if _, ok := products[l.ProductID]; ok {
				continue
			}
			p, err := tx.GetProduct(ctx, l.ProductID)
			if err != nil {
				return nil, err
			}
			if !p.IsActive {
				return nil, ledger.NewValidationError("product_id", fmt.Sprintf("product %d is inactive", p.ID))
			}
			if err := tax.ValidateRate(p.TaxRate); err != nil {
				return nil, err
			}
			products[p.ID] = p
		}
		if req.CustomerID != nil {
			if _, err := tx.GetCustomer(ctx, *req.CustomerID); err != nil {
				return nil, err
			}
		}

		w.enter(StageComputingTax)
		doc := &models.Document{
			Series:       sequence.SeriesBill,
			DocumentType: models.DocumentTypeSale,
			DocumentDate: date,
			CustomerID:   req.CustomerID,
			PaymentMode:  req.PaymentMode,
			IsInterState: req.InterState,
			Remarks:      optional(req.Remarks),
			CreatedBy:    req.Actor.UserID,
			CreatedAt:    date,
		}
		for _, l := range req.Lines {
			p := products[l.ProductID]
			price := p.UnitPrice
			if l.UnitPrice != nil {
				price = *l.UnitPrice
			}
			taxable := tax.Round(price.Mul(decimal.NewFromInt(l.Quantity)))
			doc.Lines = append(doc.Lines, newLine(p.ID, nil, l.Quantity, price, p.TaxRate, taxable,
				tax.Split(taxable, p.TaxRate, req.InterState)))
		}
		sumTotals(doc)

		w.enter(StageAllocatingNumber)
		number, err := e.sequences.Next(ctx, tx, sequence.SeriesBill, date)
		if err != nil {
			return nil, err
		}
		doc.DocumentNumber = number

		w.enter(StageMutatingStock)
		for _, l := range byProduct(doc.Lines) {
			_, err := e.stock.ApplyMovement(ctx, tx, stock.Movement{
				ProductID:            l.ProductID,
				Delta:                -l.Quantity,
				UnitCost:             products[l.ProductID].CostPrice,
				OriginDocumentNumber: number,
				Type:                 models.MovementTypeSale,
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
			if _, err := e.balances.Charge(ctx, tx, *doc.CustomerID, doc.GrandTotal); err != nil {
				return nil, err
			}
		}
		return doc, nil
	})
}

func newLine(productID int64, originalLineID *int64, qty int64, price, rate, taxable decimal.Decimal, b tax.Breakdown) models.DocumentLine {
	return models.DocumentLine{
		ProductID:      productID,
		OriginalLineID: originalLineID,
		Quantity:       qty,
		UnitPrice:      price,
		TaxRate:        rate,
		TaxableAmount:  taxable,
		CGST:           b.CGST,
		SGST:           b.SGST,
		IGST:           b.IGST,
		LineTotal:      taxable.Add(b.Total()),
	}
}

// sumTotals sets every header total to the exact sum of the line fields.
func sumTotals(doc *models.Document) {
	doc.Subtotal, doc.CGST, doc.SGST, doc.IGST = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range doc.Lines {
		doc.Subtotal = doc.Subtotal.Add(l.TaxableAmount)
		doc.CGST = doc.CGST.Add(l.CGST)
		doc.SGST = doc.SGST.Add(l.SGST)
		doc.IGST = doc.IGST.Add(l.IGST)
	}
	doc.GrandTotal = doc.Subtotal.Add(doc.TaxTotal())
}

// byProduct orders lines by product id so concurrent workflows lock product
// rows in the same order.
func byProduct(lines []models.DocumentLine) []models.DocumentLine {
	out := append([]models.DocumentLine(nil), lines...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
