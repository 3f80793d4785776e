package billing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
)

// returnOneByOne sells qty units at price and returns them one unit at a
// time, returning the sale and every return document.
func returnOneByOne(t *testing.T, f *fixture, qty int64, price string) (*models.Document, []*models.Document) {
	t.Helper()
	p := dec(price)
	sale, err := f.engine.CreateSale(context.Background(), SaleRequest{
		Actor:       cashier,
		CustomerID:  &f.customer,
		PaymentMode: "CREDIT",
		Lines:       []SaleLine{{ProductID: f.product, Quantity: qty, UnitPrice: &p}},
	})
	require.NoError(t, err)

	var returns []*models.Document
	for i := int64(0); i < qty; i++ {
		ret, err := f.engine.CreateReturn(context.Background(), ReturnRequest{
			Actor:              cashier,
			OriginalDocumentID: sale.ID,
			Lines:              []ReturnLine{{OriginalLineID: sale.Lines[0].ID, Quantity: 1}},
		})
		require.NoError(t, err)
		returns = append(returns, ret)
	}
	return sale, returns
}

func TestCreateReturn_PartialReturnsRefundExactlyTheSaleTax(t *testing.T) {
	tests := []struct {
		name  string
		qty   int64
		price string
		// per return CGST (and SGST) refunds
		want []string
	}{
		// 0.57 * 0.18 = 0.1026, 0.05 per half. One unit is 0.0167 per half.
		{"three units", 3, "0.19", []string{"0.02", "0.02", "0.01"}},
		// 0.50 * 0.18 = 0.09, 0.05 per half. One unit is 0.005 per half,
		// which rounds up to 0.01 until the line's tax is used up.
		{"ten units", 10, "0.05", []string{"0.01", "0.01", "0.01", "0.01", "0.01", "0", "0", "0", "0", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			sale, returns := returnOneByOne(t, f, tt.qty, tt.price)

			cgst, sgst, grand := decimal.Zero, decimal.Zero, decimal.Zero
			for i, ret := range returns {
				assertDec(t, tt.want[i], ret.CGST, "return %d", i+1)
				cgst = cgst.Add(ret.CGST)
				sgst = sgst.Add(ret.SGST)
				grand = grand.Add(ret.GrandTotal)
			}
			assert.True(t, cgst.Equal(sale.CGST), "refunded CGST %s, sold %s", cgst, sale.CGST)
			assert.True(t, sgst.Equal(sale.SGST), "refunded SGST %s, sold %s", sgst, sale.SGST)
			assert.True(t, grand.Equal(sale.GrandTotal), "refunded %s, billed %s", grand, sale.GrandTotal)
			assert.True(t, f.balance(t).IsZero())
			assert.EqualValues(t, 50, f.stock(t))
		})
	}
}

func TestCreateReturn_DuplicateLinesShareTheRemainder(t *testing.T) {
	f := newFixture(t, Config{})
	price := dec("0.19")
	sale, err := f.engine.CreateSale(context.Background(), SaleRequest{
		Actor:       cashier,
		PaymentMode: "CASH",
		Lines:       []SaleLine{{ProductID: f.product, Quantity: 3, UnitPrice: &price}},
	})
	require.NoError(t, err)

	lineID := sale.Lines[0].ID
	ret, err := f.engine.CreateReturn(context.Background(), ReturnRequest{
		Actor:              cashier,
		OriginalDocumentID: sale.ID,
		Lines:              []ReturnLine{{OriginalLineID: lineID, Quantity: 1}, {OriginalLineID: lineID, Quantity: 1}, {OriginalLineID: lineID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, ret.TaxTotal().Equal(sale.TaxTotal()), "refunded %s, collected %s", ret.TaxTotal(), sale.TaxTotal())
}

func TestReturnTax(t *testing.T) {
	orig := models.DocumentLine{
		ID:       1,
		Quantity: 3,
		CGST:     dec("0.05"),
		SGST:     dec("0.05"),
	}

	tests := []struct {
		name  string
		qty   int64
		taken ledger.Returned
		want  string
	}{
		{"first unit is proportional", 1, ledger.Returned{}, "0.02"},
		{"whole line at once", 3, ledger.Returned{}, "0.05"},
		{"proportional share capped by what is left", 1, ledger.Returned{Quantity: 1, CGST: dec("0.04"), SGST: dec("0.04")}, "0.01"},
		{"last unit gets the remainder", 1, ledger.Returned{Quantity: 2, CGST: dec("0.04"), SGST: dec("0.04")}, "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := returnTax(orig, tt.qty, tt.taken, false)
			assertDec(t, tt.want, b.CGST)
			assertDec(t, tt.want, b.SGST)
			assert.True(t, b.IGST.IsZero())
		})
	}
}
