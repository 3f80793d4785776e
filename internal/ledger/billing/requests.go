package billing

import "github.com/shopspring/decimal"

// Actor is the user a workflow runs on behalf of. It is recorded on the
// document and every stock movement; the engine never authenticates it.
type Actor struct {
	UserID   int64 `validate:"gt=0"`
	Username string
}

type SaleRequest struct {
	Actor       Actor
	CustomerID  *int64 `validate:"omitempty,gt=0"`
	PaymentMode string `validate:"required,oneof=CASH CARD UPI CREDIT"`
	InterState  bool
	Remarks     string     `validate:"max=500"`
	Lines       []SaleLine `validate:"required,min=1,dive"`
}

type SaleLine struct {
	ProductID int64 `validate:"gt=0"`
	Quantity  int64 `validate:"gt=0"`
	// UnitPrice overrides the product's list price when set.
	UnitPrice *decimal.Decimal
}

type ReturnRequest struct {
	Actor              Actor
	OriginalDocumentID int64 `validate:"gt=0"`
	// PaymentMode is the refund mode; empty means the original's mode.
	PaymentMode string       `validate:"omitempty,oneof=CASH CARD UPI CREDIT"`
	Reason      string       `validate:"max=500"`
	Lines       []ReturnLine `validate:"required,min=1,dive"`
}

type ReturnLine struct {
	OriginalLineID int64 `validate:"gt=0"`
	Quantity       int64 `validate:"gt=0"`
}

type ReceiptRequest struct {
	Actor   Actor
	Remarks string        `validate:"max=500"`
	Lines   []ReceiptLine `validate:"required,min=1,dive"`
}

type ReceiptLine struct {
	ProductID int64 `validate:"gt=0"`
	Quantity  int64 `validate:"gt=0"`
	UnitCost  decimal.Decimal
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
