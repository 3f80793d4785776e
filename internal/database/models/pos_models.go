package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DocumentTypeSale    = "SALE"
	DocumentTypeReturn  = "RETURN"
	DocumentTypeReceipt = "RECEIPT"
)

// Document is the header of a bill, a bill return or a stock receipt.
// It is immutable once committed; later returns only reference it.
type Document struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentNumber     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"document_number"`
	Series             string    `gorm:"type:varchar(16);not null;index:idx_documents_series_date,priority:1" json:"series"`
	DocumentType       string    `gorm:"type:varchar(16);not null" json:"document_type"`
	DocumentDate       time.Time `gorm:"not null;index:idx_documents_series_date,priority:2" json:"document_date"`
	CustomerID         *int64    `gorm:"index" json:"customer_id,omitempty"`
	OriginalDocumentID *int64    `gorm:"index" json:"original_document_id,omitempty"`
	PaymentMode        string    `gorm:"type:varchar(32)" json:"payment_mode"`
	IsInterState       bool      `gorm:"not null" json:"is_inter_state"`

	Subtotal   decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"subtotal"`
	CGST       decimal.Decimal `gorm:"column:cgst;type:numeric(18,2);not null" json:"cgst"`
	SGST       decimal.Decimal `gorm:"column:sgst;type:numeric(18,2);not null" json:"sgst"`
	IGST       decimal.Decimal `gorm:"column:igst;type:numeric(18,2);not null" json:"igst"`
	GrandTotal decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"grand_total"`

	Reason    *string   `gorm:"type:text" json:"reason,omitempty"`
	Remarks   *string   `gorm:"type:text" json:"remarks,omitempty"`
	CreatedBy int64     `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	Lines []DocumentLine `gorm:"foreignKey:DocumentID" json:"lines"`
}

// TaxTotal is the sum of the three tax components.
func (d Document) TaxTotal() decimal.Decimal {
	return d.CGST.Add(d.SGST).Add(d.IGST)
}

// Line returns the line with the given id.
func (d Document) Line(id int64) (DocumentLine, bool) {
	for _, l := range d.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return DocumentLine{}, false
}

// Clone copies the header and its lines so the copy can be handed out safely.
func (d Document) Clone() Document {
	out := d
	out.Lines = append([]DocumentLine(nil), d.Lines...)
	return out
}

type DocumentLine struct {
	ID             int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID     int64  `gorm:"index;not null" json:"document_id"`
	ProductID      int64  `gorm:"index;not null" json:"product_id"`
	OriginalLineID *int64 `gorm:"index" json:"original_line_id,omitempty"`
	Quantity       int64  `gorm:"not null" json:"quantity"`

	UnitPrice     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	TaxRate       decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"tax_rate"`
	TaxableAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"taxable_amount"`
	CGST          decimal.Decimal `gorm:"column:cgst;type:numeric(18,2);not null" json:"cgst"`
	SGST          decimal.Decimal `gorm:"column:sgst;type:numeric(18,2);not null" json:"sgst"`
	IGST          decimal.Decimal `gorm:"column:igst;type:numeric(18,2);not null" json:"igst"`
	LineTotal     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"line_total"`

	CreatedAt time.Time `json:"created_at"`
}

func (l DocumentLine) TaxTotal() decimal.Decimal {
	return l.CGST.Add(l.SGST).Add(l.IGST)
}

// DocumentSequence is the per (series, day) counter row behind document numbers.
type DocumentSequence struct {
	Series    string `gorm:"type:varchar(16);primaryKey"`
	Day       string `gorm:"type:char(8);primaryKey"`
	LastValue int    `gorm:"not null"`
	UpdatedAt time.Time
}
