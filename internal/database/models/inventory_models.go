package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MovementTypeSale    = "SALE"
	MovementTypeReturn  = "RETURN"
	MovementTypeReceipt = "RECEIPT"
)

type Product struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductCode  string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"product_code"`
	ProductName  string          `gorm:"type:varchar(128);not null" json:"product_name"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_price"`
	CostPrice    decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"cost_price"`
	TaxRate      decimal.Decimal `gorm:"type:numeric(6,4);not null" json:"tax_rate"`
	CurrentStock int64           `gorm:"not null;default:0;check:current_stock >= 0" json:"current_stock"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StockMovement is one append-only stock ledger entry.
type StockMovement struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID            int64           `gorm:"index;not null" json:"product_id"`
	MovementType         string          `gorm:"type:varchar(16);not null" json:"movement_type"`
	Quantity             int64           `gorm:"not null" json:"quantity"`
	UnitCost             decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"unit_cost"`
	OriginDocumentNumber string          `gorm:"type:varchar(64);index;not null" json:"origin_document_number"`
	CreatedBy            int64           `gorm:"not null" json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
}
