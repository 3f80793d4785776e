package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer carries the outstanding balance owed to the shop. The balance is
// never negative and only committed documents change it.
type Customer struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerName       string          `gorm:"type:varchar(128);not null" json:"customer_name"`
	Phone              string          `gorm:"type:varchar(32)" json:"phone"`
	OutstandingBalance decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0;check:outstanding_balance >= 0" json:"outstanding_balance"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
