// Package ledger holds the persistence boundary and the error taxonomy shared
// by the tax, sequence, stock, balance and billing packages.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/database/models"
)

// Reader is the read side of the store. Reads outside a transaction see only
// committed state.
type Reader interface {
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	ListMovements(ctx context.Context, productID int64) ([]models.StockMovement, error)
}

// Returned is what earlier returns already took back from one sold line.
type Returned struct {
	Quantity int64
	CGST     decimal.Decimal
	SGST     decimal.Decimal
	IGST     decimal.Decimal
}

// Tx is one atomic unit of work. Lock* methods take a row lock that is held
// until the transaction ends.
type Tx interface {
	Reader

	LockDocument(ctx context.Context, id int64) (*models.Document, error)
	// ReturnedLines sums earlier returns against the original document,
	// keyed by original line id.
	ReturnedLines(ctx context.Context, originalDocumentID int64) (map[int64]Returned, error)
	CreateDocument(ctx context.Context, doc *models.Document) error

	LockProduct(ctx context.Context, id int64) (*models.Product, error)
	SetProductStock(ctx context.Context, id int64, stock int64) error
	AppendMovement(ctx context.Context, m *models.StockMovement) error

	LockCustomer(ctx context.Context, id int64) (*models.Customer, error)
	SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error

	// LockSequence returns the last value of the (series, day) counter and
	// whether the row exists.
	LockSequence(ctx context.Context, series, day string) (int, bool, error)
	SaveSequence(ctx context.Context, series, day string, last int, exists bool) error
	// DocumentNumbers returns the existing numbers carrying the series and
	// day prefix, highest first.
	DocumentNumbers(ctx context.Context, series, day string) ([]string, error)
}

// Store runs fn inside a transaction: every write fn performs becomes durable
// together when fn returns nil, and none of them do otherwise.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
