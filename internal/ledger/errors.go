package ledger

import (
	"errors"
	"fmt"
)

// ErrTransient marks storage conflicts that are safe to retry: lock
// contention, deadlocks, serialization failures and counter-row races.
// Stores wrap it; the billing workflow retries on it.
var ErrTransient = errors.New("transient storage conflict")

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

type ExcessReturnError struct {
	OriginalLineID  int64
	ProductID       int64
	Sold            int64
	AlreadyReturned int64
	Requested       int64
}

func (e *ExcessReturnError) Error() string {
	return fmt.Sprintf("return exceeds sold quantity for line %d (product %d): sold %d, already returned %d, requested %d",
		e.OriginalLineID, e.ProductID, e.Sold, e.AlreadyReturned, e.Requested)
}

type InsufficientStockError struct {
	ProductID int64
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// SequenceConflictError is returned when a workflow kept losing transient
// conflicts until its retry budget ran out.
type SequenceConflictError struct {
	Series   string
	Day      string
	Attempts int
	Err      error
}

func (e *SequenceConflictError) Error() string {
	return fmt.Sprintf("could not allocate %s number for %s after %d attempts: %v", e.Series, e.Day, e.Attempts, e.Err)
}

func (e *SequenceConflictError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// DriftError reports a product whose cached stock counter disagrees with the
// sum of its ledger movements.
type DriftError struct {
	ProductID    int64
	CurrentStock int64
	LedgerSum    int64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("stock drift on product %d: counter %d, ledger %d", e.ProductID, e.CurrentStock, e.LedgerSum)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// Error kinds returned by Kind.
const (
	KindNotFound          = "not_found"
	KindExcessReturn      = "excess_return"
	KindInsufficientStock = "insufficient_stock"
	KindSequenceConflict  = "sequence_conflict"
	KindValidation        = "validation"
	KindStockDrift        = "stock_drift"
	KindTransient         = "transient"
	KindInternal          = "internal"
)

// Kind names the taxonomy bucket of err, for metrics labels and API codes.
func Kind(err error) string {
	var (
		nf    *NotFoundError
		er    *ExcessReturnError
		is    *InsufficientStockError
		sc    *SequenceConflictError
		ve    *ValidationError
		drift *DriftError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &sc):
		return KindSequenceConflict
	case errors.As(err, &nf):
		return KindNotFound
	case errors.As(err, &er):
		return KindExcessReturn
	case errors.As(err, &is):
		return KindInsufficientStock
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &drift):
		return KindStockDrift
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}
