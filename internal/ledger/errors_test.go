package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&NotFoundError{Entity: "document", ID: 1}, "not_found"},
		{fmt.Errorf("load: %w", &ExcessReturnError{Sold: 10, Requested: 11}), "excess_return"},
		{&InsufficientStockError{Available: 1, Requested: 2}, "insufficient_stock"},
		{&SequenceConflictError{Series: "BRET", Err: Transient(errors.New("deadlock"))}, "sequence_conflict"},
		{NewValidationError("lines", "is required"), "validation"},
		{&DriftError{}, "stock_drift"},
		{Transient(errors.New("lock timeout")), "transient"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestErrorMessagesNameQuantities(t *testing.T) {
	err := &ExcessReturnError{OriginalLineID: 3, ProductID: 9, Sold: 10, AlreadyReturned: 0, Requested: 11}
	assert.Contains(t, err.Error(), "sold 10")
	assert.Contains(t, err.Error(), "requested 11")

	ise := &InsufficientStockError{ProductID: 9, Available: 2, Requested: 5}
	assert.Contains(t, ise.Error(), "available 2")
	assert.Contains(t, ise.Error(), "requested 5")
}

func TestSequenceConflictUnwraps(t *testing.T) {
	err := &SequenceConflictError{Series: "BILL", Day: "20261014", Attempts: 6, Err: Transient(errors.New("40001"))}
	assert.ErrorIs(t, err, ErrTransient)
}
