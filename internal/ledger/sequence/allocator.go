// Package sequence allocates gap-free document numbers of the form
// <series>-<yyyyMMdd>-<seq>, one contiguous sequence per series and day.
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"syntra-ledger/internal/ledger"
)

const (
	SeriesBill    = "BILL"
	SeriesReturn  = "BRET"
	SeriesReceipt = "GRN"

	DayLayout = "20060102"
)

// Counter is the slice of ledger.Tx the allocator needs.
type Counter interface {
	LockSequence(ctx context.Context, series, day string) (int, bool, error)
	SaveSequence(ctx context.Context, series, day string, last int, exists bool) error
	DocumentNumbers(ctx context.Context, series, day string) ([]string, error)
}

// Allocator hands out numbers from a locked counter row. It must run inside
// the caller's transaction: the counter increment commits or rolls back
// together with the document that uses it.
type Allocator struct {
	loc    *time.Location
	logger *slog.Logger
}

func NewAllocator(loc *time.Location, logger *slog.Logger) *Allocator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{loc: loc, logger: logger}
}

// Day returns the business day key for t.
func (a *Allocator) Day(t time.Time) string {
	return t.In(a.loc).Format(DayLayout)
}

func (a *Allocator) Next(ctx context.Context, tx Counter, series string, date time.Time) (string, error) {
	if series == "" || strings.Contains(series, "-") {
		return "", ledger.NewValidationError("series", fmt.Sprintf("invalid series %q", series))
	}
	day := a.Day(date)

	last, exists, err := tx.LockSequence(ctx, series, day)
	if err != nil {
		return "", fmt.Errorf("lock %s/%s counter: %w", series, day, err)
	}

	if !exists {
		last, err = a.seed(ctx, tx, series, day)
		if err != nil {
			return "", err
		}
	}

	next := last + 1
	if err := tx.SaveSequence(ctx, series, day, next, exists); err != nil {
		return "", fmt.Errorf("save %s/%s counter: %w", series, day, err)
	}

	return Format(series, day, next), nil
}

// seed starts a fresh counter from numbers already present for the day, so a
// counter created after documents exist never reissues one of them. Numbers
// that do not parse are skipped.
func (a *Allocator) seed(ctx context.Context, tx Counter, series, day string) (int, error) {
	numbers, err := tx.DocumentNumbers(ctx, series, day)
	if err != nil {
		return 0, fmt.Errorf("read %s numbers: %w", series, err)
	}

	highest := 0
	for _, number := range numbers {
		seq, err := Parse(number, series, day)
		if err != nil {
			a.logger.Warn("skipping malformed document number",
				"series", series, "day", day, "number", number, "error", err)
			continue
		}
		highest = max(highest, seq)
	}
	return highest, nil
}

func Format(series, day string, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", series, day, seq)
}

// Parse extracts the sequence part of a number issued for series and day.
func Parse(number, series, day string) (int, error) {
	prefix := series + "-" + day + "-"
	if !strings.HasPrefix(number, prefix) {
		return 0, fmt.Errorf("number %q does not start with %q", number, prefix)
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, prefix))
	if err != nil {
		return 0, fmt.Errorf("number %q: %w", number, err)
	}
	if seq < 1 {
		return 0, fmt.Errorf("number %q has non-positive sequence", number)
	}
	return seq, nil
}
