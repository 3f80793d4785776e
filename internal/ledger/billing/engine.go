// Package billing runs the sale, return and stock-receipt workflows. Each
// workflow validates, computes tax, allocates a document number, writes stock
// movements, adjusts the customer balance and persists the document inside a
// single store transaction.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
	"syntra-ledger/internal/ledger/balance"
	"syntra-ledger/internal/ledger/sequence"
	"syntra-ledger/internal/ledger/stock"
)

type Stage string

const (
	StageValidating       Stage = "validating"
	StageComputingTax     Stage = "computing_tax"
	StageAllocatingNumber Stage = "allocating_number"
	StageMutatingStock    Stage = "mutating_stock"
	StagePersistingTotals Stage = "persisting_totals"
	StageCommitted        Stage = "committed"
	StageAborted          Stage = "aborted"
)

type Config struct {
	// Location decides which calendar day a document number belongs to.
	Location             *time.Location
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// StrictReturnLines fails a return that names a line missing from the
	// original document instead of skipping it.
	StrictReturnLines bool
}

func DefaultConfig() Config {
	return Config{
		Location:             time.UTC,
		MaxRetries:           5,
		RetryInitialInterval: 25 * time.Millisecond,
		RetryMaxInterval:     500 * time.Millisecond,
	}
}

// Notifier receives a copy of every committed document. Its errors are logged
// and never undo the commit.
type Notifier interface {
	DocumentCommitted(ctx context.Context, doc models.Document) error
}

type NotifierFunc func(ctx context.Context, doc models.Document) error

func (f NotifierFunc) DocumentCommitted(ctx context.Context, doc models.Document) error {
	return f(ctx, doc)
}

type Engine struct {
	store     ledger.Store
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	validate  *validator.Validate
	sequences *sequence.Allocator
	stock     *stock.Ledger
	balances  *balance.Ledger
	notifiers []Notifier
	metrics   *Metrics
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithNotifiers(n ...Notifier) Option {
	return func(e *Engine) { e.notifiers = append(e.notifiers, n...) }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(store ledger.Store, cfg Config, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultConfig().RetryInitialInterval
	}
	if cfg.RetryMaxInterval < cfg.RetryInitialInterval {
		cfg.RetryMaxInterval = cfg.RetryInitialInterval
	}

	e := &Engine{
		store:    store,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		validate: validator.New(),
		balances: balance.NewLedger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "billing")
	e.sequences = sequence.NewAllocator(cfg.Location, e.logger)
	e.stock = stock.NewLedger(e.now)
	return e
}

// workflow tracks the stage of one invocation for logs and metrics.
type workflow struct {
	kind   string
	stage  Stage
	logger *slog.Logger
}

func (w *workflow) enter(s Stage) {
	w.stage = s
	w.logger.Debug("workflow stage", "stage", s)
}

type step func(ctx context.Context, tx ledger.Tx, w *workflow) (*models.Document, error)

// execute runs fn in a transaction, retrying the whole transaction on
// transient storage conflicts. Every other error aborts at once and is
// returned unchanged.
func (e *Engine) execute(ctx context.Context, kind, series string, date time.Time, fn step) (*models.Document, error) {
	w := &workflow{kind: kind, logger: e.logger.With("document_type", kind)}

	var (
		doc      *models.Document
		attempts int
	)
	op := func() error {
		attempts++
		w.enter(StageValidating)
		err := e.store.InTx(ctx, func(tx ledger.Tx) error {
			d, err := fn(ctx, tx, w)
			if err != nil {
				return err
			}
			doc = d
			return nil
		})
		if err == nil || errors.Is(err, ledger.ErrTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryInitialInterval
	b.MaxInterval = e.cfg.RetryMaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		e.metrics.recordRetry(kind)
		w.logger.Warn("transient conflict, retrying", "attempt", attempts, "wait", wait, "error", err)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrTransient) {
			err = &ledger.SequenceConflictError{
				Series:   series,
				Day:      e.sequences.Day(date),
				Attempts: attempts,
				Err:      err,
			}
		}
		failed := w.stage
		w.enter(StageAborted)
		e.metrics.recordAbort(kind, failed, err)
		w.logger.Warn("workflow aborted", "stage", failed, "kind", ledger.Kind(err), "error", err)
		return nil, err
	}

	w.enter(StageCommitted)
	e.metrics.recordCommit(kind)
	w.logger.Info("document committed",
		"document_number", doc.DocumentNumber,
		"grand_total", doc.GrandTotal.StringFixed(2),
		"attempts", attempts)

	e.notify(ctx, *doc)
	out := doc.Clone()
	return &out, nil
}

func (e *Engine) notify(ctx context.Context, doc models.Document) {
	for _, n := range e.notifiers {
		if err := n.DocumentCommitted(ctx, doc.Clone()); err != nil {
			e.logger.Warn("notifier failed", "document_number", doc.DocumentNumber, "error", err)
		}
	}
}

func (e *Engine) validateRequest(req any) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return ledger.NewValidationError(fe.Namespace(), "failed on "+fe.Tag())
	}
	return ledger.NewValidationError("", err.Error())
}
