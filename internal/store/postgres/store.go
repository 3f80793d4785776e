// Package postgres is the gorm backed ledger store. Row locks are SELECT ...
// FOR UPDATE inside one database transaction per workflow attempt.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
)

// SQLSTATE codes that mean the transaction lost a race and may be retried.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
	return classify(err)
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	return getDocument(s.db.WithContext(ctx), id, false)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return getProduct(s.db.WithContext(ctx), id, false)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return getCustomer(s.db.WithContext(ctx), id, false)
}

func (s *Store) ListMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	return listMovements(s.db.WithContext(ctx), productID)
}

// classify maps driver errors onto the ledger taxonomy. Conflicts the database
// resolved by aborting us become retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return ledger.Transient(err)
		}
	}
	return err
}

func notFound(err error, entity string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ledger.NotFoundError{Entity: entity, ID: id}
	}
	return classify(err)
}

func forUpdate(db *gorm.DB, lock bool) *gorm.DB {
	if lock {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func getDocument(db *gorm.DB, id int64, lock bool) (*models.Document, error) {
	var doc models.Document
	err := forUpdate(db, lock).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&doc, id).Error
	if err != nil {
		return nil, notFound(err, "document", id)
	}
	return &doc, nil
}

func getProduct(db *gorm.DB, id int64, lock bool) (*models.Product, error) {
	var p models.Product
	if err := forUpdate(db, lock).First(&p, id).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func getCustomer(db *gorm.DB, id int64, lock bool) (*models.Customer, error) {
	var c models.Customer
	if err := forUpdate(db, lock).First(&c, id).Error; err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

func listMovements(db *gorm.DB, productID int64) ([]models.StockMovement, error) {
	if _, err := getProduct(db, productID, false); err != nil {
		return nil, err
	}
	var out []models.StockMovement
	if err := db.Where("product_id = ?", productID).Order("id").Find(&out).Error; err != nil {
		return nil, classify(err)
	}
	return out, nil
}

type tx struct {
	db *gorm.DB
}

func (t *tx) GetDocument(_ context.Context, id int64) (*models.Document, error) {
	return getDocument(t.db, id, false)
}

func (t *tx) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	return getProduct(t.db, id, false)
}

func (t *tx) GetCustomer(_ context.Context, id int64) (*models.Customer, error) {
	return getCustomer(t.db, id, false)
}

func (t *tx) ListMovements(_ context.Context, productID int64) ([]models.StockMovement, error) {
	return listMovements(t.db, productID)
}

func (t *tx) LockDocument(_ context.Context, id int64) (*models.Document, error) {
	return getDocument(t.db, id, true)
}

func (t *tx) ReturnedLines(_ context.Context, originalDocumentID int64) (map[int64]ledger.Returned, error) {
	var rows []struct {
		OriginalLineID int64
		Quantity       int64
		CGST           decimal.Decimal `gorm:"column:cgst"`
		SGST           decimal.Decimal `gorm:"column:sgst"`
		IGST           decimal.Decimal `gorm:"column:igst"`
	}
	err := t.db.Table("document_lines AS l").
		Select("l.original_line_id, SUM(l.quantity) AS quantity, SUM(l.cgst) AS cgst, SUM(l.sgst) AS sgst, SUM(l.igst) AS igst").
		Joins("JOIN documents d ON d.id = l.document_id").
		Where("d.original_document_id = ? AND d.document_type = ? AND l.original_line_id IS NOT NULL",
			originalDocumentID, models.DocumentTypeReturn).
		Group("l.original_line_id").
		Scan(&rows).Error
	if err != nil {
		return nil, classify(err)
	}
	out := make(map[int64]ledger.Returned, len(rows))
	for _, r := range rows {
		out[r.OriginalLineID] = ledger.Returned{Quantity: r.Quantity, CGST: r.CGST, SGST: r.SGST, IGST: r.IGST}
	}
	return out, nil
}

func (t *tx) CreateDocument(_ context.Context, doc *models.Document) error {
	if err := t.db.Create(doc).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return ledger.Transient(fmt.Errorf("document number %s already taken: %w", doc.DocumentNumber, err))
		}
		return classify(err)
	}
	return nil
}

func (t *tx) LockProduct(_ context.Context, id int64) (*models.Product, error) {
	return getProduct(t.db, id, true)
}

func (t *tx) SetProductStock(_ context.Context, id int64, stock int64) error {
	res := t.db.Model(&models.Product{}).Where("id = ?", id).
		Updates(map[string]any{"current_stock": stock, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "product", ID: id}
	}
	return nil
}

func (t *tx) AppendMovement(_ context.Context, m *models.StockMovement) error {
	return classify(t.db.Create(m).Error)
}

func (t *tx) LockCustomer(_ context.Context, id int64) (*models.Customer, error) {
	return getCustomer(t.db, id, true)
}

func (t *tx) SetCustomerBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	res := t.db.Model(&models.Customer{}).Where("id = ?", id).
		Updates(map[string]any{"outstanding_balance": balance, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return &ledger.NotFoundError{Entity: "customer", ID: id}
	}
	return nil
}

func (t *tx) LockSequence(_ context.Context, series, day string) (int, bool, error) {
	var seq models.DocumentSequence
	err := forUpdate(t.db, true).
		Where("series = ? AND day = ?", series, day).
		Take(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify(err)
	}
	return seq.LastValue, true, nil
}

// SaveSequence inserts the counter row on first use of a day. Two workflows
// seeding the same day race on the primary key; the loser retries and then
// finds the row to lock.
func (t *tx) SaveSequence(_ context.Context, series, day string, last int, exists bool) error {
	now := time.Now().UTC()
	if !exists {
		err := t.db.Create(&models.DocumentSequence{Series: series, Day: day, LastValue: last, UpdatedAt: now}).Error
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return ledger.Transient(fmt.Errorf("sequence %s/%s seeded concurrently: %w", series, day, err))
		}
		return classify(err)
	}
	err := t.db.Model(&models.DocumentSequence{}).
		Where("series = ? AND day = ?", series, day).
		Updates(map[string]any{"last_value": last, "updated_at": now}).Error
	return classify(err)
}

func (t *tx) DocumentNumbers(_ context.Context, series, day string) ([]string, error) {
	var numbers []string
	err := t.db.Model(&models.Document{}).
		Where("document_number LIKE ?", escapeLike(series+"-"+day+"-")+"%").
		Order("LENGTH(document_number) DESC, document_number DESC").
		Pluck("document_number", &numbers).Error
	if err != nil {
		return nil, classify(err)
	}
	return numbers, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ ledger.Store = (*Store)(nil)
