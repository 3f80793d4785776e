// Package memory is a single-writer, in-process implementation of
// ledger.Store. One mutex is held for the whole of every transaction; a failed
// transaction restores the state captured when it began.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"syntra-ledger/internal/database/models"
	"syntra-ledger/internal/ledger"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextID    int64
	products  map[int64]models.Product
	customers map[int64]models.Customer
	documents map[int64]models.Document
	movements []models.StockMovement
	sequences map[string]int
}

type state struct {
	nextID    int64
	products  map[int64]models.Product
	customers map[int64]models.Customer
	documents map[int64]models.Document
	movements int
	sequences map[string]int
}

func New() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		products:  make(map[int64]models.Product),
		customers: make(map[int64]models.Customer),
		documents: make(map[int64]models.Document),
		sequences: make(map[string]int),
	}
}

// AddProduct registers a product with zero stock and returns its id. Stock is
// brought in through ledger movements only.
func (s *Store) AddProduct(p models.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	p.CurrentStock = 0
	p.IsActive = true
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = p
	return p.ID
}

func (s *Store) AddCustomer(c models.Customer) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id()
	if c.OutstandingBalance.IsNegative() {
		c.OutstandingBalance = decimal.Zero
	}
	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	s.customers[c.ID] = c
	return c.ID
}

func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(saved)
			panic(r)
		}
		if err != nil {
			s.restore(saved)
		}
	}()

	return fn(&tx{s: s})
}

func (s *Store) snapshot() state {
	return state{
		nextID:    s.nextID,
		products:  maps.Clone(s.products),
		customers: maps.Clone(s.customers),
		documents: maps.Clone(s.documents),
		movements: len(s.movements),
		sequences: maps.Clone(s.sequences),
	}
}

func (s *Store) restore(st state) {
	s.nextID = st.nextID
	s.products = st.products
	s.customers = st.customers
	s.documents = st.documents
	s.movements = s.movements[:st.movements]
	s.sequences = st.sequences
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// --- committed reads ---

func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document(id)
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product(id)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customer(id)
}

func (s *Store) ListMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productMovements(productID), nil
}

// --- helpers, caller holds mu ---

func (s *Store) document(id int64) (*models.Document, error) {
	d, ok := s.documents[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "document", ID: id}
	}
	out := d.Clone()
	return &out, nil
}

func (s *Store) product(id int64) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "product", ID: id}
	}
	return &p, nil
}

func (s *Store) customer(id int64) (*models.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, &ledger.NotFoundError{Entity: "customer", ID: id}
	}
	return &c, nil
}

func (s *Store) productMovements(productID int64) []models.StockMovement {
	out := make([]models.StockMovement, 0)
	for _, m := range s.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func sequenceKey(series, day string) string {
	return series + "/" + day
}

// tx runs with Store.mu held by InTx.
type tx struct {
	s *Store
}

func (t *tx) GetDocument(_ context.Context, id int64) (*models.Document, error) {
	return t.s.document(id)
}

func (t *tx) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	return t.s.product(id)
}

func (t *tx) GetCustomer(_ context.Context, id int64) (*models.Customer, error) {
	return t.s.customer(id)
}

func (t *tx) ListMovements(_ context.Context, productID int64) ([]models.StockMovement, error) {
	return t.s.productMovements(productID), nil
}

func (t *tx) LockDocument(_ context.Context, id int64) (*models.Document, error) {
	return t.s.document(id)
}

func (t *tx) ReturnedLines(_ context.Context, originalDocumentID int64) (map[int64]ledger.Returned, error) {
	out := make(map[int64]ledger.Returned)
	for _, d := range t.s.documents {
		if d.OriginalDocumentID == nil || *d.OriginalDocumentID != originalDocumentID {
			continue
		}
		for _, l := range d.Lines {
			if l.OriginalLineID == nil {
				continue
			}
			r := out[*l.OriginalLineID]
			r.Quantity += l.Quantity
			r.CGST = r.CGST.Add(l.CGST)
			r.SGST = r.SGST.Add(l.SGST)
			r.IGST = r.IGST.Add(l.IGST)
			out[*l.OriginalLineID] = r
		}
	}
	return out, nil
}

func (t *tx) CreateDocument(_ context.Context, doc *models.Document) error {
	for _, d := range t.s.documents {
		if d.DocumentNumber == doc.DocumentNumber {
			return &ledger.ValidationError{Field: "document_number", Reason: "already exists: " + doc.DocumentNumber}
		}
	}

	doc.ID = t.s.id()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = t.s.now()
	}
	for i := range doc.Lines {
		doc.Lines[i].ID = t.s.id()
		doc.Lines[i].DocumentID = doc.ID
		if doc.Lines[i].CreatedAt.IsZero() {
			doc.Lines[i].CreatedAt = doc.CreatedAt
		}
	}
	t.s.documents[doc.ID] = doc.Clone()
	return nil
}

func (t *tx) LockProduct(_ context.Context, id int64) (*models.Product, error) {
	return t.s.product(id)
}

func (t *tx) SetProductStock(_ context.Context, id int64, stock int64) error {
	p, ok := t.s.products[id]
	if !ok {
		return &ledger.NotFoundError{Entity: "product", ID: id}
	}
	p.CurrentStock = stock
	p.UpdatedAt = t.s.now()
	t.s.products[id] = p
	return nil
}

func (t *tx) AppendMovement(_ context.Context, m *models.StockMovement) error {
	m.ID = t.s.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t.s.now()
	}
	t.s.movements = append(t.s.movements, *m)
	return nil
}

func (t *tx) LockCustomer(_ context.Context, id int64) (*models.Customer, error) {
	return t.s.customer(id)
}

func (t *tx) SetCustomerBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	c, ok := t.s.customers[id]
	if !ok {
		return &ledger.NotFoundError{Entity: "customer", ID: id}
	}
	c.OutstandingBalance = balance
	c.UpdatedAt = t.s.now()
	t.s.customers[id] = c
	return nil
}

func (t *tx) LockSequence(_ context.Context, series, day string) (int, bool, error) {
	v, ok := t.s.sequences[sequenceKey(series, day)]
	return v, ok, nil
}

func (t *tx) SaveSequence(_ context.Context, series, day string, last int, _ bool) error {
	t.s.sequences[sequenceKey(series, day)] = last
	return nil
}

func (t *tx) DocumentNumbers(_ context.Context, series, day string) ([]string, error) {
	prefix := series + "-" + day + "-"
	numbers := make([]string, 0)
	for _, d := range t.s.documents {
		if d.Series == series && len(d.DocumentNumber) > len(prefix) && d.DocumentNumber[:len(prefix)] == prefix {
			numbers = append(numbers, d.DocumentNumber)
		}
	}
	// Past 999 the sequence grows a digit, so compare length first.
	sort.Slice(numbers, func(i, j int) bool {
		if len(numbers[i]) != len(numbers[j]) {
			return len(numbers[i]) > len(numbers[j])
		}
		return numbers[i] > numbers[j]
	})
	return numbers, nil
}

var _ ledger.Store = (*Store)(nil)
