package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

type Store struct {
	mu             sync.RWMutex
	products       map[string]domain.Product
	productOrder   []string
	invoicesByID   map[string]domain.Invoice
	linesByInvoice map[string][]domain.InvoiceLine
	now            func() time.Time
}

func New(products []domain.Product) *Store {
	s := &Store{
		products:       make(map[string]domain.Product, len(products)),
		invoicesByID:   make(map[string]domain.Invoice),
		linesByInvoice: make(map[string][]domain.InvoiceLine),
		now:            time.Now,
	}
	for _, p := range products {
		if _, exists := s.products[p.ID]; !exists {
			s.productOrder = append(s.productOrder, p.ID)
		}
		s.products[p.ID] = p
	}
	return s
}

func NewSeeded() *Store {
	price := decimal.RequireFromString
	sale := func(v string) decimal.NullDecimal { return decimal.NewNullDecimal(price(v)) }

	return New([]domain.Product{
		{ID: "3b0c5a1e-8f6d-4c2b-9a71-0e4d2f8b6c11", Name: "Arabic Coffee 250g", Code: "COF-250", Category: "beverage", Price: price("95"), SalePrice: sale("85"), Stock: 40, IsFeatured: true},
		{ID: "7d2e9f40-1a3b-4c5d-8e6f-112233445566", Name: "Green Tea Box", Code: "TEA-020", Category: "beverage", Price: price("42.5"), Stock: 60},
		{ID: "a4c1e2b3-5d6f-4a7b-8c9d-0e1f2a3b4c5d", Name: "Dates 1kg", Code: "DAT-1000", Category: "grocery", Price: price("120"), Stock: 25, IsFeatured: true},
		{ID: "c9b8a7d6-e5f4-4321-9abc-def012345678", Name: "Olive Oil 1L", Code: "OIL-1000", Category: "grocery", Price: price("210"), SalePrice: sale("0"), Stock: 18},
		{ID: "e1d2c3b4-a5f6-4789-8abc-1234567890ab", Name: "Hand Soap", Code: "SOP-001", Category: "household", Price: price("18.75"), Stock: 100},
		{ID: "f0e1d2c3-b4a5-4968-8776-5544332211ff", Name: "Chocolate Bar", Code: "CHO-045", Category: "snack", Price: price("15"), SalePrice: sale("12.5"), Stock: 80},
	})
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		products = append(products, s.products[id])
	}
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (*domain.Invoice, error) {
	if err := store.ValidateInvoice(invoice); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	invoice.ID = uuid.NewString()
	invoice.CreatedAt = s.now().UTC()
	invoice.Items = nil
	s.invoicesByID[invoice.ID] = invoice

	created := invoice
	return &created, nil
}

func (s *Store) CreateInvoiceLines(_ context.Context, invoiceID string, lines []domain.InvoiceLine) ([]domain.InvoiceLine, error) {
	if err := store.ValidateInvoiceLines(lines); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoicesByID[invoiceID]; !ok {
		return nil, store.ErrNotFound
	}
	created := make([]domain.InvoiceLine, len(lines))
	for i, line := range lines {
		line.ID = uuid.NewString()
		line.InvoiceID = invoiceID
		created[i] = line
	}
	s.linesByInvoice[invoiceID] = append(s.linesByInvoice[invoiceID], created...)
	return cloneLines(created), nil
}

func (s *Store) DeleteInvoice(_ context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoicesByID[invoiceID]; !ok {
		return store.ErrNotFound
	}
	delete(s.invoicesByID, invoiceID)
	delete(s.linesByInvoice, invoiceID)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID string) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, ok := s.invoicesByID[invoiceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	invoice.Items = cloneLines(s.linesByInvoice[invoiceID])
	return &invoice, nil
}

func (s *Store) InvoiceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoicesByID)
}

func cloneLines(in []domain.InvoiceLine) []domain.InvoiceLine {
	if in == nil {
		return nil
	}
	out := make([]domain.InvoiceLine, len(in))
	copy(out, in)
	return out
}
