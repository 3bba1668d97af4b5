package store

import (
	"context"
	"errors"

	"kasirpos/backend/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInvoice = errors.New("invalid invoice")
)

// LinesWriteError marks a failure that happened while writing invoice lines
// inside a single-transaction invoice write.
type LinesWriteError struct {
	Err error
}

func (e *LinesWriteError) Error() string {
	return "write invoice lines: " + e.Err.Error()
}

func (e *LinesWriteError) Unwrap() error {
	return e.Err
}

// CatalogStore is the read-only product source.
type CatalogStore interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// InvoiceStore accepts an invoice, then its lines, as two separate writes.
// CreateInvoice assigns the id and creation time.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Invoice, error)
	CreateInvoiceLines(ctx context.Context, invoiceID string, lines []domain.InvoiceLine) ([]domain.InvoiceLine, error)
	DeleteInvoice(ctx context.Context, invoiceID string) error
	GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error)
}

// AtomicInvoiceStore is implemented by stores that can write an invoice and
// its lines in one transaction.
type AtomicInvoiceStore interface {
	InvoiceStore
	CreateInvoiceWithLines(ctx context.Context, invoice domain.Invoice, lines []domain.InvoiceLine) (*domain.Invoice, error)
}

type Repository interface {
	CatalogStore
	InvoiceStore
}

// ValidateInvoice checks the fields every store requires before writing.
func ValidateInvoice(invoice domain.Invoice) error {
	if invoice.TotalAmount.IsNegative() || invoice.DiscountAmount.IsNegative() {
		return ErrInvalidInvoice
	}
	switch invoice.DiscountType {
	case domain.DiscountFixed, domain.DiscountPercent:
	default:
		return ErrInvalidInvoice
	}
	return nil
}

func ValidateInvoiceLines(lines []domain.InvoiceLine) error {
	if len(lines) == 0 {
		return ErrInvalidInvoice
	}
	for _, line := range lines {
		if line.ProductName == "" || line.Quantity < 1 || line.Price.IsNegative() || line.Total.IsNegative() {
			return ErrInvalidInvoice
		}
	}
	return nil
}
