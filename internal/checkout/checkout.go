// Package checkout turns a cart snapshot into a persisted invoice.
//
// Totals are frozen from a snapshot taken when Checkout is called, before any
// store call. The cart is cleared only after the writes succeed; on any
// failure it is left exactly as it was. Failed checkouts are never retried.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/money"
	"kasirpos/backend/internal/pricing"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

const DefaultTimeout = 15 * time.Second

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCheckoutInFlight = errors.New("checkout already in progress")
	ErrUnbalanced       = errors.New("invoice lines do not reconcile with subtotal")
)

type Stage string

const (
	StageInvoice Stage = "invoice"
	StageLines   Stage = "lines"
)

// StoreWriteFailedError reports which write the invoice store rejected.
// When the lines write fails after the invoice was created, the invoice is
// deleted again; Compensated tells whether that delete succeeded. A lines
// failure inside a single transaction is reported as compensated with no
// InvoiceID, since the rollback removed the invoice.
type StoreWriteFailedError struct {
	Stage           Stage
	InvoiceID       string
	Cause           error
	Compensated     bool
	CompensationErr error
}

func (e *StoreWriteFailedError) Error() string {
	msg := fmt.Sprintf("store write failed at %s stage: %v", e.Stage, e.Cause)
	if e.Stage == StageLines && !e.Compensated {
		msg += fmt.Sprintf(" (invoice %s left without lines: %v)", e.InvoiceID, e.CompensationErr)
	}
	return msg
}

func (e *StoreWriteFailedError) Unwrap() error {
	return e.Cause
}

// Cart is the live cart a checkout reads from and clears.
type Cart interface {
	Snapshot() domain.CartSnapshot
	Clear()
}

type DraftInvalidator interface {
	Invalidate(ctx context.Context) error
}

type Result struct {
	Invoice domain.Invoice
	Summary domain.PricingSummary
}

type Option func(*Builder)

func WithTimeout(timeout time.Duration) Option {
	return func(b *Builder) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type Builder struct {
	invoices store.InvoiceStore
	drafts   DraftInvalidator
	timeout  time.Duration
	logger   *zap.Logger
	inFlight atomic.Bool
}

func New(invoices store.InvoiceStore, drafts DraftInvalidator, opts ...Option) *Builder {
	b := &Builder{
		invoices: invoices,
		drafts:   drafts,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("checkout")
	return b
}

// Checkout writes the invoice for the current contents of c. Only one
// checkout runs at a time; a concurrent call fails with ErrCheckoutInFlight.
func (b *Builder) Checkout(ctx context.Context, c Cart) (*Result, error) {
	if !b.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCheckoutInFlight
	}
	defer b.inFlight.Store(false)

	snapshot := c.Snapshot()
	if snapshot.IsEmpty() {
		return nil, ErrEmptyCart
	}

	invoice, lines, summary, err := Build(snapshot)
	if err != nil {
		return nil, err
	}

	writeCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	created, err := b.persist(writeCtx, invoice, lines)
	if err != nil {
		return nil, err
	}

	c.Clear()
	b.invalidateDraft(ctx, created.ID)

	b.logger.Info("checkout completed",
		zap.String("invoice_id", created.ID),
		zap.String("total_amount", created.TotalAmount.String()),
		zap.Int("lines", len(created.Items)))
	return &Result{Invoice: *created, Summary: summary}, nil
}

// invalidateDraft drops the draft of a committed cart. It runs on a fresh
// deadline so a cancelled caller still clears it.
func (b *Builder) invalidateDraft(ctx context.Context, invoiceID string) {
	if b.drafts == nil {
		return
	}
	dropCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.drafts.Invalidate(dropCtx); err != nil {
		b.logger.Warn("draft invalidation failed after checkout", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}

func (b *Builder) persist(ctx context.Context, invoice domain.Invoice, lines []domain.InvoiceLine) (*domain.Invoice, error) {
	if atomicStore, ok := b.invoices.(store.AtomicInvoiceStore); ok {
		created, err := atomicStore.CreateInvoiceWithLines(ctx, invoice, lines)
		if err != nil {
			b.logger.Error("invoice transaction failed", zap.Error(err))
			// The transaction rolled back, so nothing is left to compensate.
			var linesErr *store.LinesWriteError
			if errors.As(err, &linesErr) {
				return nil, &StoreWriteFailedError{Stage: StageLines, Cause: linesErr.Err, Compensated: true}
			}
			return nil, &StoreWriteFailedError{Stage: StageInvoice, Cause: err}
		}
		return created, nil
	}

	created, err := b.invoices.CreateInvoice(ctx, invoice)
	if err != nil {
		b.logger.Error("invoice write failed", zap.Error(err))
		return nil, &StoreWriteFailedError{Stage: StageInvoice, Cause: err}
	}

	items, err := b.invoices.CreateInvoiceLines(ctx, created.ID, lines)
	if err != nil {
		b.logger.Error("invoice lines write failed", zap.String("invoice_id", created.ID), zap.Error(err))
		return nil, b.compensate(ctx, created.ID, err)
	}

	created.Items = items
	return created, nil
}

// compensate deletes an invoice whose lines could not be written. It runs
// on a fresh deadline so an expired write deadline does not also skip it.
func (b *Builder) compensate(ctx context.Context, invoiceID string, cause error) error {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	b.logger.Warn("compensating: deleting invoice", zap.String("invoice_id", invoiceID))
	failure := &StoreWriteFailedError{Stage: StageLines, InvoiceID: invoiceID, Cause: cause, Compensated: true}
	if err := b.invoices.DeleteInvoice(compCtx, invoiceID); err != nil {
		b.logger.Error("compensation failed, invoice left without lines", zap.String("invoice_id", invoiceID), zap.Error(err))
		failure.Compensated = false
		failure.CompensationErr = err
	}
	return failure
}

// Build derives the invoice and its lines from snapshot. The invoice has no
// id yet; lines carry no invoice id.
func Build(snapshot domain.CartSnapshot) (domain.Invoice, []domain.InvoiceLine, domain.PricingSummary, error) {
	summary := pricing.Summarize(snapshot)

	lines := make([]domain.InvoiceLine, 0, len(snapshot.Lines))
	for _, cl := range snapshot.Lines {
		line := domain.InvoiceLine{
			ProductName: cl.Product.Name,
			Quantity:    cl.OrderedQuantity,
			Price:       cl.UnitPrice,
			Total:       pricing.LineTotal(cl),
			IsGift:      cl.GiftQuantity > 0,
		}
		if xid.IsCatalogID(cl.Product.ID) {
			id := cl.Product.ID
			line.ProductID = &id
		}
		if line.IsGift {
			reason := cl.GiftReason
			if strings.TrimSpace(reason) == "" {
				reason = fmt.Sprintf("%d gifts", cl.GiftQuantity)
			}
			line.GiftReason = &reason
		}
		lines = append(lines, line)
	}

	if err := reconcile(summary, lines); err != nil {
		return domain.Invoice{}, nil, summary, err
	}

	invoice := domain.Invoice{
		CustomerName:   optional(snapshot.CustomerName),
		CustomerPhone:  optional(snapshot.CustomerPhone),
		TotalAmount:    summary.TotalAmount,
		DiscountAmount: summary.DiscountAmount,
		DiscountType:   snapshot.DiscountType.Normalize(),
	}
	return invoice, lines, summary, nil
}

func reconcile(summary domain.PricingSummary, lines []domain.InvoiceLine) error {
	totals := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		totals[i] = line.Total
	}
	lineSum := money.Sum(totals...)
	if !lineSum.Equal(summary.Subtotal) {
		return fmt.Errorf("%w: lines %s, subtotal %s", ErrUnbalanced, lineSum, summary.Subtotal)
	}
	if !summary.TotalAmount.Equal(money.FinalTotal(summary.Subtotal, summary.DiscountAmount)) {
		return fmt.Errorf("%w: total %s, subtotal %s, discount %s", ErrUnbalanced, summary.TotalAmount, summary.Subtotal, summary.DiscountAmount)
	}
	return nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
