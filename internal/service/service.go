package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirpos/backend/internal/cart"
	"kasirpos/backend/internal/checkout"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/draft"
	"kasirpos/backend/internal/kv"
	"kasirpos/backend/internal/money"
	"kasirpos/backend/internal/notify"
	"kasirpos/backend/internal/pricing"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidDiscount = errors.New("discount value must not be negative")
	ErrInvalidItem     = errors.New("custom item needs a name and a non-negative price")
	ErrNoDraft         = errors.New("no restorable draft")
)

type Deps struct {
	Repo            store.Repository
	Drafts          *draft.Keeper
	Feed            *notify.Feed
	Formatter       *money.Formatter
	Logger          *zap.Logger
	CheckoutTimeout time.Duration
	SaveInterval    time.Duration
}

// Service is one POS terminal: it owns the live cart and every collaborator
// that reads or clears it.
type Service struct {
	repo      store.Repository
	cart      *cart.Cart
	checkout  *checkout.Builder
	drafts    *draft.Keeper
	autosave  *draft.Scheduler
	feed      *notify.Feed
	notifier  notify.Sink
	formatter *money.Formatter
	logger    *zap.Logger
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	formatter := deps.Formatter
	if formatter == nil {
		formatter = money.NewFormatter(money.DefaultSymbol, money.DefaultPrecision)
	}
	feed := deps.Feed
	if feed == nil {
		feed = notify.NewFeed(50)
	}
	drafts := deps.Drafts
	if drafts == nil {
		drafts = draft.NewKeeper(kv.NewMemory(), draft.WithLogger(logger))
	}

	c := cart.New()
	s := &Service{
		repo:      deps.Repo,
		cart:      c,
		checkout:  checkout.New(deps.Repo, drafts, checkout.WithTimeout(deps.CheckoutTimeout), checkout.WithLogger(logger)),
		drafts:    drafts,
		autosave:  draft.NewScheduler(drafts, c, deps.SaveInterval, logger),
		feed:      feed,
		notifier:  notify.Multi{notify.NewLogSink(logger), feed},
		formatter: formatter,
		logger:    logger.Named("terminal"),
	}
	c.OnTransition(s.autosave.Nudge)
	return s
}

// RunDraftAutosave blocks until ctx is done.
func (s *Service) RunDraftAutosave(ctx context.Context) {
	s.autosave.Run(ctx)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) AddProduct(ctx context.Context, productID string, quantity int) (domain.CartView, error) {
	if quantity < 1 {
		return domain.CartView{}, ErrInvalidQuantity
	}
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.CartView{}, fmt.Errorf("product %s: %w", productID, err)
	}

	s.cart.AddLine(*product, quantity)
	return s.View(), nil
}

// AddCustomItem adds a line for something that is not in the catalog. It
// gets a synthetic id, so its invoice line is written without a product id.
func (s *Service) AddCustomItem(_ context.Context, item domain.CustomItem, quantity int) (domain.CartView, error) {
	if quantity < 1 {
		return domain.CartView{}, ErrInvalidQuantity
	}
	name := strings.TrimSpace(item.Name)
	if name == "" || item.Price.IsNegative() {
		return domain.CartView{}, ErrInvalidItem
	}

	s.cart.AddLine(domain.Product{
		ID:    xid.New("manual"),
		Name:  name,
		Price: item.Price,
	}, quantity)
	return s.View(), nil
}

func (s *Service) SetQuantity(productID string, quantity int) domain.CartView {
	s.cart.SetQuantity(productID, quantity)
	return s.View()
}

func (s *Service) RemoveLine(productID string) domain.CartView {
	s.cart.RemoveLine(productID)
	return s.View()
}

func (s *Service) SetGiftQuantity(productID string, quantity int) domain.CartView {
	s.cart.SetGiftQuantity(productID, quantity)
	return s.View()
}

func (s *Service) SetGiftReason(productID string, reason string) domain.CartView {
	s.cart.SetGiftReason(productID, reason)
	return s.View()
}

// UpdateLine applies quantity before gift fields, so a gift quantity in the
// same request is clamped against the new ordered quantity.
func (s *Service) UpdateLine(productID string, req domain.UpdateLineRequest) domain.CartView {
	if req.Quantity != nil {
		s.cart.SetQuantity(productID, *req.Quantity)
	}
	if req.GiftQuantity != nil {
		s.cart.SetGiftQuantity(productID, *req.GiftQuantity)
	}
	if req.GiftReason != nil {
		s.cart.SetGiftReason(productID, *req.GiftReason)
	}
	return s.View()
}

func (s *Service) SetCustomer(name string, phone string) domain.CartView {
	s.cart.SetCustomer(name, phone)
	return s.View()
}

func (s *Service) SetDiscount(value decimal.Decimal, kind domain.DiscountType) (domain.CartView, error) {
	if value.IsNegative() {
		return domain.CartView{}, ErrInvalidDiscount
	}
	s.cart.SetDiscount(value, kind)
	return s.View(), nil
}

// ClearCart empties the cart and drops the saved draft.
func (s *Service) ClearCart(ctx context.Context) error {
	s.cart.Clear()
	return s.drafts.Invalidate(ctx)
}

// View derives the cart view from a fresh snapshot on every call.
func (s *Service) View() domain.CartView {
	snapshot := s.cart.Snapshot()
	summary := pricing.Summarize(snapshot)

	lines := make([]domain.CartLineView, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		total := pricing.LineTotal(line)
		lines = append(lines, domain.CartLineView{
			CartLine:     line,
			PaidQuantity: line.PaidQuantity(),
			LineTotal:    total,
			Display:      s.formatter.Format(total),
		})
	}

	return domain.CartView{
		Lines:         lines,
		CustomerName:  snapshot.CustomerName,
		CustomerPhone: snapshot.CustomerPhone,
		DiscountValue: snapshot.DiscountValue,
		DiscountType:  snapshot.DiscountType,
		Summary:       summary,
		Display: domain.SummaryDisplay{
			Subtotal:       s.formatter.Format(summary.Subtotal),
			GiftsValue:     s.formatter.Format(summary.GiftsValue),
			DiscountAmount: s.formatter.Format(summary.DiscountAmount),
			TotalAmount:    s.formatter.Format(summary.TotalAmount),
		},
	}
}

func (s *Service) Checkout(ctx context.Context) (*domain.Invoice, error) {
	res, err := s.checkout.Checkout(ctx, s.cart)
	if err != nil {
		if !errors.Is(err, checkout.ErrCheckoutInFlight) {
			s.notifier.Notify(ctx, notify.New(notify.KindCheckoutFailed, notify.LevelError, checkoutFailureMessage(err), nil))
		}
		return nil, err
	}

	invoice := res.Invoice
	s.notifier.Notify(ctx, notify.New(notify.KindCheckoutSucceeded, notify.LevelSuccess,
		fmt.Sprintf("Invoice saved, total %s", s.formatter.Format(invoice.TotalAmount)),
		map[string]string{"invoice_id": invoice.ID}))
	return &invoice, nil
}

func checkoutFailureMessage(err error) string {
	var swf *checkout.StoreWriteFailedError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return "Cart is empty"
	case errors.As(err, &swf):
		return fmt.Sprintf("Checkout failed while saving %s, cart kept for retry", swf.Stage)
	default:
		return "Checkout failed, cart kept for retry"
	}
}

// CheckDraft runs once at startup and announces a restorable draft.
// It never changes the live cart.
func (s *Service) CheckDraft(ctx context.Context) (domain.DraftOffer, bool) {
	offer, ok := s.drafts.Check(ctx)
	if !ok {
		return domain.DraftOffer{}, false
	}
	s.notifier.Notify(ctx, notify.New(notify.KindDraftAvailable, notify.LevelInfo,
		fmt.Sprintf("Unsaved cart from %s with %d items can be restored", offer.SavedAt.Local().Format("15:04"), offer.LineCount),
		map[string]string{"saved_at": offer.SavedAt.Format(time.RFC3339)}))
	return offer, true
}

func (s *Service) DraftStatus(ctx context.Context) (domain.DraftOffer, bool) {
	return s.drafts.Check(ctx)
}

// RestoreDraft replaces the live cart with the saved draft on explicit request.
func (s *Service) RestoreDraft(ctx context.Context) (domain.CartView, error) {
	record, ok := s.drafts.Load(ctx)
	if !ok {
		return domain.CartView{}, ErrNoDraft
	}
	s.cart.Restore(record.Snapshot())
	s.notifier.Notify(ctx, notify.New(notify.KindDraftRestored, notify.LevelSuccess, "Draft cart restored", nil))
	return s.View(), nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, strings.TrimSpace(invoiceID))
}

func (s *Service) Notifications(limit int) []notify.Notice {
	return s.feed.Recent(limit)
}
