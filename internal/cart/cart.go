// Package cart holds the live cart of a single terminal.
//
// Every exported method is atomic with respect to the others. Lines keep
// insertion order and are unique per product id. The gift quantity of a line
// is always kept within [0, ordered quantity].
package cart

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
)

// Option configures a Cart at construction.
type Option func(*Cart)

// WithTransitionHook registers fn to be called whenever the cart switches
// between empty and non-empty. fn runs after the mutation, outside the lock.
func WithTransitionHook(fn func(empty bool)) Option {
	return func(c *Cart) {
		c.hooks = append(c.hooks, fn)
	}
}

// Cart is the mutable cart state of one terminal. Use New to create one.
type Cart struct {
	mu            sync.Mutex
	lines         []domain.CartLine
	customerName  string
	customerPhone string
	discountValue decimal.Decimal
	discountType  domain.DiscountType
	hooks         []func(empty bool)
}

// New returns an empty cart with a zero fixed discount.
func New(opts ...Option) *Cart {
	c := &Cart{discountValue: decimal.Zero, discountType: domain.DiscountFixed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLine adds quantity units of product, incrementing the existing line if there is one.
// Quantities below 1 are ignored.
func (c *Cart) AddLine(product domain.Product, quantity int) {
	if quantity < 1 {
		return
	}
	c.mutate(func() {
		if i := c.indexOf(product.ID); i >= 0 {
			c.lines[i].OrderedQuantity += quantity
			return
		}
		c.lines = append(c.lines, domain.CartLine{
			Product:         product,
			OrderedQuantity: quantity,
			UnitPrice:       product.EffectivePrice(),
		})
	})
}

// SetQuantity sets the ordered quantity of a line. quantity <= 0 removes the line.
// The gift quantity is clamped down when it would exceed the new quantity.
func (c *Cart) SetQuantity(productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveLine(productID)
		return
	}
	c.mutate(func() {
		i := c.indexOf(productID)
		if i < 0 {
			return
		}
		c.lines[i].OrderedQuantity = quantity
		if c.lines[i].GiftQuantity > quantity {
			c.lines[i].GiftQuantity = quantity
		}
	})
}

// RemoveLine drops the line for productID. Unknown ids are a no-op.
func (c *Cart) RemoveLine(productID string) {
	c.mutate(func() {
		i := c.indexOf(productID)
		if i < 0 {
			return
		}
		c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
	})
}

// SetGiftQuantity clamps quantity into [0, ordered quantity] before storing it.
func (c *Cart) SetGiftQuantity(productID string, quantity int) {
	c.mutate(func() {
		i := c.indexOf(productID)
		if i < 0 {
			return
		}
		c.lines[i].GiftQuantity = clampInt(quantity, 0, c.lines[i].OrderedQuantity)
	})
}

func (c *Cart) SetGiftReason(productID string, reason string) {
	c.mutate(func() {
		if i := c.indexOf(productID); i >= 0 {
			c.lines[i].GiftReason = reason
		}
	})
}

func (c *Cart) SetCustomer(name string, phone string) {
	c.mutate(func() {
		c.customerName = strings.TrimSpace(name)
		c.customerPhone = strings.TrimSpace(phone)
	})
}

// SetDiscount stores the discount as given. Clamping happens when it is applied.
func (c *Cart) SetDiscount(value decimal.Decimal, kind domain.DiscountType) {
	c.mutate(func() {
		c.discountValue = value
		c.discountType = kind.Normalize()
	})
}

// Clear empties the cart and resets customer and discount fields in one step.
func (c *Cart) Clear() {
	c.mutate(func() {
		c.lines = nil
		c.customerName = ""
		c.customerPhone = ""
		c.discountValue = decimal.Zero
		c.discountType = domain.DiscountFixed
	})
}

// Restore replaces the whole cart with snapshot. Lines are sanitized so the
// per-line invariants hold even for hand-edited or stale records.
func (c *Cart) Restore(snapshot domain.CartSnapshot) {
	lines := make([]domain.CartLine, 0, len(snapshot.Lines))
	seen := make(map[string]int, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		if line.OrderedQuantity < 1 {
			continue
		}
		line.GiftQuantity = clampInt(line.GiftQuantity, 0, line.OrderedQuantity)
		if i, ok := seen[line.Product.ID]; ok {
			lines[i].OrderedQuantity += line.OrderedQuantity
			lines[i].GiftQuantity += line.GiftQuantity
			continue
		}
		seen[line.Product.ID] = len(lines)
		lines = append(lines, line)
	}

	c.mutate(func() {
		c.lines = lines
		c.customerName = snapshot.CustomerName
		c.customerPhone = snapshot.CustomerPhone
		c.discountValue = snapshot.DiscountValue
		c.discountType = snapshot.DiscountType.Normalize()
	})
}

// Snapshot returns a deep copy of the cart that later mutations cannot affect.
func (c *Cart) Snapshot() domain.CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lines []domain.CartLine
	if len(c.lines) > 0 {
		lines = make([]domain.CartLine, len(c.lines))
		copy(lines, c.lines)
	}
	return domain.CartSnapshot{
		Lines:         lines,
		CustomerName:  c.customerName,
		CustomerPhone: c.customerPhone,
		DiscountValue: c.discountValue,
		DiscountType:  c.discountType,
	}
}

// OnTransition registers fn like WithTransitionHook for an existing cart.
func (c *Cart) OnTransition(fn func(empty bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

func (c *Cart) Line(productID string) (domain.CartLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(productID); i >= 0 {
		return c.lines[i], true
	}
	return domain.CartLine{}, false
}

func (c *Cart) mutate(fn func()) {
	c.mu.Lock()
	wasEmpty := len(c.lines) == 0
	fn()
	isEmpty := len(c.lines) == 0
	hooks := c.hooks
	c.mu.Unlock()

	if wasEmpty == isEmpty {
		return
	}
	for _, hook := range hooks {
		hook(isEmpty)
	}
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func clampInt(v int, lo int, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
