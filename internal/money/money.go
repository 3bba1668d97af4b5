// Package money holds the only arithmetic paths used for cart and invoice amounts.
//
// Amounts are kept at full decimal precision. Nothing in this package rounds;
// rounding happens once, at display time, in Formatter.
package money

import (
	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// LineAmount returns unitPrice × paidQuantity.
func LineAmount(unitPrice decimal.Decimal, paidQuantity int) decimal.Decimal {
	if paidQuantity <= 0 {
		return decimal.Zero
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(paidQuantity)))
}

func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

// ApplyDiscount returns the discount amount for subtotal, always within [0, subtotal].
// A percent value is clamped into [0, 100] before it is applied.
func ApplyDiscount(subtotal decimal.Decimal, value decimal.Decimal, kind domain.DiscountType) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch kind.Normalize() {
	case domain.DiscountPercent:
		amount = subtotal.Mul(Clamp(value, decimal.Zero, hundred)).Shift(-2)
	default:
		amount = value
	}
	return Clamp(amount, decimal.Zero, subtotal)
}

// FinalTotal floors subtotal - discount at zero.
func FinalTotal(subtotal decimal.Decimal, discountAmount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, subtotal.Sub(discountAmount))
}

func Clamp(value decimal.Decimal, lo decimal.Decimal, hi decimal.Decimal) decimal.Decimal {
	if value.LessThan(lo) {
		return lo
	}
	if value.GreaterThan(hi) {
		return hi
	}
	return value
}
