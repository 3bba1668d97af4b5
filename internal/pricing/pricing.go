// Package pricing derives the pricing summary of a cart snapshot.
// It holds no state; callers recompute on every read.
package pricing

import (
	"github.com/shopspring/decimal"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/money"
)

func Summarize(snapshot domain.CartSnapshot) domain.PricingSummary {
	paid := make([]decimal.Decimal, 0, len(snapshot.Lines))
	gifts := make([]decimal.Decimal, 0, len(snapshot.Lines))
	units := 0
	for _, line := range snapshot.Lines {
		paid = append(paid, LineTotal(line))
		gifts = append(gifts, money.LineAmount(line.UnitPrice, line.GiftQuantity))
		units += line.OrderedQuantity
	}

	subtotal := money.Sum(paid...)
	discount := money.ApplyDiscount(subtotal, snapshot.DiscountValue, snapshot.DiscountType)
	return domain.PricingSummary{
		TotalItems:     len(snapshot.Lines),
		TotalUnits:     units,
		Subtotal:       subtotal,
		GiftsValue:     money.Sum(gifts...),
		DiscountAmount: discount,
		TotalAmount:    money.FinalTotal(subtotal, discount),
	}
}

// LineTotal is the billed amount of a single line.
func LineTotal(line domain.CartLine) decimal.Decimal {
	return money.LineAmount(line.UnitPrice, line.PaidQuantity())
}
