package money

import (
	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

const (
	DefaultSymbol    = "EGP "
	DefaultPrecision = 2
)

// Formatter renders amounts for people. It is the single place where rounding happens.
type Formatter struct {
	ac *accounting.Accounting
}

func NewFormatter(symbol string, precision int) *Formatter {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &Formatter{ac: &accounting.Accounting{
		Symbol:    symbol,
		Precision: precision,
		Thousand:  ",",
		Decimal:   ".",
	}}
}

func (f *Formatter) Format(amount decimal.Decimal) string {
	return f.ac.FormatMoneyDecimal(amount)
}
