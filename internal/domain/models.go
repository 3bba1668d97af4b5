package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// Normalize maps anything that is not a percent discount to fixed.
func (t DiscountType) Normalize() DiscountType {
	if t == DiscountPercent {
		return DiscountPercent
	}
	return DiscountFixed
}

type Product struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Code       string              `json:"code,omitempty"`
	Category   string              `json:"category,omitempty"`
	Price      decimal.Decimal     `json:"price"`
	SalePrice  decimal.NullDecimal `json:"sale_price"`
	Stock      int                 `json:"stock"`
	IsFeatured bool                `json:"is_featured"`
}

// EffectivePrice is the promotional price when one is set above zero, else the base price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() {
		return p.SalePrice.Decimal
	}
	return p.Price
}

type CartLine struct {
	Product         Product         `json:"product"`
	OrderedQuantity int             `json:"ordered_quantity"`
	GiftQuantity    int             `json:"gift_quantity"`
	GiftReason      string          `json:"gift_reason,omitempty"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

func (l CartLine) PaidQuantity() int {
	return l.OrderedQuantity - l.GiftQuantity
}

type CartSnapshot struct {
	Lines         []CartLine      `json:"lines"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	DiscountType  DiscountType    `json:"discount_type"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

type DraftRecord struct {
	Lines         []CartLine      `json:"lines"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	DiscountType  DiscountType    `json:"discount_type"`
	SavedAt       time.Time       `json:"saved_at"`
}

func NewDraftRecord(snapshot CartSnapshot, savedAt time.Time) DraftRecord {
	return DraftRecord{
		Lines:         snapshot.Lines,
		CustomerName:  snapshot.CustomerName,
		CustomerPhone: snapshot.CustomerPhone,
		DiscountValue: snapshot.DiscountValue,
		DiscountType:  snapshot.DiscountType,
		SavedAt:       savedAt,
	}
}

func (r DraftRecord) Snapshot() CartSnapshot {
	return CartSnapshot{
		Lines:         r.Lines,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		DiscountValue: r.DiscountValue,
		DiscountType:  r.DiscountType,
	}
}

type DraftOffer struct {
	SavedAt   time.Time `json:"saved_at"`
	AgeHours  float64   `json:"age_hours"`
	LineCount int       `json:"line_count"`
	UnitCount int       `json:"unit_count"`
}

type PricingSummary struct {
	TotalItems     int             `json:"total_items"`
	TotalUnits     int             `json:"total_units"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	GiftsValue     decimal.Decimal `json:"gifts_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

type Invoice struct {
	ID             string          `json:"id"`
	CustomerName   *string         `json:"customer_name"`
	CustomerPhone  *string         `json:"customer_phone"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   DiscountType    `json:"discount_type"`
	CreatedAt      time.Time       `json:"created_at"`
	Items          []InvoiceLine   `json:"items,omitempty"`
}

type InvoiceLine struct {
	ID          string          `json:"id,omitempty"`
	InvoiceID   string          `json:"invoice_id"`
	ProductID   *string         `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	IsGift      bool            `json:"is_gift"`
	GiftReason  *string         `json:"gift_reason"`
}

type CartLineView struct {
	CartLine
	PaidQuantity int             `json:"paid_quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Display      string          `json:"display_total"`
}

type SummaryDisplay struct {
	Subtotal       string `json:"subtotal"`
	GiftsValue     string `json:"gifts_value"`
	DiscountAmount string `json:"discount_amount"`
	TotalAmount    string `json:"total_amount"`
}

type CartView struct {
	Lines         []CartLineView  `json:"lines"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	DiscountType  DiscountType    `json:"discount_type"`
	Summary       PricingSummary  `json:"summary"`
	Display       SummaryDisplay  `json:"display"`
}

type CustomItem struct {
	Name  string          `json:"name" validate:"required,max=200"`
	Price decimal.Decimal `json:"price"`
}

type AddLineRequest struct {
	ProductID string      `json:"product_id" validate:"required_without=Custom,max=64"`
	Custom    *CustomItem `json:"custom,omitempty"`
	Quantity  int         `json:"quantity" validate:"omitempty,gte=1"`
}

type UpdateLineRequest struct {
	Quantity     *int    `json:"quantity,omitempty"`
	GiftQuantity *int    `json:"gift_quantity,omitempty"`
	GiftReason   *string `json:"gift_reason,omitempty" validate:"omitempty,max=500"`
}

type CustomerRequest struct {
	Name  string `json:"name" validate:"max=200"`
	Phone string `json:"phone" validate:"max=50"`
}

type DiscountRequest struct {
	Value decimal.Decimal `json:"value"`
	Type  DiscountType    `json:"type" validate:"required,oneof=fixed percent"`
}
