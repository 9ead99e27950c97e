// Package pricing turns a priced cart snapshot and an optional promotion into
// order totals. It performs no I/O.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-orderflow/internal/promotions"
)

var (
	// DefaultDeliveryFee is charged once per order.
	DefaultDeliveryFee = decimal.NewFromInt(50)
	// DefaultTaxRate is applied to the discounted subtotal.
	DefaultTaxRate = decimal.RequireFromString("0.05")

	hundred = decimal.NewFromInt(100)
)

// ErrInvalidLine is returned for lines with a non-positive quantity or a
// negative price.
var ErrInvalidLine = errors.New("pricing: invalid line")

// Config holds the per-deployment pricing constants.
type Config struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
	// ClampFixedDiscount caps fixed-value discounts at the order subtotal.
	// When false a fixed discount larger than the subtotal is applied as is
	// and the taxable amount goes negative.
	ClampFixedDiscount bool
}

// DefaultConfig returns the production pricing constants.
func DefaultConfig() Config {
	return Config{
		DeliveryFee:        DefaultDeliveryFee,
		TaxRate:            DefaultTaxRate,
		ClampFixedDiscount: true,
	}
}

// Line is one priced cart line. UnitPrice is the effective catalog price.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// QuotedLine is a Line with its extended price.
type QuotedLine struct {
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Quote is the full price breakdown of an order.
type Quote struct {
	Lines          []QuotedLine
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	DeliveryFee    decimal.Decimal
	TaxAmount      decimal.Decimal
	FinalAmount    decimal.Decimal
	// CouponID is the applied promotion code, empty when none applied.
	CouponID string
}

// Calculator computes quotes from a fixed Config.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a Calculator for cfg.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Quote prices lines in order and applies promo if it is eligible at now.
// An ineligible promotion is ignored rather than reported.
func (c *Calculator) Quote(lines []Line, promo *promotions.Promotion, now time.Time) (Quote, error) {
	q := Quote{
		Lines:       make([]QuotedLine, 0, len(lines)),
		DeliveryFee: c.cfg.DeliveryFee,
	}

	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return Quote{}, fmt.Errorf("%w: product %s quantity %d price %s", ErrInvalidLine, l.ProductID, l.Quantity, l.UnitPrice)
		}
		lineTotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		q.Lines = append(q.Lines, QuotedLine{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	q.TotalAmount = total

	q.DiscountAmount = decimal.Zero
	if promo != nil && Eligible(*promo, total, now) {
		q.DiscountAmount = c.discount(*promo, total)
		q.CouponID = promo.Code
	}

	q.TaxAmount = total.Sub(q.DiscountAmount).Mul(c.cfg.TaxRate).Round(2)
	q.FinalAmount = total.Sub(q.DiscountAmount).Add(q.DeliveryFee).Add(q.TaxAmount)
	return q, nil
}

// Eligible reports whether promo applies to an order subtotal at now.
func Eligible(promo promotions.Promotion, total decimal.Decimal, now time.Time) bool {
	if !promo.IsActive || promo.Expired(now) {
		return false
	}
	switch promo.DiscountType {
	case promotions.DiscountPercentage:
		if promo.DiscountValue.GreaterThan(hundred) {
			return false
		}
	case promotions.DiscountFixed:
	default:
		return false
	}
	if promo.DiscountValue.IsNegative() {
		return false
	}
	return total.GreaterThanOrEqual(promo.MinOrderAmount)
}

func (c *Calculator) discount(promo promotions.Promotion, total decimal.Decimal) decimal.Decimal {
	switch promo.DiscountType {
	case promotions.DiscountPercentage:
		d := total.Mul(promo.DiscountValue).Div(hundred).Round(2)
		if promo.MaxDiscountAmount != nil && d.GreaterThan(*promo.MaxDiscountAmount) {
			d = *promo.MaxDiscountAmount
		}
		return d
	case promotions.DiscountFixed:
		d := promo.DiscountValue
		if c.cfg.ClampFixedDiscount && d.GreaterThan(total) {
			d = total
		}
		return d
	}
	return decimal.Zero
}
