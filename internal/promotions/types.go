package promotions

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how DiscountValue is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Promotion is a discount-granting code. The engine only reads it and bumps
// UsedCount when the code is applied to an order.
type Promotion struct {
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	IsActive          bool
	ValidUntil        *time.Time
	UsedCount         int
}

// Expired reports whether the code is past its validity window at now.
func (p Promotion) Expired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

// record is the DynamoDB shape of a promotion. Money is stored as decimal
// strings so no precision is lost.
type record struct {
	Code              string     `dynamodbav:"code"`
	DiscountType      string     `dynamodbav:"discount_type"`
	DiscountValue     string     `dynamodbav:"discount_value"`
	MinOrderAmount    string     `dynamodbav:"min_order_amount,omitempty"`
	MaxDiscountAmount string     `dynamodbav:"max_discount_amount,omitempty"`
	IsActive          bool       `dynamodbav:"is_active"`
	ValidUntil        *time.Time `dynamodbav:"valid_until,omitempty"`
	UsedCount         int        `dynamodbav:"used_count"`
}

func newRecord(p Promotion) record {
	r := record{
		Code:           p.Code,
		DiscountType:   string(p.DiscountType),
		DiscountValue:  p.DiscountValue.String(),
		MinOrderAmount: p.MinOrderAmount.String(),
		IsActive:       p.IsActive,
		UsedCount:      p.UsedCount,
	}
	if p.MaxDiscountAmount != nil {
		r.MaxDiscountAmount = p.MaxDiscountAmount.String()
	}
	if p.ValidUntil != nil {
		v := p.ValidUntil.UTC()
		r.ValidUntil = &v
	}
	return r
}

func (r record) toDomain() (Promotion, error) {
	value, err := decimal.NewFromString(r.DiscountValue)
	if err != nil {
		return Promotion{}, err
	}
	p := Promotion{
		Code:          r.Code,
		DiscountType:  DiscountType(r.DiscountType),
		DiscountValue: value,
		IsActive:      r.IsActive,
		ValidUntil:    r.ValidUntil,
		UsedCount:     r.UsedCount,
	}
	if r.MinOrderAmount != "" {
		if p.MinOrderAmount, err = decimal.NewFromString(r.MinOrderAmount); err != nil {
			return Promotion{}, err
		}
	}
	if r.MaxDiscountAmount != "" {
		capAmount, err := decimal.NewFromString(r.MaxDiscountAmount)
		if err != nil {
			return Promotion{}, err
		}
		p.MaxDiscountAmount = &capAmount
	}
	return p, nil
}
