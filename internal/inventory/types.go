package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry together with its stock level.
type Product struct {
	ProductID        string
	Name             string
	Price            decimal.Decimal
	DiscountedPrice  *decimal.Decimal
	StockQuantity    int
	MaxOrderQuantity int
	// PriceVersion changes whenever Price or DiscountedPrice changes.
	PriceVersion int
	IsActive     bool
	UpdatedAt    time.Time
}

// EffectivePrice is the discounted price when present and positive, else the
// list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountedPrice != nil && p.DiscountedPrice.IsPositive() {
		return *p.DiscountedPrice
	}
	return p.Price
}

type record struct {
	ProductID        string    `dynamodbav:"product_id"`
	Name             string    `dynamodbav:"name"`
	Price            string    `dynamodbav:"price"`
	DiscountedPrice  string    `dynamodbav:"discounted_price,omitempty"`
	StockQuantity    int       `dynamodbav:"stock_quantity"`
	MaxOrderQuantity int       `dynamodbav:"max_order_quantity"`
	PriceVersion     int       `dynamodbav:"price_version"`
	IsActive         bool      `dynamodbav:"is_active"`
	UpdatedAt        time.Time `dynamodbav:"updated_at"`
}

func newRecord(p Product) record {
	r := record{
		ProductID:        p.ProductID,
		Name:             p.Name,
		Price:            p.Price.String(),
		StockQuantity:    p.StockQuantity,
		MaxOrderQuantity: p.MaxOrderQuantity,
		PriceVersion:     p.PriceVersion,
		IsActive:         p.IsActive,
		UpdatedAt:        p.UpdatedAt.UTC(),
	}
	if p.DiscountedPrice != nil {
		r.DiscountedPrice = p.DiscountedPrice.String()
	}
	return r
}

func (r record) toDomain() (Product, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return Product{}, fmt.Errorf("price: %w", err)
	}
	p := Product{
		ProductID:        r.ProductID,
		Name:             r.Name,
		Price:            price,
		StockQuantity:    r.StockQuantity,
		MaxOrderQuantity: r.MaxOrderQuantity,
		PriceVersion:     r.PriceVersion,
		IsActive:         r.IsActive,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.DiscountedPrice != "" {
		dp, err := decimal.NewFromString(r.DiscountedPrice)
		if err != nil {
			return Product{}, fmt.Errorf("discounted price: %w", err)
		}
		p.DiscountedPrice = &dp
	}
	return p, nil
}
