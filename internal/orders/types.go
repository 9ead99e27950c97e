package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is an immutable snapshot of one purchased product.
type LineItem struct {
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Order is a placed order. Money fields are fixed at creation.
type Order struct {
	ID               string          `json:"id"`
	OrderNumber      string          `json:"order_number"`
	UserID           string          `json:"user_id"`
	Status           Status          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	DeliveryFee      decimal.Decimal `json:"delivery_fee"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	CouponID         string          `json:"coupon_id,omitempty"`
	DeliveryAddress  string          `json:"delivery_address"`
	DeliveryDate     string          `json:"delivery_date,omitempty"`
	DeliveryTimeSlot string          `json:"delivery_time_slot"`
	PaymentMethod    string          `json:"payment_method"`
	Notes            string          `json:"notes,omitempty"`
	CancelledReason  string          `json:"cancelled_reason,omitempty"`
	Items            []LineItem      `json:"items"`
	// Version starts at 1 and increases by one with every status change.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusHistory is one entry of an order's audit trail. Seq equals the order
// version the entry produced.
type StatusHistory struct {
	OrderID   string    `json:"order_id"`
	Seq       int       `json:"seq"`
	Status    Status    `json:"status"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types published after a commit.
const (
	EventPlaced        = "order.placed"
	EventStatusChanged = "order.status_changed"
	EventCancelled     = "order.cancelled"
)

// OrderEvent is the message body sent to the orders queue.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type lineItemRecord struct {
	ProductID  string `dynamodbav:"product_id"`
	Quantity   int    `dynamodbav:"quantity"`
	UnitPrice  string `dynamodbav:"unit_price"`
	TotalPrice string `dynamodbav:"total_price"`
}

// orderRecord is the item stored in the orders table.
type orderRecord struct {
	OrderID          string           `dynamodbav:"order_id"` // PK
	OrderNumber      string           `dynamodbav:"order_number"`
	UserID           string           `dynamodbav:"user_id"` // GSI user_id-index PK
	Status           string           `dynamodbav:"status"`
	TotalAmount      string           `dynamodbav:"total_amount"`
	DiscountAmount   string           `dynamodbav:"discount_amount"`
	DeliveryFee      string           `dynamodbav:"delivery_fee"`
	TaxAmount        string           `dynamodbav:"tax_amount"`
	FinalAmount      string           `dynamodbav:"final_amount"`
	CouponID         string           `dynamodbav:"coupon_id,omitempty"`
	DeliveryAddress  string           `dynamodbav:"delivery_address"`
	DeliveryDate     string           `dynamodbav:"delivery_date,omitempty"`
	DeliveryTimeSlot string           `dynamodbav:"delivery_time_slot"`
	PaymentMethod    string           `dynamodbav:"payment_method"`
	Notes            string           `dynamodbav:"notes,omitempty"`
	CancelledReason  string           `dynamodbav:"cancelled_reason,omitempty"`
	Items            []lineItemRecord `dynamodbav:"items"`
	Version          int              `dynamodbav:"version"`
	CreatedAt        time.Time        `dynamodbav:"created_at"` // GSI user_id-index SK
	UpdatedAt        time.Time        `dynamodbav:"updated_at"`
}

type historyRecord struct {
	OrderID   string    `dynamodbav:"order_id"` // PK
	Seq       int       `dynamodbav:"seq"`      // SK
	Status    string    `dynamodbav:"status"`
	UpdatedBy string    `dynamodbav:"updated_by,omitempty"`
	Notes     string    `dynamodbav:"notes,omitempty"`
	Timestamp time.Time `dynamodbav:"timestamp"`
}

func newOrderRecord(o Order) orderRecord {
	r := orderRecord{
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		UserID:           o.UserID,
		Status:           string(o.Status),
		TotalAmount:      o.TotalAmount.String(),
		DiscountAmount:   o.DiscountAmount.String(),
		DeliveryFee:      o.DeliveryFee.String(),
		TaxAmount:        o.TaxAmount.String(),
		FinalAmount:      o.FinalAmount.String(),
		CouponID:         o.CouponID,
		DeliveryAddress:  o.DeliveryAddress,
		DeliveryDate:     o.DeliveryDate,
		DeliveryTimeSlot: o.DeliveryTimeSlot,
		PaymentMethod:    o.PaymentMethod,
		Notes:            o.Notes,
		CancelledReason:  o.CancelledReason,
		Items:            make([]lineItemRecord, 0, len(o.Items)),
		Version:          o.Version,
		CreatedAt:        o.CreatedAt.UTC(),
		UpdatedAt:        o.UpdatedAt.UTC(),
	}
	for _, li := range o.Items {
		r.Items = append(r.Items, lineItemRecord{
			ProductID:  li.ProductID,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice.String(),
			TotalPrice: li.TotalPrice.String(),
		})
	}
	return r
}

func (r orderRecord) toDomain() (Order, error) {
	o := Order{
		ID:               r.OrderID,
		OrderNumber:      r.OrderNumber,
		UserID:           r.UserID,
		Status:           Status(r.Status),
		CouponID:         r.CouponID,
		DeliveryAddress:  r.DeliveryAddress,
		DeliveryDate:     r.DeliveryDate,
		DeliveryTimeSlot: r.DeliveryTimeSlot,
		PaymentMethod:    r.PaymentMethod,
		Notes:            r.Notes,
		CancelledReason:  r.CancelledReason,
		Items:            make([]LineItem, 0, len(r.Items)),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	money := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.TotalAmount, r.TotalAmount},
		{&o.DiscountAmount, r.DiscountAmount},
		{&o.DeliveryFee, r.DeliveryFee},
		{&o.TaxAmount, r.TaxAmount},
		{&o.FinalAmount, r.FinalAmount},
	}
	for _, m := range money {
		v, err := decimal.NewFromString(m.src)
		if err != nil {
			return Order{}, fmt.Errorf("order %s: %w", r.OrderID, err)
		}
		*m.dst = v
	}
	for _, li := range r.Items {
		unit, err := decimal.NewFromString(li.UnitPrice)
		if err != nil {
			return Order{}, fmt.Errorf("order %s item %s: %w", r.OrderID, li.ProductID, err)
		}
		total, err := decimal.NewFromString(li.TotalPrice)
		if err != nil {
			return Order{}, fmt.Errorf("order %s item %s: %w", r.OrderID, li.ProductID, err)
		}
		o.Items = append(o.Items, LineItem{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: unit, TotalPrice: total})
	}
	return o, nil
}

func newHistoryRecord(h StatusHistory) historyRecord {
	return historyRecord{
		OrderID:   h.OrderID,
		Seq:       h.Seq,
		Status:    string(h.Status),
		UpdatedBy: h.UpdatedBy,
		Notes:     h.Notes,
		Timestamp: h.Timestamp.UTC(),
	}
}

func (r historyRecord) toDomain() StatusHistory {
	return StatusHistory{
		OrderID:   r.OrderID,
		Seq:       r.Seq,
		Status:    Status(r.Status),
		UpdatedBy: r.UpdatedBy,
		Notes:     r.Notes,
		Timestamp: r.Timestamp,
	}
}
