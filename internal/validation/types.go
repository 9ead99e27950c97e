package validation

// PlaceOrderRequest is the payload for POST /orders. Line items come from the
// user's cart, not the body.
type PlaceOrderRequest struct {
	DeliveryAddress  string `json:"delivery_address" validate:"required,max=500"`
	DeliveryDate     string `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	DeliveryTimeSlot string `json:"delivery_time_slot" validate:"required,time_slot"` // HH:MM-HH:MM
	PaymentMethod    string `json:"payment_method" validate:"required,oneof=cash_on_delivery card upi wallet"`
	Notes            string `json:"notes,omitempty" validate:"max=1000"`
	PromoCode        string `json:"promo_code,omitempty" validate:"omitempty,max=50"`
}

// UpdateStatusRequest is the payload for PATCH /admin/orders/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}

// CancelRequest is the payload for POST /orders/:id/cancel. The body is optional.
type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// AdjustStockRequest is the payload for PATCH /admin/products/:id/stock.
// Delta is added to the current stock; negative values remove units.
type AdjustStockRequest struct {
	Delta int `json:"delta" validate:"required,min=-100000,max=100000"`
}
