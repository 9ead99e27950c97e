package validation

import (
	"errors"
	"testing"

	validatorv10 "github.com/go-playground/validator/v10"
)

func validPlaceOrder() PlaceOrderRequest {
	return PlaceOrderRequest{
		DeliveryAddress:  "12 Market Street",
		DeliveryDate:     "2026-03-15",
		DeliveryTimeSlot: "09:00-11:00",
		PaymentMethod:    "cash_on_delivery",
		PromoCode:        "SAVE10",
	}
}

func failedTags(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	out := map[string]string{}
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func TestPlaceOrderRequest_Valid(t *testing.T) {
	v := New()

	if err := v.Struct(validPlaceOrder()); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}

	req := validPlaceOrder()
	req.DeliveryDate = ""
	req.PromoCode = ""
	if err := v.Struct(req); err != nil {
		t.Fatalf("optional fields should be optional, got error: %v", err)
	}
}

func TestPlaceOrderRequest_MissingFields(t *testing.T) {
	v := New()

	tags := failedTags(t, v.Struct(PlaceOrderRequest{}))
	for _, field := range []string{"delivery_address", "delivery_time_slot", "payment_method"} {
		if tags[field] != "required" {
			t.Fatalf("expected %s to fail required, got %q (all: %v)", field, tags[field], tags)
		}
	}
}

func TestPlaceOrderRequest_InvalidFields(t *testing.T) {
	v := New()

	cases := []struct {
		name  string
		mod   func(*PlaceOrderRequest)
		field string
		tag   string
	}{
		{"bad date", func(r *PlaceOrderRequest) { r.DeliveryDate = "15/03/2026" }, "delivery_date", "datetime"},
		{"slot without dash", func(r *PlaceOrderRequest) { r.DeliveryTimeSlot = "morning" }, "delivery_time_slot", "time_slot"},
		{"slot backwards", func(r *PlaceOrderRequest) { r.DeliveryTimeSlot = "11:00-09:00" }, "delivery_time_slot", "time_slot"},
		{"slot bad clock", func(r *PlaceOrderRequest) { r.DeliveryTimeSlot = "25:00-26:00" }, "delivery_time_slot", "time_slot"},
		{"unknown payment", func(r *PlaceOrderRequest) { r.PaymentMethod = "barter" }, "payment_method", "oneof"},
		{"blank address", func(r *PlaceOrderRequest) { r.DeliveryAddress = "   " }, "delivery_address", "blank"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validPlaceOrder()
			tc.mod(&req)
			tags := failedTags(t, v.Struct(req))
			if tags[tc.field] != tc.tag {
				t.Fatalf("expected %s to fail %s, got %v", tc.field, tc.tag, tags)
			}
		})
	}
}

func TestUpdateStatusRequest(t *testing.T) {
	v := New()

	for _, s := range []string{"confirmed", "SHIPPED", " cancelled "} {
		if err := v.Struct(UpdateStatusRequest{Status: s}); err != nil {
			t.Fatalf("status %q should be accepted: %v", s, err)
		}
	}

	tags := failedTags(t, v.Struct(UpdateStatusRequest{Status: "lost"}))
	if tags["status"] != "order_status" {
		t.Fatalf("expected order_status failure, got %v", tags)
	}
}

func TestAdjustStockRequest(t *testing.T) {
	v := New()

	if err := v.Struct(AdjustStockRequest{Delta: -3}); err != nil {
		t.Fatalf("negative delta should be accepted: %v", err)
	}
	if err := v.Struct(AdjustStockRequest{Delta: 0}); err == nil {
		t.Fatal("expected zero delta to be rejected")
	}
	if err := v.Struct(AdjustStockRequest{Delta: 1_000_000}); err == nil {
		t.Fatal("expected oversized delta to be rejected")
	}
}

func TestCancelRequest(t *testing.T) {
	v := New()

	if err := v.Struct(CancelRequest{}); err != nil {
		t.Fatalf("empty reason should be accepted: %v", err)
	}
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}
	if err := v.Struct(CancelRequest{Reason: string(long)}); err == nil {
		t.Fatal("expected long reason to be rejected")
	}
}
