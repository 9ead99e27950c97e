package validation

import (
	"reflect"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
)

const slotLayout = "15:04"

// New returns a validator with the order specific tags registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// registration only fails on an empty tag or nil func
	_ = v.RegisterValidation("order_status", validateOrderStatus)
	_ = v.RegisterValidation("time_slot", validateTimeSlot)

	v.RegisterStructValidation(placeOrderStructValidation, PlaceOrderRequest{})

	return v
}

func validateOrderStatus(fl validatorv10.FieldLevel) bool {
	_, err := orders.ParseStatus(fl.Field().String())
	return err == nil
}

// validateTimeSlot accepts "HH:MM-HH:MM" where the window is non-empty.
func validateTimeSlot(fl validatorv10.FieldLevel) bool {
	start, end, ok := strings.Cut(fl.Field().String(), "-")
	if !ok {
		return false
	}
	from, err := time.Parse(slotLayout, strings.TrimSpace(start))
	if err != nil {
		return false
	}
	to, err := time.Parse(slotLayout, strings.TrimSpace(end))
	if err != nil {
		return false
	}
	return to.After(from)
}

// placeOrderStructValidation rejects addresses made only of whitespace, which
// pass the required tag.
func placeOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(PlaceOrderRequest)
	if req.DeliveryAddress != "" && strings.TrimSpace(req.DeliveryAddress) == "" {
		sl.ReportError(req.DeliveryAddress, "delivery_address", "DeliveryAddress", "blank", "")
	}
}
