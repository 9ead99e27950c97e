package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-grocery-orderflow/internal/apperr"
	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/carts"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
	"github.com/imrishuroy/go-grocery-orderflow/internal/pricing"
	"github.com/imrishuroy/go-grocery-orderflow/internal/promotions"
)

// PlaceOrderRequest carries checkout input. The cart is read from the cart
// store; PromoCode and IdempotencyKey are optional.
type PlaceOrderRequest struct {
	UserID           string
	DeliveryAddress  string
	DeliveryDate     string
	DeliveryTimeSlot string
	PaymentMethod    string
	Notes            string
	PromoCode        string
	IdempotencyKey   string
}

func (r PlaceOrderRequest) fingerprint() string {
	return idempotency.Fingerprint(r.UserID, r.DeliveryAddress, r.DeliveryDate, r.DeliveryTimeSlot,
		r.PaymentMethod, r.Notes, promotions.Normalize(r.PromoCode))
}

// PlaceResult is the outcome of PlaceOrder. Replayed is set when the order
// was created by an earlier request with the same idempotency key.
type PlaceResult struct {
	Order    *orders.Order
	Replayed bool
}

// reservation is one product's share of the order after duplicate cart lines
// are merged.
type reservation struct {
	product  *inventory.Product
	quantity int
}

// PlaceOrder converts the user's cart into a pending order. Stock for every
// line is reserved, the order and its first history row are written, the
// cart is cleared and promotion usage is counted in one transaction; on any
// failure nothing is written.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceResult, error) {
	const op = "checkout.place_order"
	log := e.log.With(zap.String("user_id", req.UserID))

	res, err := e.placeOrder(ctx, op, req)
	if err != nil {
		e.count(ctx, "OrderPlacementFailed", map[string]string{"reason": apperr.Kind(err)})
		log.Warn("order placement failed", zap.String("kind", apperr.Kind(err)), zap.Error(err))
		return nil, err
	}
	if res.Replayed {
		log.Info("order placement replayed", zap.String("order_id", res.Order.ID))
		return res, nil
	}

	o := res.Order
	e.count(ctx, "OrderPlaced", nil)
	e.publish(ctx, orders.EventPlaced, *o, "")
	log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int("lines", len(o.Items)),
		zap.String("final_amount", o.FinalAmount.StringFixed(2)),
		zap.String("coupon", o.CouponID),
	)
	return res, nil
}

func (e *Engine) placeOrder(ctx context.Context, op string, req PlaceOrderRequest) (*PlaceResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validatePlacement(op, req); err != nil {
		return nil, err
	}

	var idemKey, fingerprint string
	if e.idempotency != nil && strings.TrimSpace(req.IdempotencyKey) != "" {
		idemKey = idempotency.ScopedKey(req.UserID, req.IdempotencyKey)
		fingerprint = req.fingerprint()
		rec, err := e.idempotency.Get(ctx, idemKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if rec != nil {
			return e.replay(ctx, op, rec, fingerprint)
		}
	}

	cart, err := e.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reservations, err := e.reservations(ctx, op, cart.Lines)
	if err != nil {
		return nil, err
	}

	var promo *promotions.Promotion
	if code := promotions.Normalize(req.PromoCode); code != "" {
		if promo, err = e.promotions.Lookup(ctx, code); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if promo == nil {
			e.log.Info("unknown promotion code ignored", zap.String("code", code))
		}
	}

	now := e.now().UTC()
	lines := make([]pricing.Line, 0, len(reservations))
	for _, r := range reservations {
		lines = append(lines, pricing.Line{ProductID: r.product.ProductID, Quantity: r.quantity, UnitPrice: r.product.EffectivePrice()})
	}
	quote, err := e.calc.Quote(lines, promo, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, op, err.Error(), err)
	}

	order := orders.Order{
		ID:               e.newID(),
		OrderNumber:      e.newNumber(now),
		UserID:           req.UserID,
		Status:           orders.StatusPending,
		TotalAmount:      quote.TotalAmount,
		DiscountAmount:   quote.DiscountAmount,
		DeliveryFee:      quote.DeliveryFee,
		TaxAmount:        quote.TaxAmount,
		FinalAmount:      quote.FinalAmount,
		CouponID:         quote.CouponID,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryDate:     req.DeliveryDate,
		DeliveryTimeSlot: req.DeliveryTimeSlot,
		PaymentMethod:    req.PaymentMethod,
		Notes:            req.Notes,
		Items:            make([]orders.LineItem, 0, len(quote.Lines)),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, l := range quote.Lines {
		order.Items = append(order.Items, orders.LineItem{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			TotalPrice: l.TotalPrice,
		})
	}

	tx := aws.NewTx()
	for _, r := range reservations {
		tx.Add(e.inventory.Reserve(r.product.ProductID, r.quantity, r.product.PriceVersion))
	}
	orderItem, err := e.orders.CreateItem(order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tx.Add(orderItem)
	histItem, err := e.orders.HistoryItem(orders.StatusHistory{
		OrderID:   order.ID,
		Seq:       order.Version,
		Status:    orders.StatusPending,
		UpdatedBy: req.UserID,
		Notes:     "order placed",
		Timestamp: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tx.Add(histItem)
	tx.Add(e.carts.ClearItem(*cart))
	if quote.CouponID != "" {
		tx.Add(e.promotions.IncrementUsage(quote.CouponID))
	}
	if idemKey != "" {
		item, err := e.idempotency.DoneItem(idempotency.Record{
			IdempotencyKey: idemKey,
			UserID:         req.UserID,
			OrderID:        order.ID,
			Fingerprint:    fingerprint,
			ResponseStatus: 201,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tx.Add(item)
	}

	if err := e.commit(ctx, tx); err != nil {
		var tce *aws.TxCanceledError
		if errors.As(err, &tce) {
			if _, dup := tce.FirstOfKind(idempotency.TxKindKey); dup {
				rec, gerr := e.idempotency.Get(ctx, idemKey)
				if gerr == nil && rec != nil {
					return e.replay(ctx, op, rec, fingerprint)
				}
			}
			return nil, placementFailure(op, tce, reservations)
		}
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}
	return &PlaceResult{Order: &order}, nil
}

func validatePlacement(op string, req PlaceOrderRequest) error {
	required := []struct{ name, value string }{
		{"user_id", req.UserID},
		{"delivery_address", req.DeliveryAddress},
		{"delivery_time_slot", req.DeliveryTimeSlot},
		{"payment_method", req.PaymentMethod},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return apperr.Validation(op, "%s is required", f.name)
		}
	}
	return nil
}

// catalogFetchLimit bounds concurrent catalog reads during checkout.
const catalogFetchLimit = 8

// reservations merges duplicate cart lines, keeping first-occurrence order,
// and prices each product from the catalog. Products are read concurrently
// but checked in cart order.
func (e *Engine) reservations(ctx context.Context, op string, lines []carts.Line) ([]reservation, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation(op, "cart is empty")
	}

	index := map[string]int{}
	var out []reservation
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.Validation(op, "quantity for product %s must be positive", l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, reservation{product: &inventory.Product{ProductID: l.ProductID}, quantity: l.Quantity})
	}
	if len(out) > MaxCartLines {
		return nil, apperr.Validation(op, "cart has %d products, at most %d allowed", len(out), MaxCartLines)
	}

	fetched := make([]*inventory.Product, len(out))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFetchLimit)
	for i := range out {
		i := i
		id := out[i].product.ProductID
		g.Go(func() error {
			p, err := e.inventory.GetProduct(gctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			fetched[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range out {
		id := out[i].product.ProductID
		p := fetched[i]
		if p == nil || !p.IsActive {
			return nil, apperr.Validation(op, "product %s is not available", id)
		}
		if p.MaxOrderQuantity > 0 && out[i].quantity > p.MaxOrderQuantity {
			return nil, apperr.Validation(op, "quantity %d for product %s exceeds the limit of %d", out[i].quantity, id, p.MaxOrderQuantity)
		}
		out[i].product = p
	}
	return out, nil
}

// replay answers a request whose key was already used.
func (e *Engine) replay(ctx context.Context, op string, rec *idempotency.Record, fingerprint string) (*PlaceResult, error) {
	if rec.Fingerprint != "" && rec.Fingerprint != fingerprint {
		return nil, apperr.New(apperr.CodeDuplicateRequest, op, "idempotency key was used with a different request")
	}
	if rec.Status != idempotency.StatusDone || rec.OrderID == "" {
		return nil, apperr.New(apperr.CodeDuplicateRequest, op, "a request with this idempotency key is still in progress")
	}
	o, err := e.orders.Get(ctx, rec.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if o == nil {
		return nil, apperr.New(apperr.CodeNotFound, op, "order "+rec.OrderID+" not found")
	}
	return &PlaceResult{Order: o, Replayed: true}, nil
}

// placementFailure maps a cancelled placement to the error the caller sees.
// Reservation failures win and the first one in cart order is reported.
func placementFailure(op string, tce *aws.TxCanceledError, reservations []reservation) error {
	if f, ok := tce.FirstOfKind(inventory.TxKindReserve); ok && f.Code == aws.ReasonConditionalCheck {
		for _, r := range reservations {
			if r.product.ProductID == f.Key {
				return inventory.ReserveFailure(op, f, r.quantity, r.product.PriceVersion)
			}
		}
	}
	if tce.HasCode(aws.ReasonTransactionConflict) {
		return apperr.Wrap(apperr.CodeConflict, op, "a concurrent update touched this order, retry", tce)
	}
	if _, ok := tce.FirstOfKind(carts.TxKindClear); ok {
		return apperr.Wrap(apperr.CodeConflict, op, "cart changed during checkout, retry", tce)
	}
	if _, ok := tce.FirstOfKind(promotions.TxKindUsage); ok {
		return apperr.Wrap(apperr.CodeConflict, op, "promotion code was withdrawn, retry", tce)
	}
	return apperr.Wrap(apperr.CodeConflict, op, "order could not be placed, retry", tce)
}
