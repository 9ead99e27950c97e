package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/apperr"
	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/inventory"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
)

// CancelOrder cancels an order owned by the actor (or any order for admin and
// system actors) and returns its stock. The reason is stored on the order and
// in the history row.
func (e *Engine) CancelOrder(ctx context.Context, orderID string, actor Actor, reason string) (*orders.Order, error) {
	const op = "checkout.cancel_order"

	o, err := e.load(ctx, op, orderID, actor)
	if err != nil {
		return nil, e.failed(ctx, op, orderID, err)
	}
	if !o.Status.Cancellable() {
		return nil, e.failed(ctx, op, orderID, apperr.New(apperr.CodeInvalidTransition, op,
			fmt.Sprintf("order in status %s cannot be cancelled", o.Status)))
	}
	return e.cancel(ctx, op, o, actor, reason)
}

// UpdateStatus moves an order to newStatus. Fulfillment transitions need an
// admin or system actor; a move to cancelled goes through the cancellation
// workflow and is open to the order's owner.
func (e *Engine) UpdateStatus(ctx context.Context, orderID, newStatus string, actor Actor, notes string) (*orders.Order, error) {
	const op = "checkout.update_status"

	to, err := orders.ParseStatus(newStatus)
	if err != nil {
		return nil, e.failed(ctx, op, orderID, apperr.Wrap(apperr.CodeInvalidTransition, op, err.Error(), err))
	}
	if to != orders.StatusCancelled && !actor.Privileged() {
		return nil, e.failed(ctx, op, orderID, apperr.New(apperr.CodeNotAuthorized, op, "only staff can change fulfillment status"))
	}

	o, err := e.load(ctx, op, orderID, actor)
	if err != nil {
		return nil, e.failed(ctx, op, orderID, err)
	}
	if !orders.CanTransition(o.Status, to) {
		return nil, e.failed(ctx, op, orderID, apperr.New(apperr.CodeInvalidTransition, op,
			fmt.Sprintf("cannot move order from %s to %s", o.Status, to)))
	}
	if to == orders.StatusCancelled {
		return e.cancel(ctx, op, o, actor, notes)
	}

	now := e.now().UTC()
	from := o.Status
	tx := aws.NewTx()
	tx.Add(e.orders.TransitionItem(orders.Transition{
		OrderID: o.ID,
		From:    from,
		To:      to,
		Version: o.Version,
		At:      now,
	}))
	histItem, err := e.orders.HistoryItem(orders.StatusHistory{
		OrderID:   o.ID,
		Seq:       o.Version + 1,
		Status:    to,
		UpdatedBy: actor.UserID,
		Notes:     notes,
		Timestamp: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tx.Add(histItem)

	if err := e.commit(ctx, tx); err != nil {
		return nil, e.failed(ctx, op, orderID, transitionFailure(op, err))
	}

	o.Status = to
	o.Version++
	o.UpdatedAt = now
	e.count(ctx, "OrderStatusChanged", map[string]string{"status": string(to)})
	e.publish(ctx, orders.EventStatusChanged, *o, from)
	e.log.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor.UserID),
		zap.Int("version", o.Version),
	)
	return o, nil
}

func (e *Engine) cancel(ctx context.Context, op string, o *orders.Order, actor Actor, reason string) (*orders.Order, error) {
	reason = strings.TrimSpace(reason)
	now := e.now().UTC()
	from := o.Status

	tx := aws.NewTx()
	tx.Add(e.orders.TransitionItem(orders.Transition{
		OrderID:         o.ID,
		From:            from,
		To:              orders.StatusCancelled,
		Version:         o.Version,
		CancelledReason: reason,
		At:              now,
	}))
	released := map[string]int{}
	var productIDs []string
	for _, li := range o.Items {
		if _, ok := released[li.ProductID]; !ok {
			productIDs = append(productIDs, li.ProductID)
		}
		released[li.ProductID] += li.Quantity
	}
	for _, id := range productIDs {
		tx.Add(e.inventory.Release(id, released[id]))
	}
	histItem, err := e.orders.HistoryItem(orders.StatusHistory{
		OrderID:   o.ID,
		Seq:       o.Version + 1,
		Status:    orders.StatusCancelled,
		UpdatedBy: actor.UserID,
		Notes:     reason,
		Timestamp: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tx.Add(histItem)

	if err := e.commit(ctx, tx); err != nil {
		return nil, e.failed(ctx, op, o.ID, transitionFailure(op, err))
	}

	o.Status = orders.StatusCancelled
	o.Version++
	o.CancelledReason = reason
	o.UpdatedAt = now
	e.count(ctx, "OrderCancelled", map[string]string{"from": string(from)})
	e.publish(ctx, orders.EventCancelled, *o, from)
	e.log.Info("order cancelled",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("actor", actor.UserID),
		zap.Int("released_products", len(productIDs)),
	)
	return o, nil
}

// transitionFailure maps a failed status transaction to a domain error.
func transitionFailure(op string, err error) error {
	var tce *aws.TxCanceledError
	if !errors.As(err, &tce) {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	if f, ok := tce.FirstOfKind(inventory.TxKindRelease); ok && f.Code == aws.ReasonConditionalCheck {
		return apperr.Wrap(apperr.CodeNotFound, op, "product "+f.Key+" no longer exists, stock cannot be returned", tce)
	}
	return apperr.Wrap(apperr.CodeConflict, op, "order state changed, retry", tce)
}

// GetOrder returns an order visible to the actor.
func (e *Engine) GetOrder(ctx context.Context, orderID string, actor Actor) (*orders.Order, error) {
	return e.load(ctx, "checkout.get_order", orderID, actor)
}

// ListOrders returns the user's orders, newest first.
func (e *Engine) ListOrders(ctx context.Context, userID string, limit int) ([]orders.Order, error) {
	const op = "checkout.list_orders"
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation(op, "user_id is required")
	}
	list, err := e.orders.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// History returns the status history of an order visible to the actor.
func (e *Engine) History(ctx context.Context, orderID string, actor Actor) ([]orders.StatusHistory, error) {
	const op = "checkout.history"
	if _, err := e.load(ctx, op, orderID, actor); err != nil {
		return nil, err
	}
	hist, err := e.orders.History(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return hist, nil
}

func (e *Engine) load(ctx context.Context, op, orderID string, actor Actor) (*orders.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, apperr.Validation(op, "order id is required")
	}
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if o == nil {
		return nil, apperr.New(apperr.CodeNotFound, op, "order "+orderID+" not found")
	}
	if !actor.Privileged() && o.UserID != actor.UserID {
		return nil, apperr.New(apperr.CodeNotAuthorized, op, "order belongs to another user")
	}
	return o, nil
}

func (e *Engine) failed(ctx context.Context, op, orderID string, err error) error {
	e.count(ctx, "OrderTransitionFailed", map[string]string{"reason": apperr.Kind(err)})
	e.log.Warn("order transition failed",
		zap.String("op", op),
		zap.String("order_id", orderID),
		zap.String("kind", apperr.Kind(err)),
		zap.Error(err),
	)
	return err
}

// publish sends an order event. Delivery is best effort: the transaction has
// already committed, so failures are only logged.
func (e *Engine) publish(ctx context.Context, eventType string, o orders.Order, previous orders.Status) {
	if e.events == nil {
		return
	}
	ev := orders.OrderEvent{
		Type:           eventType,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		OccurredAt:     o.UpdatedAt,
	}
	attrs := map[string]string{"event_type": eventType, "order_id": o.ID}
	if err := e.events.Publish(ctx, ev, attrs); err != nil {
		e.log.Error("publish order event", zap.String("event", eventType), zap.String("order_id", o.ID), zap.Error(err))
	}
}

func (e *Engine) count(ctx context.Context, name string, dims map[string]string) {
	if e.metrics == nil {
		return
	}
	if err := e.metrics.Count(ctx, name, 1, dims); err != nil {
		e.log.Debug("emit metric", zap.String("metric", name), zap.Error(err))
	}
}
