package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-grocery-orderflow/internal/apperr"
	"github.com/imrishuroy/go-grocery-orderflow/internal/checkout"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
)

const dedupeScope = "worker"

// Processor consumes order events and confirms newly placed orders.
type Processor struct {
	orders StatusUpdater
	dedupe DedupeStore
	log    *zap.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(updater StatusUpdater, dedupe DedupeStore, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{orders: updater, dedupe: dedupe, log: logger}
}

// Handle processes an SQS batch. Failed messages are reported individually so
// only they are redelivered; after too many attempts SQS moves them to the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Error("process message", zap.String("message_id", rec.MessageId), zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev orders.OrderEvent
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.OrderID == "" {
		return errors.New("invalid message body: order_id is empty")
	}

	log := p.log.With(zap.String("event", ev.Type), zap.String("order_id", ev.OrderID), zap.String("message_id", rec.MessageId))
	if ev.Type != orders.EventPlaced {
		log.Debug("event ignored")
		return nil
	}

	key := idempotency.ScopedKey(dedupeScope, ev.Type+"#"+ev.OrderID)
	created, err := p.dedupe.CreateIfNotExists(ctx, key, ev.OrderID)
	if err != nil {
		return fmt.Errorf("claim message: %w", err)
	}
	if !created {
		prev, err := p.dedupe.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read message record: %w", err)
		}
		if prev != nil && prev.Status == idempotency.StatusDone {
			log.Info("duplicate message acknowledged")
			return nil
		}
		// an earlier attempt failed or is still running; the version check
		// on the order decides which one wins
	}

	o, err := p.orders.UpdateStatus(ctx, ev.OrderID, string(orders.StatusConfirmed), checkout.SystemActor, "confirmed by order worker")
	switch {
	case err == nil:
		log.Info("order confirmed", zap.Int("version", o.Version))
		return p.done(ctx, key, ev.OrderID, string(o.Status), http.StatusOK)

	case errors.Is(err, apperr.ErrInvalidTransition):
		// the order already moved on, through this worker or someone else
		log.Info("order no longer pending", zap.String("kind", apperr.Kind(err)))
		return p.done(ctx, key, ev.OrderID, apperr.Kind(err), http.StatusConflict)

	case errors.Is(err, apperr.ErrConflict):
		// a lost compare-and-set and a transient transaction conflict look
		// the same here; only the first leaves the order out of pending
		current, gerr := p.orders.GetOrder(ctx, ev.OrderID, checkout.SystemActor)
		if gerr == nil && current.Status != orders.StatusPending {
			log.Info("order no longer pending", zap.String("status", string(current.Status)))
			return p.done(ctx, key, ev.OrderID, apperr.Kind(err), http.StatusConflict)
		}
		if gerr != nil {
			log.Warn("re-read order after conflict", zap.Error(gerr))
		}
		return p.failed(ctx, log, key, ev.OrderID, err)

	default:
		return p.failed(ctx, log, key, ev.OrderID, err)
	}
}

// failed releases the message record and returns err so SQS redelivers.
func (p *Processor) failed(ctx context.Context, log *zap.Logger, key, orderID string, err error) error {
	if ferr := p.dedupe.MarkFailed(ctx, key, err.Error()); ferr != nil {
		log.Warn("mark message failed", zap.Error(ferr))
	}
	return fmt.Errorf("confirm order %s: %w", orderID, err)
}

func (p *Processor) done(ctx context.Context, key, orderID, outcome string, status int) error {
	body, err := json.Marshal(map[string]string{"order_id": orderID, "outcome": outcome})
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := p.dedupe.MarkDone(ctx, key, string(body), status); err != nil {
		return fmt.Errorf("mark message done: %w", err)
	}
	return nil
}
