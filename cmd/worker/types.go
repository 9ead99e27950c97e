package main

import (
	"context"

	"github.com/imrishuroy/go-grocery-orderflow/internal/checkout"
	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/orders"
)

// StatusUpdater is the engine surface the worker drives.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID, status string, actor checkout.Actor, notes string) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string, actor checkout.Actor) (*orders.Order, error)
}

// DedupeStore remembers which messages have been handled. SQS delivers at
// least once, so every message is checked against it before acting.
type DedupeStore interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}
