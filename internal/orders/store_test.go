package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/dynamotest"
)

func newTestStore() (*Store, *dynamotest.Fake) {
	fake := dynamotest.New()
	fake.CreateTable("orders", "order_id", "")
	fake.CreateIndex("orders", UserIndex, "user_id", "created_at")
	fake.CreateTable("order_history", "order_id", "seq")
	return NewStore(fake, "orders", "order_history"), fake
}

func sampleOrder(id, user string, created time.Time) Order {
	return Order{
		ID:               id,
		OrderNumber:      "ORD-20260102-ABCDEFGHJK",
		UserID:           user,
		Status:           StatusPending,
		TotalAmount:      decimal.RequireFromString("25.00"),
		DiscountAmount:   decimal.Zero,
		DeliveryFee:      decimal.NewFromInt(50),
		TaxAmount:        decimal.RequireFromString("1.25"),
		FinalAmount:      decimal.RequireFromString("76.25"),
		DeliveryAddress:  "1 Main St",
		DeliveryTimeSlot: "09:00-11:00",
		PaymentMethod:    "cod",
		Items: []LineItem{
			{ProductID: "A", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), TotalPrice: decimal.RequireFromString("20.00")},
			{ProductID: "B", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00"), TotalPrice: decimal.RequireFromString("5.00")},
		},
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func create(t *testing.T, s *Store, fake *dynamotest.Fake, o Order) {
	t.Helper()
	orderItem, err := s.CreateItem(o)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	histItem, err := s.HistoryItem(StatusHistory{OrderID: o.ID, Seq: o.Version, Status: o.Status, UpdatedBy: o.UserID, Timestamp: o.CreatedAt})
	if err != nil {
		t.Fatalf("history item: %v", err)
	}
	tx := aws.NewTx()
	tx.Add(orderItem)
	tx.Add(histItem)
	if err := tx.Commit(context.Background(), fake); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestCreateAndGet(t *testing.T) {
	s, fake := newTestStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	create(t, s, fake, sampleOrder("order-1", "u-1", now))

	got, err := s.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("order not stored")
	}
	if got.Status != StatusPending || got.Version != 1 {
		t.Fatalf("unexpected status/version: %s/%d", got.Status, got.Version)
	}
	if !got.FinalAmount.Equal(decimal.RequireFromString("76.25")) {
		t.Fatalf("final amount: got %s", got.FinalAmount)
	}
	if len(got.Items) != 2 || got.Items[0].ProductID != "A" || !got.Items[0].TotalPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("items not preserved: %+v", got.Items)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at: got %v", got.CreatedAt)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s, _ := newTestStore()
	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil order, got %+v", got)
	}
}

func TestCreateItemRejectsDuplicateID(t *testing.T) {
	s, fake := newTestStore()
	now := time.Now().UTC()
	create(t, s, fake, sampleOrder("order-1", "u-1", now))

	item, err := s.CreateItem(sampleOrder("order-1", "u-2", now))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	tx := aws.NewTx()
	tx.Add(item)
	err = tx.Commit(context.Background(), fake)
	var tce *aws.TxCanceledError
	if !errors.As(err, &tce) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if _, ok := tce.FirstOfKind(TxKindCreate); !ok {
		t.Fatalf("expected create failure, got %v", tce)
	}
}

func TestTransitionItem_ConditionSuccessAndFail(t *testing.T) {
	s, fake := newTestStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	create(t, s, fake, sampleOrder("order-10", "u-10", now))

	// success: pending -> confirmed at version 1
	tx := aws.NewTx()
	tx.Add(s.TransitionItem(Transition{OrderID: "order-10", From: StatusPending, To: StatusConfirmed, Version: 1, At: now}))
	if err := tx.Commit(context.Background(), fake); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	got, _ := s.Get(context.Background(), "order-10")
	if got.Status != StatusConfirmed || got.Version != 2 {
		t.Fatalf("expected confirmed/2, got %s/%d", got.Status, got.Version)
	}

	// failure: stale version
	tx = aws.NewTx()
	tx.Add(s.TransitionItem(Transition{OrderID: "order-10", From: StatusPending, To: StatusCancelled, Version: 1, At: now}))
	err := tx.Commit(context.Background(), fake)
	var tce *aws.TxCanceledError
	if !errors.As(err, &tce) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	f, ok := tce.FirstOfKind(TxKindTransition)
	if !ok || f.Code != aws.ReasonConditionalCheck {
		t.Fatalf("expected conditional failure on transition, got %v", tce)
	}
}

func TestTransitionItemSetsCancelledReason(t *testing.T) {
	s, fake := newTestStore()
	now := time.Now().UTC()
	create(t, s, fake, sampleOrder("order-11", "u-11", now))

	tx := aws.NewTx()
	tx.Add(s.TransitionItem(Transition{OrderID: "order-11", From: StatusPending, To: StatusCancelled, Version: 1, CancelledReason: "changed my mind", At: now}))
	if err := tx.Commit(context.Background(), fake); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, _ := s.Get(context.Background(), "order-11")
	if got.CancelledReason != "changed my mind" {
		t.Fatalf("cancelled reason: got %q", got.CancelledReason)
	}
}

func TestHistoryItemOnePerSeq(t *testing.T) {
	s, fake := newTestStore()
	now := time.Now().UTC()
	create(t, s, fake, sampleOrder("order-12", "u-12", now))

	item, _ := s.HistoryItem(StatusHistory{OrderID: "order-12", Seq: 1, Status: StatusConfirmed, Timestamp: now})
	tx := aws.NewTx()
	tx.Add(item)
	if err := tx.Commit(context.Background(), fake); err == nil {
		t.Fatalf("expected duplicate seq to be rejected")
	}

	item, _ = s.HistoryItem(StatusHistory{OrderID: "order-12", Seq: 2, Status: StatusConfirmed, UpdatedBy: "system", Timestamp: now})
	tx = aws.NewTx()
	tx.Add(item)
	if err := tx.Commit(context.Background(), fake); err != nil {
		t.Fatalf("commit: %v", err)
	}

	hist, err := s.History(context.Background(), "order-12")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].Status != StatusPending || hist[1].Status != StatusConfirmed || hist[1].Seq != 2 {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	s, fake := newTestStore()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	create(t, s, fake, sampleOrder("o-1", "u-1", base))
	create(t, s, fake, sampleOrder("o-2", "u-1", base.Add(time.Minute)))
	create(t, s, fake, sampleOrder("o-3", "u-2", base.Add(2*time.Minute)))
	create(t, s, fake, sampleOrder("o-4", "u-1", base.Add(3*time.Minute)))

	list, err := s.ListByUser(context.Background(), "u-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != "o-4" || list[1].ID != "o-2" || list[2].ID != "o-1" {
		t.Fatalf("unexpected order: %+v", ids(list))
	}

	list, err = s.ListByUser(context.Background(), "u-1", 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "o-4" {
		t.Fatalf("limit not applied: %v", ids(list))
	}
}

func ids(list []Order) []string {
	out := make([]string, len(list))
	for i, o := range list {
		out[i] = o.ID
	}
	return out
}
