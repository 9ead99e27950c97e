package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
	"github.com/imrishuroy/go-grocery-orderflow/internal/dynamotest"
)

const table = "idempotency-table"

func newTestStore() (*Store, *dynamotest.Fake) {
	fake := dynamotest.New()
	fake.CreateTable(table, "idempotency_key", "")
	return NewStore(fake, table, 48*time.Hour), fake
}

func rawItem(fake *dynamotest.Fake, key string) map[string]types.AttributeValue {
	return fake.Item(table, map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	})
}

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	s, fake := newTestStore()

	ctx := context.Background()
	key := "test-key-1"
	orderID := "order-123"

	created, err := s.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second create should return created=false (exists)
	created2, err := s.CreateIfNotExists(ctx, key, orderID)
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.OrderID != orderID {
		t.Fatalf("order id mismatch")
	}

	// MarkFailed before completion records the note
	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item := rawItem(fake, key)
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusFailed {
		t.Fatalf("status not updated to FAILED, got %+v", item["status"])
	}
	if n, ok := item["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item["note"])
	}

	if err := s.MarkDone(ctx, key, "{\"ok\":true}", 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	item = rawItem(fake, key)
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	if rb, ok := item["response_body"].(*types.AttributeValueMemberS); !ok || rb.Value != "{\"ok\":true}" {
		t.Fatalf("response_body not set correctly: %+v", item["response_body"])
	}

	// a DONE record is never downgraded
	if err := s.MarkFailed(ctx, key, "late failure"); err != nil {
		t.Fatalf("MarkFailed on done record: %v", err)
	}
	rec, _ = s.Get(ctx, key)
	if rec.Status != StatusDone || rec.ResponseStatus != 201 {
		t.Fatalf("done record changed: %+v", rec)
	}
}

func TestMarkDoneMissingKeyFails(t *testing.T) {
	s, _ := newTestStore()
	if err := s.MarkDone(context.Background(), "missing", "{}", 200); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestDoneItemInTransaction(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	key := ScopedKey("u-1", " k-1 ")
	if key != "u-1#k-1" {
		t.Fatalf("unexpected scoped key %q", key)
	}

	item, err := s.DoneItem(Record{IdempotencyKey: key, UserID: "u-1", OrderID: "o-1", Fingerprint: Fingerprint("a", "b"), ResponseStatus: 201})
	if err != nil {
		t.Fatalf("DoneItem: %v", err)
	}
	tx := aws.NewTx()
	tx.Add(item)
	if err := tx.Commit(ctx, fake); err != nil {
		t.Fatalf("commit: %v", err)
	}

	rec, err := s.Get(ctx, key)
	if err != nil || rec == nil {
		t.Fatalf("Get: %v %v", rec, err)
	}
	if rec.Status != StatusDone || rec.OrderID != "o-1" || rec.Fingerprint != Fingerprint("a", "b") {
		t.Fatalf("unexpected record %+v", rec)
	}

	// replaying the same put is rejected by the key condition
	tx = aws.NewTx()
	tx.Add(item)
	if err := tx.Commit(ctx, fake); err == nil {
		t.Fatalf("expected duplicate key to cancel the transaction")
	}
}

func TestGetIgnoresExpiredRecords(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return start }

	if _, err := s.CreateIfNotExists(ctx, "k", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	s.nowFunc = func() time.Time { return start.Add(49 * time.Hour) }
	rec, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected expired record to be ignored, got %+v", rec)
	}
}

func TestExpiredRecordCanBeReclaimed(t *testing.T) {
	s, fake := newTestStore()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return start }

	if _, err := s.CreateIfNotExists(ctx, "k", "o-old"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkDone(ctx, "k", "{}", 201); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if created, err := s.CreateIfNotExists(ctx, "k", "o-early"); err != nil || created {
		t.Fatalf("live key must not be reclaimed: created=%v err=%v", created, err)
	}

	// past the window but not yet swept from the table
	s.nowFunc = func() time.Time { return start.Add(48 * time.Hour) }
	created, err := s.CreateIfNotExists(ctx, "k", "o-new")
	if err != nil || !created {
		t.Fatalf("expected expired key to be reclaimed: created=%v err=%v", created, err)
	}
	rec, err := s.Get(ctx, "k")
	if err != nil || rec == nil {
		t.Fatalf("Get: %v %v", rec, err)
	}
	if rec.Status != StatusInProgress || rec.OrderID != "o-new" {
		t.Fatalf("unexpected record %+v", rec)
	}

	// the transactional put follows the same rule
	s.nowFunc = func() time.Time { return start.Add(96 * time.Hour) }
	item, err := s.DoneItem(Record{IdempotencyKey: "k", OrderID: "o-tx", ResponseStatus: 201})
	if err != nil {
		t.Fatalf("DoneItem: %v", err)
	}
	tx := aws.NewTx()
	tx.Add(item)
	if err := tx.Commit(ctx, fake); err != nil {
		t.Fatalf("commit over expired key: %v", err)
	}
	rec, err = s.Get(ctx, "k")
	if err != nil || rec == nil || rec.OrderID != "o-tx" || rec.Status != StatusDone {
		t.Fatalf("unexpected record %+v err=%v", rec, err)
	}
}

func TestFingerprintSeparatesParts(t *testing.T) {
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Fatalf("fingerprint must not collide on part boundaries")
	}
}

func TestAttributevalueMarshal_Unmarshal(t *testing.T) {
	rec := Record{
		IdempotencyKey: "k1",
		Status:         StatusInProgress,
		OrderID:        "o1",
		CreatedAt:      time.Now().Round(time.Second),
		UpdatedAt:      time.Now().Round(time.Second),
		ExpiresAt:      time.Now().Add(24 * time.Hour).Unix(),
	}
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Record
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.IdempotencyKey != rec.IdempotencyKey || out.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("unmarshal mismatch")
	}
}
