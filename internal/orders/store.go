// Package orders holds the order aggregate, its state machine and its
// DynamoDB persistence.
package orders

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
)

// Transaction item kinds produced by the store.
const (
	TxKindCreate     = "order_create"
	TxKindTransition = "order_transition"
	TxKindHistory    = "order_history"
)

// UserIndex is the GSI on (user_id, created_at).
const UserIndex = "user_id-index"

// Store encapsulates operations on the orders and order history tables.
type Store struct {
	client       aws.DynamoDBAPI
	tableName    string
	historyTable string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, historyTable string) *Store {
	return &Store{
		client:       client,
		tableName:    tableName,
		historyTable: historyTable,
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o, err := rec.toDomain()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first. A non-positive limit
// returns every order.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	in := &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(UserIndex),
		KeyConditionExpression: awsString("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: boolPtr(false),
	}
	if limit > 0 {
		l := int32(limit)
		in.Limit = &l
	}
	out, err := s.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	var recs []orderRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	list := make([]Order, 0, len(recs))
	for _, r := range recs {
		o, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, nil
}

// History returns the order's status history in seq order.
func (s *Store) History(ctx context.Context, orderID string) ([]StatusHistory, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.historyTable,
		KeyConditionExpression: awsString("order_id = :oid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":oid": &types.AttributeValueMemberS{Value: orderID},
		},
		ConsistentRead:   boolPtr(true),
		ScanIndexForward: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	var recs []historyRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	hist := make([]StatusHistory, 0, len(recs))
	for _, r := range recs {
		hist = append(hist, r.toDomain())
	}
	return hist, nil
}

// CreateItem returns a put of a new order. The order id must not exist yet.
func (s *Store) CreateItem(o Order) (aws.TxItem, error) {
	item, err := attributevalue.MarshalMap(newOrderRecord(o))
	if err != nil {
		return aws.TxItem{}, fmt.Errorf("marshal order item: %w", err)
	}
	return aws.TxItem{
		Kind: TxKindCreate,
		Key:  o.ID,
		Item: types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                item,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		},
	}, nil
}

// HistoryItem returns a put of one history row. A row with the same seq must
// not exist, so every version has exactly one entry.
func (s *Store) HistoryItem(h StatusHistory) (aws.TxItem, error) {
	item, err := attributevalue.MarshalMap(newHistoryRecord(h))
	if err != nil {
		return aws.TxItem{}, fmt.Errorf("marshal history item: %w", err)
	}
	return aws.TxItem{
		Kind: TxKindHistory,
		Key:  h.OrderID + "#" + strconv.Itoa(h.Seq),
		Item: types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &s.historyTable,
				Item:                item,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		},
	}, nil
}

// Transition describes a status change of an order read at Version.
type Transition struct {
	OrderID string
	From    Status
	To      Status
	// Version is the version the caller read; the update writes Version+1.
	Version         int
	CancelledReason string
	At              time.Time
}

// TransitionItem returns the compare-and-set update for t. It fails unless the
// stored order still has t.From and t.Version.
func (s *Store) TransitionItem(t Transition) aws.TxItem {
	expr := "SET #s = :to, #v = :next, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":to":       &types.AttributeValueMemberS{Value: string(t.To)},
		":from":     &types.AttributeValueMemberS{Value: string(t.From)},
		":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(t.Version)},
		":next":     &types.AttributeValueMemberN{Value: strconv.Itoa(t.Version + 1)},
		":ua":       &types.AttributeValueMemberS{Value: t.At.UTC().Format(time.RFC3339Nano)},
	}
	if t.CancelledReason != "" {
		expr += ", cancelled_reason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: t.CancelledReason}
	}
	return aws.TxItem{
		Kind: TxKindTransition,
		Key:  t.OrderID,
		Item: types.TransactWriteItem{
			Update: &types.Update{
				TableName:                           &s.tableName,
				Key:                                 orderKey(t.OrderID),
				UpdateExpression:                    &expr,
				ConditionExpression:                 awsString("#v = :expected AND #s = :from"),
				ExpressionAttributeNames:            map[string]string{"#s": "status", "#v": "version"},
				ExpressionAttributeValues:           values,
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			},
		},
	}
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
