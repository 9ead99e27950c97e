// Package carts reads and clears shopping carts.
package carts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-orderflow/internal/apperr"
	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
)

// TxKindClear tags the cart delete inside a placement transaction.
const TxKindClear = "cart_clear"

// Line is one product in a cart. UnitPrice is what the buyer saw when adding
// the product; the catalog price wins at checkout.
type Line struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart is a user's pending selection. Version increases on every save.
type Cart struct {
	UserID    string
	Lines     []Line
	Version   int
	UpdatedAt time.Time
}

type lineRecord struct {
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
	UnitPrice string `dynamodbav:"unit_price"`
}

type record struct {
	UserID    string       `dynamodbav:"user_id"`
	Lines     []lineRecord `dynamodbav:"lines"`
	Version   int          `dynamodbav:"version"`
	UpdatedAt time.Time    `dynamodbav:"updated_at"`
}

// Store persists carts keyed by user id.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a carts Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// Get returns the user's cart. A user without a cart gets an empty one with
// version 0.
func (s *Store) Get(ctx context.Context, userID string) (*Cart, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(userID),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(out.Item) == 0 {
		return &Cart{UserID: userID}, nil
	}
	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	c := &Cart{UserID: rec.UserID, Version: rec.Version, UpdatedAt: rec.UpdatedAt, Lines: make([]Line, 0, len(rec.Lines))}
	for _, l := range rec.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", l.ProductID, err)
		}
		c.Lines = append(c.Lines, Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: price})
	}
	return c, nil
}

// Save writes the cart if nobody saved it since it was read and returns the
// stored version.
func (s *Store) Save(ctx context.Context, c Cart) (int, error) {
	rec := record{
		UserID:    c.UserID,
		Lines:     make([]lineRecord, 0, len(c.Lines)),
		Version:   c.Version + 1,
		UpdatedAt: s.nowFunc().UTC(),
	}
	for _, l := range c.Lines {
		rec.Lines = append(rec.Lines, lineRecord{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice.String()})
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return 0, fmt.Errorf("marshal cart: %w", err)
	}

	in := &dyn.PutItemInput{TableName: &s.tableName, Item: item}
	if c.Version == 0 {
		in.ConditionExpression = awsString("attribute_not_exists(user_id)")
	} else {
		in.ConditionExpression = awsString("#v = :v")
		in.ExpressionAttributeNames = map[string]string{"#v": "version"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{":v": number(c.Version)}
	}
	if _, err := s.client.PutItem(ctx, in); err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return 0, apperr.New(apperr.CodeConflict, "carts.save", "cart changed concurrently")
		}
		return 0, fmt.Errorf("put cart: %w", err)
	}
	return rec.Version, nil
}

// Clear deletes the cart unconditionally.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if _, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{TableName: &s.tableName, Key: key(userID)}); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// ClearItem returns a delete of the cart guarded by the version that was read,
// so a cart edited after checkout began cancels the placement.
func (s *Store) ClearItem(c Cart) aws.TxItem {
	return aws.TxItem{
		Kind: TxKindClear,
		Key:  c.UserID,
		Item: types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:                 &s.tableName,
				Key:                       key(c.UserID),
				ConditionExpression:       awsString("#v = :v"),
				ExpressionAttributeNames:  map[string]string{"#v": "version"},
				ExpressionAttributeValues: map[string]types.AttributeValue{":v": number(c.Version)},
			},
		},
	}
}

func key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func number(n int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func awsString(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
