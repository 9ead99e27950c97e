// Package inventory owns product stock. Reservations and releases are built as
// transaction items so they commit together with the order that caused them.
package inventory

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

// Transaction item kinds produced by the ledger.
const (
	TxKindReserve = "reserve"
	TxKindRelease = "release"
)

// Ledger builds the stock movements of an order.
type Ledger interface {
	Reserve(productID string, qty, priceVersion int) aws.TxItem
	Release(productID string, qty int) aws.TxItem
}

var _ Ledger = (*Store)(nil)

// Store reads the catalog and builds stock movements on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates an inventory Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// GetProduct returns a product, or (nil, nil) if it does not exist.
func (s *Store) GetProduct(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(productID),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return decode(out.Item)
}

// SaveProduct upserts a product as given.
func (s *Store) SaveProduct(ctx context.Context, p Product) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.nowFunc()
	}
	item, err := attributevalue.MarshalMap(newRecord(p))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// UpdatePrice changes the list and discounted price and bumps price_version,
// which invalidates reservations priced against the old version.
func (s *Store) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal, discounted *decimal.Decimal) error {
	values := map[string]types.AttributeValue{
		":p":   &types.AttributeValueMemberS{Value: price.String()},
		":one": &types.AttributeValueMemberN{Value: "1"},
		":ua":  timestamp(s.nowFunc()),
	}
	expr := "SET price = :p, price_version = price_version + :one, updated_at = :ua"
	if discounted != nil {
		expr = "SET price = :p, discounted_price = :dp, price_version = price_version + :one, updated_at = :ua"
		values[":dp"] = &types.AttributeValueMemberS{Value: discounted.String()}
	} else {
		expr += " REMOVE discounted_price"
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(productID),
		UpdateExpression:          &expr,
		ConditionExpression:       awsString("attribute_exists(product_id)"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return apperr.New(apperr.CodeNotFound, "inventory.update_price", "product "+productID+" not found")
		}
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

// Adjust changes stock by delta outside of any order. Stock never drops below
// zero; a decrement larger than the current level fails with an
// InsufficientStockError.
func (s *Store) Adjust(ctx context.Context, productID string, delta int) (*Product, error) {
	const op = "inventory.adjust"
	if delta == 0 {
		return nil, apperr.Validation(op, "delta must not be zero")
	}

	cond := "attribute_exists(product_id)"
	values := map[string]types.AttributeValue{
		":d":  number(delta),
		":ua": timestamp(s.nowFunc()),
	}
	if delta < 0 {
		cond += " AND stock_quantity >= :need"
		values[":need"] = number(-delta)
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                           &s.tableName,
		Key:                                 key(productID),
		UpdateExpression:                    awsString("SET stock_quantity = stock_quantity + :d, updated_at = :ua"),
		ConditionExpression:                 &cond,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			if len(cf.Item) == 0 {
				return nil, apperr.New(apperr.CodeNotFound, op, "product "+productID+" not found")
			}
			available := -1
			if p, derr := decode(cf.Item); derr == nil {
				available = p.StockQuantity
			}
			return nil, &apperr.InsufficientStockError{ProductID: productID, Requested: -delta, Available: available}
		}
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	return decode(out.Attributes)
}

// Reserve returns a conditional decrement of qty units. The condition also
// pins the product to priceVersion and requires it to be active, so a price
// change or delisting between pricing and commit cancels the transaction.
func (s *Store) Reserve(productID string, qty, priceVersion int) aws.TxItem {
	return aws.TxItem{
		Kind: TxKindReserve,
		Key:  productID,
		Item: types.TransactWriteItem{
			Update: &types.Update{
				TableName:           &s.tableName,
				Key:                 key(productID),
				UpdateExpression:    awsString("SET stock_quantity = stock_quantity - :qty, updated_at = :ua"),
				ConditionExpression: awsString("attribute_exists(product_id) AND stock_quantity >= :qty AND price_version = :pv AND is_active = :active"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":qty":    number(qty),
					":pv":     number(priceVersion),
					":active": &types.AttributeValueMemberBOOL{Value: true},
					":ua":     timestamp(s.nowFunc()),
				},
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			},
		},
	}
}

// Release returns an increment of qty units. It only requires the product to
// still exist.
func (s *Store) Release(productID string, qty int) aws.TxItem {
	return aws.TxItem{
		Kind: TxKindRelease,
		Key:  productID,
		Item: types.TransactWriteItem{
			Update: &types.Update{
				TableName:           &s.tableName,
				Key:                 key(productID),
				UpdateExpression:    awsString("SET stock_quantity = stock_quantity + :qty, updated_at = :ua"),
				ConditionExpression: awsString("attribute_exists(product_id)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":qty": number(qty),
					":ua":  timestamp(s.nowFunc()),
				},
			},
		},
	}
}

// ReserveFailure turns a cancelled reservation into a domain error using the
// pre-image DynamoDB returned with the cancellation reason.
func ReserveFailure(op string, f aws.TxFailure, requested, priceVersion int) error {
	if f.Code != aws.ReasonConditionalCheck {
		return apperr.Wrap(apperr.CodeConflict, op, "inventory for product "+f.Key+" is being modified, retry", errors.New(f.Code))
	}
	if len(f.Item) == 0 {
		return apperr.New(apperr.CodeNotFound, op, "product "+f.Key+" not found")
	}
	p, err := decode(f.Item)
	if err != nil {
		return &apperr.InsufficientStockError{ProductID: f.Key, Requested: requested, Available: -1}
	}
	switch {
	case !p.IsActive:
		return apperr.New(apperr.CodeConflict, op, "product "+f.Key+" is no longer available")
	case p.PriceVersion != priceVersion:
		return apperr.New(apperr.CodeConflict, op, "price of product "+f.Key+" changed, retry")
	default:
		return &apperr.InsufficientStockError{ProductID: f.Key, Requested: requested, Available: p.StockQuantity}
	}
}

func decode(item map[string]types.AttributeValue) (*Product, error) {
	var rec record
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p, err := rec.toDomain()
	if err != nil {
		return nil, fmt.Errorf("decode product %s: %w", rec.ProductID, err)
	}
	return &p, nil
}

func key(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func number(n int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.Itoa(n)}
}

func timestamp(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339Nano)}
}

func awsString(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
