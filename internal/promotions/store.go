package promotions

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-grocery-orderflow/internal/aws"
)

// TxKindUsage tags the usage-counter item inside a placement transaction.
const TxKindUsage = "promotion_usage"

// Store reads promotional codes and builds usage increments.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a promotions Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Normalize canonicalises a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup fetches a code. Returns (nil, nil) if the code does not exist.
func (s *Store) Lookup(ctx context.Context, code string) (*Promotion, error) {
	code = Normalize(code)
	if code == "" {
		return nil, nil
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key(code),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal promotion: %w", err)
	}
	p, err := rec.toDomain()
	if err != nil {
		return nil, fmt.Errorf("decode promotion %s: %w", code, err)
	}
	return &p, nil
}

// Save upserts a promotion.
func (s *Store) Save(ctx context.Context, p Promotion) error {
	p.Code = Normalize(p.Code)
	item, err := attributevalue.MarshalMap(newRecord(p))
	if err != nil {
		return fmt.Errorf("marshal promotion: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put promotion: %w", err)
	}
	return nil
}

// IncrementUsage returns a transaction item bumping used_count by one. The
// code must still exist and be active when the transaction commits.
func (s *Store) IncrementUsage(code string) aws.TxItem {
	code = Normalize(code)
	return aws.TxItem{
		Kind: TxKindUsage,
		Key:  code,
		Item: types.TransactWriteItem{
			Update: &types.Update{
				TableName:           &s.tableName,
				Key:                 key(code),
				UpdateExpression:    awsString("SET used_count = if_not_exists(used_count, :zero) + :one"),
				ConditionExpression: awsString("attribute_exists(code) AND is_active = :active"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":zero":   &types.AttributeValueMemberN{Value: "0"},
					":one":    &types.AttributeValueMemberN{Value: "1"},
					":active": &types.AttributeValueMemberBOOL{Value: true},
				},
			},
		},
	}
}

func key(code string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"code": &types.AttributeValueMemberS{Value: code},
	}
}

func awsString(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
