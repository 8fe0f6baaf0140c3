package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoBackend.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// slotItem is the DynamoDB representation of one slot.
type slotItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Value     string `dynamodbav:"Value"`
	Source    string `dynamodbav:"Source"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

const slotSortKey = "SLOT"

// DynamoBackend stores slots as items of a DynamoDB table keyed by PK/SK.
// Change events are only fanned out to subscribers of this process.
type DynamoBackend struct {
	client    DynamoAPI
	tableName string
	logger    *zap.Logger
	changes   fanout
}

// NewDynamoBackend creates a backend over tableName.
func NewDynamoBackend(client DynamoAPI, tableName string, logger *zap.Logger) *DynamoBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoBackend{client: client, tableName: tableName, logger: logger}
}

func (b *DynamoBackend) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SLOT#" + key},
		"SK": &types.AttributeValueMemberS{Value: slotSortKey},
	}
}

// Get implements Backend.
func (b *DynamoBackend) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            b.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("get slot %q: %w", key, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var item slotItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", false, fmt.Errorf("unmarshal slot %q: %w", key, err)
	}
	return item.Value, true, nil
}

// Set implements Backend. The previous value comes back from the same
// UpdateItem call, so concurrent writers each see the value they replaced.
func (b *DynamoBackend) Set(ctx context.Context, key, value, source string) error {
	update := expression.
		Set(expression.Name("Value"), expression.Value(value)).
		Set(expression.Name("Source"), expression.Value(source)).
		Set(expression.Name("UpdatedAt"), expression.Value(time.Now().UTC().Format(time.RFC3339Nano)))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("build update for slot %q: %w", key, err)
	}

	out, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(b.tableName),
		Key:                       b.itemKey(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("update slot %q: %w", key, err)
	}

	var old slotItem
	if out.Attributes != nil {
		if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
			b.logger.Debug("Could not decode previous slot value", zap.String("key", key), zap.Error(err))
		}
	}
	b.changes.publish(ChangeEvent{Key: key, OldValue: old.Value, NewValue: value, Source: source})
	return nil
}

// Remove implements Backend.
func (b *DynamoBackend) Remove(ctx context.Context, key, source string) error {
	out, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(b.tableName),
		Key:          b.itemKey(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("delete slot %q: %w", key, err)
	}
	if out.Attributes == nil {
		return nil
	}
	var old slotItem
	_ = attributevalue.UnmarshalMap(out.Attributes, &old)
	b.changes.publish(ChangeEvent{Key: key, OldValue: old.Value, Removed: true, Source: source})
	return nil
}

// Subscribe implements Backend.
func (b *DynamoBackend) Subscribe(fn func(ChangeEvent)) func() {
	return b.changes.subscribe(fn)
}

// Close implements Backend.
func (b *DynamoBackend) Close() error { return nil }
