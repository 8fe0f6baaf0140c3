package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func slotAttributes(t *testing.T, key, value string) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(slotItem{PK: "SLOT#" + key, SK: slotSortKey, Value: value})
	require.NoError(t, err)
	return av
}

func TestDynamoBackend_Get(t *testing.T) {
	ctx := context.Background()
	client := new(mockDynamo)
	b := NewDynamoBackend(client, "partywings", zap.NewNop())

	client.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk, ok := in.Key["PK"].(*types.AttributeValueMemberS)
		return ok && pk.Value == "SLOT#cart" && *in.TableName == "partywings"
	})).Return(&dynamodb.GetItemOutput{Item: slotAttributes(t, "cart", `[{"id":"a"}]`)}, nil).Once()

	v, ok, err := b.Get(ctx, "cart")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, v)
	client.AssertExpectations(t)
}

func TestDynamoBackend_GetMissing(t *testing.T) {
	ctx := context.Background()
	client := new(mockDynamo)
	b := NewDynamoBackend(client, "partywings", zap.NewNop())
	client.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, ok, err := b.Get(ctx, "cart")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoBackend_SetPublishes(t *testing.T) {
	ctx := context.Background()
	client := new(mockDynamo)
	b := NewDynamoBackend(client, "partywings", zap.NewNop())

	client.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		pk, ok := in.Key["PK"].(*types.AttributeValueMemberS)
		return ok && pk.Value == "SLOT#cart" && in.UpdateExpression != nil &&
			in.ReturnValues == types.ReturnValueAllOld && len(in.ExpressionAttributeValues) == 3
	})).Return(&dynamodb.UpdateItemOutput{Attributes: slotAttributes(t, "cart", `[{"id":"a"}]`)}, nil).Once()

	var seen []ChangeEvent
	defer b.Subscribe(func(ev ChangeEvent) { seen = append(seen, ev) })()

	require.NoError(t, b.Set(ctx, "cart", "[]", "tab-1"))

	require.Len(t, seen, 1)
	assert.Equal(t, "tab-1", seen[0].Source)
	assert.Equal(t, `[{"id":"a"}]`, seen[0].OldValue)
	assert.Equal(t, "[]", seen[0].NewValue)
	client.AssertExpectations(t)
}

func TestDynamoBackend_SetFailure(t *testing.T) {
	ctx := context.Background()
	client := new(mockDynamo)
	b := NewDynamoBackend(client, "partywings", zap.NewNop())

	client.On("UpdateItem", ctx, mock.Anything).Return(nil, errors.New("throttled"))

	var seen []ChangeEvent
	defer b.Subscribe(func(ev ChangeEvent) { seen = append(seen, ev) })()

	assert.Error(t, b.Set(ctx, "cart", "[]", "tab-1"))
	assert.Empty(t, seen)
}

func TestDynamoBackend_Remove(t *testing.T) {
	ctx := context.Background()
	client := new(mockDynamo)
	b := NewDynamoBackend(client, "partywings", zap.NewNop())

	client.On("DeleteItem", ctx, mock.Anything).
		Return(&dynamodb.DeleteItemOutput{Attributes: slotAttributes(t, "cart", "[]")}, nil).Once()
	client.On("DeleteItem", ctx, mock.Anything).
		Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	var seen []ChangeEvent
	defer b.Subscribe(func(ev ChangeEvent) { seen = append(seen, ev) })()

	require.NoError(t, b.Remove(ctx, "cart", "tab-1"))
	require.NoError(t, b.Remove(ctx, "cart", "tab-1"))

	require.Len(t, seen, 1)
	assert.True(t, seen[0].Removed)
	assert.Equal(t, "[]", seen[0].OldValue)
}
