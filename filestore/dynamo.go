package filestore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoClient is the subset of the DynamoDB API used by DynamoStore.
// Narrowing the client keeps fakes trivial in tests.
type DynamoClient interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore implements FileStore on a DynamoDB table.
//
// Item shapes:
//   - header:  pk = "store|{store_id}|file_header", sk = "file_header|{path}"
//   - content: pk = sk = "store|{store_id}|file_content|{path}"
//
// The header partition groups all of a store's headers under one partition
// key so that a single Query enumerates them without touching payload bytes.
type DynamoStore struct {
	client    DynamoClient
	tableName string
	storeID   string
}

var _ FileStore = (*DynamoStore)(nil)

// NewDynamoStore creates a FileStore over the given table, scoped to storeID.
func NewDynamoStore(client DynamoClient, tableName, storeID string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		storeID:   storeID,
	}
}

func (s *DynamoStore) headerPK() string {
	return fmt.Sprintf("store|%s|file_header", s.storeID)
}

func (s *DynamoStore) headerSK(path string) string {
	return fmt.Sprintf("file_header|%s", path)
}

func (s *DynamoStore) contentPK(path string) string {
	return fmt.Sprintf("store|%s|file_content|%s", s.storeID, path)
}

func (s *DynamoStore) headerKey(path string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: s.headerPK()},
		"sk": &types.AttributeValueMemberS{Value: s.headerSK(path)},
	}
}

func (s *DynamoStore) contentKey(path string) map[string]types.AttributeValue {
	pk := s.contentPK(path)
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: pk},
	}
}

// WriteFile puts the header and content records in one transaction. Either
// both records exist afterwards or neither does.
func (s *DynamoStore) WriteFile(ctx context.Context, path string, content []byte) error {
	headerItem := map[string]types.AttributeValue{
		"pk":       &types.AttributeValueMemberS{Value: s.headerPK()},
		"sk":       &types.AttributeValueMemberS{Value: s.headerSK(path)},
		"store_id": &types.AttributeValueMemberS{Value: s.storeID},
		"path":     &types.AttributeValueMemberS{Value: path},
	}

	contentPK := s.contentPK(path)
	contentItem := map[string]types.AttributeValue{
		"pk":       &types.AttributeValueMemberS{Value: contentPK},
		"sk":       &types.AttributeValueMemberS{Value: contentPK},
		"store_id": &types.AttributeValueMemberS{Value: s.storeID},
		"content":  &types.AttributeValueMemberB{Value: content},
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: headerItem}},
			{Put: &types.Put{TableName: aws.String(s.tableName), Item: contentItem}},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: write %q: %w", ErrTransactionFailed, path, err)
	}

	return nil
}

// Exists checks the header record with a consistent read.
func (s *DynamoStore) Exists(ctx context.Context, path string) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.headerKey(path),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("filestore: exists %q: %w", path, err)
	}
	return out.Item != nil, nil
}

// ListFiles queries the header partition, following pagination.
func (s *DynamoStore) ListFiles(ctx context.Context) ([]string, error) {
	var paths []string

	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("#pk = :pk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": "pk",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: s.headerPK()},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("filestore: list files: %w", err)
		}

		for _, item := range out.Items {
			attr, ok := item["path"].(*types.AttributeValueMemberS)
			if !ok {
				return nil, fmt.Errorf("filestore: header record without path attribute")
			}
			paths = append(paths, attr.Value)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return paths, nil
}

// GetContent point-reads the content record. Missing content means empty.
func (s *DynamoStore) GetContent(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.contentKey(path),
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: get content %q: %w", path, err)
	}
	if out.Item == nil {
		return []byte{}, nil
	}

	attr, ok := out.Item["content"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("filestore: content record %q without content attribute", path)
	}
	return attr.Value, nil
}

// Delete removes the header record only. The content record stays behind as
// an orphan; exists and listing ignore it.
func (s *DynamoStore) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.headerKey(path),
	})
	if err != nil {
		return fmt.Errorf("filestore: delete %q: %w", path, err)
	}
	return nil
}
