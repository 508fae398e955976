package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pricofy/csv-translation/internal/domain"
)

// APIKeys is the API key metadata table, keyed by user_id with a GSI on
// api_key.
type APIKeys struct {
	client DynamoDBAPI
	table  string
	index  string
}

// NewAPIKeys creates an APIKeys store.
func NewAPIKeys(client DynamoDBAPI, table, index string) *APIKeys {
	return &APIKeys{client: client, table: table, index: index}
}

// FindByAPIKey returns the records holding apiKey. At most two are fetched,
// which is enough for callers to detect an ambiguous key.
func (a *APIKeys) FindByAPIKey(ctx context.Context, apiKey string) ([]domain.APIKeyRecord, error) {
	out, err := a.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(a.table),
		IndexName:              aws.String(a.index),
		KeyConditionExpression: aws.String("api_key = :api_key"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":api_key": &types.AttributeValueMemberS{Value: apiKey},
		},
		Limit: aws.Int32(2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query api key index: %w", err)
	}

	var records []domain.APIKeyRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api key records: %w", err)
	}
	return records, nil
}

// GetByUser returns the key record of userID.
func (a *APIKeys) GetByUser(ctx context.Context, userID string) (*domain.APIKeyRecord, error) {
	out, err := a.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(a.table),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get api key for user %s: %w", userID, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: api key for user %s", domain.ErrNotFound, userID)
	}

	var rec domain.APIKeyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api key record: %w", err)
	}
	return &rec, nil
}

// Create stores rec unless the user already has a key.
func (a *APIKeys) Create(ctx context.Context, rec domain.APIKeyRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal api key record: %w", err)
	}

	_, err = a.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(a.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: api key for user %s", domain.ErrAlreadyExists, rec.UserID)
		}
		return fmt.Errorf("failed to put api key record: %w", err)
	}
	return nil
}
