// Package metadata stores Job Records and API key records in DynamoDB.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/pricofy/csv-translation/internal/domain"
)

// DynamoDBAPI is the subset of the DynamoDB client used by this package.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Jobs is the Job Record table.
type Jobs struct {
	client     DynamoDBAPI
	table      string
	emailIndex string
	now        func() time.Time
}

// NewJobs creates a Jobs store over table, with emailIndex as the GSI keyed
// by requester email.
func NewJobs(client DynamoDBAPI, table, emailIndex string) *Jobs {
	return &Jobs{client: client, table: table, emailIndex: emailIndex, now: time.Now}
}

// Create inserts rec only if no record with its file_id exists.
func (j *Jobs) Create(ctx context.Context, rec domain.JobRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(j.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(file_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: job %s", domain.ErrAlreadyExists, rec.FileID)
		}
		return fmt.Errorf("failed to put job %s: %w", rec.FileID, err)
	}
	return nil
}

// Get returns the most recent record for fileID.
func (j *Jobs) Get(ctx context.Context, fileID string) (*domain.JobRecord, error) {
	out, err := j.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(j.table),
		KeyConditionExpression: aws.String("file_id = :file_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":file_id": &types.AttributeValueMemberS{Value: fileID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", fileID, err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, fileID)
	}

	var rec domain.JobRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", fileID, err)
	}
	return &rec, nil
}

// Transition sets the status of the record at key to `to`, together with
// fields. The write is conditional on the current status being one of
// domain.TransitionSources(to); otherwise ErrInvalidTransition is returned,
// or ErrNotFound when the record does not exist.
func (j *Jobs) Transition(ctx context.Context, key domain.JobKey, to domain.Status, fields domain.TransitionFields) error {
	sources := domain.TransitionSources(to)
	if len(sources) == 0 {
		return fmt.Errorf("%w: nothing transitions to %s", domain.ErrInvalidTransition, to)
	}

	k, err := attributevalue.MarshalMap(key)
	if err != nil {
		return fmt.Errorf("failed to marshal job key: %w", err)
	}

	values := map[string]types.AttributeValue{
		":to":      &types.AttributeValueMemberS{Value: string(to)},
		":updated": &types.AttributeValueMemberS{Value: domain.FormatTimestamp(j.now())},
	}
	sets := []string{"#status = :to", "updated_at = :updated"}
	if fields.TranslatedFile != "" {
		values[":translated_file"] = &types.AttributeValueMemberS{Value: fields.TranslatedFile}
		sets = append(sets, "translated_file = :translated_file")
	}
	if fields.ErrorDetail != "" {
		values[":error_detail"] = &types.AttributeValueMemberS{Value: fields.ErrorDetail}
		sets = append(sets, "error_detail = :error_detail")
	}

	placeholders := make([]string, len(sources))
	for i, s := range sources {
		p := fmt.Sprintf(":from%d", i)
		placeholders[i] = p
		values[p] = &types.AttributeValueMemberS{Value: string(s)}
	}

	_, err = j.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(j.table),
		Key:              k,
		UpdateExpression: aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression: aws.String(fmt.Sprintf(
			"attribute_exists(file_id) AND #status IN (%s)", strings.Join(placeholders, ", "),
		)),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return fmt.Errorf("%w: job %s", domain.ErrNotFound, key.FileID)
			}
			var current domain.JobRecord
			_ = attributevalue.UnmarshalMap(ccf.Item, &current)
			return fmt.Errorf("%w: job %s is %s, cannot become %s", domain.ErrInvalidTransition, key.FileID, current.Status, to)
		}
		return fmt.Errorf("failed to update job %s to %s: %w", key.FileID, to, err)
	}
	return nil
}

// QueryByEmail returns every record requested by email.
func (j *Jobs) QueryByEmail(ctx context.Context, email string) ([]domain.JobRecord, error) {
	paginator := dynamodb.NewQueryPaginator(j.client, &dynamodb.QueryInput{
		TableName:              aws.String(j.table),
		IndexName:              aws.String(j.emailIndex),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: email},
		},
	})

	var records []domain.JobRecord
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query jobs by email: %w", err)
		}
		var batch []domain.JobRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal jobs: %w", err)
		}
		records = append(records, batch...)
	}
	return records, nil
}
