// Package queue publishes translation job messages to SQS.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/pricofy/csv-translation/internal/domain"
)

// SQSAPI is the subset of the SQS client used by Queue.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Queue sends job messages to a single queue URL.
type Queue struct {
	client SQSAPI
	url    string
}

// New creates a Queue for url.
func New(client SQSAPI, url string) *Queue {
	return &Queue{client: client, url: url}
}

// Send enqueues msg and returns the message id assigned by SQS.
func (q *Queue) Send(ctx context.Context, msg domain.JobMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: marshal message: %w", domain.ErrQueue, err)
	}

	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: send job %s: %w", domain.ErrQueue, msg.FileID, err)
	}
	return aws.ToString(out.MessageId), nil
}
