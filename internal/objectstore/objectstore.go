// Package objectstore reads and writes CSV objects in S3.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pricofy/csv-translation/internal/domain"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store is an S3-backed object store.
type Store struct {
	client S3API
}

// New creates a Store.
func New(client S3API) *Store {
	return &Store{client: client}
}

// Get downloads the object at ref.
func (s *Store) Get(ctx context.Context, ref domain.ObjectRef) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, wrap(err, "get", ref)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrStorage, ref, err)
	}
	return body, nil
}

// Put uploads body to ref.
func (s *Store) Put(ctx context.Context, ref domain.ObjectRef, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ref.Bucket),
		Key:         aws.String(ref.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return wrap(err, "put", ref)
	}
	return nil
}

// Head returns the object's attributes without its body.
func (s *Store) Head(ctx context.Context, ref domain.ObjectRef) (*domain.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, wrap(err, "head", ref)
	}

	info := &domain.ObjectInfo{
		Key:          ref.Key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		StorageClass: string(out.StorageClass),
		ETag:         aws.ToString(out.ETag),
		Metadata:     out.Metadata,
	}
	if info.StorageClass == "" {
		info.StorageClass = string(types.StorageClassStandard)
	}
	return info, nil
}

// Tags returns the object's tag set as a map.
func (s *Store) Tags(ctx context.Context, ref domain.ObjectRef) (map[string]string, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, wrap(err, "get tags of", ref)
	}

	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags, nil
}

// List returns up to maxKeys object summaries from the start of bucket.
func (s *Store) List(ctx context.Context, bucket string, maxKeys int32) ([]domain.ObjectInfo, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(maxKeys),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list s3://%s: %w", domain.ErrStorage, bucket, err)
	}

	objects := make([]domain.ObjectInfo, 0, len(out.Contents))
	for _, o := range out.Contents {
		objects = append(objects, domain.ObjectInfo{
			Key:          aws.ToString(o.Key),
			Size:         aws.ToInt64(o.Size),
			LastModified: aws.ToTime(o.LastModified),
			StorageClass: string(o.StorageClass),
			ETag:         aws.ToString(o.ETag),
		})
	}
	return objects, nil
}

// wrap tags err with ErrStorage, and also ErrObjectNotFound when S3 reports a
// missing key.
func wrap(err error, op string, ref domain.ObjectRef) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %w: %s %s: %w", domain.ErrStorage, domain.ErrObjectNotFound, op, ref, err)
	}
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, op, ref, err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}
