package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/csv-translation/internal/domain"
)

type fakeS3 struct {
	objects map[string][]byte
	put     *s3.PutObjectInput
	tags    []types.Tag
	list    []types.Object
	err     error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(42),
		LastModified:  aws.Time(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)),
		ETag:          aws.String(`"abc"`),
		Metadata:      map[string]string{"api-key": "validkey123"},
	}, nil
}

func (f *fakeS3) GetObjectTagging(_ context.Context, _ *s3.GetObjectTaggingInput, _ ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
	return &s3.GetObjectTaggingOutput{TagSet: f.tags}, f.err
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.ListObjectsV2Output{Contents: f.list, MaxKeys: in.MaxKeys}, nil
}

func TestStore_GetPut(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"in/a.csv": []byte("a,b\n1,2\n")}}
	store := New(client)
	ctx := context.Background()

	body, err := store.Get(ctx, domain.ObjectRef{Bucket: "in", Key: "in/a.csv"})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))

	_, err = store.Get(ctx, domain.ObjectRef{Bucket: "in", Key: "missing.csv"})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)

	require.NoError(t, store.Put(ctx, domain.ObjectRef{Bucket: "out", Key: "b.csv"}, []byte("x"), "text/csv"))
	assert.Equal(t, "out", aws.ToString(client.put.Bucket))
	assert.Equal(t, "text/csv", aws.ToString(client.put.ContentType))
}

func TestStore_PutError(t *testing.T) {
	store := New(&fakeS3{err: errors.New("access denied")})
	err := store.Put(context.Background(), domain.ObjectRef{Bucket: "out", Key: "b.csv"}, nil, "text/csv")
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NotErrorIs(t, err, domain.ErrObjectNotFound)
	assert.Contains(t, err.Error(), "s3://out/b.csv")
}

func TestStore_Head(t *testing.T) {
	store := New(&fakeS3{objects: map[string][]byte{"a.csv": nil}})

	info, err := store.Head(context.Background(), domain.ObjectRef{Bucket: "b", Key: "a.csv"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "STANDARD", info.StorageClass)
	assert.Equal(t, "validkey123", info.Metadata["api-key"])

	_, err = store.Head(context.Background(), domain.ObjectRef{Bucket: "b", Key: "gone.csv"})
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestStore_Tags(t *testing.T) {
	store := New(&fakeS3{tags: []types.Tag{
		{Key: aws.String("user_id"), Value: aws.String("u-1")},
		{Key: aws.String("user_email"), Value: aws.String("a@b.c")},
	}})

	tags, err := store.Tags(context.Background(), domain.ObjectRef{Bucket: "b", Key: "a.csv"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"user_id": "u-1", "user_email": "a@b.c"}, tags)
}

func TestStore_List(t *testing.T) {
	store := New(&fakeS3{list: []types.Object{
		{Key: aws.String("a.csv"), Size: aws.Int64(3), StorageClass: types.ObjectStorageClassStandard},
		{Key: aws.String("b.txt"), Size: aws.Int64(4)},
	}})

	objects, err := store.List(context.Background(), "bucket", 100)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a.csv", objects[0].Key)
	assert.Equal(t, "STANDARD", objects[0].StorageClass)

	_, err = New(&fakeS3{err: errors.New("boom")}).List(context.Background(), "bucket", 100)
	assert.ErrorIs(t, err, domain.ErrStorage)
}
