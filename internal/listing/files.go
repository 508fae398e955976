package listing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/httpapi"
)

// DefaultMaxKeys caps a single bucket listing.
const DefaultMaxKeys = 100

// ObjectLister lists a bucket.
type ObjectLister interface {
	List(ctx context.Context, bucket string, maxKeys int32) ([]domain.ObjectInfo, error)
}

// Files lists the CSV objects of one bucket.
type Files struct {
	objects ObjectLister
	bucket  string
	maxKeys int32
	logger  *slog.Logger
	now     func() time.Time
}

// NewFiles creates the bucket listing handler.
func NewFiles(objects ObjectLister, bucket string, maxKeys int32, logger *slog.Logger) *Files {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Files{objects: objects, bucket: bucket, maxKeys: maxKeys, logger: logger, now: time.Now}
}

// Handle serves GET and OPTIONS.
func (f *Files) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if httpapi.IsPreflight(req) {
		return httpapi.Preflight(), nil
	}

	since := cutoff(ctx, f.logger, req.QueryStringParameters, f.now())

	objects, err := f.objects.List(ctx, f.bucket, f.maxKeys)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to list bucket", "bucket", f.bucket, "error", err)
		return httpapi.ErrorDetails(http.StatusInternalServerError, "Failed to load CSV files", err.Error()), nil
	}

	var files []FileEntry
	for _, obj := range objects {
		if !isCSV(obj.Key) {
			continue
		}
		if !since.IsZero() && obj.LastModified.Before(since) {
			continue
		}
		files = append(files, entry(obj))
	}

	f.logger.InfoContext(ctx, "listed csv files", "bucket", f.bucket, "count", len(files))
	return httpapi.JSON(http.StatusOK, newResponse(f.bucket, files)), nil
}
