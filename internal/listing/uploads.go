package listing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/httpapi"
)

// JobQuery finds the records of one requester.
type JobQuery interface {
	QueryByEmail(ctx context.Context, email string) ([]domain.JobRecord, error)
}

// ObjectHeader reads object attributes.
type ObjectHeader interface {
	Head(ctx context.Context, ref domain.ObjectRef) (*domain.ObjectInfo, error)
}

// Uploads lists the translated files of the authenticated user.
type Uploads struct {
	jobs    JobQuery
	objects ObjectHeader
	bucket  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewUploads creates the per-user listing handler. bucket is the output
// bucket that translated files live in.
func NewUploads(jobs JobQuery, objects ObjectHeader, bucket string, logger *slog.Logger) *Uploads {
	return &Uploads{jobs: jobs, objects: objects, bucket: bucket, logger: logger, now: time.Now}
}

// Handle serves GET and OPTIONS. The requester is the email claim set by the
// user pool authorizer.
func (u *Uploads) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if httpapi.IsPreflight(req) {
		return httpapi.Preflight(), nil
	}

	email := httpapi.Claims(req)["email"]
	if email == "" {
		return httpapi.Error(http.StatusBadRequest, "Email not found in Cognito claims"), nil
	}
	log := u.logger.With("email", email)

	since := cutoff(ctx, u.logger, req.QueryStringParameters, u.now())

	records, err := u.jobs.QueryByEmail(ctx, email)
	if err != nil {
		log.ErrorContext(ctx, "failed to query uploads", "error", err)
		return httpapi.ErrorDetails(http.StatusInternalServerError, "Failed to query uploads", err.Error()), nil
	}

	var files []FileEntry
	for _, rec := range records {
		if rec.TranslatedFile == nil || !isCSV(*rec.TranslatedFile) {
			continue
		}
		ref := domain.ParseObjectURI(*rec.TranslatedFile, u.bucket)

		info, err := u.objects.Head(ctx, ref)
		if err != nil {
			if !errors.Is(err, domain.ErrObjectNotFound) {
				log.WarnContext(ctx, "failed to read translated file", "file_id", rec.FileID, "error", err)
			}
			continue
		}
		if !since.IsZero() && info.LastModified.Before(since) {
			continue
		}
		files = append(files, entry(*info))
	}

	log.InfoContext(ctx, "listed uploads", "records", len(records), "count", len(files))
	return httpapi.JSON(http.StatusOK, newResponse(u.bucket, files)), nil
}
