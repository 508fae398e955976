package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/pipeline"
)

// Object tag and metadata names carrying the uploader.
const (
	TagUserID         = "user_id"
	TagUserEmail      = "user_email"
	MetadataAPIKey    = "api-key"
	metadataAmzAPIKey = "x-amz-meta-api-key"
)

func (d *Dispatcher) handleStorageRecord(ctx context.Context, rec *events.S3EventRecord) (*EnqueueResult, error) {
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		key = rec.S3.Object.Key
	}
	src := domain.ObjectRef{Bucket: rec.S3.Bucket.Name, Key: key}
	if src.Bucket == "" || src.Key == "" {
		return nil, fmt.Errorf("%w: storage record without bucket or key", domain.ErrInvalidContent)
	}

	who := d.storageIdentity(ctx, src)
	return d.Enqueue(ctx, src, who, d.opts.Languages)
}

// storageIdentity resolves the uploader of src from its tags, then from an
// API key stored in its metadata, then falls back to the system identity.
func (d *Dispatcher) storageIdentity(ctx context.Context, src domain.ObjectRef) domain.Identity {
	log := d.logger.With("bucket", src.Bucket, "key", src.Key)

	tags, err := d.objects.Tags(ctx, src)
	if err != nil {
		log.WarnContext(ctx, "could not read object tags", "error", err)
	} else if who := (domain.Identity{UserID: tags[TagUserID], Email: tags[TagUserEmail]}); !who.IsZero() {
		return who
	}

	info, err := d.objects.Head(ctx, src)
	if err != nil {
		log.WarnContext(ctx, "could not read object metadata", "error", err)
		return domain.SystemIdentity()
	}

	apiKey := info.Metadata[MetadataAPIKey]
	if apiKey == "" {
		apiKey = info.Metadata[metadataAmzAPIKey]
	}
	if apiKey != "" {
		if who, err := d.resolver.Resolve(ctx, apiKey); err == nil {
			return who
		}
		log.InfoContext(ctx, "object api key did not resolve")
	}

	log.InfoContext(ctx, "no uploader found, using system identity")
	return domain.SystemIdentity()
}

// handleQueueRecord runs the job carried by msg. A job that fails is still a
// result: its FAILED outcome is reported rather than returned as an error.
func (d *Dispatcher) handleQueueRecord(ctx context.Context, msg *events.SQSMessage) (*JobResult, error) {
	var job domain.JobMessage
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		return nil, fmt.Errorf("%w: message %s: %w", domain.ErrInvalidContent, msg.MessageId, err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	langs := job.Languages.WithDefaults(d.opts.Languages)
	src := domain.ObjectRef{Bucket: job.Bucket, Key: job.Key}

	res, err := d.runner.Run(ctx, pipeline.Job{
		FileID:    job.FileID,
		Timestamp: job.Timestamp,
		Source:    src,
		Languages: langs,
	})
	if res == nil {
		return nil, err
	}

	out := &JobResult{
		FileID:         job.FileID,
		Status:         res.Status,
		OriginalFile:   src.String(),
		TranslatedFile: res.TranslatedFile(),
		SourceLang:     langs.Source,
		TargetLang:     langs.Target,
		Duplicate:      res.Duplicate,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out, nil
}
