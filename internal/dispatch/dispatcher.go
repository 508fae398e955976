// Package dispatch routes inbound Lambda events to the translation pipeline:
// API requests are translated inline, storage events are queued and queued
// job messages are processed.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/httpapi"
	"github.com/pricofy/csv-translation/internal/pipeline"
)

// DefaultMaxPayload is the largest request body accepted inline, in bytes.
const DefaultMaxPayload = 102400

const maxCreateAttempts = 3

// Resolver maps an API key to its owner.
type Resolver interface {
	Resolve(ctx context.Context, apiKey string) (domain.Identity, error)
}

// JobStore creates Job Records.
type JobStore interface {
	Create(ctx context.Context, rec domain.JobRecord) error
}

// ObjectStore reads the attributes of uploaded objects.
type ObjectStore interface {
	Head(ctx context.Context, ref domain.ObjectRef) (*domain.ObjectInfo, error)
	Tags(ctx context.Context, ref domain.ObjectRef) (map[string]string, error)
}

// Queue publishes job messages.
type Queue interface {
	Send(ctx context.Context, msg domain.JobMessage) (string, error)
}

// Runner executes translation jobs.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
	TranslateText(ctx context.Context, text string, langs domain.Languages) (string, error)
}

// Options configures a Dispatcher.
type Options struct {
	InputBucket  string
	OutputBucket string
	// Languages fills in whatever a request or message leaves unset.
	Languages  domain.Languages
	MaxPayload int
}

// Dispatcher handles every event kind accepted by the upload functions.
// Collaborators that a role does not use may be nil.
type Dispatcher struct {
	resolver Resolver
	jobs     JobStore
	objects  ObjectStore
	queue    Queue
	runner   Runner
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
	newID    func() string
}

// New creates a Dispatcher.
func New(resolver Resolver, jobs JobStore, objects ObjectStore, queue Queue, runner Runner, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	return &Dispatcher{
		resolver: resolver,
		jobs:     jobs,
		objects:  objects,
		queue:    queue,
		runner:   runner,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// BatchResponse is the body returned for a batch of records.
type BatchResponse struct {
	Message        string `json:"message"`
	ProcessedCount int    `json:"processed_count"`
	Results        []any  `json:"results"`
}

// EnqueueResult reports a queued job.
type EnqueueResult struct {
	FileID    string        `json:"file_id"`
	Status    domain.Status `json:"status"`
	UserEmail string        `json:"user_email"`
}

// JobResult reports a processed queue message.
type JobResult struct {
	FileID         string        `json:"file_id"`
	Status         domain.Status `json:"status"`
	OriginalFile   string        `json:"original_file"`
	TranslatedFile string        `json:"translated_file,omitempty"`
	SourceLang     string        `json:"source_lang"`
	TargetLang     string        `json:"target_lang"`
	Duplicate      bool          `json:"duplicate,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// Handle classifies raw and dispatches it. Errors and panics are turned into
// JSON responses; the returned error is always nil so Lambda does not retry.
func (d *Dispatcher) Handle(ctx context.Context, raw json.RawMessage) (resp events.APIGatewayProxyResponse, _ error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "panic while handling event", "panic", r)
			resp = httpapi.Error(http.StatusInternalServerError, fmt.Sprint(r))
		}
	}()

	event, err := Classify(raw)
	if err != nil {
		d.logger.WarnContext(ctx, "unsupported event", "error", err)
		return httpapi.Error(http.StatusBadRequest, "Unsupported event type"), nil
	}

	switch event.Kind {
	case KindSyncRequest:
		return d.HandleRequest(ctx, *event.Request), nil
	default:
		return httpapi.JSON(http.StatusOK, d.HandleRecords(ctx, event.Records)), nil
	}
}

// HandleRecords processes records one after another. A failing record is
// logged and left out of the results without affecting the others.
func (d *Dispatcher) HandleRecords(ctx context.Context, records []Record) BatchResponse {
	resp := BatchResponse{Message: "Event processed", Results: []any{}}

	for i, rec := range records {
		var (
			result any
			err    error
		)
		switch rec.Kind {
		case RecordStorage:
			result, err = d.handleStorageRecord(ctx, rec.Storage)
		case RecordQueue:
			result, err = d.handleQueueRecord(ctx, rec.Queue)
		default:
			d.logger.DebugContext(ctx, "skipping unrecognised record", "index", i)
			continue
		}
		if err != nil {
			d.logger.ErrorContext(ctx, "record failed", "index", i, "error", err)
			continue
		}
		resp.Results = append(resp.Results, result)
	}

	resp.ProcessedCount = len(resp.Results)
	return resp
}

// Enqueue creates a QUEUED record for src owned by who and sends its job
// message. When the send fails the record stays QUEUED and the error wraps
// domain.ErrQueue.
func (d *Dispatcher) Enqueue(ctx context.Context, src domain.ObjectRef, who domain.Identity, langs domain.Languages) (*EnqueueResult, error) {
	if d.queue == nil {
		return nil, fmt.Errorf("%w: no queue configured", domain.ErrQueue)
	}

	rec, err := d.createRecord(ctx, func(id string) domain.JobRecord {
		return domain.NewJobRecord(id, d.now(), who, src.String(), src.Bucket, langs)
	})
	if err != nil {
		return nil, err
	}

	msgID, err := d.queue.Send(ctx, domain.JobMessage{
		Bucket:    src.Bucket,
		Key:       src.Key,
		FileID:    rec.FileID,
		Timestamp: rec.Timestamp,
		Languages: langs,
	})
	if err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "job queued", "file_id", rec.FileID, "message_id", msgID, "source", src.String(), "user_id", who.UserID)
	return &EnqueueResult{FileID: rec.FileID, Status: rec.Status, UserEmail: who.Email}, nil
}

// createRecord inserts a new record, drawing a fresh file id when the
// conditional insert finds one already taken.
func (d *Dispatcher) createRecord(ctx context.Context, build func(id string) domain.JobRecord) (domain.JobRecord, error) {
	var err error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		rec := build(d.newID())
		err = d.jobs.Create(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return domain.JobRecord{}, err
		}
		d.logger.WarnContext(ctx, "file id collision, regenerating", "file_id", rec.FileID, "attempt", attempt)
	}
	return domain.JobRecord{}, err
}
