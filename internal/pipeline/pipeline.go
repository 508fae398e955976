// Package pipeline runs one translation job end to end: it parses the CSV,
// translates every cell, stores the result and advances the Job Record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pricofy/csv-translation/internal/csvcodec"
	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/translator"
)

const (
	// DirectUploadName names inline content in output keys.
	DirectUploadName = "direct_upload.csv"

	// OutputContentType is set on every stored result.
	OutputContentType = "text/csv"

	outputKeyLayout = "20060102150405"
	failureTimeout  = 5 * time.Second

	defaultCellTimeout = 10 * time.Second
)

// JobStore is the part of the metadata store the pipeline writes to.
type JobStore interface {
	Get(ctx context.Context, fileID string) (*domain.JobRecord, error)
	Transition(ctx context.Context, key domain.JobKey, to domain.Status, fields domain.TransitionFields) error
}

// ObjectStore reads sources and writes results.
type ObjectStore interface {
	Get(ctx context.Context, ref domain.ObjectRef) ([]byte, error)
	Put(ctx context.Context, ref domain.ObjectRef, body []byte, contentType string) error
}

// Options tunes a Pipeline.
type Options struct {
	OutputBucket string
	// Concurrency bounds in-flight translation calls per document.
	Concurrency int
	// CellTimeout bounds a single translation call.
	CellTimeout time.Duration
}

// Job is one unit of work. Exactly one of Source and Content is used:
// Content when non-nil, otherwise the object at Source.
type Job struct {
	FileID     string
	Timestamp  string
	Source     domain.ObjectRef
	Content    []byte
	SourceName string
	Languages  domain.Languages
}

// Result describes the outcome of Run.
type Result struct {
	FileID        string
	Status        domain.Status
	Output        domain.ObjectRef
	Document      *csvcodec.Document
	FallbackCells int
	// Duplicate is set when the record had already left PROCESSING, meaning
	// this run is a redelivery.
	Duplicate   bool
	ErrorDetail string
}

// TranslatedFile is the s3:// location recorded on the Job Record.
func (r *Result) TranslatedFile() string {
	if r.Output.Key == "" {
		return ""
	}
	return r.Output.String()
}

// Pipeline runs translation jobs.
type Pipeline struct {
	jobs       JobStore
	objects    ObjectStore
	translator translator.Translator
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
	newID      func() string
}

// New creates a Pipeline.
func New(jobs JobStore, objects ObjectStore, tr translator.Translator, logger *slog.Logger, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		jobs:       jobs,
		objects:    objects,
		translator: tr,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run processes job. A structural failure marks the record FAILED and is
// returned wrapped in domain.ErrStructural together with a FAILED result.
// Redelivery of a job whose record is already terminal is not an error: a
// new output object is written and the record is left as it is.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	log := p.logger.With("file_id", job.FileID)
	res := &Result{FileID: job.FileID, Status: domain.StatusProcessing}

	key, err := p.recordKey(ctx, job)
	if err != nil {
		res.Status = domain.StatusFailed
		res.ErrorDetail = err.Error()
		return res, fmt.Errorf("%w: %w", domain.ErrStructural, err)
	}

	err = p.jobs.Transition(ctx, key, domain.StatusProcessing, domain.TransitionFields{})
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		log.WarnContext(ctx, "job already finished, reprocessing redelivered message", "error", err)
		res.Duplicate = true
	case err != nil:
		return p.fail(ctx, log, key, res, err)
	}

	if err := p.process(ctx, job, res); err != nil {
		return p.fail(ctx, log, key, res, err)
	}

	err = p.jobs.Transition(ctx, key, domain.StatusCompleted, domain.TransitionFields{TranslatedFile: res.TranslatedFile()})
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		log.InfoContext(ctx, "record already terminal, keeping first outcome", "output", res.TranslatedFile())
		res.Duplicate = true
	case err != nil:
		return p.fail(ctx, log, key, res, err)
	}

	res.Status = domain.StatusCompleted
	log.InfoContext(ctx, "translation completed",
		"output", res.TranslatedFile(),
		"rows", len(res.Document.Rows),
		"fallback_cells", res.FallbackCells,
		"duplicate", res.Duplicate,
	)
	return res, nil
}

// recordKey returns the key of the job's record, reading the latest
// timestamp from the store when the job does not carry one.
func (p *Pipeline) recordKey(ctx context.Context, job Job) (domain.JobKey, error) {
	if job.FileID == "" {
		return domain.JobKey{}, fmt.Errorf("%w: job has no file_id", domain.ErrInvalidContent)
	}
	if job.Timestamp != "" {
		return domain.JobKey{FileID: job.FileID, Timestamp: job.Timestamp}, nil
	}
	rec, err := p.jobs.Get(ctx, job.FileID)
	if err != nil {
		return domain.JobKey{}, err
	}
	return rec.Key(), nil
}

func (p *Pipeline) process(ctx context.Context, job Job, res *Result) error {
	if err := job.Languages.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidContent, err)
	}

	content := job.Content
	if content == nil {
		body, err := p.objects.Get(ctx, job.Source)
		if err != nil {
			return err
		}
		content = body
	}

	doc, err := csvcodec.Parse(string(content))
	if err != nil {
		return err
	}

	translated, fallbacks, err := p.TranslateDocument(ctx, doc, job.Languages)
	if err != nil {
		return err
	}

	text, err := csvcodec.Serialize(translated)
	if err != nil {
		return err
	}

	out := domain.ObjectRef{Bucket: p.opts.OutputBucket, Key: p.outputKey(job)}
	if err := p.objects.Put(ctx, out, []byte(text), OutputContentType); err != nil {
		return err
	}

	res.Output = out
	res.Document = translated
	res.FallbackCells = fallbacks
	return nil
}

// fail records the FAILED state. The write uses a context detached from
// ctx so an expired invocation deadline still leaves a terminal record.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, key domain.JobKey, res *Result, cause error) (*Result, error) {
	res.Status = domain.StatusFailed
	res.ErrorDetail = cause.Error()
	log.ErrorContext(ctx, "translation failed", "error", cause)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureTimeout)
	defer cancel()

	err := p.jobs.Transition(wctx, key, domain.StatusFailed, domain.TransitionFields{ErrorDetail: res.ErrorDetail})
	if err != nil {
		log.ErrorContext(ctx, "failed to mark job as failed", "error", err)
	}
	return res, fmt.Errorf("%w: %w", domain.ErrStructural, cause)
}

// outputKey builds translated_<yyyymmddHHMMSS>_<8 hex>_<basename>. The
// random part keeps redeliveries within the same second apart.
func (p *Pipeline) outputKey(job Job) string {
	name := job.SourceName
	if name == "" {
		name = job.Source.Key
	}
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		name = DirectUploadName
	}
	suffix := strings.ReplaceAll(p.newID(), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("translated_%s_%s_%s", p.now().UTC().Format(outputKeyLayout), suffix, name)
}
