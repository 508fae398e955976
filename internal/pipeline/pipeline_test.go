package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/csv-translation/internal/csvcodec"
	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/logger"
)

var esLangs = domain.Languages{Source: "auto", Target: "es"}

// memJobs is an in-memory JobStore that enforces the same conditional
// transitions as the DynamoDB adapter.
type memJobs struct {
	mu      sync.Mutex
	records map[string]*domain.JobRecord
	history []domain.Status
	failOn  domain.Status
}

func newMemJobs(recs ...domain.JobRecord) *memJobs {
	m := &memJobs{records: map[string]*domain.JobRecord{}}
	for _, r := range recs {
		m.records[r.FileID] = &r
	}
	return m
}

func (m *memJobs) Get(_ context.Context, fileID string) (*domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memJobs) Transition(_ context.Context, key domain.JobKey, to domain.Status, fields domain.TransitionFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to == m.failOn {
		return errors.New("store unavailable")
	}
	rec, ok := m.records[key.FileID]
	if !ok || rec.Timestamp != key.Timestamp {
		return domain.ErrNotFound
	}
	if !slices.Contains(domain.TransitionSources(to), rec.Status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, rec.Status, to)
	}
	rec.Status = to
	if fields.TranslatedFile != "" {
		tf := fields.TranslatedFile
		rec.TranslatedFile = &tf
	}
	rec.ErrorDetail = fields.ErrorDetail
	m.history = append(m.history, to)
	return nil
}

func (m *memJobs) status(fileID string) domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[fileID].Status
}

type memObjects struct {
	mu      sync.Mutex
	objects map[domain.ObjectRef]string
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[domain.ObjectRef]string{}}
}

func (m *memObjects) Get(_ context.Context, ref domain.ObjectRef) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", domain.ErrStorage, domain.ErrObjectNotFound, ref)
	}
	return []byte(body), nil
}

func (m *memObjects) Put(_ context.Context, ref domain.ObjectRef, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[ref] = string(body)
	return nil
}

func (m *memObjects) outputs(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for ref := range m.objects {
		if ref.Bucket == bucket {
			keys = append(keys, ref.Key)
		}
	}
	return keys
}

// dictTranslator translates from a fixed dictionary; unknown words fail.
type dictTranslator struct {
	mu    sync.Mutex
	words map[string]string
	calls []string
	block chan struct{}
}

func (d *dictTranslator) Translate(ctx context.Context, text string, _ domain.Languages) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, text)
	d.mu.Unlock()
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if out, ok := d.words[text]; ok {
		return out, nil
	}
	return "", fmt.Errorf("%w: no translation for %q", domain.ErrTranslation, text)
}

func queued(fileID string) domain.JobRecord {
	return domain.NewJobRecord(fileID, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		domain.SystemIdentity(), "s3://in/data.csv", "in", esLangs)
}

func newTestPipeline(jobs *memJobs, objects *memObjects, tr *dictTranslator) *Pipeline {
	p := New(jobs, objects, tr, logger.Discard(), Options{OutputBucket: "out", Concurrency: 4, CellTimeout: time.Second})
	p.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }
	return p
}

func TestRun_InlineScenario(t *testing.T) {
	jobs := newMemJobs(queued("f-1"))
	objects := newMemObjects()
	tr := &dictTranslator{words: map[string]string{"Hello": "Hola"}}
	p := newTestPipeline(jobs, objects, tr)
	p.newID = func() string { return "0123abcd-0000-0000-0000-000000000000" }

	res, err := p.Run(context.Background(), Job{
		FileID:    "f-1",
		Content:   []byte("name,greeting\nAlice,Hello\n"),
		Languages: esLangs,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, res.Status)
	want := domain.ObjectRef{Bucket: "out", Key: "translated_20261015093000_0123abcd_direct_upload.csv"}
	assert.Equal(t, want, res.Output)
	assert.Equal(t, "name,greeting\nAlice,Hola\n", objects.objects[want])
	assert.Equal(t, [][]string{{"name", "greeting"}, {"Alice", "Hola"}}, res.Document.Records())
	assert.Equal(t, 1, res.FallbackCells, "Alice has no dictionary entry")

	rec, _ := jobs.Get(context.Background(), "f-1")
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	require.NotNil(t, rec.TranslatedFile)
	assert.Equal(t, "s3://out/translated_20261015093000_0123abcd_direct_upload.csv", *rec.TranslatedFile)
	assert.Equal(t, []domain.Status{domain.StatusProcessing, domain.StatusCompleted}, jobs.history)
	assert.NotContains(t, tr.calls, "name", "header cells are not translated")
}

func TestRun_FromObjectStore(t *testing.T) {
	rec := queued("f-2")
	jobs := newMemJobs(rec)
	objects := newMemObjects()
	objects.objects[domain.ObjectRef{Bucket: "in", Key: "uploads/data.csv"}] = "id;text\r\n1;Hello\r\n2;  \r\n"
	p := newTestPipeline(jobs, objects, &dictTranslator{words: map[string]string{"Hello": "Hola", "1": "1", "2": "2"}})

	res, err := p.Run(context.Background(), Job{
		FileID:    "f-2",
		Timestamp: rec.Timestamp,
		Source:    domain.ObjectRef{Bucket: "in", Key: "uploads/data.csv"},
		Languages: esLangs,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.Output.Key, "_data.csv"))
	assert.Equal(t, "id;text\r\n1;Hola\r\n2;\"  \"\r\n", objects.objects[res.Output])
	assert.Equal(t, "  ", res.Document.Rows[1][1])
	assert.Zero(t, res.FallbackCells)
}

func TestRun_DuplicateDelivery(t *testing.T) {
	jobs := newMemJobs(queued("f-3"))
	objects := newMemObjects()
	objects.objects[domain.ObjectRef{Bucket: "in", Key: "data.csv"}] = "name,greeting\nAlice,Hello\n"
	p := newTestPipeline(jobs, objects, &dictTranslator{words: map[string]string{"Hello": "Hola"}})
	ids := []string{"aaaaaaaa-1", "bbbbbbbb-2"}
	p.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	job := Job{FileID: "f-3", Source: domain.ObjectRef{Bucket: "in", Key: "data.csv"}, Languages: esLangs}

	first, err := p.Run(context.Background(), job)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, domain.StatusCompleted, second.Status)
	assert.NotEqual(t, first.Output, second.Output)
	assert.Len(t, objects.outputs("out"), 2)

	rec, _ := jobs.Get(context.Background(), "f-3")
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.Equal(t, first.TranslatedFile(), *rec.TranslatedFile)
	assert.Equal(t, []domain.Status{domain.StatusProcessing, domain.StatusCompleted}, jobs.history)
}

func TestRun_RedeliveryWhileProcessing(t *testing.T) {
	rec := queued("f-4")
	rec.Status = domain.StatusProcessing
	jobs := newMemJobs(rec)
	p := newTestPipeline(jobs, newMemObjects(), &dictTranslator{})

	res, err := p.Run(context.Background(), Job{FileID: "f-4", Content: []byte("a,b\n,\n"), Languages: esLangs})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, domain.StatusCompleted, jobs.status("f-4"))
}

func TestRun_StructuralFailures(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		objects func(*memObjects)
		jobs    func(*memJobs)
		wantErr error
	}{
		{
			name:    "malformed csv",
			job:     Job{Content: []byte("just one column\nno delimiter\n")},
			wantErr: domain.ErrMalformedCSV,
		},
		{
			name:    "missing source object",
			job:     Job{Source: domain.ObjectRef{Bucket: "in", Key: "gone.csv"}},
			wantErr: domain.ErrObjectNotFound,
		},
		{
			name:    "output write fails",
			job:     Job{Content: []byte("a,b\n1,2\n")},
			objects: func(m *memObjects) { m.putErr = fmt.Errorf("%w: access denied", domain.ErrStorage) },
			wantErr: domain.ErrStorage,
		},
		{
			name:    "same languages",
			job:     Job{Content: []byte("a,b\n1,2\n"), Languages: domain.Languages{Source: "es", Target: "es"}},
			wantErr: domain.ErrInvalidContent,
		},
		{
			name:    "completion not recorded",
			job:     Job{Content: []byte("a,b\n1,2\n")},
			jobs:    func(m *memJobs) { m.failOn = domain.StatusCompleted },
			wantErr: domain.ErrStructural,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := newMemJobs(queued("f-5"))
			objects := newMemObjects()
			if tt.objects != nil {
				tt.objects(objects)
			}
			if tt.jobs != nil {
				tt.jobs(jobs)
			}
			job := tt.job
			job.FileID = "f-5"
			if job.Languages == (domain.Languages{}) {
				job.Languages = esLangs
			}

			res, err := newTestPipeline(jobs, objects, &dictTranslator{}).Run(context.Background(), job)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStructural)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, domain.StatusFailed, res.Status)
			assert.NotEmpty(t, res.ErrorDetail)

			rec, _ := jobs.Get(context.Background(), "f-5")
			if tt.jobs == nil {
				assert.Equal(t, domain.StatusFailed, rec.Status)
				assert.Equal(t, res.ErrorDetail, rec.ErrorDetail)
				assert.Nil(t, rec.TranslatedFile)
			}
		})
	}
}

func TestRun_UnknownRecord(t *testing.T) {
	p := newTestPipeline(newMemJobs(), newMemObjects(), &dictTranslator{})

	res, err := p.Run(context.Background(), Job{FileID: "missing", Content: []byte("a,b\n1,2\n"), Languages: esLangs})
	assert.ErrorIs(t, err, domain.ErrStructural)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, domain.StatusFailed, res.Status)
}

func TestTranslateDocument_PassThrough(t *testing.T) {
	doc, err := csvcodec.Parse("a,b,c\nHello, ,\n,Hello,World\n")
	require.NoError(t, err)
	tr := &dictTranslator{words: map[string]string{"Hello": "Hola"}}
	p := newTestPipeline(newMemJobs(), newMemObjects(), tr)

	out, fallbacks, err := p.TranslateDocument(context.Background(), doc, esLangs)
	require.NoError(t, err)

	assert.Equal(t, []csvcodec.Row{{"Hola", " ", ""}, {"", "Hola", "World"}}, out.Rows)
	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, csvcodec.Row{"Hello", " ", ""}, doc.Rows[0], "input document is not mutated")
	assert.ElementsMatch(t, []string{"Hello", "Hello", "World"}, tr.calls)
}

func TestTranslateDocument_PreservesOrder(t *testing.T) {
	var b strings.Builder
	b.WriteString("n,word\n")
	words := map[string]string{}
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "%d,w%d\n", i, i)
		words[fmt.Sprintf("w%d", i)] = fmt.Sprintf("t%d", i)
		words[fmt.Sprint(i)] = fmt.Sprint(i)
	}
	doc, err := csvcodec.Parse(b.String())
	require.NoError(t, err)

	out, _, err := newTestPipeline(newMemJobs(), newMemObjects(), &dictTranslator{words: words}).
		TranslateDocument(context.Background(), doc, esLangs)
	require.NoError(t, err)
	for i, row := range out.Rows {
		assert.Equal(t, csvcodec.Row{fmt.Sprint(i), fmt.Sprintf("t%d", i)}, row)
	}
}

func TestTranslateDocument_Cancelled(t *testing.T) {
	doc, err := csvcodec.Parse("a,b\nHello,World\n")
	require.NoError(t, err)
	tr := &dictTranslator{block: make(chan struct{})}
	p := newTestPipeline(newMemJobs(), newMemObjects(), tr)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err = p.TranslateDocument(ctx, doc, esLangs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranslateCell_Timeout(t *testing.T) {
	tr := &dictTranslator{block: make(chan struct{}), words: map[string]string{"Hello": "Hola"}}
	p := newTestPipeline(newMemJobs(), newMemObjects(), tr)
	p.opts.CellTimeout = 10 * time.Millisecond

	cell := p.TranslateCell(context.Background(), "Hello", esLangs)
	assert.Equal(t, Cell{Text: "Hello", Fallback: true}, cell)
}

func TestTranslateText(t *testing.T) {
	p := newTestPipeline(newMemJobs(), newMemObjects(), &dictTranslator{words: map[string]string{"Hello": "Hola"}})

	out, err := p.TranslateText(context.Background(), "Hello", esLangs)
	require.NoError(t, err)
	assert.Equal(t, "Hola", out)

	_, err = p.TranslateText(context.Background(), "Goodbye", esLangs)
	assert.ErrorIs(t, err, domain.ErrTranslation)

	_, err = p.TranslateText(context.Background(), "Hello", domain.Languages{Source: "auto", Target: "auto"})
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
}

type upperTranslator struct {
	calls atomic.Int32
}

func (u *upperTranslator) Translate(_ context.Context, text string, _ domain.Languages) (string, error) {
	u.calls.Add(1)
	return strings.ToUpper(text), nil
}

func TestTranslateText_LongTextIsChunked(t *testing.T) {
	tr := &upperTranslator{}
	p := New(newMemJobs(), newMemObjects(), tr, logger.Discard(), Options{OutputBucket: "out"})

	text := "  " + strings.Repeat("hello world\n", 2000)
	out, err := p.TranslateText(context.Background(), text, esLangs)

	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(text), out)
	assert.Greater(t, tr.calls.Load(), int32(1))
}
