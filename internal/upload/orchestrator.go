// Package upload runs file uploads. Each upload is independent: it gets its
// own task, its own slot in every renderer and its own request, and its
// failure never touches its siblings.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"sync"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/models"
	"github.com/filedock/filedock/internal/progress"
	"github.com/filedock/filedock/internal/transfer"
)

// SlotRenderer shows one slot per upload.
// Placeholder is called before the request starts. Exactly one of Resolve or
// Fail follows, addressed to the same slot.
type SlotRenderer interface {
	Placeholder(slotID, name string, size int64)
	Progress(slotID string, fraction float64)
	Resolve(slotID string, record models.FileRecord)
	Fail(slotID string, err error)
}

// Orchestrator starts uploads and drives their tasks and slots.
type Orchestrator struct {
	client     *api.Client
	httpClient *nethttp.Client
	queue      *transfer.Queue
	renderers  []SlotRenderer
	sem        chan struct{} // nil when unlimited
	logger     *logging.Logger

	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTransferClient sets the HTTP client used for upload bodies.
// Defaults to the API client's HTTP client.
func WithTransferClient(hc *nethttp.Client) Option {
	return func(o *Orchestrator) { o.httpClient = hc }
}

// WithQueue sets the task tracker.
func WithQueue(q *transfer.Queue) Option {
	return func(o *Orchestrator) { o.queue = q }
}

// WithRenderers adds slot renderers.
func WithRenderers(r ...SlotRenderer) Option {
	return func(o *Orchestrator) { o.renderers = append(o.renderers, r...) }
}

// WithMaxConcurrent caps in-flight uploads. n <= 0 means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.sem = make(chan struct{}, n)
		} else {
			o.sem = nil
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an orchestrator sending through client.
func New(client *api.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: client,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = client.HTTPClient()
	}
	if o.queue == nil {
		o.queue = transfer.NewQueue(nil)
	}
	return o
}

// Queue returns the task tracker.
func (o *Orchestrator) Queue() *transfer.Queue {
	return o.queue
}

// Upload renders a placeholder for src and starts its request in the
// background. It returns at once.
func (o *Orchestrator) Upload(ctx context.Context, src Source) *transfer.Task {
	task := transfer.NewTask(ctx, src.Name(), src.Size())

	o.queue.Track(task)
	for _, r := range o.renderers {
		r.Placeholder(task.ID, task.Name, task.Size)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(task, src)
	}()
	return task
}

// UploadAll starts one upload per source.
func (o *Orchestrator) UploadAll(ctx context.Context, sources []Source) []*transfer.Task {
	tasks := make([]*transfer.Task, 0, len(sources))
	for _, src := range sources {
		tasks = append(tasks, o.Upload(ctx, src))
	}
	return tasks
}

// Wait blocks until every started upload has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(task *transfer.Task, src Source) {
	ctx := task.Context()

	if o.sem != nil {
		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-ctx.Done():
			o.fail(task, &api.NetworkError{FileName: task.Name, Err: ctx.Err()})
			return
		}
	}

	o.queue.Activate(task)
	o.logger.Debug().Str("task", task.ID).Str("file", task.Name).Msg("Upload started")

	record, err := o.send(ctx, task, src)
	if err != nil {
		o.fail(task, err)
		return
	}

	o.progress(task, 1)
	for _, r := range o.renderers {
		r.Resolve(task.ID, record)
	}
	o.queue.Complete(task, record)
	o.logger.Info().Str("file", task.Name).Str("unique_name", record.UniqueName).Msg("Upload complete")
}

func (o *Orchestrator) send(ctx context.Context, task *transfer.Task, src Source) (models.FileRecord, error) {
	var record models.FileRecord

	file, err := src.Open()
	if err != nil {
		return record, fmt.Errorf("failed to open %s: %w", task.Name, err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, o.client.URL(constants.PathUpload), pr)
	if err != nil {
		return record, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if err := o.client.Authorize(req); err != nil {
		return record, err
	}

	var body io.Reader = file
	if task.Size > 0 {
		body = progress.NewProgressReader(file, task.Size, &fractionReporter{o: o, task: task})
	}
	written := make(chan struct{})
	go func() {
		defer close(written)
		writeMultipart(pw, mw, task.Name, body)
	}()
	// Closing the read side unblocks the writer, which must be done with the
	// file before it is closed.
	defer func() {
		pr.Close()
		<-written
	}()

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return record, &api.NetworkError{FileName: task.Name, Err: err}
	}
	defer resp.Body.Close()

	if err := o.client.CheckAuthorized(resp); err != nil {
		return record, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return record, &api.UploadError{
			FileName:   task.Name,
			StatusCode: resp.StatusCode,
			Body:       api.ReadErrorBody(resp),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return record, fmt.Errorf("upload of %q: failed to decode response: %w", task.Name, err)
	}
	if record.UniqueName == "" {
		return record, fmt.Errorf("upload of %q: response has no uniqueName", task.Name)
	}
	return record, nil
}

// writeMultipart streams one form field into the pipe.
func writeMultipart(pw *io.PipeWriter, mw *multipart.Writer, name string, body io.Reader) {
	part, err := mw.CreateFormFile(constants.UploadFormField, name)
	if err == nil {
		buf := make([]byte, constants.UploadCopyBufferSize)
		_, err = io.CopyBuffer(part, body, buf)
	}
	if err == nil {
		err = mw.Close()
	}
	pw.CloseWithError(err)
}

func (o *Orchestrator) fail(task *transfer.Task, err error) {
	for _, r := range o.renderers {
		r.Fail(task.ID, err)
	}
	o.queue.Fail(task, err)

	ev := o.logger.Warn()
	if api.IsAuthError(err) {
		ev = o.logger.Debug()
	}
	var uerr *api.UploadError
	if errors.As(err, &uerr) {
		ev = ev.Int("status", uerr.StatusCode)
	}
	ev.Err(err).Str("file", task.Name).Msg("Upload failed")
}

func (o *Orchestrator) progress(task *transfer.Task, fraction float64) {
	if !o.queue.UpdateProgress(task, fraction) {
		return
	}
	for _, r := range o.renderers {
		r.Progress(task.ID, fraction)
	}
}

// fractionReporter turns byte counts from a ProgressReader into task fractions.
type fractionReporter struct {
	o    *Orchestrator
	task *transfer.Task
}

func (f *fractionReporter) Start(total int64, description string) {}
func (f *fractionReporter) Finish()                               {}
func (f *fractionReporter) Error(err error)                       {}

func (f *fractionReporter) Update(current int64) {
	f.o.progress(f.task, float64(current)/float64(f.task.Size))
}
