// Package transfer tracks upload tasks: their state machine, progress stream
// and terminal result.
package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/models"
)

// TaskState represents the current state of an upload task.
type TaskState string

const (
	TaskPending   TaskState = "pending"   // Created, waiting for a slot
	TaskUploading TaskState = "uploading" // Request in flight
	TaskSucceeded TaskState = "succeeded" // Server returned a file record
	TaskFailed    TaskState = "failed"    // Rejected, transport failure or cancelled
)

// ErrTaskPending is returned by Result while the task has not finished.
var ErrTaskPending = errors.New("task has not finished")

// Task is a single upload. It moves pending → uploading → succeeded|failed
// and never leaves a terminal state.
// Thread-safe: use the provided methods to update state.
type Task struct {
	ID   string // Local correlation id, known before the server assigns a name
	Name string // Original file name
	Size int64  // File size in bytes, -1 if unknown

	mu          sync.RWMutex
	state       TaskState
	progress    float64
	result      models.FileRecord
	err         error
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time

	progressCh chan float64
	done       chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTask creates a pending task whose context derives from parent.
func NewTask(parent context.Context, name string, size int64) *Task {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		ID:         NewTaskID(),
		Name:       name,
		Size:       size,
		state:      TaskPending,
		createdAt:  time.Now(),
		progressCh: make(chan float64, constants.UploadProgressChanBuffer),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NewTaskID returns a fresh correlation id.
func NewTaskID() string {
	return uuid.NewString()
}

// State returns the current state (thread-safe).
func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Progress returns the task's progress stream: non-decreasing fractions in
// [0,1], closed when the task reaches a terminal state. Tasks of unknown size
// close it without sending anything. When the reader falls behind, older
// values are dropped in favour of newer ones.
func (t *Task) Progress() <-chan float64 {
	return t.progressCh
}

// Done is closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (models.FileRecord, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return models.FileRecord{}, ctx.Err()
	}
}

// Result returns the terminal outcome, or ErrTaskPending.
func (t *Task) Result() (models.FileRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch t.state {
	case TaskSucceeded:
		return t.result, nil
	case TaskFailed:
		return models.FileRecord{}, t.err
	default:
		return models.FileRecord{}, ErrTaskPending
	}
}

// Err returns the failure, if any.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Context returns the task's context for cancellation checking.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Cancel aborts the in-flight request. The task fails once the request returns.
func (t *Task) Cancel() {
	t.cancel()
}

// IsTerminal returns true if the task succeeded or failed.
func (t *Task) IsTerminal() bool {
	state := t.State()
	return state == TaskSucceeded || state == TaskFailed
}

// Start moves a pending task to uploading. It reports false otherwise.
func (t *Task) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskPending {
		return false
	}
	t.state = TaskUploading
	t.startedAt = time.Now()
	return true
}

// SetProgress records a new fraction. Values that would move progress
// backwards, or arrive outside the uploading state, are ignored.
func (t *Task) SetProgress(fraction float64) bool {
	if fraction > 1 {
		fraction = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskUploading || t.Size < 0 || fraction < t.progress {
		return false
	}
	t.progress = fraction

	// Non-blocking; on a full buffer drop the oldest value
	select {
	case t.progressCh <- fraction:
	default:
		select {
		case <-t.progressCh:
		default:
		}
		select {
		case t.progressCh <- fraction:
		default:
		}
	}
	return true
}

// Succeed resolves the task with the server's record.
func (t *Task) Succeed(record models.FileRecord) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finishLocked(TaskSucceeded) {
		return false
	}
	t.result = record
	return true
}

// Fail resolves the task with an error.
func (t *Task) Fail(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finishLocked(TaskFailed) {
		return false
	}
	t.err = err
	return true
}

func (t *Task) finishLocked(state TaskState) bool {
	if t.state == TaskSucceeded || t.state == TaskFailed {
		return false
	}
	t.state = state
	t.completedAt = time.Now()
	close(t.progressCh)
	close(t.done)
	t.cancel()
	return true
}

// Snapshot is a point-in-time copy of a task for display.
type Snapshot struct {
	ID          string
	Name        string
	Size        int64
	State       TaskState
	Progress    float64
	Result      models.FileRecord
	Error       error
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Snapshot returns a copy of the task's current state.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		ID:          t.ID,
		Name:        t.Name,
		Size:        t.Size,
		State:       t.state,
		Progress:    t.progress,
		Result:      t.result,
		Error:       t.err,
		CreatedAt:   t.createdAt,
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
	}
}
