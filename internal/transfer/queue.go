package transfer

import (
	"sync"

	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
)

// QueueStats holds counts of tracked tasks by state.
type QueueStats struct {
	Pending   int
	Uploading int
	Succeeded int
	Failed    int
}

// Total returns total number of tasks in queue.
func (s QueueStats) Total() int {
	return s.Pending + s.Uploading + s.Succeeded + s.Failed
}

// Queue is a passive tracker that publishes events as tasks change state.
// It does not execute uploads; the caller drives each task through
// Activate, UpdateProgress and Complete or Fail.
type Queue struct {
	tasks []*Task
	mu    sync.RWMutex

	eventBus *events.EventBus
}

// NewQueue creates a new queue publishing on eventBus (which may be nil).
func NewQueue(eventBus *events.EventBus) *Queue {
	return &Queue{
		tasks:    make([]*Task, 0),
		eventBus: eventBus,
	}
}

// Track registers a pending task.
func (q *Queue) Track(task *Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	q.publish(events.EventTransferQueued, task, nil)
}

// Activate moves a task to uploading.
func (q *Queue) Activate(task *Task) bool {
	if !task.Start() {
		return false
	}
	q.publish(events.EventTransferStarted, task, nil)
	return true
}

// UpdateProgress records progress. Rejected updates publish nothing.
func (q *Queue) UpdateProgress(task *Task, fraction float64) bool {
	if !task.SetProgress(fraction) {
		return false
	}
	q.publish(events.EventTransferProgress, task, nil)
	return true
}

// Complete resolves a task with the server's record.
func (q *Queue) Complete(task *Task, record models.FileRecord) bool {
	if !task.Succeed(record) {
		return false
	}
	q.publish(events.EventTransferCompleted, task, nil)
	return true
}

// Fail resolves a task with an error.
func (q *Queue) Fail(task *Task, err error) bool {
	if !task.Fail(err) {
		return false
	}
	q.publish(events.EventTransferFailed, task, err)
	return true
}

// Snapshots returns copies of every tracked task in creation order.
func (q *Queue) Snapshots() []Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()
	result := make([]Snapshot, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = task.Snapshot()
	}
	return result
}

// GetStats returns counts by state.
func (q *Queue) GetStats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats QueueStats
	for _, task := range q.tasks {
		switch task.State() {
		case TaskPending:
			stats.Pending++
		case TaskUploading:
			stats.Uploading++
		case TaskSucceeded:
			stats.Succeeded++
		case TaskFailed:
			stats.Failed++
		}
	}
	return stats
}

// ClearFinished forgets terminal tasks.
func (q *Queue) ClearFinished() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.tasks[:0]
	for _, task := range q.tasks {
		if task.IsTerminal() {
			continue
		}
		kept = append(kept, task)
	}
	q.tasks = kept
}

func (q *Queue) publish(eventType events.EventType, task *Task, err error) {
	if q.eventBus == nil {
		return
	}
	snap := task.Snapshot()
	ev := events.NewTransferEvent(eventType, snap.ID, snap.Name, snap.Size)
	ev.Progress = snap.Progress
	ev.UniqueName = snap.Result.UniqueName
	ev.Error = err
	q.eventBus.Publish(ev)
}
