// Package registry keeps the client-side mirror of the server's file listing
// and the rendered list in step.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/models"
	"github.com/filedock/filedock/internal/state"
)

// Lister fetches the full listing. *api.Client satisfies it.
type Lister interface {
	ListFiles(ctx context.Context) ([]models.FileRecord, error)
}

// Registry is the mirror of stored files. Every mutation updates the mirror
// and the rendered list together so their file rows correspond 1:1.
type Registry struct {
	mu      sync.Mutex
	entries []models.FileRecord

	lister Lister
	list   *state.FileListState
	logger *logging.Logger
}

// New creates an empty registry.
func New(lister Lister, list *state.FileListState, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		entries: make([]models.FileRecord, 0),
		lister:  lister,
		list:    list,
		logger:  logger,
	}
}

// List returns the rendered list this registry drives.
func (r *Registry) List() *state.FileListState {
	return r.list
}

// LoadAll replaces the mirror with the server's listing. A failed fetch is
// logged and the current entries are returned unchanged.
func (r *Registry) LoadAll(ctx context.Context) []models.FileRecord {
	records, err := r.lister.ListFiles(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to load file listing")
		return r.Entries()
	}

	r.mu.Lock()
	r.entries = dedupe(records)
	r.list.ReplaceFiles(r.entries)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.logger.Debug().Int("count", len(snapshot)).Msg("Loaded file listing")
	return snapshot
}

// Add appends a record. Names already present are ignored.
func (r *Registry) Add(record models.FileRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(record.UniqueName) >= 0 {
		return false
	}
	r.entries = append(r.entries, record)
	r.list.AppendFile(record)
	return true
}

// Commit records a finished upload and turns its slot into the file row.
func (r *Registry) Commit(slotID string, record models.FileRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := r.list.CommitSlot(slotID, record)
	if r.indexLocked(record.UniqueName) >= 0 {
		return created
	}

	// The row took the slot's position, so the mirror entry goes to the same
	// place among the file rows.
	pos := len(r.entries)
	for i, f := range r.list.Files() {
		if f.UniqueName == record.UniqueName {
			pos = i
			break
		}
	}
	if pos > len(r.entries) {
		pos = len(r.entries)
	}
	r.entries = append(r.entries, models.FileRecord{})
	copy(r.entries[pos+1:], r.entries[pos:])
	r.entries[pos] = record
	return created
}

// Remove drops a record and its row.
func (r *Registry) Remove(uniqueName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(uniqueName)
	if i < 0 {
		return false
	}
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	r.list.RemoveFile(uniqueName)
	return true
}

// Entries returns a snapshot of the mirror in order.
func (r *Registry) Entries() []models.FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Has reports whether uniqueName is mirrored.
func (r *Registry) Has(uniqueName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexLocked(uniqueName) >= 0
}

// Verify checks that the mirror and the rendered file rows agree.
func (r *Registry) Verify() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := r.list.Files()
	if len(files) != len(r.entries) {
		return fmt.Errorf("registry has %d entries but list has %d file rows", len(r.entries), len(files))
	}
	for i := range files {
		if files[i].UniqueName != r.entries[i].UniqueName {
			return fmt.Errorf("entry %d: registry has %q, list has %q", i, r.entries[i].UniqueName, files[i].UniqueName)
		}
	}
	return nil
}

// Placeholder, Progress, Resolve and Fail let the registry act as an upload
// slot renderer. Resolve is the commit.

func (r *Registry) Placeholder(slotID, name string, size int64) {
	r.list.AddSlot(slotID, name, size)
}

func (r *Registry) Progress(slotID string, fraction float64) {
	r.list.SetSlotProgress(slotID, fraction)
}

func (r *Registry) Resolve(slotID string, record models.FileRecord) {
	r.Commit(slotID, record)
}

func (r *Registry) Fail(slotID string, err error) {
	r.list.FailSlot(slotID, err)
}

func (r *Registry) indexLocked(uniqueName string) int {
	for i, e := range r.entries {
		if e.UniqueName == uniqueName {
			return i
		}
	}
	return -1
}

func (r *Registry) snapshotLocked() []models.FileRecord {
	out := make([]models.FileRecord, len(r.entries))
	copy(out, r.entries)
	return out
}

func dedupe(records []models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.UniqueName] {
			continue
		}
		seen[rec.UniqueName] = true
		out = append(out, rec)
	}
	return out
}
