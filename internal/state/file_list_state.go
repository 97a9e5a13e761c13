package state

import (
	"sync"

	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
)

// FileListState is the rendered list.
// File rows are keyed by uniqueName and appear at most once; upload slot rows
// are keyed by their correlation id and keep their position from placeholder
// to final state. Thread-safe for concurrent access.
type FileListState struct {
	eventBus *events.EventBus

	rows []Row
	mu   sync.RWMutex
}

// NewFileListState creates an empty list publishing on eventBus (may be nil).
func NewFileListState(eventBus *events.EventBus) *FileListState {
	return &FileListState{
		eventBus: eventBus,
		rows:     make([]Row, 0),
	}
}

// Rows returns a copy of every row in display order.
func (s *FileListState) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Row, len(s.rows))
	copy(result, s.rows)
	return result
}

// Files returns the records of the file rows in display order.
func (s *FileListState) Files() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.FileRecord, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Kind == RowFile {
			result = append(result, r.Record)
		}
	}
	return result
}

// ReplaceFiles swaps every file row for the given records. Upload slot rows
// are kept so in-flight uploads still have a row to resolve into. Checked
// flags survive for names that are still listed.
func (s *FileListState) ReplaceFiles(records []models.FileRecord) {
	s.mu.Lock()
	checked := make(map[string]bool)
	slots := make([]Row, 0)
	for _, r := range s.rows {
		switch r.Kind {
		case RowFile:
			if r.Checked {
				checked[r.Key] = true
			}
		default:
			slots = append(slots, r)
		}
	}

	rows := make([]Row, 0, len(records)+len(slots))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.UniqueName] {
			continue
		}
		seen[rec.UniqueName] = true
		rows = append(rows, fileRow(rec, checked[rec.UniqueName]))
	}
	s.rows = append(rows, slots...)
	s.mu.Unlock()

	s.publishList()
}

// AppendFile adds a file row. It reports false if the name is already listed.
func (s *FileListState) AppendFile(rec models.FileRecord) bool {
	s.mu.Lock()
	if s.indexLocked(rec.UniqueName, RowFile) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.rows = append(s.rows, fileRow(rec, false))
	s.mu.Unlock()

	s.publishList()
	return true
}

// RemoveFile drops a file row and its checked flag.
func (s *FileListState) RemoveFile(uniqueName string) bool {
	s.mu.Lock()
	i := s.indexLocked(uniqueName, RowFile)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	s.mu.Unlock()

	s.publishList()
	return true
}

// AddSlot renders an upload placeholder. A negative size means progress
// will not be shown.
func (s *FileListState) AddSlot(slotID, name string, size int64) {
	progress := 0.0
	if size < 0 {
		progress = -1
	}

	s.mu.Lock()
	s.rows = append(s.rows, Row{Key: slotID, Kind: RowPending, Name: name, Progress: progress})
	s.mu.Unlock()

	s.publishSlot(slotID, RowPending, progress, nil)
}

// SetSlotProgress updates a placeholder's progress.
func (s *FileListState) SetSlotProgress(slotID string, fraction float64) {
	s.mu.Lock()
	i := s.indexLocked(slotID, RowPending)
	if i < 0 || s.rows[i].Progress < 0 || fraction < s.rows[i].Progress {
		s.mu.Unlock()
		return
	}
	s.rows[i].Progress = fraction
	s.mu.Unlock()

	s.publishSlot(slotID, RowPending, fraction, nil)
}

// CommitSlot turns a placeholder into the file row for rec, in place.
// If rec is already listed (a reload raced the upload) the placeholder is
// dropped instead. It reports whether a new file row was created.
func (s *FileListState) CommitSlot(slotID string, rec models.FileRecord) bool {
	s.mu.Lock()
	i := s.indexLocked(slotID, RowPending)
	exists := s.indexLocked(rec.UniqueName, RowFile) >= 0

	created := false
	switch {
	case exists && i >= 0:
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
	case exists:
	case i >= 0:
		s.rows[i] = fileRow(rec, false)
		created = true
	default:
		s.rows = append(s.rows, fileRow(rec, false))
		created = true
	}
	s.mu.Unlock()

	s.publishList()
	return created
}

// FailSlot turns a placeholder into a failure row, in place.
func (s *FileListState) FailSlot(slotID string, err error) {
	s.mu.Lock()
	i := s.indexLocked(slotID, RowPending)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.rows[i].Kind = RowFailed
	s.rows[i].Error = err
	s.mu.Unlock()

	s.publishSlot(slotID, RowFailed, 0, err)
}

// DismissFailed removes every failure row and returns how many went.
func (s *FileListState) DismissFailed() int {
	s.mu.Lock()
	kept := s.rows[:0]
	removed := 0
	for _, r := range s.rows {
		if r.Kind == RowFailed {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	s.mu.Unlock()

	if removed > 0 {
		s.publishList()
	}
	return removed
}

// SetChecked sets one file row's checkbox. It reports false for unknown names.
func (s *FileListState) SetChecked(uniqueName string, checked bool) bool {
	s.mu.Lock()
	i := s.indexLocked(uniqueName, RowFile)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.rows[i].Checked = checked
	s.mu.Unlock()

	s.publishList()
	return true
}

// SetAllChecked sets every file row's checkbox.
func (s *FileListState) SetAllChecked(checked bool) {
	s.mu.Lock()
	for i := range s.rows {
		if s.rows[i].Kind == RowFile {
			s.rows[i].Checked = checked
		}
	}
	s.mu.Unlock()

	s.publishList()
}

// IsChecked reports whether a file row is checked.
func (s *FileListState) IsChecked(uniqueName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(uniqueName, RowFile)
	return i >= 0 && s.rows[i].Checked
}

// CheckedNames returns the checked uniqueNames in display order.
func (s *FileListState) CheckedNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0)
	for _, r := range s.rows {
		if r.Kind == RowFile && r.Checked {
			names = append(names, r.Key)
		}
	}
	return names
}

// Counts returns the number of checked file rows and of all file rows.
func (s *FileListState) Counts() (checked, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checked, total, _ = s.countsLocked()
	return checked, total
}

func (s *FileListState) indexLocked(key string, kind RowKind) int {
	for i, r := range s.rows {
		if r.Key == key && r.Kind == kind {
			return i
		}
	}
	return -1
}

func (s *FileListState) countsLocked() (checked, files, slots int) {
	for _, r := range s.rows {
		if r.Kind != RowFile {
			slots++
			continue
		}
		files++
		if r.Checked {
			checked++
		}
	}
	return checked, files, slots
}

func (s *FileListState) publishList() {
	if s.eventBus == nil {
		return
	}
	s.mu.RLock()
	checked, files, slots := s.countsLocked()
	s.mu.RUnlock()
	s.eventBus.Publish(NewListChangedEvent(files, checked, slots))
}

func (s *FileListState) publishSlot(slotID string, kind RowKind, progress float64, err error) {
	if s.eventBus != nil {
		s.eventBus.Publish(NewSlotChangedEvent(slotID, kind, progress, err))
	}
}

func fileRow(rec models.FileRecord, checked bool) Row {
	return Row{
		Key:     rec.UniqueName,
		Kind:    RowFile,
		Name:    rec.OriginalName,
		Record:  rec,
		Checked: checked,
	}
}
