// Package state provides the observable rendered file list: file rows,
// upload slot rows and checkbox flags. It publishes events on every change
// so any frontend can redraw.
package state

import (
	"time"

	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
)

// RowKind identifies what a row in the rendered list shows.
type RowKind string

const (
	RowFile    RowKind = "file"    // A stored file, keyed by uniqueName
	RowPending RowKind = "pending" // Upload placeholder, keyed by slot id
	RowFailed  RowKind = "failed"  // Upload that failed, keyed by slot id
)

// Row is one entry of the rendered list.
type Row struct {
	Key      string // uniqueName for file rows, slot id otherwise
	Kind     RowKind
	Name     string // display name
	Record   models.FileRecord
	Progress float64 // pending rows only, -1 when size is unknown
	Error    error   // failed rows only
	Checked  bool    // file rows only
}

// ListChangedEvent is published when file rows are replaced, added or removed,
// or when their checked flags change.
type ListChangedEvent struct {
	events.BaseEvent
	Files   int
	Checked int
	Slots   int
}

// SlotChangedEvent is published when an upload slot changes in place.
type SlotChangedEvent struct {
	events.BaseEvent
	SlotID   string
	Kind     RowKind
	Progress float64
	Error    error
}

// NewListChangedEvent creates a new ListChangedEvent.
func NewListChangedEvent(files, checked, slots int) *ListChangedEvent {
	return &ListChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventListChanged,
			Time:      time.Now(),
		},
		Files:   files,
		Checked: checked,
		Slots:   slots,
	}
}

// NewSlotChangedEvent creates a new SlotChangedEvent.
func NewSlotChangedEvent(slotID string, kind RowKind, progress float64, err error) *SlotChangedEvent {
	return &SlotChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventSlotChanged,
			Time:      time.Now(),
		},
		SlotID:   slotID,
		Kind:     kind,
		Progress: progress,
		Error:    err,
	}
}
