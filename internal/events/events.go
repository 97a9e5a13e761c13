package events

import (
	"time"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Session and view
	EventViewChanged EventType = "view_changed" // Login or app view became current

	// Upload tasks
	EventTransferQueued    EventType = "transfer_queued"    // Task created, placeholder slot rendered
	EventTransferStarted   EventType = "transfer_started"   // Request in flight
	EventTransferProgress  EventType = "transfer_progress"  // Progress update (known size only)
	EventTransferCompleted EventType = "transfer_completed" // Server returned a file record
	EventTransferFailed    EventType = "transfer_failed"    // Server rejection or transport failure

	// Rendered list
	EventListChanged EventType = "list_changed" // File rows replaced, added or removed
	EventSlotChanged EventType = "slot_changed" // An upload slot changed in place

	// Selection and bulk delete
	EventSelectionChanged EventType = "selection_changed"
	EventNotice           EventType = "notice" // User-visible notice
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// View names the screen the user should be looking at.
type View string

const (
	ViewLogin View = "login"
	ViewApp   View = "app"
)

// ViewChangedEvent is published on login, logout and session expiry.
type ViewChangedEvent struct {
	BaseEvent
	View   View
	Reason string // "login", "logout", "not_authenticated", "session_expired"
}

// NewViewChangedEvent creates a ViewChangedEvent.
func NewViewChangedEvent(view View, reason string) *ViewChangedEvent {
	return &ViewChangedEvent{
		BaseEvent: BaseEvent{EventType: EventViewChanged, Time: time.Now()},
		View:      view,
		Reason:    reason,
	}
}

// TransferEvent represents upload task events
type TransferEvent struct {
	BaseEvent
	TaskID     string  // Local correlation id
	Name       string  // Original file name
	Size       int64   // File size in bytes, -1 if unknown
	Progress   float64 // 0.0 to 1.0
	UniqueName string  // Server-assigned name, set on completion
	Error      error   // Error if failed
}

// NewTransferEvent creates a TransferEvent of the given type.
func NewTransferEvent(eventType EventType, taskID, name string, size int64) *TransferEvent {
	return &TransferEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		TaskID:    taskID,
		Name:      name,
		Size:      size,
	}
}

// NoticeKind distinguishes user-visible notices.
type NoticeKind string

const (
	// NoticeItemsFailed - the server reported per-item failures
	NoticeItemsFailed NoticeKind = "items_failed"
	// NoticeRequestFailed - the request failed before any per-item outcome was known
	NoticeRequestFailed NoticeKind = "request_failed"
	// NoticeInfo - informational
	NoticeInfo NoticeKind = "info"
)

// NoticeEvent carries a message meant for the user.
type NoticeEvent struct {
	BaseEvent
	Kind    NoticeKind
	Message string
	Names   []string
}

// NewNoticeEvent creates a NoticeEvent.
func NewNoticeEvent(kind NoticeKind, message string, names []string) *NoticeEvent {
	return &NoticeEvent{
		BaseEvent: BaseEvent{EventType: EventNotice, Time: time.Now()},
		Kind:      kind,
		Message:   message,
		Names:     names,
	}
}
