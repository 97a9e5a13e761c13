package state

import (
	"errors"
	"testing"
	"time"

	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
)

func rec(name string) models.FileRecord {
	return models.FileRecord{UniqueName: "1-" + name, OriginalName: name}
}

func TestNewFileListState(t *testing.T) {
	s := NewFileListState(nil)
	if s == nil {
		t.Fatal("NewFileListState returned nil")
	}
	if len(s.Rows()) != 0 {
		t.Error("Initial rows should be empty")
	}
	if checked, total := s.Counts(); checked != 0 || total != 0 {
		t.Errorf("Counts() = (%d, %d), want (0, 0)", checked, total)
	}
}

func TestReplaceFiles_KeepsSlotsAndChecks(t *testing.T) {
	s := NewFileListState(nil)
	s.ReplaceFiles([]models.FileRecord{rec("a"), rec("b"), rec("c")})
	s.SetChecked("1-b", true)
	s.AddSlot("slot-1", "d", 10)

	s.ReplaceFiles([]models.FileRecord{rec("b"), rec("e"), rec("e")})

	rows := s.Rows()
	if len(rows) != 3 {
		t.Fatalf("Got %d rows, want 3: %+v", len(rows), rows)
	}
	if rows[0].Key != "1-b" || !rows[0].Checked {
		t.Errorf("rows[0] = %+v, want checked 1-b", rows[0])
	}
	if rows[1].Key != "1-e" || rows[1].Checked {
		t.Errorf("rows[1] = %+v, want unchecked 1-e", rows[1])
	}
	if rows[2].Kind != RowPending || rows[2].Key != "slot-1" {
		t.Errorf("rows[2] = %+v, want the pending slot", rows[2])
	}
}

func TestAppendAndRemoveFile(t *testing.T) {
	s := NewFileListState(nil)

	if !s.AppendFile(rec("a")) {
		t.Fatal("first AppendFile should add a row")
	}
	if s.AppendFile(rec("a")) {
		t.Error("duplicate AppendFile should be rejected")
	}
	s.SetChecked("1-a", true)

	if !s.RemoveFile("1-a") {
		t.Fatal("RemoveFile should find the row")
	}
	if s.RemoveFile("1-a") {
		t.Error("second RemoveFile should report false")
	}
	if len(s.Files()) != 0 || s.IsChecked("1-a") {
		t.Error("removed row should leave no trace")
	}
}

func TestSlot_CommitInPlace(t *testing.T) {
	s := NewFileListState(nil)
	s.AppendFile(rec("a"))
	s.AddSlot("slot-1", "b", 100)
	s.AppendFile(rec("c"))

	s.SetSlotProgress("slot-1", 0.5)
	s.SetSlotProgress("slot-1", 0.25) // ignored
	if got := s.Rows()[1].Progress; got != 0.5 {
		t.Errorf("Progress = %f, want 0.5", got)
	}

	if !s.CommitSlot("slot-1", rec("b")) {
		t.Fatal("CommitSlot should create a file row")
	}

	rows := s.Rows()
	want := []string{"1-a", "1-b", "1-c"}
	for i, key := range want {
		if rows[i].Key != key || rows[i].Kind != RowFile {
			t.Errorf("rows[%d] = %s/%s, want %s/file", i, rows[i].Key, rows[i].Kind, key)
		}
	}
}

func TestSlot_CommitDedupes(t *testing.T) {
	s := NewFileListState(nil)
	s.AddSlot("slot-1", "a", 10)
	s.ReplaceFiles([]models.FileRecord{rec("a")}) // reload already saw the upload

	if s.CommitSlot("slot-1", rec("a")) {
		t.Error("CommitSlot should not duplicate a listed name")
	}
	rows := s.Rows()
	if len(rows) != 1 || rows[0].Key != "1-a" {
		t.Errorf("rows = %+v, want just 1-a", rows)
	}
}

func TestSlot_UnknownSizeShowsNoProgress(t *testing.T) {
	s := NewFileListState(nil)
	s.AddSlot("slot-1", "pipe", -1)
	s.SetSlotProgress("slot-1", 0.5)

	if got := s.Rows()[0].Progress; got != -1 {
		t.Errorf("Progress = %f, want -1", got)
	}
}

func TestSlot_FailAndDismiss(t *testing.T) {
	s := NewFileListState(nil)
	s.AppendFile(rec("a"))
	s.AddSlot("slot-1", "b", 10)
	s.AddSlot("slot-2", "c", 10)

	boom := errors.New("boom")
	s.FailSlot("slot-1", boom)

	rows := s.Rows()
	if rows[1].Kind != RowFailed || !errors.Is(rows[1].Error, boom) {
		t.Errorf("rows[1] = %+v, want failed with boom", rows[1])
	}
	if rows[2].Kind != RowPending {
		t.Errorf("other slots must be untouched, got %+v", rows[2])
	}

	if n := s.DismissFailed(); n != 1 {
		t.Errorf("DismissFailed() = %d, want 1", n)
	}
	if len(s.Rows()) != 2 {
		t.Errorf("Got %d rows, want 2", len(s.Rows()))
	}

	// Failed slots cannot be committed later
	s.FailSlot("slot-2", boom)
	s.CommitSlot("slot-2", rec("c"))
	if s.Rows()[1].Kind != RowFailed {
		t.Error("failed slot should stay failed")
	}
}

func TestChecked(t *testing.T) {
	s := NewFileListState(nil)
	s.ReplaceFiles([]models.FileRecord{rec("a"), rec("b"), rec("c")})
	s.AddSlot("slot-1", "d", 1)

	if s.SetChecked("slot-1", true) {
		t.Error("slot rows have no checkbox")
	}
	if s.SetChecked("missing", true) {
		t.Error("unknown names should be rejected")
	}

	s.SetAllChecked(true)
	if checked, total := s.Counts(); checked != 3 || total != 3 {
		t.Errorf("Counts() = (%d, %d), want (3, 3)", checked, total)
	}

	s.SetChecked("1-b", false)
	names := s.CheckedNames()
	if len(names) != 2 || names[0] != "1-a" || names[1] != "1-c" {
		t.Errorf("CheckedNames() = %v, want [1-a 1-c]", names)
	}

	s.SetAllChecked(false)
	if len(s.CheckedNames()) != 0 {
		t.Error("expected nothing checked")
	}
}

func TestFileListState_PublishesEvents(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	listCh := bus.Subscribe(events.EventListChanged)
	slotCh := bus.Subscribe(events.EventSlotChanged)

	s := NewFileListState(bus)
	s.ReplaceFiles([]models.FileRecord{rec("a"), rec("b")})
	s.SetChecked("1-a", true)

	var last *ListChangedEvent
	for i := 0; i < 2; i++ {
		select {
		case ev := <-listCh.C:
			last = ev.(*ListChangedEvent)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for list event")
		}
	}
	if last.Files != 2 || last.Checked != 1 {
		t.Errorf("last event = %+v, want 2 files 1 checked", last)
	}

	s.AddSlot("slot-1", "c", 10)
	select {
	case ev := <-slotCh.C:
		se := ev.(*SlotChangedEvent)
		if se.SlotID != "slot-1" || se.Kind != RowPending {
			t.Errorf("slot event = %+v", se)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for slot event")
	}
}
