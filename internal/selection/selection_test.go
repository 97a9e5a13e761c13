package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/models"
	"github.com/filedock/filedock/internal/registry"
	"github.com/filedock/filedock/internal/state"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name           string
		checked, total int
		want           SelectAllState
	}{
		{"empty", 0, 0, SelectAllState{}},
		{"none checked", 0, 3, SelectAllState{Visible: true}},
		{"some checked", 1, 3, SelectAllState{Visible: true, Indeterminate: true, DeleteEnabled: true}},
		{"all but one", 2, 3, SelectAllState{Visible: true, Indeterminate: true, DeleteEnabled: true}},
		{"all checked", 3, 3, SelectAllState{Visible: true, Checked: true, DeleteEnabled: true}},
		{"single file checked", 1, 1, SelectAllState{Visible: true, Checked: true, DeleteEnabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.checked, tt.total); got != tt.want {
				t.Errorf("Aggregate(%d, %d) = %+v, want %+v", tt.checked, tt.total, got, tt.want)
			}
		})
	}
}

type stubDeleter struct {
	result *models.BatchDeleteResult
	err    error
	calls  [][]string
	single []string
}

func (d *stubDeleter) DeleteBatch(ctx context.Context, names []string) (*models.BatchDeleteResult, error) {
	d.calls = append(d.calls, names)
	return d.result, d.err
}

func (d *stubDeleter) DeleteFile(ctx context.Context, uniqueName string) error {
	d.single = append(d.single, uniqueName)
	return d.err
}

type notice struct {
	kind    events.NoticeKind
	message string
	names   []string
}

type stubNotifier struct{ notices []notice }

func (n *stubNotifier) Notice(kind events.NoticeKind, message string, names []string) {
	n.notices = append(n.notices, notice{kind, message, names})
}

type staticLister []models.FileRecord

func (l staticLister) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	return l, nil
}

func setup(t *testing.T, names ...string) (*Controller, *registry.Registry, *stubDeleter, *stubNotifier) {
	t.Helper()
	records := make(staticLister, 0, len(names))
	for _, n := range names {
		records = append(records, models.FileRecord{UniqueName: n, OriginalName: n})
	}
	reg := registry.New(records, state.NewFileListState(nil), nil)
	reg.LoadAll(context.Background())

	del := &stubDeleter{result: &models.BatchDeleteResult{}}
	notifier := &stubNotifier{}
	return New(reg, del, WithNotifier(notifier)), reg, del, notifier
}

func TestToggleAndSetAll(t *testing.T) {
	c, _, _, _ := setup(t, "a", "b", "c")

	if got := c.State(); got != (SelectAllState{Visible: true}) {
		t.Errorf("initial State() = %+v", got)
	}

	c.Toggle("b")
	if !c.State().Indeterminate {
		t.Errorf("one of three checked should be indeterminate, got %+v", c.State())
	}

	c.SetAll(true)
	if !c.State().Checked || len(c.Checked()) != 3 {
		t.Errorf("SetAll(true) should check every row, got %+v %v", c.State(), c.Checked())
	}

	c.Toggle("a")
	if got := c.Checked(); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Checked() = %v, want [b c]", got)
	}

	c.SetAll(false)
	if c.State().DeleteEnabled {
		t.Error("delete should be disabled with nothing checked")
	}

	if c.Toggle("missing") {
		t.Error("unknown names cannot be toggled")
	}
}

func TestBulkDelete_PartialFailure(t *testing.T) {
	c, reg, del, notifier := setup(t, "a", "b", "c")
	c.SetChecked("a", true)
	c.SetChecked("b", true)
	del.result = &models.BatchDeleteResult{Success: []string{"a"}, Failed: []string{"b"}}

	out, err := c.BulkDelete(context.Background())
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}

	if len(del.calls) != 1 || len(del.calls[0]) != 2 {
		t.Fatalf("expected one request for both names, got %v", del.calls)
	}
	if len(out.Deleted) != 1 || out.Deleted[0] != "a" {
		t.Errorf("Deleted = %v, want [a]", out.Deleted)
	}
	if reg.Has("a") {
		t.Error("a should be removed")
	}
	if !reg.Has("b") || !reg.List().IsChecked("b") {
		t.Error("b should stay listed and checked")
	}

	if len(notifier.notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.notices))
	}
	n := notifier.notices[0]
	if n.kind != events.NoticeItemsFailed || n.message != "Failed to delete the following files: b" {
		t.Errorf("notice = %+v", n)
	}

	if got := c.State(); !got.Indeterminate {
		t.Errorf("State() after partial delete = %+v, want indeterminate (1 of 2)", got)
	}
	if err := reg.Verify(); err != nil {
		t.Error(err)
	}
}

func TestBulkDelete_FailedNamesJoined(t *testing.T) {
	c, _, del, notifier := setup(t, "a", "b", "c")
	c.SetAll(true)
	del.result = &models.BatchDeleteResult{Failed: []string{"a", "b", "c"}}

	if _, err := c.BulkDelete(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := notifier.notices[0].message; got != "Failed to delete the following files: a, b, c" {
		t.Errorf("message = %q", got)
	}
	if !c.State().Checked {
		t.Error("every failed row should stay checked")
	}
}

func TestBulkDelete_AllDeletedHidesControls(t *testing.T) {
	c, reg, del, notifier := setup(t, "a", "b")
	c.SetAll(true)
	del.result = &models.BatchDeleteResult{Success: []string{"a", "b"}}

	if _, err := c.BulkDelete(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(reg.Entries()) != 0 {
		t.Errorf("Entries() = %v, want empty", reg.Entries())
	}
	if c.State().Visible {
		t.Error("controls should be hidden once the listing is empty")
	}
	if len(notifier.notices) != 0 {
		t.Errorf("no notice expected, got %+v", notifier.notices)
	}
}

func TestBulkDelete_RequestFailure(t *testing.T) {
	c, reg, del, notifier := setup(t, "a", "b")
	c.SetAll(true)
	del.result = nil
	del.err = &api.BatchDeleteError{StatusCode: 500, Err: errors.New("internal error")}

	out, err := c.BulkDelete(context.Background())

	var bde *api.BatchDeleteError
	if !errors.As(err, &bde) || bde.StatusCode != 500 {
		t.Fatalf("expected BatchDeleteError with status 500, got %v", err)
	}
	if len(out.Deleted) != 0 || len(reg.Entries()) != 2 {
		t.Error("nothing may be removed on request failure")
	}
	if len(notifier.notices) != 1 || notifier.notices[0].kind != events.NoticeRequestFailed {
		t.Fatalf("expected one request-failed notice, got %+v", notifier.notices)
	}
	if len(c.Checked()) != 2 {
		t.Error("selection should be unchanged")
	}
}

func TestBulkDelete_WrapsPlainErrors(t *testing.T) {
	c, _, del, _ := setup(t, "a")
	c.SetAll(true)
	del.err = errors.New("dial tcp: connection refused")

	_, err := c.BulkDelete(context.Background())
	var bde *api.BatchDeleteError
	if !errors.As(err, &bde) {
		t.Fatalf("expected BatchDeleteError, got %T", err)
	}
}

func TestBulkDelete_SessionErrorPassesThrough(t *testing.T) {
	c, reg, del, notifier := setup(t, "a")
	c.SetAll(true)
	del.err = api.ErrSessionExpired

	_, err := c.BulkDelete(context.Background())
	if !errors.Is(err, api.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	var bde *api.BatchDeleteError
	if errors.As(err, &bde) {
		t.Error("session errors must not be wrapped")
	}
	if len(notifier.notices) != 0 {
		t.Error("session errors are handled by the view transition, not a notice")
	}
	if !reg.Has("a") {
		t.Error("nothing may be removed")
	}
}

func TestBulkDelete_NoOps(t *testing.T) {
	t.Run("nothing checked", func(t *testing.T) {
		c, _, del, _ := setup(t, "a")
		if _, err := c.BulkDelete(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(del.calls) != 0 {
			t.Error("no request expected")
		}
	})

	t.Run("declined", func(t *testing.T) {
		c, reg, del, _ := setup(t, "a", "b")
		var asked int
		c.confirmer = ConfirmFunc(func(ctx context.Context, n int) bool {
			asked = n
			return false
		})
		c.SetAll(true)

		if _, err := c.BulkDelete(context.Background()); err != nil {
			t.Fatal(err)
		}
		if asked != 2 {
			t.Errorf("confirmation should be asked for 2 files, got %d", asked)
		}
		if len(del.calls) != 0 || len(reg.Entries()) != 2 {
			t.Error("declining must not delete anything")
		}
	})

	t.Run("hidden", func(t *testing.T) {
		c, _, del, _ := setup(t)
		c.SetAll(true)
		if _, err := c.BulkDelete(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(del.calls) != 0 {
			t.Error("no request expected on an empty listing")
		}
		if c.State() != (SelectAllState{}) {
			t.Errorf("State() = %+v, want zero", c.State())
		}
	})
}

func TestDeleteOne(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		c, reg, del, _ := setup(t, "a", "b")
		c.SetChecked("b", true)

		ok, err := c.DeleteOne(context.Background(), "a")
		if err != nil || !ok {
			t.Fatalf("DeleteOne = %v, %v", ok, err)
		}
		if len(del.single) != 1 || del.single[0] != "a" {
			t.Errorf("single deletes = %v", del.single)
		}
		if reg.Has("a") || !reg.Has("b") {
			t.Errorf("entries = %v", reg.Entries())
		}
		if !c.registry.List().IsChecked("b") {
			t.Error("other rows keep their checkbox")
		}
	})

	t.Run("server error keeps row", func(t *testing.T) {
		c, reg, del, _ := setup(t, "a")
		del.err = errors.New("delete a failed: status 500: boom")

		ok, err := c.DeleteOne(context.Background(), "a")
		if err == nil || ok {
			t.Fatalf("DeleteOne = %v, %v; want error", ok, err)
		}
		if !reg.Has("a") {
			t.Error("row must stay after a failed delete")
		}
	})

	t.Run("declined", func(t *testing.T) {
		c, reg, del, _ := setup(t, "a")
		c.confirmer = ConfirmFunc(func(ctx context.Context, n int) bool {
			if n != 1 {
				t.Errorf("confirmation asked for %d files, want 1", n)
			}
			return false
		})

		ok, err := c.DeleteOne(context.Background(), "a")
		if err != nil || ok {
			t.Fatalf("DeleteOne = %v, %v", ok, err)
		}
		if len(del.single) != 0 || !reg.Has("a") {
			t.Error("declining must not delete anything")
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		c, _, del, _ := setup(t, "a")
		if _, err := c.DeleteOne(context.Background(), "zzz"); err == nil {
			t.Error("expected an error for an unlisted name")
		}
		if len(del.single) != 0 {
			t.Error("no request expected")
		}
	})
}

func TestController_PublishesSelectionChanged(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	sub := bus.Subscribe(events.EventSelectionChanged)

	reg := registry.New(staticLister{{UniqueName: "a"}, {UniqueName: "b"}}, state.NewFileListState(nil), nil)
	reg.LoadAll(context.Background())
	c := New(reg, &stubDeleter{}, WithEventBus(bus))

	c.Toggle("a")

	ev := (<-sub.C).(*SelectionChangedEvent)
	if ev.Checked != 1 || ev.Total != 2 || !ev.State.Indeterminate {
		t.Errorf("event = %+v", ev)
	}
}
