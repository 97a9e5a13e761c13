package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/models"
	"github.com/filedock/filedock/internal/registry"
)

// Deleter removes files on the server. *api.Client satisfies it.
type Deleter interface {
	DeleteBatch(ctx context.Context, names []string) (*models.BatchDeleteResult, error)
	DeleteFile(ctx context.Context, uniqueName string) error
}

// Confirmer asks the user to approve deleting count files.
type Confirmer interface {
	Confirm(ctx context.Context, count int) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, count int) bool

func (f ConfirmFunc) Confirm(ctx context.Context, count int) bool { return f(ctx, count) }

// AlwaysConfirm approves every delete.
var AlwaysConfirm = ConfirmFunc(func(context.Context, int) bool { return true })

// Notifier shows a notice to the user.
type Notifier interface {
	Notice(kind events.NoticeKind, message string, names []string)
}

// BusNotifier publishes notices as events.
type BusNotifier struct {
	Bus *events.EventBus
}

func (n BusNotifier) Notice(kind events.NoticeKind, message string, names []string) {
	n.Bus.Publish(events.NewNoticeEvent(kind, message, names))
}

// Notice texts.
const (
	MsgItemsFailed   = "Failed to delete the following files: %s"
	MsgRequestFailed = "An error occurred while trying to delete the files."
)

// SelectionChangedEvent is published whenever the select-all state is recomputed.
type SelectionChangedEvent struct {
	events.BaseEvent
	State   SelectAllState
	Checked int
	Total   int
}

// Outcome describes a finished bulk delete.
type Outcome struct {
	Requested []string
	Deleted   []string
	Failed    []string
}

// Controller owns the checkboxes of the rendered list.
type Controller struct {
	registry  *registry.Registry
	deleter   Deleter
	confirmer Confirmer
	notifier  Notifier
	eventBus  *events.EventBus
	logger    *logging.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfirmer sets who approves deletes.
func WithConfirmer(cf Confirmer) Option {
	return func(c *Controller) { c.confirmer = cf }
}

// WithNotifier sets where notices go.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithEventBus sets the bus for selection and notice events.
func WithEventBus(bus *events.EventBus) Option {
	return func(c *Controller) { c.eventBus = bus }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a controller. Without a Confirmer every delete is approved;
// without a Notifier notices go to the event bus.
func New(reg *registry.Registry, deleter Deleter, opts ...Option) *Controller {
	c := &Controller{
		registry:  reg,
		deleter:   deleter,
		confirmer: AlwaysConfirm,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = BusNotifier{Bus: c.eventBus}
	}
	return c
}

// State returns the current select-all state.
func (c *Controller) State() SelectAllState {
	checked, total := c.registry.List().Counts()
	return Aggregate(checked, total)
}

// Checked returns the checked uniqueNames in display order.
func (c *Controller) Checked() []string {
	return c.registry.List().CheckedNames()
}

// SetChecked sets one row's checkbox.
func (c *Controller) SetChecked(uniqueName string, checked bool) bool {
	ok := c.registry.List().SetChecked(uniqueName, checked)
	if ok {
		c.publish()
	}
	return ok
}

// Toggle flips one row's checkbox.
func (c *Controller) Toggle(uniqueName string) bool {
	list := c.registry.List()
	return c.SetChecked(uniqueName, !list.IsChecked(uniqueName))
}

// SetAll is the select-all toggle. It does nothing while the control is hidden.
func (c *Controller) SetAll(checked bool) {
	if !c.State().Visible {
		return
	}
	c.registry.List().SetAllChecked(checked)
	c.publish()
}

// BulkDelete deletes every checked file in one request after confirmation.
//
// Names the server deleted are removed; names it could not delete stay listed
// and checked, and are reported in one notice. If the request itself fails,
// nothing is removed and a *api.BatchDeleteError is returned. Session errors
// are returned unchanged.
func (c *Controller) BulkDelete(ctx context.Context) (Outcome, error) {
	var out Outcome
	if !c.State().Visible {
		return out, nil
	}

	names := c.Checked()
	if len(names) == 0 {
		return out, nil
	}
	if !c.confirmer.Confirm(ctx, len(names)) {
		c.logger.Debug().Int("count", len(names)).Msg("Bulk delete declined")
		return out, nil
	}
	out.Requested = names

	result, err := c.deleter.DeleteBatch(ctx, names)
	if err != nil {
		if !api.IsAuthError(err) {
			c.logger.Error().Err(err).Int("count", len(names)).Msg("Bulk delete failed")
			c.notifier.Notice(events.NoticeRequestFailed, MsgRequestFailed, nil)
			var bde *api.BatchDeleteError
			if !errors.As(err, &bde) {
				err = &api.BatchDeleteError{Err: err}
			}
		}
		c.publish()
		return out, err
	}

	for _, name := range result.Success {
		if c.registry.Remove(name) {
			out.Deleted = append(out.Deleted, name)
		}
	}
	if len(result.Failed) > 0 {
		out.Failed = append(out.Failed, result.Failed...)
		c.notifier.Notice(events.NoticeItemsFailed,
			fmt.Sprintf(MsgItemsFailed, strings.Join(result.Failed, ", ")),
			out.Failed)
	}

	c.logger.Info().
		Int("requested", len(names)).
		Int("deleted", len(out.Deleted)).
		Int("failed", len(out.Failed)).
		Msg("Bulk delete finished")

	c.publish()
	return out, nil
}

// DeleteOne deletes a single listed file after confirmation. The row is
// removed only when the server confirms; otherwise it stays as it was and the
// error is returned.
func (c *Controller) DeleteOne(ctx context.Context, uniqueName string) (bool, error) {
	if !c.registry.Has(uniqueName) {
		return false, fmt.Errorf("no file %q", uniqueName)
	}
	if !c.confirmer.Confirm(ctx, 1) {
		c.logger.Debug().Str("file", uniqueName).Msg("Delete declined")
		return false, nil
	}

	if err := c.deleter.DeleteFile(ctx, uniqueName); err != nil {
		if !api.IsAuthError(err) {
			c.logger.Error().Err(err).Str("file", uniqueName).Msg("Delete failed")
		}
		c.publish()
		return false, err
	}

	c.registry.Remove(uniqueName)
	c.logger.Info().Str("file", uniqueName).Msg("File deleted")
	c.publish()
	return true, nil
}

func (c *Controller) publish() {
	if c.eventBus == nil {
		return
	}
	checked, total := c.registry.List().Counts()
	c.eventBus.Publish(&SelectionChangedEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventSelectionChanged, Time: time.Now()},
		State:     Aggregate(checked, total),
		Checked:   checked,
		Total:     total,
	})
}
