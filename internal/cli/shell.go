package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/selection"
	"github.com/filedock/filedock/internal/state"
	"github.com/filedock/filedock/internal/transfer"
	"github.com/filedock/filedock/internal/upload"
)

// newShellCmd creates the 'shell' command.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with checkboxes and bulk delete",
		Long: `Start an interactive session over the file listing.

Uploads run in the background and show up in 'ls' as pending rows until
the server answers. Type 'help' for the list of commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(os.Stdin)
			out := cmd.OutOrStdout()

			a, err := newApp(
				selection.WithConfirmer(&lineConfirmer{reader: in, out: out}),
				selection.WithNotifier(&printNotifier{out: out}),
			)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := newShell(a, in, out)
			if err != nil {
				return err
			}
			s.tty = term.IsTerminal(int(os.Stdin.Fd()))
			return s.Run(GetContext())
		},
	}
}

// printNotifier writes notices as plain lines.
type printNotifier struct {
	out io.Writer
}

func (n *printNotifier) Notice(kind events.NoticeKind, message string, names []string) {
	fmt.Fprintf(n.out, "! %s\n", message)
}

// shell is the interactive front end. It follows ViewChanged events: in the
// login view only 'login', 'help' and 'quit' are accepted.
type shell struct {
	a    *app
	in   *bufio.Reader
	out  io.Writer
	tty  bool
	orch *upload.Orchestrator
	view events.View
	feed *events.Subscription
}

var errQuit = errors.New("quit")

func newShell(a *app, in *bufio.Reader, out io.Writer) (*shell, error) {
	orch, err := a.uploader(-1)
	if err != nil {
		return nil, err
	}
	feed := a.bus.Subscribe(
		events.EventViewChanged,
		events.EventTransferCompleted,
		events.EventTransferFailed,
	)
	return &shell{
		a:    a,
		in:   in,
		out:  out,
		orch: orch,
		view: events.ViewLogin,
		feed: feed,
	}, nil
}

// Run reads commands until quit, EOF or cancellation.
func (s *shell) Run(ctx context.Context) error {
	if s.a.client.Authenticated() {
		s.enterApp(ctx)
	} else {
		fmt.Fprintln(s.out, "Not logged in. Type 'login' to start a session.")
	}

	for {
		s.drain(ctx)
		if ctx.Err() != nil {
			s.orch.Wait()
			return nil
		}

		line, err := promptLine(s.in, s.out, s.prompt())
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(s.out)
				s.orch.Wait()
				s.drain(ctx)
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := s.exec(ctx, fields[0], fields[1:]); err != nil {
			if errors.Is(err, errQuit) {
				s.orch.Wait()
				s.drain(ctx)
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *shell) prompt() string {
	if s.view == events.ViewLogin {
		return "filedock (logged out)> "
	}
	return "filedock> "
}

func (s *shell) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		s.help()
		return nil
	case "login":
		return s.login(ctx, args)
	}

	if s.view == events.ViewLogin {
		return fmt.Errorf("log in first ('login')")
	}

	switch name {
	case "ls", "list":
		s.list()
	case "refresh":
		s.a.registry.LoadAll(ctx)
		s.list()
	case "check", "uncheck":
		return s.check(args, name == "check")
	case "toggle":
		for _, arg := range args {
			key, err := s.resolve(arg)
			if err != nil {
				return err
			}
			s.a.selection.Toggle(key)
		}
		s.status()
	case "all":
		s.a.selection.SetAll(true)
		s.status()
	case "none":
		s.a.selection.SetAll(false)
		s.status()
	case "delete", "rm":
		return s.delete(ctx)
	case "delete-one":
		return s.deleteOne(ctx, args)
	case "upload":
		return s.upload(ctx, args)
	case "uploads":
		s.uploads()
	case "wait":
		s.wait(ctx)
	case "dismiss":
		n := s.a.list.DismissFailed()
		fmt.Fprintf(s.out, "Dismissed %d failed upload(s)\n", n)
	case "logout":
		return s.a.client.Logout()
	default:
		return fmt.Errorf("unknown command %q ('help' lists commands)", name)
	}
	return nil
}

func (s *shell) help() {
	if s.view == events.ViewLogin {
		fmt.Fprintln(s.out, `Commands:
  login [username]   log in
  help               show this help
  quit               leave the shell`)
		return
	}
	fmt.Fprintln(s.out, `Commands:
  ls                 show the listing (# is the row number for check/uncheck)
  refresh            reload the listing from the server
  check N|NAME...    check rows
  uncheck N|NAME...  uncheck rows
  toggle N|NAME...   flip rows
  all | none         check or uncheck every row
  delete             delete every checked file in one batch
  delete-one N|NAME  delete a single file
  upload PATH...     upload files in the background
  uploads            show tracked uploads
  wait               wait for running uploads and clear finished ones
  dismiss            clear failed upload rows
  login | logout     switch session
  quit               leave the shell`)
}

func (s *shell) login(ctx context.Context, args []string) error {
	var username string
	var err error
	if len(args) > 0 {
		username = args[0]
	} else if username, err = promptLine(s.in, s.out, "Username: "); err != nil {
		return err
	}

	var password string
	if s.tty {
		password, err = promptPassword("Password: ")
	} else {
		password, err = promptLine(s.in, s.out, "Password: ")
	}
	if err != nil {
		return err
	}

	if err := s.a.client.Login(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Logged in as %s\n", username)
	return nil
}

func (s *shell) enterApp(ctx context.Context) {
	s.view = events.ViewApp
	s.a.registry.LoadAll(ctx)
	s.list()
}

// drain applies pending view transitions and prints upload outcomes.
func (s *shell) drain(ctx context.Context) {
	for {
		var ev events.Event
		select {
		case e, open := <-s.feed.C:
			if !open {
				return
			}
			ev = e
		default:
			return
		}

		switch e := ev.(type) {
		case *events.ViewChangedEvent:
			switch {
			case e.View == events.ViewLogin && s.view != events.ViewLogin:
				s.view = events.ViewLogin
				fmt.Fprintf(s.out, "Session ended (%s). Type 'login' to continue.\n", strings.ReplaceAll(e.Reason, "_", " "))
			case e.View == events.ViewApp:
				s.enterApp(ctx)
			}
		case *events.TransferEvent:
			if e.Type() == events.EventTransferCompleted {
				fmt.Fprintf(s.out, "✓ %s uploaded as %s\n", e.Name, e.UniqueName)
			} else if !api.IsAuthError(e.Error) {
				fmt.Fprintf(s.out, "✗ %v\n", e.Error)
			}
		}
	}
}

func (s *shell) list() {
	rows := s.a.list.Rows()
	st := s.a.selection.State()
	if st.Visible {
		checked, total := s.a.list.Counts()
		fmt.Fprintf(s.out, "%s %d of %d selected\n", st, checked, total)
	} else {
		fmt.Fprintln(s.out, "No files")
	}

	n := 0
	for _, r := range rows {
		switch r.Kind {
		case state.RowFile:
			n++
			box := "[ ]"
			if r.Checked {
				box = "[x]"
			}
			fmt.Fprintf(s.out, "%3d %s %s  %s\n", n, box, r.Record.UniqueName, r.Record.OriginalName)
		case state.RowPending:
			if r.Progress < 0 {
				fmt.Fprintf(s.out, "    ... %s uploading\n", r.Name)
			} else {
				fmt.Fprintf(s.out, "    ... %s %3.0f%%\n", r.Name, r.Progress*100)
			}
		case state.RowFailed:
			fmt.Fprintf(s.out, "    ✗ %s: %v\n", r.Name, r.Error)
		}
	}
}

func (s *shell) status() {
	checked, total := s.a.list.Counts()
	st := s.a.selection.State()
	if !st.Visible {
		fmt.Fprintln(s.out, "No files")
		return
	}
	action := "disabled"
	if st.DeleteEnabled {
		action = "enabled"
	}
	fmt.Fprintf(s.out, "%s %d of %d selected, delete %s\n", st, checked, total, action)
}

// resolve maps a row number or a unique name to a file row key.
func (s *shell) resolve(arg string) (string, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		files := s.a.list.Files()
		if n < 1 || n > len(files) {
			return "", fmt.Errorf("no row %d", n)
		}
		return files[n-1].UniqueName, nil
	}
	if !s.a.registry.Has(arg) {
		return "", fmt.Errorf("no file %q", arg)
	}
	return arg, nil
}

func (s *shell) check(args []string, checked bool) error {
	if len(args) == 0 {
		return fmt.Errorf("which rows? (number or unique name)")
	}
	keys := make([]string, 0, len(args))
	for _, arg := range args {
		key, err := s.resolve(arg)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		s.a.selection.SetChecked(key, checked)
	}
	s.status()
	return nil
}

func (s *shell) delete(ctx context.Context) error {
	outcome, err := s.a.selection.BulkDelete(ctx)
	if err != nil {
		var bde *api.BatchDeleteError
		if errors.As(err, &bde) {
			// Already reported as a notice
			return nil
		}
		return err
	}
	if outcome.Requested == nil {
		if len(s.a.selection.Checked()) == 0 {
			fmt.Fprintln(s.out, "Nothing checked")
		}
		return nil
	}
	fmt.Fprintf(s.out, "Deleted %d of %d file(s)\n", len(outcome.Deleted), len(outcome.Requested))
	return nil
}

func (s *shell) deleteOne(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete-one takes one row number or unique name")
	}
	key, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	deleted, err := s.a.selection.DeleteOne(ctx, key)
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(s.out, "Deleted %s\n", key)
	}
	return nil
}

func (s *shell) uploads() {
	snaps := s.orch.Queue().Snapshots()
	if len(snaps) == 0 {
		fmt.Fprintln(s.out, "No uploads")
		return
	}
	for _, snap := range snaps {
		switch snap.State {
		case transfer.TaskSucceeded:
			fmt.Fprintf(s.out, "%-40s %-10s %s\n", snap.Name, snap.State, snap.Result.UniqueName)
		case transfer.TaskFailed:
			fmt.Fprintf(s.out, "%-40s %-10s %v\n", snap.Name, snap.State, snap.Error)
		default:
			fmt.Fprintf(s.out, "%-40s %-10s %3.0f%%\n", snap.Name, snap.State, snap.Progress*100)
		}
	}
}

// wait blocks for running uploads, reports how they ended and forgets them.
func (s *shell) wait(ctx context.Context) {
	s.orch.Wait()
	s.drain(ctx)

	q := s.orch.Queue()
	stats := q.GetStats()
	if stats.Total() == 0 {
		fmt.Fprintln(s.out, "No uploads")
		return
	}
	fmt.Fprintf(s.out, "Uploads: %d succeeded, %d failed\n", stats.Succeeded, stats.Failed)
	q.ClearFinished()
}

func (s *shell) upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("upload needs at least one path")
	}
	paths, err := expandGlobPatterns(args)
	if err != nil {
		return err
	}
	for _, p := range paths {
		src, err := upload.FileSource(p)
		if err != nil {
			fmt.Fprintf(s.out, "✗ %v\n", err)
			continue
		}
		s.orch.Upload(ctx, src)
		fmt.Fprintf(s.out, "Uploading %s\n", src.Name())
	}
	return nil
}
