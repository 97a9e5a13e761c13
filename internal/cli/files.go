package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/models"
	"github.com/filedock/filedock/internal/pathutil"
	"github.com/filedock/filedock/internal/progress"
	"github.com/filedock/filedock/internal/selection"
	"github.com/filedock/filedock/internal/validation"
)

// newListCmd creates the 'ls' command.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List stored files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.client.ListFiles(GetContext())
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func printRecords(out io.Writer, records []models.FileRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No files")
		return
	}
	fmt.Fprintf(out, "Found %d file(s):\n\n", len(records))
	fmt.Fprintf(out, "%-40s %s\n", "UNIQUE NAME", "ORIGINAL NAME")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, r := range records {
		fmt.Fprintf(out, "%-40s %s\n", r.UniqueName, r.OriginalName)
	}
}

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files",
		Long: `Upload one or more files. Every file is sent in its own request at
the same time; one failing upload does not stop the others.

Examples:
  filedock upload report.pdf
  filedock upload "*.csv"
  filedock upload *.zip --max-concurrent 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := resolveMaxConcurrent(cmd)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}
			return uploadFiles(a, args, limit)
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Maximum simultaneous uploads (0 = unlimited)")
	return cmd
}

// resolveMaxConcurrent returns the --max-concurrent value, or -1 when the
// flag was not given so the configured limit applies.
func resolveMaxConcurrent(cmd *cobra.Command) (int, error) {
	if !cmd.Flags().Changed("max-concurrent") {
		return -1, nil
	}
	n, err := cmd.Flags().GetInt("max-concurrent")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("--max-concurrent must be 0 (unlimited) or positive, got %d", n)
	}
	return n, nil
}

// newRemoveCmd creates the 'rm' command.
func newRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <unique-name> [unique-name...]",
		Short: "Delete files in one batch",
		Long: `Delete files by their unique names in a single batch request.

Files the server could not delete are reported by name and left in place.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []selection.Option
			if !yes {
				opts = append(opts, selection.WithConfirmer(&lineConfirmer{
					reader: bufio.NewReader(os.Stdin),
					out:    os.Stderr,
				}))
			}
			notifier := &printNotifier{out: cmd.ErrOrStderr()}
			opts = append(opts, selection.WithNotifier(notifier))

			a, err := newApp(opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.requireSession(); err != nil {
				return err
			}
			return removeFiles(a, cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// removeFiles checks the named rows of a fresh listing and bulk-deletes them.
func removeFiles(a *app, out io.Writer, names []string) error {
	ctx := GetContext()
	a.registry.LoadAll(ctx)
	if !a.client.Authenticated() {
		return api.ErrSessionExpired
	}

	for _, name := range names {
		if !a.selection.SetChecked(name, true) {
			return fmt.Errorf("file %s is not in the listing", name)
		}
	}

	outcome, err := a.selection.BulkDelete(ctx)
	if err != nil {
		return err
	}
	if outcome.Requested == nil {
		fmt.Fprintln(out, "Nothing deleted")
		return nil
	}
	for _, name := range outcome.Deleted {
		fmt.Fprintf(out, "Deleted %s\n", name)
	}
	if len(outcome.Failed) > 0 {
		return fmt.Errorf("%d of %d files could not be deleted", len(outcome.Failed), len(outcome.Requested))
	}
	return nil
}

// newGetCmd creates the 'get' command.
func newGetCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <unique-name>",
		Short: "Download a file through its public link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			name := args[0]
			if outputPath == "" {
				if err := validation.ValidateFilename(name); err != nil {
					return fmt.Errorf("refusing to save %q without --output: %w", name, err)
				}
				outputPath = name
			}
			outputPath, err = pathutil.ResolveAbsolutePath(outputPath)
			if err != nil {
				return fmt.Errorf("invalid output path: %w", err)
			}

			d := api.NewDownloader(a.client.HTTPClient(), a.client.BaseURL(), a.logger)
			n, err := d.DownloadFile(GetContext(), name, outputPath, progress.NewCLIProgress())
			if err != nil {
				return err
			}

			a.logger.Info().Str("file", outputPath).Int64("bytes", n).Msg("Download complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output path (defaults to the unique name in the current directory)")
	return cmd
}

// newURLCmd creates the 'url' command.
func newURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "url <unique-name>",
		Short: "Print the public link of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), a.client.FileURL(args[0]))
			return nil
		},
	}
}
