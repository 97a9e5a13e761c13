// Package cli provides the command-line interface for filedock.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/version"
)

var (
	// Global flags
	cfgFile   string
	serverURL string
	tokenFile string
	logFile   string
	verbose   bool
	debug     bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filedock",
		Short: "filedock - upload, list and delete files on a filedock server",
		Long: `filedock ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for a filedock file server.

Log in once with 'filedock login'; the session token is kept in
~/.config/filedock/token until the server rejects it.

Use 'filedock shell' for an interactive session with checkboxes
and bulk delete.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "Session token file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate a shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// initLogger builds the global logger from flags and config.
func initLogger() {
	path := logFile
	level := ""
	if cfg, err := loadConfig(); err == nil {
		if path == "" {
			path = cfg.LogFile
		}
		level = cfg.LogLevel
	}

	if path != "" {
		logger = logging.NewFileLogger(os.Stderr, path)
	} else {
		logger = logging.NewLogger(os.Stderr)
	}

	logging.SetGlobalLevel(logging.ParseLevel(level))
	if verbose || debug {
		logging.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if api.IsAuthError(err) {
			fmt.Fprintln(os.Stderr, "Run 'filedock login' to start a new session.")
		}
	}
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newURLCmd())
	rootCmd.AddCommand(newShellCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "filedock %s (%s)\n", version.Version, version.BuildTime)
		},
	}
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr)
	}
	return logger
}

// GetContext returns the global CLI context. It is cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// isCancelled reports whether err came from the user interrupting.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
