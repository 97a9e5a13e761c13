package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/filedock/filedock/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage filedock configuration",
		Long: `Configuration management commands for filedock.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Check the server and the stored session
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for filedock.

The configuration is saved to ~/.config/filedock/config.ini unless
--config names another file. Use --force to overwrite it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at: %s\n", path)
					fmt.Fprintln(cmd.OutOrStdout(), "Use --force to overwrite or run 'config show' to view it.")
					return nil
				}
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				cfg = config.NewConfig()
			}
			if err := runConfigWizard(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// runConfigWizard asks for each setting, keeping the current value on Enter.
func runConfigWizard(reader *bufio.Reader, out io.Writer, cfg *config.Config) error {
	fmt.Fprintln(out, "filedock Configuration Setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	ask := func(label, current string) (string, error) {
		v, err := promptLine(reader, out, fmt.Sprintf("%s [%s]: ", label, current))
		if err != nil && err != io.EOF {
			return "", err
		}
		if v == "" {
			return current, nil
		}
		return v, nil
	}
	askInt := func(label string, current int) (int, error) {
		v, err := ask(label, strconv.Itoa(current))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a number", label, v)
		}
		return n, nil
	}

	var err error
	if cfg.ServerURL, err = ask("Server URL", cfg.ServerURL); err != nil {
		return err
	}
	if cfg.MaxConcurrent, err = askInt("Max concurrent uploads (0 = unlimited)", cfg.MaxConcurrent); err != nil {
		return err
	}

	mode, err := ask("Proxy mode (no-proxy, system, basic, ntlm)", defaultString(cfg.ProxyMode, "no-proxy"))
	if err != nil {
		return err
	}
	cfg.ProxyMode = strings.ToLower(mode)
	if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
		if cfg.ProxyHost, err = ask("Proxy host", cfg.ProxyHost); err != nil {
			return err
		}
		if cfg.ProxyPort, err = askInt("Proxy port", defaultInt(cfg.ProxyPort, 8080)); err != nil {
			return err
		}
		if cfg.ProxyUser, err = ask("Proxy user", cfg.ProxyUser); err != nil {
			return err
		}
	}
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(out io.Writer, cfg *config.Config) {
	maxConcurrent := strconv.Itoa(cfg.MaxConcurrent)
	if cfg.MaxConcurrent == 0 {
		maxConcurrent = "unlimited"
	}

	fmt.Fprintf(out, "Server URL:      %s\n", cfg.ServerURL)
	fmt.Fprintf(out, "Token file:      %s\n", cfg.TokenFile)
	fmt.Fprintf(out, "Max concurrent:  %s\n", maxConcurrent)
	fmt.Fprintf(out, "Log level:       %s\n", cfg.LogLevel)
	if cfg.LogFile != "" {
		fmt.Fprintf(out, "Log file:        %s\n", cfg.LogFile)
	}
	fmt.Fprintf(out, "Proxy mode:      %s\n", defaultString(cfg.ProxyMode, "no-proxy"))
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "Proxy:           %s:%d\n", cfg.ProxyHost, cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(out, "Proxy user:      %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(out, "No proxy:        %s\n", cfg.NoProxy)
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the server and the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server: %s\n", a.client.BaseURL())
			if err := a.requireSession(); err != nil {
				return err
			}

			files, err := a.client.ListFiles(GetContext())
			if err != nil {
				return fmt.Errorf("session check failed: %w", err)
			}
			fmt.Fprintf(out, "Session OK, %d file(s) stored\n", len(files))
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath())
		},
	}
}
