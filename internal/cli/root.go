// Package cli provides the command-line interface for rc.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dualpane/rc/internal/config"
	"github.com/dualpane/rc/internal/jobs"
	"github.com/dualpane/rc/internal/logging"
	"github.com/dualpane/rc/internal/version"
)

var (
	// Global flags
	cfgFile    string
	verbose    bool
	debug      bool
	showHidden bool

	// Loaded by the root PersistentPreRunE
	cfg    *config.Config
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rc",
		Short: "rc - dual-pane file manager job engine",
		Long: `rc ` + version.Version + ` - Built: ` + version.BuildTime + `

Copies, moves, deletes and renames files as background jobs with live
progress and throughput, the same way the file manager panes do.

Conflicts with existing files are prompted for interactively, or resolved
up front with --overwrite or --skip-existing. Ctrl+C cancels every running
job and removes partially written files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVarP(&showHidden, "hidden", "H", false, "Include hidden files (overrides show_hidden)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for rc.

QUICK TEST (temporary, current session only):
  source <(rc completion bash)
  source <(rc completion zsh)
  rc completion fish | source`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletion(out)
			}
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// initialize loads the configuration and sets up the logger. Flags take
// precedence over the config file.
func initialize(cmd *cobra.Command) error {
	path := cfgFile
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	loaded, err := config.LoadConfigCSV(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("hidden") {
		loaded.ShowHidden = showHidden
	}
	cfg = loaded

	logger = logging.NewDefaultCLILogger()
	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	if verbose || debug {
		logging.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger.Debug().Str("config", path).Str("session", logging.SessionID).Msg("Configuration loaded")
	return nil
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling jobs...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	cancelFunc()

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newTransferCmd("cp", "Copy files and directories into DEST", jobs.JobCopy))
	rootCmd.AddCommand(newTransferCmd("mv", "Move files and directories into DEST", jobs.JobMove))
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newDuCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetConfig returns the loaded configuration, or defaults before
// initialization.
func GetConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
