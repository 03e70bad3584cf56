package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/bealink/internal/config"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/ui"
	"github.com/rileyhilliard/bealink/internal/util"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Global flags
var (
	cfgFile string
	verbose bool
	noColor bool
)

// Loaded once per invocation by loadConfig.
var (
	loadedConfig *config.Config
	loadedPath   string
)

var rootCmd = &cobra.Command{
	Use:   "bealink",
	Short: "Wake, watch and control machines on your LAN",
	Long: `bealink talks to the small HTTP agent running on each of your machines.

It finds them over mDNS, keeps an eye on which ones are up, and sends
wake, sleep, shutdown, display and clipboard commands.

Examples:
  bealink device add --host office-pc --mac AA:BB:CC:11:22:33
  bealink status
  bealink wake office-pc
  bealink watch`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.bealink.yaml, then ~/.config/bealink/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if isUnknownCommandError(err) {
			err = unknownCommandError(err)
		}
		fmt.Fprint(os.Stderr, renderError(err))
		os.Exit(1)
	}
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

// loadConfig finds, loads and validates config, and applies its output
// and log settings. Defaults are used when no file exists.
func loadConfig() (*config.Config, error) {
	if loadedConfig != nil {
		return loadedConfig, nil
	}

	cfg, path, err := config.LoadOrDefault(Config())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Output.Color) {
	case "never":
		ui.DisableColors()
	case "auto":
		if !isTerminal(os.Stdout) {
			ui.DisableColors()
		}
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger.SetDefault(logger.New(logger.Config{Level: level, JSON: cfg.Log.JSON}))

	loadedConfig, loadedPath = cfg, path
	return cfg, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// interactive reports whether prompts can be shown.
func interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func renderError(err error) string {
	out := err.Error()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// isUnknownCommandError reports whether cobra rejected the command line
// itself rather than a command failing.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "bealink"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func unknownCommandError(err error) error {
	name := extractUnknownCommand(err)
	if name == "" {
		return errors.WrapWithCode(err, errors.ErrValidation, "Invalid command line", "Run 'bealink --help' for usage")
	}

	var names []string
	for _, c := range rootCmd.Commands() {
		if !c.Hidden {
			names = append(names, c.Name())
		}
	}

	suggestion := "Run 'bealink --help' to see available commands"
	if similar := util.SuggestSimilar(name, names, 3); len(similar) > 0 {
		suggestion = "Did you mean '" + similar[0] + "'?"
	}
	return errors.New(errors.ErrValidation, fmt.Sprintf("Unknown command '%s'", name), suggestion)
}
