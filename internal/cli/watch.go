package cli

import (
	stderrors "errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/bealink/internal/ui"
	"github.com/spf13/cobra"
)

// watchCmd starts the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of your devices",
	Long: `Start an interactive dashboard that keeps resolving and probing every
device and shows status, address and latency as they change.

Keyboard shortcuts:
  up/k, down/j  Select a device
  w             Wake
  s             Sleep
  x             Shut down (asks first)
  d             Toggle display
  r             Resolve the hostname again
  ?             Show help
  q / Ctrl+C    Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchCommand(cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchCommand(cmd *cobra.Command) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, AppOptions{Start: true, Retry: true})
	if err != nil {
		return err
	}
	defer app.Close()

	model := ui.NewWatchModel(ctx, app.Coordinator)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if stderrors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
