package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	gosync "sync"

	"github.com/rileyhilliard/bealink/internal/coordinator"
	"github.com/rileyhilliard/bealink/internal/mac"
	"github.com/rileyhilliard/bealink/internal/state"
	"github.com/rileyhilliard/bealink/internal/ui"
	"github.com/spf13/cobra"
)

var statusJSON bool

// statusCmd resolves and probes every device once
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which devices are up",
	Long: `Resolve every device's hostname, probe each agent once and print a
table of the results.

Examples:
  bealink status
  bealink status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusCommand(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(statusCmd)
}

// StatusOutput represents the JSON output for status command.
type StatusOutput struct {
	Devices []DeviceStatus `json:"devices"`
	Online  int            `json:"online"`
}

// DeviceStatus represents a single device's state.
type DeviceStatus struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Hostname  string `json:"hostname,omitempty"`
	MAC       string `json:"mac,omitempty"`
	Address   string `json:"address,omitempty"`
	Status    string `json:"status"`
	Latency   string `json:"latency,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// statusCommand implements the status command logic.
func statusCommand(ctx context.Context, out io.Writer) error {
	app, err := openApp(ctx, AppOptions{Start: true})
	if err != nil {
		if statusJSON {
			_ = WriteJSONFromError(out, err)
		}
		return err
	}
	defer app.Close()

	var spinner *ui.Spinner
	if !statusJSON {
		spinner = ui.NewSpinner(stderr, "Checking devices", isTerminal(os.Stderr))
		spinner.Start()
	}

	waitCtx, cancel := context.WithTimeout(ctx, settleTimeout(app.Config))
	settleAll(waitCtx, app.Coordinator)
	cancel()

	if spinner != nil {
		spinner.Stop()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	views := app.Coordinator.Views()
	if statusJSON {
		return WriteJSONSuccess(out, buildStatusOutput(views))
	}
	fmt.Fprint(out, ui.RenderDeviceTable(views, ""))
	return nil
}

// settleAll waits for every device to finish its first resolution and
// probe, or for ctx to end.
func settleAll(ctx context.Context, c *coordinator.Coordinator) {
	var wg gosync.WaitGroup
	for _, v := range c.Views() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = c.WaitSettled(ctx, id)
		}(v.Device.ID)
	}
	wg.Wait()
}

func buildStatusOutput(views []state.View) StatusOutput {
	output := StatusOutput{Devices: make([]DeviceStatus, 0, len(views))}
	for _, v := range views {
		ds := DeviceStatus{
			ID:       v.Device.ID,
			Name:     v.Device.DisplayName(),
			Hostname: v.Device.Hostname,
			Address:  v.Address(),
			Status:   ui.StatusLabel(v),
			Error:    v.ResolveErr,
		}
		if v.Device.HasMAC() {
			ds.MAC = mac.Display(v.Device.MAC)
		}
		if v.Health.Online {
			output.Online++
			ds.Latency = ui.FormatLatency(v.Health.Latency)
			ds.LatencyMs = v.Health.Latency.Milliseconds()
		}
		output.Devices = append(output.Devices, ds)
	}
	return output
}
