package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/bealink/internal/device"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/mac"
	"github.com/rileyhilliard/bealink/internal/ui"
	"github.com/spf13/cobra"
)

var (
	deviceAddFlags  DeviceFlags
	deviceEditFlags DeviceFlags
	deviceRmYes     bool
	deviceListJSON  bool
)

var deviceCmd = &cobra.Command{
	Use:     "device",
	Aliases: []string{"devices"},
	Short:   "Manage the device list",
}

var deviceAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a device",
	Long: `Add a device by hostname, MAC address, or both.

The hostname is the name the machine's agent advertises over mDNS (usually
its computer name) or a fixed IPv4 address. The MAC is needed for wake.
Without flags on a terminal, a form asks for each field.

Examples:
  bealink device add --host office-pc --mac AA:BB:CC:11:22:33
  bealink device add --host 192.168.1.50 --name Media
  bealink device add`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := device.Input{Name: deviceAddFlags.Name, Hostname: deviceAddFlags.Host, MAC: deviceAddFlags.MAC}
		if !anyDeviceFlagSet(cmd) {
			if !interactive() {
				return errors.New(errors.ErrValidation,
					"Hostname or MAC address required",
					"Provide --host, --mac, or both")
			}
			var cancelled bool
			var err error
			in, cancelled, err = promptDevice(in, "Add a device")
			if err != nil {
				return err
			}
			if cancelled {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}
		return deviceSave(cmd.Context(), cmd.OutOrStdout(), in)
	},
}

var deviceEditCmd = &cobra.Command{
	Use:   "edit <device>",
	Short: "Change a device's name, hostname or MAC",
	Long: `Change a device. Only the flags you pass are changed; pass an empty
value (--mac "") to clear a field. Without flags on a terminal, a form
prefilled with the current values is shown.

Examples:
  bealink device edit office --mac AA:BB:CC:11:22:33
  bealink device edit office --host office-laptop`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceEdit(cmd, args[0])
	},
}

var deviceRmCmd = &cobra.Command{
	Use:     "rm <device>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a device",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceRemove(cmd, args[0])
	},
}

var deviceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configured devices",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return deviceList(cmd.Context(), cmd.OutOrStdout(), deviceListJSON)
	},
}

func init() {
	AddDeviceFlags(deviceAddCmd, &deviceAddFlags)
	AddDeviceFlags(deviceEditCmd, &deviceEditFlags)
	deviceRmCmd.Flags().BoolVarP(&deviceRmYes, "yes", "y", false, "skip the confirmation prompt")
	deviceListCmd.Flags().BoolVar(&deviceListJSON, "json", false, "output in JSON format")

	deviceCmd.AddCommand(deviceAddCmd, deviceEditCmd, deviceRmCmd, deviceListCmd)
	rootCmd.AddCommand(deviceCmd)
}

// deviceSave validates and stores in, then reports what happened.
func deviceSave(ctx context.Context, out io.Writer, in device.Input) error {
	app, err := openApp(ctx, AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	d, err := app.Coordinator.AddOrUpdateDevice(ctx, in)
	if err != nil {
		return err
	}

	verb := "Added"
	if in.ID != "" {
		verb = "Updated"
	}
	fmt.Fprintf(out, "%s %s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), verb, describeDevice(d))
	return nil
}

func deviceEdit(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	d, err := app.Coordinator.Find(ctx, ref)
	if err != nil {
		return err
	}

	in := device.FromDevice(d)
	if anyDeviceFlagSet(cmd) {
		in = applyDeviceFlags(cmd, in, deviceEditFlags)
	} else {
		if !interactive() {
			return errors.New(errors.ErrValidation,
				"Nothing to change",
				"Pass --name, --host or --mac")
		}
		var cancelled bool
		in, cancelled, err = promptDevice(in, "Edit "+d.DisplayName())
		if err != nil {
			return err
		}
		if cancelled {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	updated, err := app.Coordinator.AddOrUpdateDevice(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), describeDevice(updated))
	return nil
}

// applyDeviceFlags overlays the flags the user actually passed.
func applyDeviceFlags(cmd *cobra.Command, in device.Input, flags DeviceFlags) device.Input {
	if cmd.Flags().Changed("name") {
		in.Name = flags.Name
	}
	if cmd.Flags().Changed("host") {
		in.Hostname = flags.Host
	}
	if cmd.Flags().Changed("mac") {
		in.MAC = flags.MAC
	}
	return in
}

func deviceRemove(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	d, err := app.Coordinator.Find(ctx, ref)
	if err != nil {
		return err
	}

	if !deviceRmYes {
		if !interactive() {
			return errors.New(errors.ErrValidation,
				"Refusing to remove "+d.DisplayName()+" without confirmation",
				"Pass --yes to remove without a prompt")
		}
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove %s?", describeDevice(d))).
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrValidation, "Failed to get user input", "Pass --yes to skip the prompt")
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := app.Coordinator.DeleteDevice(ctx, d.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), d.DisplayName())
	return nil
}

// DeviceOutput is the JSON shape of a configured device.
type DeviceOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Hostname string `json:"hostname,omitempty"`
	MAC      string `json:"mac,omitempty"`
}

func deviceList(ctx context.Context, out io.Writer, asJSON bool) error {
	app, err := openApp(ctx, AppOptions{})
	if err != nil {
		if asJSON {
			_ = WriteJSONFromError(out, err)
		}
		return err
	}
	defer app.Close()

	devices, err := app.Repo.List(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		list := make([]DeviceOutput, 0, len(devices))
		for _, d := range devices {
			o := DeviceOutput{ID: d.ID, Name: d.Name, Hostname: d.Hostname}
			if d.HasMAC() {
				o.MAC = mac.Display(d.MAC)
			}
			list = append(list, o)
		}
		return WriteJSONSuccess(out, list)
	}

	fmt.Fprint(out, ui.RenderDeviceList(devices))
	return nil
}

// promptDevice shows the add/edit form prefilled with in.
func promptDevice(in device.Input, title string) (device.Input, bool, error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Hostname").
				Description("Name the agent advertises over mDNS, or an IPv4 address").
				Placeholder("office-pc or 192.168.1.50").
				Value(&in.Hostname),
			huh.NewInput().
				Title("MAC address").
				Description("Needed for wake; leave empty to skip").
				Placeholder("AA:BB:CC:11:22:33").
				Value(&in.MAC).
				Validate(func(s string) error {
					s = strings.TrimSpace(s)
					if s == "" {
						return nil
					}
					if _, ok := mac.Normalize(s); !ok {
						return fmt.Errorf("not a MAC address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Name").
				Description("Defaults to the hostname").
				Value(&in.Name),
		).Title(title),
	)

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return in, true, nil
		}
		return in, false, errors.WrapWithCode(err, errors.ErrValidation,
			"Failed to get user input",
			"Pass --host and --mac instead")
	}
	if strings.TrimSpace(in.Hostname) == "" && strings.TrimSpace(in.MAC) == "" {
		return in, true, nil
	}
	return in, false, nil
}

func describeDevice(d device.Device) string {
	var parts []string
	if d.Hostname != "" && d.Hostname != d.Name {
		parts = append(parts, d.Hostname)
	}
	if d.HasMAC() {
		parts = append(parts, mac.Display(d.MAC))
	}
	if len(parts) == 0 {
		return d.DisplayName()
	}
	return fmt.Sprintf("%s (%s)", d.DisplayName(), strings.Join(parts, ", "))
}

// stderr is where progress output goes so stdout stays clean for pipes.
var stderr io.Writer = os.Stderr
