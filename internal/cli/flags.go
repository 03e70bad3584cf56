package cli

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/spf13/cobra"
)

// DeviceFlags holds the fields shared by device add and device edit.
type DeviceFlags struct {
	Name string
	Host string
	MAC  string
}

// AddDeviceFlags registers --name, --host and --mac on a command.
func AddDeviceFlags(cmd *cobra.Command, flags *DeviceFlags) {
	cmd.Flags().StringVar(&flags.Name, "name", "", "display name")
	cmd.Flags().StringVar(&flags.Host, "host", "", "mDNS instance name or IPv4 address")
	cmd.Flags().StringVar(&flags.MAC, "mac", "", "MAC address for wake (any common separator)")
}

// anyDeviceFlagSet reports whether the user passed any of the device flags.
func anyDeviceFlagSet(cmd *cobra.Command) bool {
	for _, name := range []string{"name", "host", "mac"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// ParseTimeout parses a timeout flag into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Timeout must be positive, got %s", flag),
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}
