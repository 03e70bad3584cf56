package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/rileyhilliard/bealink/internal/coordinator"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/logger"
	"github.com/rileyhilliard/bealink/internal/mac"
	"github.com/rileyhilliard/bealink/internal/ui"
	"github.com/rileyhilliard/bealink/internal/util"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	clipPullPrint   bool
	resolveTimeout  string
	discoverTimeout string
)

// action runs one coordinator command against a device.
type action func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error)

// wakeCmd broadcasts a magic packet
var wakeCmd = &cobra.Command{
	Use:   "wake <device>",
	Short: "Send a Wake-on-LAN magic packet",
	Long: `Broadcast a magic packet for the device's MAC address.

Wake does not need the device to be reachable or resolved; it goes to the
wake.broadcast address(es) from your config.

Examples:
  bealink wake office-pc
  bealink wake 0f3c`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDevices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args[0], "Waking", false, func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error) {
			return c.Wake(ctx, id)
		})
	},
}

// sleepCmd asks the agent to suspend
var sleepCmd = &cobra.Command{
	Use:               "sleep <device>",
	Short:             "Put a device to sleep",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDevices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args[0], "Sleeping", true, func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error) {
			return c.Sleep(ctx, id)
		})
	},
}

// shutdownCmd asks the agent to power off
var shutdownCmd = &cobra.Command{
	Use:               "shutdown <device>",
	Short:             "Shut a device down",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDevices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args[0], "Shutting down", true, func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error) {
			return c.Shutdown(ctx, id)
		})
	},
}

// displayCmd toggles the device's monitor
var displayCmd = &cobra.Command{
	Use:               "display <device>",
	Aliases:           []string{"monitor"},
	Short:             "Turn a device's display on or off",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDevices,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, args[0], "Toggling display", true, func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error) {
			return c.ToggleMonitor(ctx, id)
		})
	},
}

var clipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Share clipboard text with a device",
}

// clipPushCmd sends text to the device's clipboard
var clipPushCmd = &cobra.Command{
	Use:   "push <device> [text...]",
	Short: "Send text to a device's clipboard",
	Long: `Send text to the device's clipboard. Without text arguments, the
local clipboard is sent.

Examples:
  bealink clip push office-pc
  bealink clip push office-pc "meeting link"`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeDevices,
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args[1:], " ")
		if len(args) == 1 {
			local, err := clipboard.ReadAll()
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrValidation,
					"Cannot read the local clipboard",
					"Pass the text as an argument instead")
			}
			content = local
			if strings.TrimSpace(content) == "" {
				ui.PrintWarning("Local clipboard is empty, nothing to send")
				return nil
			}
		}
		return runAction(cmd, args[0], "Sending clipboard", true, func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error) {
			return c.PushClipboard(ctx, id, content)
		})
	},
}

// clipPullCmd fetches the device's clipboard
var clipPullCmd = &cobra.Command{
	Use:   "pull <device>",
	Short: "Copy a device's clipboard here",
	Long: `Fetch the device's clipboard text and put it on the local clipboard.
With --print the text goes to stdout instead.

Examples:
  bealink clip pull office-pc
  bealink clip pull office-pc --print > notes.txt`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDevices,
	RunE: func(cmd *cobra.Command, args []string) error {
		var content string
		err := runAction(cmd, args[0], "Fetching clipboard", true, func(ctx context.Context, c *coordinator.Coordinator, id string) (string, error) {
			text, err := c.PullClipboard(ctx, id)
			if err != nil {
				return "", err
			}
			content = text
			if strings.TrimSpace(text) == "" {
				return "Device clipboard is empty", nil
			}
			if clipPullPrint {
				return "Received📋: " + util.Truncate(text, coordinator.PreviewRunes), nil
			}
			if err := clipboard.WriteAll(text); err != nil {
				return "", errors.WrapWithCode(err, errors.ErrValidation,
					"Cannot write the local clipboard",
					"Use --print to get the text on stdout")
			}
			return "Copied📋: " + util.Truncate(text, coordinator.PreviewRunes), nil
		})
		if err != nil {
			return err
		}
		if clipPullPrint && content != "" {
			fmt.Fprint(cmd.OutOrStdout(), content)
		}
		return nil
	},
}

// resolveCmd looks a hostname up over mDNS
var resolveCmd = &cobra.Command{
	Use:   "resolve <hostname>",
	Short: "Resolve an agent hostname over mDNS",
	Long: `Browse for the agent service and print the IPv4 address of the first
instance whose name matches the hostname (exact, then prefix).

Examples:
  bealink resolve office-pc
  bealink resolve office-pc.local. --timeout 3s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveHostname(cmd, args[0])
	},
}

// discoverCmd lists every agent on the LAN
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List agents advertising on the LAN",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return discoverAgents(cmd)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for bealink.

Examples:
  # Bash
  bealink completion bash > /etc/bash_completion.d/bealink

  # Zsh
  bealink completion zsh > "${fpath[1]}/_bealink"

  # Fish
  bealink completion fish > ~/.config/fish/completions/bealink.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrValidation,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	clipPullCmd.Flags().BoolVar(&clipPullPrint, "print", false, "write the text to stdout instead of the local clipboard")
	resolveCmd.Flags().StringVar(&resolveTimeout, "timeout", "", "resolution timeout (default: discovery.timeout)")
	discoverCmd.Flags().StringVar(&discoverTimeout, "timeout", "3s", "how long to listen")

	clipCmd.AddCommand(clipPushCmd, clipPullCmd)

	// Register all commands
	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(sleepCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(displayCmd)
	rootCmd.AddCommand(clipCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(completionCmd)
}

// runAction finds the device, waits for its first resolution and probe
// when the command needs an address, runs fn and prints the outcome.
func runAction(cmd *cobra.Command, ref, label string, needsAddress bool, fn action) error {
	ctx := cmd.Context()
	app, err := openApp(ctx, AppOptions{Start: true})
	if err != nil {
		return err
	}
	defer app.Close()

	d, err := app.Coordinator.Find(ctx, ref)
	if err != nil {
		return err
	}

	spinner := ui.NewSpinner(stderr, label+" "+d.DisplayName(), isTerminal(os.Stderr))
	spinner.Start()

	if needsAddress {
		// A timeout here is not fatal: the command itself reports a
		// missing address or an offline device.
		waitCtx, cancel := context.WithTimeout(ctx, settleTimeout(app.Config))
		err := app.Coordinator.WaitSettled(waitCtx, d.ID)
		cancel()
		if err != nil && ctx.Err() != nil {
			spinner.Stop()
			return ctx.Err()
		}
	}

	msg, err := fn(ctx, app.Coordinator, d.ID)
	if err != nil {
		spinner.Stop()
		return err
	}
	spinner.Success(msg)
	return nil
}

func resolveHostname(cmd *cobra.Command, hostname string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	timeout, err := ParseTimeout(resolveTimeout)
	if err != nil {
		return err
	}

	log := logger.Default()
	mlock := newMulticastLock(log)
	defer reportLockHolders(mlock, log)
	resolver := newResolver(cfg, mlock, log)

	spinner := ui.NewSpinner(stderr, "Resolving "+hostname, isTerminal(os.Stderr))
	spinner.Start()
	ip, err := resolver.Resolve(cmd.Context(), hostname, timeout)
	if err != nil {
		spinner.Stop()
		return errors.WrapWithCode(err, errors.ErrResolve,
			"Could not resolve hostname: "+hostname,
			"Check the agent is running and on the same network, or run 'bealink discover'")
	}
	spinner.Stop()
	fmt.Fprintln(cmd.OutOrStdout(), ip)
	return nil
}

func discoverAgents(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	timeout, err := ParseTimeout(discoverTimeout)
	if err != nil {
		return err
	}

	log := logger.Default()
	mlock := newMulticastLock(log)
	defer reportLockHolders(mlock, log)
	resolver := newResolver(cfg, mlock, log)

	spinner := ui.NewSpinner(stderr, "Listening for "+cfg.Discovery.Service, isTerminal(os.Stderr))
	spinner.Start()
	instances, err := resolver.Discover(cmd.Context(), timeout)
	spinner.Stop()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrResolve, "Discovery failed", "Check that multicast is allowed on this network")
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderInstanceTable(instances))
	return nil
}

// completeDevices offers device names for shell completion.
func completeDevices(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	app, err := openApp(cmd.Context(), AppOptions{})
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer app.Close()

	devices, err := app.Repo.List(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, d := range devices {
		name := d.DisplayName()
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(toComplete)) {
			desc := d.Hostname
			if d.HasMAC() {
				desc = strings.TrimSpace(desc + " " + mac.Display(d.MAC))
			}
			names = append(names, name+"\t"+desc)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
