package cli

import (
	"fmt"
	"path/filepath"

	"github.com/rileyhilliard/bealink/internal/config"
	"github.com/rileyhilliard/bealink/internal/errors"
	"github.com/rileyhilliard/bealink/internal/ui"
	"github.com/spf13/cobra"
)

var (
	configInitForce bool
	configInitLocal bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, change and inspect configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a commented config file with every setting at its default.

By default the file goes to ~/.config/bealink/config.yaml; --local writes
./.bealink.yaml instead.

Examples:
  bealink config init
  bealink config init --local --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalPath()
		if configInitLocal {
			path = config.ConfigFileName
		}
		if cfgFile != "" {
			path = cfgFile
		}
		if path == "" {
			return errors.New(errors.ErrConfig,
				"Cannot find your home directory",
				"Use --local or --config to choose where the file goes")
		}
		if err := config.WriteDefault(path, configInitForce); err != nil {
			return err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), abs)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Set a dotted key in the config file, keeping its comments.

Examples:
  bealink config set wake.broadcast auto
  bealink config set health.interval 5s`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Find(Config())
		if err != nil {
			return err
		}
		if path == "" {
			return errors.New(errors.ErrConfig,
				"No config file found",
				"Run 'bealink config init' first")
		}

		key, value := args[0], args[1]
		if err := config.SetValue(path, key, value); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Failed to update "+path, "")
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("%s was written but the config is now invalid", key),
				"Fix the value with 'bealink config set "+key+" <value>'")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), key, value)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := config.Render(cfg)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Failed to render config", "")
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print which config file is in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.Find(Config())
		if err != nil {
			return err
		}
		if path == "" {
			fmt.Fprintln(cmd.OutOrStdout(), ui.MutedStyle().Render("(none, using defaults)"))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "write ./"+config.ConfigFileName+" instead of the global file")

	configCmd.AddCommand(configInitCmd, configSetCmd, configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
