package cli

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/factgate/internal/config"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage factgate configuration",
	Long: `Manage the factgate configuration file and lookup tables.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (FACTGATE_*)
3. Config file (~/.factgate/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(appConfig)
		if err != nil {
			return errors.Wrap(err, "marshal config")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration and lookup tables",
	Long: `Write config.yaml plus the default entity, alias, attribute, tolerance and
promotion policy tables to ~/.factgate (or next to --config).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = filepath.Join(config.DefaultDir(), "config.yaml")
		}

		written, err := config.WriteDefaults(path, appConfig, configForce)
		if err != nil {
			if !configForce {
				return errors.WithHint(err, "use --force to overwrite existing files")
			}
			return err
		}

		out := cmd.OutOrStdout()
		for _, f := range written {
			fmt.Fprintf(out, "✓ Wrote %s\n", f)
		}
		fmt.Fprintf(out, "\nTo view the configuration:\n  factgate config show\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing files")
}
