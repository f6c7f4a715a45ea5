package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/factgate/internal/config"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
)

// Version is set at build time with -ldflags "-X .../cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
	jsonLog bool

	appConfig *model.Config
	logger    = zap.NewNop().Sugar()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "factgate",
	Short: "factgate - verify numeric claims against recorded facts",
	Long: `factgate checks the numbers in a piece of text against a database of
recorded facts about named entities.

Each claim gets a verdict (verified, close, mismatch or unknown) and an
audit trail of how the verdict was reached. Pending evaluations only
become trusted facts after passing a risk-tiered promotion gate.

factgate is a lexical matcher, not a reader: it does not understand
text and does not guarantee that an inferred attribute is right.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Output.Verbose = verbose
		}
		if cmd.Flags().Changed("json-log") {
			cfg.Output.JSONLog = jsonLog
		}

		appConfig = cfg
		logger = logging.New(logging.Options{Verbose: cfg.Output.Verbose, JSON: cfg.Output.JSONLog})
		if file := v.ConfigFileUsed(); file != "" {
			logger.Debugw("Loaded configuration", "file", file)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factgate v%s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log as JSON lines")

	rootCmd.AddCommand(versionCmd)
}
