package cli

import (
	"io"

	"github.com/soyeahso/smsrelay/internal/config"
	"github.com/soyeahso/smsrelay/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded by the root command before any subcommand runs
	paths     config.Paths
	cfg       config.Config
	cfgErr    error
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smsrelay",
		Short: "smsrelay forwards incoming SMS to webhooks and phone numbers by keyword",
		Long: "smsrelay matches each incoming short message against keyword rules and\n" +
			"forwards it to the channels those rules name: JSON webhooks or other phones over SMS.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// A broken config file must not lock the user out of
			// "config set"; commands that need it check cfgErr.
			cfg, cfgErr = config.Load(paths.Config)

			opts := logging.Options{
				Level:        cfg.Logging.Level,
				File:         cfg.Logging.File,
				ConsoleStyle: cfg.Logging.ConsoleStyle,
				Console:      cmd.ErrOrStderr(),
			}
			if logLevel != "" {
				opts.Level = logLevel
			}
			log, logCloser, err = logging.Open(opts)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.smsrelay/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChannelCmd())
	cmd.AddCommand(newRuleCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newInjectCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadedConfig returns the config, failing if it could not be parsed.
func loadedConfig() (config.Config, error) {
	return cfg, cfgErr
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
