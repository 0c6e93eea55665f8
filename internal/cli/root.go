// Package cli implements the servicehub command line client. Each
// invocation is one session: state is hydrated from the local state
// directory, used, and written back.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/servicehub/internal/app"
	"github.com/me/servicehub/internal/config"
	"github.com/me/servicehub/internal/logging"
)

var (
	flagConfig    string
	flagAPIURL    string
	flagStateDir  string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger      *slog.Logger
	application *app.App
)

// NewRootCmd creates the root cobra command for the servicehub CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "servicehub",
		Short: "ServiceHub marketplace client",
		Long:  "servicehub signs in to the ServiceHub marketplace and shows the dashboard for your role.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			application, err = app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("start client: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if application == nil {
				return nil
			}
			return application.Close()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Marketplace API base URL (or SERVICEHUB_API_URL env)")
	root.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "Local state directory (default ~/.servicehub)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newVerifyEmailCmd(),
		newResendVerificationCmd(),
		newDashboardCmd(),
	)

	return root
}

// loadConfig layers explicitly set flags over the file and environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIBaseURL = flagAPIURL
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = flagStateDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}
