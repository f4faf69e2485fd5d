package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/service/trigger"
	"github.com/oshokin/sos-beacon/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// userID overrides the user from settings.
	userID string
	// logLevel and logFormat configure the global logger.
	logLevel, logFormat string

	// rootCmd represents the base command for raising an alert.
	rootCmd = &cobra.Command{
		Use:   "sos-trigger [server-address]",
		Short: "Raise an SOS alert with the current location.",
		Long: `Resolves the device position and sends an SOS alert to every emergency contact.

The position comes from gpsd when configured, then from the IP geolocation
providers in order. When every source fails the last known fix is reused.
The alert is retried while the server is unreachable.
Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Configure(logLevel, logFormat)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use server address argument if provided, otherwise rely on config.
			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			return run(cmd, &trigger.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				UserID:        userID,
			})
		},
	}

	// locateCmd prints the resolved position without alerting anyone.
	locateCmd = &cobra.Command{
		Use:   "locate",
		Short: "Print the current location without raising an alert.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, &trigger.Options{
				ConfigPath: cfgPath,
				UserID:     userID,
				LocateOnly: true,
			})
		},
	}
)

func run(cmd *cobra.Command, opts *trigger.Options) error {
	defer logger.Sync()

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts.Out = cmd.OutOrStdout()

	return trigger.Run(ctx, opts)
}

// Execute runs the sos-trigger CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(locateCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user id, overrides user_id from settings")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console or json")
}
