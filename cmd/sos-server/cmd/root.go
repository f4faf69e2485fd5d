package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/sos-beacon/internal/config"
	"github.com/oshokin/sos-beacon/internal/logger"
	"github.com/oshokin/sos-beacon/internal/service/server"
	"github.com/oshokin/sos-beacon/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// httpAddress overrides the HTTP listen address.
	httpAddress string
	// migrate applies the contact schema before serving.
	migrate bool
	// logLevel and logFormat configure the global logger.
	logLevel, logFormat string

	// rootCmd represents the base command for running the alert server.
	rootCmd = &cobra.Command{
		Use:   "sos-server [listen-address]",
		Short: "Run the SOS alert server.",
		Long: `Starts the SOS alert server with its HTTP and gRPC APIs.

Alerts are fanned out to the user's emergency contacts through the configured
transport (console, smtp or nats). Contacts come from a YAML file or PostgreSQL;
send SIGHUP to re-read the YAML file without a restart.
Only the port from server_addr is used for the gRPC listener (e.g., :7070).
Listen address can be provided as argument to override config (e.g., :9090).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Configure(logLevel, logFormat)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			defer logger.Sync()

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			err := server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				HTTPAddress:   httpAddress,
				Migrate:       migrate,
			})
			if err != nil {
				logger.ErrorKV(ctx, "Server failed", "error", err)
			}

			return err
		},
	}

	// overwrite lets init-config replace an existing file.
	overwrite bool

	// initConfigCmd writes starter settings.
	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write a starter settings file.",
		Long: `Writes settings for a local server with the YAML contact directory and the
console transport to the --config path. An existing file is kept unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := server.InitConfig(configPath, overwrite); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", configPath)

			return err
		},
	}

	// importFile is the YAML directory import-contacts reads.
	importFile string

	// importContactsCmd seeds PostgreSQL from a YAML directory.
	importContactsCmd = &cobra.Command{
		Use:   "import-contacts",
		Short: "Copy a YAML contact directory into PostgreSQL.",
		Long: `Applies the contact schema to contacts.database_url and stores every user of the
YAML directory there. Imported users get their contact list replaced; other users are kept.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return server.ImportContacts(ctx, &server.ImportOptions{
				ConfigPath: configPath,
				File:       importFile,
			})
		},
	}
)

// Execute runs the sos-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd, importContactsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format: console or json")
	rootCmd.Flags().StringVar(&httpAddress, "http-addr", "", "HTTP listen address, overrides http_addr")
	rootCmd.Flags().BoolVar(&migrate, "migrate", false, "apply the contact schema when using the postgres backend")

	initConfigCmd.Flags().BoolVarP(&overwrite, "force", "f", false, "overwrite an existing settings file")
	importContactsCmd.Flags().
		StringVar(&importFile, "file", "", "YAML contact directory, defaults to contacts.file from settings")
}
