package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/service/console"
	"github.com/oshokin/solar-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// feedAddress overrides feed_addr from the configuration.
	feedAddress string

	// rootCmd represents the base command for running the console.
	rootCmd = &cobra.Command{
		Use:   "solar-console [control-address]",
		Short: "Monitor solar plants and sound an alarm when one fails.",
		Long: `Polls the plant service at the configured interval, shows the fleet status
and sounds an alarm when a plant goes offline or a reachable plant produces
no power. Offline plants always take priority over idle ones.

The console is controlled through a local gRPC API (see solar-ctl).
The control address can be provided as argument to override the configuration.
Tunable settings (poll interval, beep shape) are persisted in the settings store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use control address argument if provided, otherwise rely on config.
			var controlAddress string
			if len(args) > 0 {
				controlAddress = args[0]
			}

			return console.Run(ctx, &console.Options{
				ConfigPath:     configPath,
				ControlAddress: controlAddress,
				FeedAddress:    feedAddress,
			})
		},
	}
)

// Execute runs the solar-console CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&feedAddress, "feed", "f", "", "serve the live view feed on this address")
}
