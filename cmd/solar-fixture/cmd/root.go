package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/solar-monitor/internal/service/fixture"
	"github.com/oshokin/solar-monitor/internal/version"
)

var (
	// fleetPath to the fleet YAML file.
	fleetPath string

	// rootCmd represents the base command for the fixture plant service.
	rootCmd = &cobra.Command{
		Use:   "solar-fixture [listen-address]",
		Short: "Serve a simulated plant fleet over the plant service API.",
		Long: `Serves the plants described in a YAML file with the same HTTP API as the
real plant service. While monitoring is on, readings are restamped at the
fleet's update interval. Useful for demos and for testing the console.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return fixture.Run(ctx, &fixture.Options{
				FleetPath:     fleetPath,
				ListenAddress: listenAddress,
			})
		},
	}
)

// Execute runs the solar-fixture CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&fleetPath, "fleet", "f", fixture.DefaultFleetFilename, "path to fleet file")
}
