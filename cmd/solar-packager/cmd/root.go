package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/service/packager"
	"github.com/oshokin/solar-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// dir holds the release binaries.
	dir string

	// rootCmd represents the base command for preparing update metadata.
	rootCmd = &cobra.Command{
		Use:   "solar-packager [service-url] [update-folder]",
		Short: "Prepare update metadata for distribution",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return packager.Run(ctx, &packager.Options{
				ConfigPath:   configPath,
				ServiceURL:   args[0],
				UpdateFolder: args[1],
				Dir:          dir,
			})
		},
	}
)

// Execute runs the solar-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory holding the release binaries")
}
