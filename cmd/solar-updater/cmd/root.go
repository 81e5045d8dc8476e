package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/service/updater"
	"github.com/oshokin/solar-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// dir is the installation directory.
	dir string
	// noRestart skips starting the console afterwards.
	noRestart bool

	// rootCmd represents the base command for downloading and applying updates.
	rootCmd = &cobra.Command{
		Use:   "solar-updater [update-folder]",
		Short: "Download and apply solar-monitor updates, then start the console.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var folder string
			if len(args) > 0 {
				folder = args[0]
			}

			return updater.Run(ctx, &updater.Options{
				ConfigPath:   configPath,
				UpdateFolder: folder,
				Dir:          dir,
				NoRestart:    noRestart,
			})
		},
	}
)

// Execute runs the solar-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&dir, "dir", "d", ".", "installation directory")
	rootCmd.Flags().BoolVar(&noRestart, "no-restart", false, "do not start the console after updating")
}
