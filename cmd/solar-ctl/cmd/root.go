package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/service/client"
	"github.com/oshokin/solar-monitor/internal/version"
)

var (
	// configPath stores the configuration file path.
	configPath string
	// controlAddress overrides control_addr from the configuration.
	controlAddress string
	// retry keeps repeating a command the console rejects for now.
	retry bool
	// force makes refresh ask the plant service to update first.
	force bool

	// rootCmd represents the base command for controlling a running console.
	rootCmd = &cobra.Command{
		Use:   "solar-ctl",
		Short: "Control a running solar-console.",
		Long: `Sends commands to a running solar-console over its local control API.

Every command is logged by the console together with the hostname and
username of the operator who issued it.`,
	}
)

// Execute runs the solar-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runAction returns a RunE that performs the action with the shared flags.
func runAction(action client.Action) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &client.Options{
			ConfigPath:     configPath,
			ControlAddress: controlAddress,
			Action:         action,
			Force:          force,
			Retry:          retry,
		}

		if action == client.ActionSet {
			fields, err := client.ParseFields(args)
			if err != nil {
				return err
			}

			options.Fields = fields
		}

		return client.Run(ctx, options)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&controlAddress, "address", "a", "", "console control address (overrides configuration)")

	silenceCmd := &cobra.Command{
		Use:   "silence",
		Short: "Silence the sounding alarm.",
		Long: `Stops the alarm tone. The alarm stays silent while the same plants are
affected and comes back when another plant goes offline. Silence is
unavailable for a short cooldown after each use.`,
		Args: cobra.NoArgs,
		RunE: runAction(client.ActionSilence),
	}
	silenceCmd.Flags().BoolVarP(&retry, "wait", "w", false, "retry until the cooldown has passed")

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Retrieve the plants now.",
		Args:  cobra.NoArgs,
		RunE:  runAction(client.ActionRefresh),
	}
	refreshCmd.Flags().BoolVar(&force, "force", false, "ask the plant service to update its readings first")
	refreshCmd.Flags().BoolVarP(&retry, "wait", "w", false, "retry while another retrieval is in flight")

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the tunable settings.",
		Args:  cobra.NoArgs,
		RunE:  runAction(client.ActionSettings),
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set key=value...",
		Short: "Change tunable settings.",
		Long: `Changes one or more tunable settings and persists them.

Keys: pollIntervalMs (5000-300000), alarmOnZeroPower (true|false),
beepFrequencyHz (200-2000), beepDurationMs, beepIntervalMs (1000-10000).
Unknown keys and out-of-range values are rejected and nothing is changed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAction(client.ActionSet),
	})

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Log alarm and monitoring transitions as they happen.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			interval, err := cmd.Flags().GetDuration("interval")
			if err != nil {
				return err
			}

			return client.Watch(ctx, &client.WatchOptions{
				ConfigPath:     configPath,
				ControlAddress: controlAddress,
				PollInterval:   interval,
			})
		},
	}
	watchCmd.Flags().DurationP("interval", "i", client.DefaultWatchInterval, "interval between status checks")

	rootCmd.AddCommand(
		silenceCmd,
		&cobra.Command{
			Use:   "start",
			Short: "Start monitoring.",
			Args:  cobra.NoArgs,
			RunE:  runAction(client.ActionStart),
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop monitoring and silence the alarm.",
			Args:  cobra.NoArgs,
			RunE:  runAction(client.ActionStop),
		},
		refreshCmd,
		&cobra.Command{
			Use:   "status",
			Short: "Show the console status.",
			Args:  cobra.NoArgs,
			RunE:  runAction(client.ActionStatus),
		},
		settingsCmd,
		watchCmd,
	)
}
