package client

import (
	"context"
	"fmt"
	"time"

	api "github.com/oshokin/solar-monitor/internal/api/grpc/console"
	"github.com/oshokin/solar-monitor/internal/config"
	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/common"
)

// WatchOptions controls the watch polling behavior.
type WatchOptions struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ControlAddress provides an optional control API address override.
	ControlAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
}

// DefaultWatchInterval defines the default interval between status checks.
const DefaultWatchInterval = 5 * time.Second

// Watch polls the console and logs every alarm or monitoring transition
// until ctx is cancelled. Failed checks are logged and retried.
func Watch(ctx context.Context, opts *WatchOptions) error {
	ctx = logger.WithName(ctx, "solar-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	address := cfg.ControlAddress
	if opts.ControlAddress != "" {
		address = opts.ControlAddress
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial console: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching console", "control_address", address, "interval", opts.PollInterval)

	return WatchWith(ctx, client, opts.PollInterval)
}

// WatchWith polls over an established connection.
func WatchWith(ctx context.Context, client *common.Client, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	var w watcher

	w.check(ctx, client)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			w.check(ctx, client)
		}
	}
}

// watcher remembers the last observed report to log only transitions.
type watcher struct {
	seen      bool
	state     domain.State
	lifecycle string
}

func (w *watcher) check(ctx context.Context, client *common.Client) {
	report, err := client.Status(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Status check failed", "error", err)

		return
	}

	if w.observe(report) {
		logger.Infof(ctx, "Console: %s", FormatReport(report))
	}
}

// observe records the report and reports whether anything worth logging changed.
func (w *watcher) observe(report *api.Report) bool {
	lifecycle := report.Lifecycle.String()
	changed := !w.seen || w.state != report.Alarm.State || w.lifecycle != lifecycle

	w.seen = true
	w.state = report.Alarm.State
	w.lifecycle = lifecycle

	return changed
}
