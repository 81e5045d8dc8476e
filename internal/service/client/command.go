package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/solar-monitor/internal/api/grpc/console"
	"github.com/oshokin/solar-monitor/internal/config"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/common"
)

// Action names a solar-ctl command.
type Action string

const (
	// ActionSilence silences the sounding alarm.
	ActionSilence Action = "silence"
	// ActionStart starts monitoring.
	ActionStart Action = "start"
	// ActionStop stops monitoring.
	ActionStop Action = "stop"
	// ActionRefresh retrieves the plants now.
	ActionRefresh Action = "refresh"
	// ActionStatus prints the console report.
	ActionStatus Action = "status"
	// ActionSettings prints the tunable settings.
	ActionSettings Action = "settings"
	// ActionSet changes tunable settings.
	ActionSet Action = "set"
)

// Options configures a solar-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ControlAddress overrides control_addr from config when specified.
	ControlAddress string
	// Action is the command to perform.
	Action Action
	// Force makes refresh ask the plant service to update first.
	Force bool
	// Fields are the settings to change for ActionSet.
	Fields map[string]any
	// Retry repeats a command the console rejected as temporarily unavailable
	// (busy or cooling down) until it succeeds or the context ends.
	Retry bool
}

// defaultPushInterval defines retry delay when a command is rejected for now.
const defaultPushInterval = 1 * time.Second

var (
	// errUnknownAction is returned for an unsupported Action.
	errUnknownAction = errors.New("unknown action")
	// errNoFields is returned when set is called without assignments.
	errNoFields = errors.New("no settings to change")
	// errBadAssignment is returned for arguments not shaped like key=value.
	errBadAssignment = errors.New("expected key=value")
)

// Run connects to the console and performs the requested action.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "solar-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	address := cfg.ControlAddress
	if opts.ControlAddress != "" {
		address = opts.ControlAddress
	}

	// Identify current user and hostname for the audit trail.
	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Sending command", "control_address", address, "action", opts.Action, "actor", actor)

	return Execute(ctx, client, opts)
}

// Execute performs the action over an established connection.
func Execute(ctx context.Context, client *common.Client, opts *Options) error {
	attempt, err := action(client, opts)
	if err != nil {
		return err
	}

	err = attempt(ctx)
	if !opts.Retry || !retryable(err) {
		return err
	}

	logger.WarnKV(ctx, "Console is not ready, retrying", "action", opts.Action, "error", err)

	ticker := time.NewTicker(defaultPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err = attempt(ctx)
			if !retryable(err) {
				return err
			}

			logger.DebugKV(ctx, "Still not ready", "action", opts.Action, "error", err)
		}
	}
}

// action binds opts to a single attempt against the console.
func action(client *common.Client, opts *Options) (func(ctx context.Context) error, error) {
	switch opts.Action {
	case ActionSilence:
		return func(ctx context.Context) error {
			return logReport(ctx, "Alarm silenced", client.Silence)
		}, nil
	case ActionStart, ActionStop:
		active := opts.Action == ActionStart

		return func(ctx context.Context) error {
			return logReport(ctx, "Monitoring changed", func(ctx context.Context) (*api.Report, error) {
				return client.SetMonitoring(ctx, active)
			})
		}, nil
	case ActionRefresh:
		return func(ctx context.Context) error {
			if err := client.Refresh(ctx, opts.Force); err != nil {
				return err
			}

			logger.InfoKV(ctx, "Plants refreshed", "force", opts.Force)

			return nil
		}, nil
	case ActionStatus:
		return func(ctx context.Context) error {
			return logReport(ctx, "Console status", client.Status)
		}, nil
	case ActionSettings:
		return func(ctx context.Context) error {
			values, err := client.Settings(ctx)
			if err != nil {
				return err
			}

			logSettings(ctx, "Console settings", values)

			return nil
		}, nil
	case ActionSet:
		if len(opts.Fields) == 0 {
			return nil, errNoFields
		}

		return func(ctx context.Context) error {
			values, err := client.UpdateSettings(ctx, opts.Fields)
			if err != nil {
				return err
			}

			logSettings(ctx, "Settings updated", values)

			return nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

// ParseFields converts key=value arguments into a settings document.
// The literals true and false become booleans, anything else must be a number.
func ParseFields(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))

	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", errBadAssignment, arg)
		}

		switch raw {
		case "true", "false":
			fields[key] = raw == "true"

			continue
		}

		number, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}

		fields[key] = number
	}

	return fields, nil
}

// retryable reports whether the console rejected the call only for now.
func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.FailedPrecondition:
		return true
	default:
		return false
	}
}

func logReport(ctx context.Context, message string, call func(ctx context.Context) (*api.Report, error)) error {
	report, err := call(ctx)
	if err != nil {
		return err
	}

	logger.Infof(ctx, "%s: %s", message, FormatReport(report))

	return nil
}

func logSettings(ctx context.Context, message string, values map[string]any) {
	kvs := make([]any, 0, 2*len(values))

	for _, key := range common.SettingKeys() {
		if value, ok := values[key]; ok {
			kvs = append(kvs, key, value)
		}
	}

	logger.InfoKV(ctx, message, kvs...)
}

// FormatReport converts a console report to a readable log message.
func FormatReport(report *api.Report) string {
	if report == nil {
		return "<nil report>"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "monitoring %s, alarm %s since %s",
		report.Lifecycle, report.Alarm.State, report.Alarm.Since.Format(time.RFC3339))

	if report.Alarm.SilencedBy != nil {
		fmt.Fprintf(&b, ", silenced by %s at %s",
			report.Alarm.SilencedBy, report.Alarm.SilencedAt.Format(time.RFC3339))
	}

	if !report.SilenceAvailable {
		b.WriteString(", silence cooling down")
	}

	if !report.AudioAvailable {
		b.WriteString(", audio unavailable")
	}

	if view := report.View; view != nil {
		aggregate := view.Classification.Aggregate
		fmt.Fprintf(&b, "; %d online, %d warning, %d offline, %s",
			aggregate.OnlineCount, aggregate.WarningCount, aggregate.OfflineCount, aggregate.TotalPowerText())
	}

	return b.String()
}
