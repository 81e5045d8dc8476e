package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/solar-monitor/internal/api/grpc/console"
	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/service/alarm"
	"github.com/oshokin/solar-monitor/internal/service/common"
	"github.com/oshokin/solar-monitor/internal/service/poller"
	"github.com/oshokin/solar-monitor/internal/settings"
)

// scriptedConsole rejects the first few calls and records what it receives.
type scriptedConsole struct {
	mu sync.Mutex

	rejections int
	cfg        settings.Config
	actor      *domain.Actor
	force      bool
	silences   int
	refreshes  int
}

func (c *scriptedConsole) reject() bool {
	if c.rejections == 0 {
		return false
	}

	c.rejections--

	return true
}

func (c *scriptedConsole) Silence(_ context.Context, actor *domain.Actor) (api.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.silences++

	if c.reject() {
		return api.Report{}, alarm.ErrSilenceCoolingDown
	}

	c.actor = actor

	return api.Report{Alarm: domain.Status{State: domain.StateSilent, SilencedBy: actor}}, nil
}

func (c *scriptedConsole) SetMonitoring(_ context.Context, active bool) (api.Report, error) {
	lifecycle := poller.LifecycleStopped
	if active {
		lifecycle = poller.LifecycleActive
	}

	return api.Report{Lifecycle: lifecycle, SilenceAvailable: true}, nil
}

func (c *scriptedConsole) Refresh(_ context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshes++

	if c.reject() {
		return poller.ErrBusy
	}

	c.force = force

	return nil
}

func (c *scriptedConsole) Status(context.Context) (api.Report, error) {
	return api.Report{Lifecycle: poller.LifecycleActive, SilenceAvailable: true}, nil
}

func (c *scriptedConsole) Settings(context.Context) (settings.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cfg, nil
}

func (c *scriptedConsole) UpdateSettings(_ context.Context, fields *structpb.Struct) (settings.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := settings.MergeStrict(c.cfg, fields)
	if err != nil {
		return c.cfg, err
	}

	c.cfg = cfg

	return cfg, nil
}

func (c *scriptedConsole) snapshot() (actor *domain.Actor, force bool, silences, refreshes int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.actor, c.force, c.silences, c.refreshes
}

var operator = &domain.Actor{Hostname: "control-room", Username: "operator"}

// dialConsole serves console over an in-memory listener and returns a client for it.
func dialConsole(t *testing.T, console api.Console) *common.Client {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	api.Register(server, api.NewServer(console))

	go func() {
		_ = server.Serve(listener)
	}()

	client, err := common.Dial(context.Background(), "passthrough:///bufnet",
		common.WithActor(operator),
		common.WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		})),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		server.Stop()
	})

	return client
}

// TestExecute_SilenceCarriesActor checks the actor reaches the console through metadata.
func TestExecute_SilenceCarriesActor(t *testing.T) {
	t.Parallel()

	console := &scriptedConsole{cfg: settings.Defaults()}
	client := dialConsole(t, console)

	require.NoError(t, Execute(context.Background(), client, &Options{Action: ActionSilence}))

	actor, _, silences, _ := console.snapshot()
	require.Equal(t, 1, silences)
	require.Equal(t, operator, actor)
}

// TestExecute_CooldownWithoutRetry surfaces FailedPrecondition to the caller.
func TestExecute_CooldownWithoutRetry(t *testing.T) {
	t.Parallel()

	console := &scriptedConsole{cfg: settings.Defaults(), rejections: 1}
	client := dialConsole(t, console)

	err := Execute(context.Background(), client, &Options{Action: ActionSilence})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

// TestExecute_RetriesBusyRefresh repeats a refresh until the console accepts it.
func TestExecute_RetriesBusyRefresh(t *testing.T) {
	t.Parallel()

	console := &scriptedConsole{cfg: settings.Defaults(), rejections: 2}
	client := dialConsole(t, console)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, Execute(ctx, client, &Options{Action: ActionRefresh, Force: true, Retry: true}))

	_, force, _, refreshes := console.snapshot()
	require.True(t, force)
	require.Equal(t, 3, refreshes)
}

// TestExecute_Settings reads and updates tunables over the wire.
func TestExecute_Settings(t *testing.T) {
	t.Parallel()

	console := &scriptedConsole{cfg: settings.Defaults()}
	client := dialConsole(t, console)
	ctx := context.Background()

	require.NoError(t, Execute(ctx, client, &Options{Action: ActionSettings}))

	fields, err := ParseFields([]string{"beepFrequencyHz=1200", "alarmOnZeroPower=false"})
	require.NoError(t, err)
	require.NoError(t, Execute(ctx, client, &Options{Action: ActionSet, Fields: fields}))

	cfg, err := console.Settings(ctx)
	require.NoError(t, err)
	require.InDelta(t, 1200.0, cfg.BeepFrequency, 1e-9)
	require.False(t, cfg.AlarmOnZeroPower)

	fields, err = ParseFields([]string{"beepIntervalMs=50"})
	require.NoError(t, err)

	err = Execute(ctx, client, &Options{Action: ActionSet, Fields: fields})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	require.Error(t, Execute(ctx, client, &Options{Action: ActionSet}))
	require.Error(t, Execute(ctx, client, &Options{Action: "reboot"}))
}

// TestParseFields covers typed values and malformed assignments.
func TestParseFields(t *testing.T) {
	t.Parallel()

	fields, err := ParseFields([]string{"pollIntervalMs=60000", "alarmOnZeroPower=true"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"pollIntervalMs": 60000.0, "alarmOnZeroPower": true}, fields)

	_, err = ParseFields([]string{"pollIntervalMs"})
	require.ErrorIs(t, err, errBadAssignment)

	_, err = ParseFields([]string{"pollIntervalMs=soon"})
	require.Error(t, err)
}

// TestFormatReport renders the fields an operator cares about.
func TestFormatReport(t *testing.T) {
	t.Parallel()

	report := &api.Report{
		Lifecycle: poller.LifecycleActive,
		Alarm: domain.Status{
			State:      domain.StateSilent,
			Since:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			SilencedBy: operator,
			SilencedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	text := FormatReport(report)
	require.Contains(t, text, "monitoring active")
	require.Contains(t, text, "alarm silent")
	require.Contains(t, text, "silenced by operator@control-room")
	require.Contains(t, text, "silence cooling down")
	require.Equal(t, "<nil report>", FormatReport(nil))
}

// TestWatcher_ObserveTransitions logs the first report and every change only.
func TestWatcher_ObserveTransitions(t *testing.T) {
	t.Parallel()

	var w watcher

	report := &api.Report{Lifecycle: poller.LifecycleActive, Alarm: domain.Status{State: domain.StateSilent}}
	require.True(t, w.observe(report))
	require.False(t, w.observe(report))

	report.Alarm.State = domain.StateOfflineAlert
	require.True(t, w.observe(report))

	report.Lifecycle = poller.LifecycleStopped
	require.True(t, w.observe(report))
	require.False(t, w.observe(report))
}

// TestWatchWith_StopsOnCancel returns cleanly once the context ends.
func TestWatchWith_StopsOnCancel(t *testing.T) {
	t.Parallel()

	client := dialConsole(t, &scriptedConsole{cfg: settings.Defaults()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, WatchWith(ctx, client, 10*time.Millisecond))
}
