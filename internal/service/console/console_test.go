package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/repository/kv"
	"github.com/oshokin/solar-monitor/internal/service/alarm"
	"github.com/oshokin/solar-monitor/internal/service/audio"
	"github.com/oshokin/solar-monitor/internal/service/poller"
	"github.com/oshokin/solar-monitor/internal/settings"
)

var errDiskFull = errors.New("disk full")

// fleetSource serves whatever fleet the test sets.
type fleetSource struct {
	mu        sync.Mutex
	snapshots plant.Snapshots
	fetches   int
	updates   int
	starts    int
	stops     int
}

// set replaces the fleet served from now on.
func (s *fleetSource) set(snapshots plant.Snapshots) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = snapshots
}

// FetchPlants returns a copy of the current fleet, or the context error once the call is cancelled.
func (s *fleetSource) FetchPlants(ctx context.Context) (plant.Snapshots, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches++

	return s.snapshots.Clone(), nil
}

// TriggerUpdate counts forced updates.
func (s *fleetSource) TriggerUpdate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates++

	return nil
}

// StartMonitoring counts start requests, failing once the call is cancelled.
func (s *fleetSource) StartMonitoring(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.starts++

	return nil
}

// StopMonitoring counts stop requests.
func (s *fleetSource) StopMonitoring(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stops++

	return nil
}

// counts returns the fetch, update and stop counters.
func (s *fleetSource) counts() (fetches, updates, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetches, s.updates, s.stops
}

// startCount returns how many start requests reached the service.
func (s *fleetSource) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.starts
}

// toneRecorder is an always-available audio device.
type toneRecorder struct {
	mu    sync.Mutex
	tones []audio.Tone
}

// Play records the tone instead of sounding it.
func (d *toneRecorder) Play(_ context.Context, tone audio.Tone) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tones = append(d.tones, tone)

	return nil
}

// count returns how many tones were played at the given pitch.
func (d *toneRecorder) count(frequency float64) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0

	for _, tone := range d.tones {
		if tone.Frequency == frequency {
			n++
		}
	}

	return n
}

// total returns how many tones were played.
func (d *toneRecorder) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.tones)
}

// viewRecorder keeps the rendered views.
type viewRecorder struct {
	mu       sync.Mutex
	views    []poller.View
	failures int
}

// Render keeps the view.
func (r *viewRecorder) Render(_ context.Context, view poller.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.views = append(r.views, view)
}

// RetrievalFailed counts failed retrievals.
func (r *viewRecorder) RetrievalFailed(context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures++
}

// last returns the most recent view; the test must have rendered one.
func (r *viewRecorder) last() poller.View {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.views[len(r.views)-1]
}

// memoryKV is an in-memory kv.Store whose writes can be made to fail.
type memoryKV struct {
	mu      sync.Mutex
	values  map[string][]byte
	failPut bool
}

// Get returns the stored value or kv.ErrNotFound.
func (m *memoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.values[key]
	if !ok {
		return nil, kv.ErrNotFound
	}

	return value, nil
}

// Put stores the value unless writes are set to fail.
func (m *memoryKV) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPut {
		return errDiskFull
	}

	m.values[key] = value

	return nil
}

// Close does nothing.
func (m *memoryKV) Close() error { return nil }

// harness wires a console to in-memory fakes.
type harness struct {
	console  *Console
	source   *fleetSource
	device   *toneRecorder
	views    *viewRecorder
	kv       *memoryKV
	normal   float64
	elevated float64
}

// newHarness builds a console over the given fleet with default settings.
func newHarness(snapshots plant.Snapshots) *harness {
	h := &harness{
		source: &fleetSource{snapshots: snapshots},
		device: new(toneRecorder),
		views:  new(viewRecorder),
		kv:     &memoryKV{values: make(map[string][]byte)},
	}

	shape := audio.ShapeFrom(settings.Defaults())
	h.normal = shape.Tone(domain.VariantNormal).Frequency
	h.elevated = shape.Tone(domain.VariantElevated).Frequency

	h.console = New(Deps{
		Source:    h.source,
		Renderer:  h.views,
		Settings:  settings.NewStore(h.kv, "solarMonitorConfig"),
		OpenAudio: func() (audio.Device, error) { return h.device, nil },
	})

	return h
}

// mixedFleet has one online, one idle and one unreachable plant.
func mixedFleet() plant.Snapshots {
	return plant.Snapshots{
		"A": {ID: "A", Name: "Alpha", Power: 5, IsOnline: true},
		"B": {ID: "B", Name: "Bravo", Power: 0, IsOnline: true},
		"C": {ID: "C", Name: "Charlie", IsOnline: false, ErrorMessage: "getaddrinfo failed"},
	}
}

var operator = &domain.Actor{Hostname: "control-room", Username: "operator"}

// TestCommandsBeforeStart ensures commands are refused until the loop runs.
func TestCommandsBeforeStart(t *testing.T) {
	t.Parallel()

	h := newHarness(mixedFleet())
	defer h.console.Dispose()

	_, err := h.console.Status(context.Background())
	require.ErrorIs(t, err, ErrNotStarted)

	require.ErrorIs(t, h.console.Refresh(context.Background(), false), ErrNotStarted)
}

// TestOfflineOutranksZeroPower covers the mixed fleet: one online, one idle, one unreachable.
func TestOfflineOutranksZeroPower(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(mixedFleet())
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		report, err := h.console.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateOfflineAlert, report.Alarm.State)
		require.Equal(t, poller.LifecycleActive, report.Lifecycle)
		require.True(t, report.AudioAvailable)
		require.NotNil(t, report.View)

		aggregate := report.View.Classification.Aggregate
		require.Equal(t, 1, aggregate.OnlineCount)
		require.Equal(t, 1, aggregate.WarningCount)
		require.Equal(t, 1, aggregate.OfflineCount)
		require.InDelta(t, 5.0, aggregate.TotalPower, 1e-9)

		require.Equal(t, 1, h.device.count(h.elevated))
		require.Equal(t, 0, h.device.count(h.normal))
	})
}

// TestRecoveryDowngradesToZeroPower checks OfflineAlert -> ZeroPowerAlert with one new tone cycle.
func TestRecoveryDowngradesToZeroPower(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(mixedFleet())
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		fleet := mixedFleet()
		fleet["C"] = plant.Snapshot{ID: "C", Name: "Charlie", Power: 3, IsOnline: true}
		h.source.set(fleet)

		require.NoError(t, h.console.Refresh(ctx, false))
		synctest.Wait()

		report, err := h.console.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateZeroPowerAlert, report.Alarm.State)
		require.Equal(t, 1, h.device.count(h.normal))
		require.Equal(t, 1, h.device.count(h.elevated))

		// Same pair again: debounced.
		require.NoError(t, h.console.Refresh(ctx, false))
		synctest.Wait()
		require.Equal(t, 2, h.device.total())
	})
}

// TestSilenceHoldsUntilNewOfflinePlant covers manual silence and the re-raise on a new offline plant.
func TestSilenceHoldsUntilNewOfflinePlant(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(mixedFleet())
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()
		require.Equal(t, 1, h.device.total())

		report, err := h.console.Silence(ctx, operator)
		require.NoError(t, err)
		require.Equal(t, domain.StateSilent, report.Alarm.State)
		require.False(t, report.SilenceAvailable)
		require.Equal(t, operator, report.Alarm.SilencedBy)

		time.Sleep(settings.DefaultBeepInterval * 2)
		synctest.Wait()
		require.Equal(t, 1, h.device.total())

		require.NoError(t, h.console.Refresh(ctx, false))
		synctest.Wait()
		require.Equal(t, 1, h.device.total())

		fleet := mixedFleet()
		fleet["D"] = plant.Snapshot{ID: "D", Name: "Delta", IsOnline: false}
		h.source.set(fleet)

		require.NoError(t, h.console.Refresh(ctx, false))
		synctest.Wait()

		report, err = h.console.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateOfflineAlert, report.Alarm.State)
		require.Equal(t, 2, h.device.count(h.elevated))
	})
}

// TestSilenceCooldown rejects a second silence until the cooldown elapses.
func TestSilenceCooldown(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(mixedFleet())
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		_, err := h.console.Silence(ctx, operator)
		require.NoError(t, err)

		_, err = h.console.Silence(ctx, operator)
		require.ErrorIs(t, err, alarm.ErrSilenceCoolingDown)

		time.Sleep(alarm.SilenceCooldown)
		synctest.Wait()

		report, err := h.console.Status(ctx)
		require.NoError(t, err)
		require.True(t, report.SilenceAvailable)
	})
}

// TestIntervalChangeReschedules verifies a settings update moves the poll timer.
func TestIntervalChangeReschedules(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(plant.Snapshots{"A": {ID: "A", Power: 2, IsOnline: true}})
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		fetches, _, _ := h.source.counts()
		require.Equal(t, 1, fetches)

		cfg, err := h.console.UpdateSettings(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
			settings.KeyPollInterval: structpb.NewNumberValue(10000),
		}})
		require.NoError(t, err)
		require.Equal(t, 10*time.Second, cfg.PollInterval)

		time.Sleep(10 * time.Second)
		synctest.Wait()

		fetches, _, _ = h.source.counts()
		require.Equal(t, 2, fetches)

		report, err := h.console.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, poller.LifecycleActive, report.Lifecycle)
		require.EqualValues(t, 10000, report.PollIntervalMs)

		blob, err := h.kv.Get(ctx, "solarMonitorConfig")
		require.NoError(t, err)
		require.Contains(t, string(blob), settings.KeyPollInterval)
	})
}

// TestUpdateSettingsValidation keeps the previous values on bad input.
func TestUpdateSettingsValidation(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(nil)
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		_, err := h.console.UpdateSettings(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
			settings.KeyBeepFrequency: structpb.NewNumberValue(50),
		}})
		require.ErrorIs(t, err, settings.ErrInvalidField)

		cfg, err := h.console.Settings(ctx)
		require.NoError(t, err)
		require.Equal(t, settings.Defaults(), cfg)
	})
}

// TestUpdateSettingsPersistFailure applies the values even when they cannot be saved.
func TestUpdateSettingsPersistFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(nil)
		defer h.console.Dispose()

		h.kv.failPut = true

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		cfg, err := h.console.UpdateSettings(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
			settings.KeyAlarmOnZeroPower: structpb.NewBoolValue(false),
		}})
		require.ErrorIs(t, err, settings.ErrPersist)
		require.False(t, cfg.AlarmOnZeroPower)

		current, err := h.console.Settings(ctx)
		require.NoError(t, err)
		require.False(t, current.AlarmOnZeroPower)
	})
}

// TestStopMonitoring silences the alarm and halts the timer once the service confirms.
func TestStopMonitoring(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(mixedFleet())
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		report, err := h.console.SetMonitoring(ctx, false)
		require.NoError(t, err)
		require.Equal(t, poller.LifecycleStopped, report.Lifecycle)
		require.Equal(t, domain.StateSilent, report.Alarm.State)
		require.Equal(t, poller.LifecycleStopped, h.views.last().Lifecycle)

		fetchesBefore, _, stops := h.source.counts()
		require.Equal(t, 1, stops)

		time.Sleep(settings.DefaultPollInterval * 3)
		synctest.Wait()

		fetchesAfter, _, _ := h.source.counts()
		require.Equal(t, fetchesBefore, fetchesAfter)
		require.Equal(t, 1, h.device.total())

		report, err = h.console.SetMonitoring(ctx, true)
		require.NoError(t, err)
		require.Equal(t, poller.LifecycleActive, report.Lifecycle)

		time.Sleep(settings.DefaultPollInterval)
		synctest.Wait()

		fetchesAfter, _, _ = h.source.counts()
		require.Equal(t, fetchesBefore+1, fetchesAfter)
	})
}

// TestForceRefreshTriggersUpdate asks the service to update before reading.
func TestForceRefreshTriggersUpdate(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(nil)
		defer h.console.Dispose()

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		require.NoError(t, h.console.ForceRefresh(ctx))

		fetches, updates, _ := h.source.counts()
		require.Equal(t, 2, fetches)
		require.Equal(t, 1, updates)
	})
}

// TestStopAndDispose halts polling locally and releases every goroutine.
func TestStopAndDispose(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		h := newHarness(mixedFleet())

		require.NoError(t, h.console.Start(ctx))
		synctest.Wait()

		require.NoError(t, h.console.Stop(ctx))

		report, err := h.console.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, domain.StateSilent, report.Alarm.State)
		require.Equal(t, poller.LifecycleStopped, report.Lifecycle)

		fetchesBefore, _, stops := h.source.counts()
		require.Zero(t, stops)

		time.Sleep(settings.DefaultPollInterval * 2)
		synctest.Wait()

		fetchesAfter, _, _ := h.source.counts()
		require.Equal(t, fetchesBefore, fetchesAfter)

		// Commands still reach the service after a local stop.
		require.NoError(t, h.console.Refresh(ctx, false))

		fetchesAfter, _, _ = h.source.counts()
		require.Equal(t, fetchesBefore+1, fetchesAfter)

		report, err = h.console.SetMonitoring(ctx, true)
		require.NoError(t, err)
		require.Equal(t, poller.LifecycleActive, report.Lifecycle)
		require.Equal(t, 1, h.source.startCount())

		time.Sleep(settings.DefaultPollInterval)
		synctest.Wait()

		fetchesAfter, _, _ = h.source.counts()
		require.Equal(t, fetchesBefore+2, fetchesAfter)

		h.console.Dispose()
		h.console.Dispose()

		_, err = h.console.Status(ctx)
		require.Error(t, err)
	})
}
