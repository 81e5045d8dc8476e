package console

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/solar-monitor/internal/api/grpc/console"
	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/schedule"
	"github.com/oshokin/solar-monitor/internal/service/alarm"
	"github.com/oshokin/solar-monitor/internal/service/audio"
	"github.com/oshokin/solar-monitor/internal/service/poller"
	"github.com/oshokin/solar-monitor/internal/settings"
)

var (
	// ErrNotStarted is returned for commands issued before Start.
	ErrNotStarted = errors.New("console is not started")
	// errAlreadyStarted is returned when Start is called twice.
	errAlreadyStarted = errors.New("console already started")
)

var _ api.Console = (*Console)(nil)

// SettingsStore keeps the tunable settings.
type SettingsStore interface {
	Current() settings.Config
	Update(ctx context.Context, cfg settings.Config) (settings.Config, error)
}

// Deps are the collaborators a Console is built from.
type Deps struct {
	// Source is the remote plant service.
	Source poller.Source
	// Renderer receives every view and retrieval failure.
	Renderer poller.Renderer
	// Settings holds the tunables; its current value seeds the console.
	Settings SettingsStore
	// OpenAudio opens the tone output during Start.
	OpenAudio audio.Opener
}

// Console is the single owner of all monitoring state.
type Console struct {
	session   string
	loop      *schedule.Loop
	scheduler *schedule.Scheduler
	signaler  *audio.Signaler
	alarm     *alarm.Controller
	poller    *poller.Poller
	store     SettingsStore

	// ctx carries the session logger; set by Start.
	ctx context.Context //nolint:containedctx // Loop-confined components log through it.

	mu       sync.Mutex
	started  bool
	disposed bool
	running  sync.WaitGroup
}

// New assembles a console. Nothing runs until Start.
func New(deps Deps) *Console {
	var (
		loop      = schedule.NewLoop()
		scheduler = schedule.NewScheduler(loop)
		cfg       = deps.Settings.Current()
		signaler  = audio.NewSignaler(deps.OpenAudio, scheduler, audio.ShapeFrom(cfg))
		ctrl      = alarm.NewController(signaler, scheduler)
	)

	return &Console{
		session:   uuid.NewString(),
		loop:      loop,
		scheduler: scheduler,
		signaler:  signaler,
		alarm:     ctrl,
		store:     deps.Settings,
		ctx:       context.Background(),
		poller: poller.New(poller.Options{
			Source:    deps.Source,
			Alarm:     ctrl,
			Renderer:  deps.Renderer,
			Scheduler: scheduler,
			Loop:      loop,
			Config:    cfg,
		}),
	}
}

// Session returns the id of this console instance.
func (c *Console) Session() string {
	return c.session
}

// Start runs the loop, opens the audio output and starts polling.
// The console stops on its own when ctx is cancelled; Dispose still has to
// be called to release it.
func (c *Console) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()

		return errAlreadyStarted
	}

	c.started = true
	c.ctx = logger.WithKV(ctx, "session", c.session)
	c.mu.Unlock()

	ctx = c.ctx

	c.running.Add(1)

	go func() {
		defer c.running.Done()

		c.loop.Run(ctx)
	}()

	err := c.loop.Do(ctx, func() {
		c.signaler.Initialize(ctx)
		c.poller.Start(ctx)
	})
	if err != nil {
		return fmt.Errorf("start console: %w", err)
	}

	logger.InfoKV(ctx, "Console started",
		"poll_interval", c.store.Current().PollInterval,
		"audio", c.signaler.Available(),
	)

	return nil
}

// Stop halts polling and silences the alarm locally. The remote service is
// not contacted. Commands are still accepted until Dispose, and
// SetMonitoring(true) resumes polling.
func (c *Console) Stop(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) {
		c.poller.Halt()
		logger.Info(ctx, "Console stopped")
	})
}

// Dispose cancels every timer and outstanding call, closes the loop and
// waits for all goroutines. It is safe to call more than once.
func (c *Console) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()

		return
	}

	c.disposed = true
	started := c.started
	c.mu.Unlock()

	if started {
		//nolint:errcheck // The loop may already be closed by ctx cancellation.
		c.loop.Do(context.Background(), func() {
			c.poller.Close()
			c.alarm.Close()
			c.signaler.Close()
			c.scheduler.CancelAll()
		})
	}

	c.loop.Close()
	c.running.Wait()
	c.poller.Wait()
}

// Refresh retrieves the plants now. With force the remote service is asked
// to update its readings first.
func (c *Console) Refresh(ctx context.Context, force bool) error {
	return c.await(ctx, func(done poller.Done) {
		if force {
			c.poller.ForceRefresh(done)

			return
		}

		c.poller.Refresh(done)
	})
}

// ForceRefresh is Refresh with force set.
func (c *Console) ForceRefresh(ctx context.Context) error {
	return c.Refresh(ctx, true)
}

// SetMonitoring starts or stops monitoring once the remote service confirms.
func (c *Console) SetMonitoring(ctx context.Context, active bool) (api.Report, error) {
	err := c.await(ctx, func(done poller.Done) {
		c.poller.SetActive(active, done)
	})
	if err != nil {
		return api.Report{}, err
	}

	return c.Status(ctx)
}

// Silence stops the tone on behalf of actor and starts the cooldown.
func (c *Console) Silence(ctx context.Context, actor *domain.Actor) (api.Report, error) {
	var (
		report     api.Report
		silenceErr error
	)

	err := c.command(ctx, func(ctx context.Context) {
		silenceErr = c.alarm.Silence(ctx, actor)
		report = c.report()
	})
	if err != nil {
		return api.Report{}, err
	}

	return report, silenceErr
}

// Status returns a snapshot of the console state.
func (c *Console) Status(ctx context.Context) (api.Report, error) {
	var report api.Report

	if err := c.do(ctx, func(context.Context) { report = c.report() }); err != nil {
		return api.Report{}, err
	}

	return report, nil
}

// Settings returns the tunables in effect.
func (c *Console) Settings(ctx context.Context) (settings.Config, error) {
	var cfg settings.Config

	if err := c.command(ctx, func(context.Context) { cfg = c.store.Current() }); err != nil {
		return settings.Config{}, err
	}

	return cfg, nil
}

// UpdateSettings merges a partial settings document, persists it and
// applies it to the running components. A persistence failure still applies
// the new values and is reported to the caller.
func (c *Console) UpdateSettings(ctx context.Context, fields *structpb.Struct) (settings.Config, error) {
	var (
		result    settings.Config
		updateErr error
	)

	err := c.command(ctx, func(ctx context.Context) {
		result, updateErr = c.applySettings(ctx, fields)
	})
	if err != nil {
		return settings.Config{}, err
	}

	return result, updateErr
}

func (c *Console) applySettings(ctx context.Context, fields *structpb.Struct) (settings.Config, error) {
	current := c.store.Current()

	merged, err := settings.MergeStrict(current, fields)
	if err != nil {
		return current, err
	}

	updated, err := c.store.Update(ctx, merged)
	if err != nil && !errors.Is(err, settings.ErrPersist) {
		return updated, err
	}

	c.poller.ApplyConfig(updated)
	c.signaler.SetShape(audio.ShapeFrom(updated))

	return updated, err
}

func (c *Console) report() api.Report {
	report := api.Report{
		Session:          c.session,
		Alarm:            c.alarm.Status(),
		SilenceAvailable: c.alarm.SilenceAvailable(),
		Lifecycle:        c.poller.Lifecycle(),
		InFlight:         c.poller.InFlight(),
		PollIntervalMs:   c.poller.Interval().Milliseconds(),
		AudioAvailable:   c.signaler.Available(),
	}

	if view, ok := c.poller.Last(); ok {
		report.View = &view
	}

	return report
}

// command runs fn on the loop as a user interaction.
func (c *Console) command(ctx context.Context, fn func(ctx context.Context)) error {
	return c.do(ctx, func(ctx context.Context) {
		c.signaler.NotifyInteraction(ctx)
		fn(ctx)
	})
}

// await runs start on the loop as a user interaction and waits until the
// asynchronous operation it begins reports back.
func (c *Console) await(ctx context.Context, start func(done poller.Done)) error {
	result := make(chan error, 1)

	err := c.command(ctx, func(context.Context) {
		start(func(err error) { result <- err })
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.loop.Done():
		return schedule.ErrLoopClosed
	}
}

// do runs fn on the loop with a context carrying the session logger.
func (c *Console) do(ctx context.Context, fn func(ctx context.Context)) error {
	c.mu.Lock()
	started, base := c.started, c.ctx
	c.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	ctx = logger.ToContext(ctx, logger.FromContext(base))

	if err := c.loop.Do(ctx, func() { fn(ctx) }); err != nil {
		return fmt.Errorf("console: %w", err)
	}

	return nil
}
