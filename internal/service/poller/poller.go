package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/schedule"
	"github.com/oshokin/solar-monitor/internal/settings"
)

var (
	// ErrBusy is returned when a retrieval is already outstanding.
	ErrBusy = errors.New("retrieval already in progress")
	// ErrStale is returned when a response arrives after a lifecycle change and is dropped.
	ErrStale = errors.New("response discarded after monitoring stopped")
	// ErrSuperseded is returned when a newer lifecycle request replaced this one.
	ErrSuperseded = errors.New("superseded by a newer monitoring request")
)

// Source is the remote plant service.
type Source interface {
	FetchPlants(ctx context.Context) (plant.Snapshots, error)
	TriggerUpdate(ctx context.Context) error
	StartMonitoring(ctx context.Context) error
	StopMonitoring(ctx context.Context) error
}

// Alarm is the state machine fed after each successful retrieval.
type Alarm interface {
	Evaluate(ctx context.Context, condition domain.Condition, offline []string) (domain.State, bool)
	ForceSilent(ctx context.Context)
	Status() domain.Status
}

// Scheduler repeats callbacks on the loop.
type Scheduler interface {
	Repeat(period time.Duration, fn func()) schedule.Token
	Cancel(token schedule.Token) bool
}

// Poster hands closures to the loop.
type Poster interface {
	Post(fn func()) bool
}

// Done receives the outcome of an asynchronous command on the loop. It may be nil.
type Done func(err error)

// Options wires a Poller.
type Options struct {
	Source    Source
	Alarm     Alarm
	Renderer  Renderer
	Scheduler Scheduler
	Loop      Poster
	Config    settings.Config
}

// Poller owns the recurring retrieval. Its methods must be called on the loop.
type Poller struct {
	source    Source
	alarm     Alarm
	renderer  Renderer
	scheduler Scheduler
	loop      Poster
	now       func() time.Time

	interval         time.Duration
	alarmOnZeroPower bool

	lifecycle  Lifecycle
	timer      schedule.Token
	inFlight   bool
	generation uint64
	// lifecycleSeq numbers SetActive requests; only the newest is applied.
	lifecycleSeq uint64
	last         *View

	ctx      context.Context //nolint:containedctx // Outstanding calls outlive the method that starts them.
	cancel   context.CancelFunc
	requests sync.WaitGroup
}

// New creates an active poller whose timer is not started yet.
func New(opts Options) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		source:           opts.Source,
		alarm:            opts.Alarm,
		renderer:         opts.Renderer,
		scheduler:        opts.Scheduler,
		loop:             opts.Loop,
		now:              time.Now,
		interval:         opts.Config.PollInterval,
		alarmOnZeroPower: opts.Config.AlarmOnZeroPower,
		lifecycle:        LifecycleActive,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start schedules the poll timer and performs the initial retrieval.
// Network calls inherit ctx values and are aborted when ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.lifecycle = LifecycleActive
	p.restartTimer()
	p.Refresh(nil)
}

// Refresh retrieves the plants once.
func (p *Poller) Refresh(done Done) {
	if p.inFlight {
		finish(done, ErrBusy)

		return
	}

	p.dispatch(done, func(ctx context.Context) (plant.Snapshots, error) {
		return p.source.FetchPlants(ctx)
	})
}

// ForceRefresh asks the remote side to update now, then retrieves the plants
// within the same in-flight window.
func (p *Poller) ForceRefresh(done Done) {
	if p.inFlight {
		finish(done, ErrBusy)

		return
	}

	p.dispatch(done, func(ctx context.Context) (plant.Snapshots, error) {
		if err := p.source.TriggerUpdate(ctx); err != nil {
			return nil, fmt.Errorf("trigger update: %w", err)
		}

		return p.source.FetchPlants(ctx)
	})
}

// SetActive starts or stops monitoring on the remote side and, once it
// confirms, applies the new lifecycle locally.
func (p *Poller) SetActive(active bool, done Done) {
	p.lifecycleSeq++

	var (
		seq  = p.lifecycleSeq
		ctx  = p.ctx
		call = p.source.StopMonitoring
	)

	if active {
		call = p.source.StartMonitoring
	}

	p.goAsync(func() {
		err := call(ctx)

		p.post(func() {
			switch {
			case seq != p.lifecycleSeq:
				logger.DebugKV(ctx, "Dropping superseded monitoring response", "active", active)
				finish(done, ErrSuperseded)
			case err != nil:
				logger.WarnKV(ctx, "Failed to change monitoring state", "active", active, "error", err)
				finish(done, err)
			default:
				p.applyLifecycle(active)
				finish(done, nil)
			}
		})
	})
}

// ApplyConfig takes the new zero-power toggle and reschedules a running timer.
// A retrieval already in flight is not affected.
func (p *Poller) ApplyConfig(cfg settings.Config) {
	p.alarmOnZeroPower = cfg.AlarmOnZeroPower

	if cfg.PollInterval == p.interval {
		return
	}

	p.interval = cfg.PollInterval

	if p.timer != 0 {
		p.restartTimer()
		logger.InfoKV(p.ctx, "Poll interval changed", "interval", p.interval)
	}
}

// Lifecycle returns the current monitoring state.
func (p *Poller) Lifecycle() Lifecycle {
	return p.lifecycle
}

// InFlight reports whether a retrieval is outstanding.
func (p *Poller) InFlight() bool {
	return p.inFlight
}

// Interval returns the current poll period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Last returns the latest view, if any.
func (p *Poller) Last() (View, bool) {
	if p.last == nil {
		return View{}, false
	}

	return *p.last, true
}

// Halt stops monitoring locally without contacting the remote service.
// Pending SetActive requests are superseded and outstanding retrievals go
// stale; SetActive(true) resumes.
func (p *Poller) Halt() {
	p.lifecycleSeq++
	p.applyLifecycle(false)
}

// Close cancels the timer and every outstanding call. Late responses are dropped.
func (p *Poller) Close() {
	p.cancelTimer()
	p.generation++
	p.cancel()
}

// Wait blocks until every network goroutine has returned.
// Call it off the loop, after the loop is closed.
func (p *Poller) Wait() {
	p.requests.Wait()
}

func (p *Poller) dispatch(done Done, fetch func(ctx context.Context) (plant.Snapshots, error)) {
	p.inFlight = true

	var (
		generation = p.generation
		ctx        = p.ctx
	)

	p.goAsync(func() {
		snapshots, err := fetch(ctx)

		p.post(func() {
			p.complete(generation, snapshots, err, done)
		})
	})
}

func (p *Poller) complete(generation uint64, snapshots plant.Snapshots, err error, done Done) {
	p.inFlight = false

	if generation != p.generation {
		logger.DebugKV(p.ctx, "Dropping stale retrieval", "generation", generation, "current", p.generation)
		finish(done, ErrStale)

		return
	}

	if err != nil {
		logger.WarnKV(p.ctx, "Plant retrieval failed", "error", err)
		p.renderer.RetrievalFailed(p.ctx, err)
		finish(done, err)

		return
	}

	classification := plant.Classify(snapshots, p.alarmOnZeroPower)

	if p.lifecycle == LifecycleActive {
		p.alarm.Evaluate(p.ctx, domain.Condition{
			OfflinePresent:   classification.OfflinePresent,
			ZeroPowerPresent: classification.ZeroPowerPresent,
		}, classification.OfflineIDs())
	}

	view := View{
		Snapshots:      snapshots,
		Classification: classification,
		Messages:       plant.ErrorMessages(snapshots),
		Alarm:          p.alarm.Status(),
		Lifecycle:      p.lifecycle,
		RetrievedAt:    p.now(),
	}

	p.last = &view

	logger.DebugKV(p.ctx, "Plants retrieved",
		"online", classification.Aggregate.OnlineCount,
		"warning", classification.Aggregate.WarningCount,
		"offline", classification.Aggregate.OfflineCount,
		"total_power", classification.Aggregate.TotalPowerText(),
		"alarm", view.Alarm.State,
	)

	p.renderer.Render(p.ctx, view)
	finish(done, nil)
}

func (p *Poller) applyLifecycle(active bool) {
	if active {
		p.lifecycle = LifecycleActive
		p.restartTimer()
	} else {
		p.lifecycle = LifecycleStopped
		p.cancelTimer()
		p.generation++
		p.alarm.ForceSilent(p.ctx)
	}

	logger.InfoKV(p.ctx, "Monitoring state changed", "lifecycle", p.lifecycle)

	if p.last == nil {
		return
	}

	view := *p.last
	view.Lifecycle = p.lifecycle
	view.Alarm = p.alarm.Status()
	p.last = &view

	p.renderer.Render(p.ctx, view)
}

// tick runs on every timer period; it skips while a retrieval is outstanding.
func (p *Poller) tick() {
	if p.inFlight {
		logger.Debug(p.ctx, "Skipping poll tick, retrieval still in flight")

		return
	}

	p.Refresh(nil)
}

func (p *Poller) restartTimer() {
	p.cancelTimer()
	p.timer = p.scheduler.Repeat(p.interval, p.tick)
}

func (p *Poller) cancelTimer() {
	if p.timer == 0 {
		return
	}

	p.scheduler.Cancel(p.timer)
	p.timer = 0
}

func (p *Poller) goAsync(fn func()) {
	p.requests.Add(1)

	go func() {
		defer p.requests.Done()

		fn()
	}()
}

// post hands fn to the loop. Once the loop is closed the result is dropped.
func (p *Poller) post(fn func()) {
	p.loop.Post(fn)
}

func finish(done Done, err error) {
	if done != nil {
		done(err)
	}
}
