package audio

import (
	"context"
	"sync"
	"time"

	domain "github.com/oshokin/solar-monitor/internal/domain/alarm"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/schedule"
)

// Scheduler repeats callbacks on the caller's loop.
type Scheduler interface {
	Repeat(period time.Duration, fn func()) schedule.Token
	Cancel(token schedule.Token) bool
}

// Opener opens the output device.
type Opener func() (Device, error)

// Signaler emits single tones and repeating tone sequences.
// Its methods must be called from the scheduler's loop.
type Signaler struct {
	open      Opener
	scheduler Scheduler
	shape     Shape

	device    Device
	available bool
	unlocked  bool
	repeat    schedule.Token

	// ctx bounds tone playback; cancelled by Close.
	ctx     context.Context //nolint:containedctx // Playback outlives the calls that start it.
	cancel  context.CancelFunc
	playing sync.WaitGroup
}

// NewSignaler creates a signaler. Nothing is opened until Initialize.
func NewSignaler(open Opener, scheduler Scheduler, shape Shape) *Signaler {
	return &Signaler{
		open:      open,
		scheduler: scheduler,
		shape:     shape,
	}
}

// Initialize opens the device. On failure the signaler stays unavailable
// for the rest of its life.
func (s *Signaler) Initialize(ctx context.Context) bool {
	if s.available {
		return true
	}

	device, err := s.open()
	if err != nil {
		logger.WarnKV(ctx, "Audio output unavailable, alarms will be silent", "error", err)

		return false
	}

	s.device = device
	s.available = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	logger.DebugKV(ctx, "Audio output initialized", "device", describe(device))

	return true
}

// Available reports whether tones can be produced.
func (s *Signaler) Available() bool {
	return s.available
}

// SetShape changes the tone shape used from the next burst on.
func (s *Signaler) SetShape(shape Shape) {
	s.shape = shape
}

// EmitTone plays one burst without waiting for it.
func (s *Signaler) EmitTone(variant domain.Variant) {
	if !s.available {
		return
	}

	tone := s.shape.Tone(variant)
	device := s.device
	ctx := s.ctx

	s.playing.Add(1)

	go func() {
		defer s.playing.Done()

		if err := device.Play(ctx, tone); err != nil && ctx.Err() == nil {
			logger.WarnKV(ctx, "Failed to play tone", "frequency", tone.Frequency, "error", err)
		}
	}()
}

// StartRepeating stops any running sequence, emits a burst immediately
// and then one every shape interval.
func (s *Signaler) StartRepeating(variant domain.Variant) {
	if !s.available {
		return
	}

	s.Stop()
	s.EmitTone(variant)

	s.repeat = s.scheduler.Repeat(s.shape.Interval, func() {
		s.EmitTone(variant)
	})
}

// Stop cancels the running sequence. It is safe to call repeatedly.
func (s *Signaler) Stop() {
	if s.repeat == 0 {
		return
	}

	s.scheduler.Cancel(s.repeat)
	s.repeat = 0
}

// Repeating reports whether a sequence is running.
func (s *Signaler) Repeating() bool {
	return s.repeat != 0
}

// NotifyInteraction resumes a suspended device. Only the first call per
// signaler does anything.
func (s *Signaler) NotifyInteraction(ctx context.Context) {
	if !s.available || s.unlocked {
		return
	}

	s.unlocked = true

	suspendable, ok := s.device.(Suspendable)
	if !ok || !suspendable.Suspended() {
		return
	}

	if err := suspendable.Resume(ctx); err != nil {
		logger.WarnKV(ctx, "Failed to resume audio output", "error", err)

		return
	}

	logger.Debug(ctx, "Audio output resumed")
}

// Close stops the sequence, aborts playback and waits for it to end.
func (s *Signaler) Close() {
	s.Stop()

	if s.cancel != nil {
		s.cancel()
	}

	s.playing.Wait()
}

func describe(device Device) string {
	switch device.(type) {
	case *CommandDevice:
		return DeviceCommand
	case *BellDevice:
		return DeviceBell
	default:
		return "custom"
	}
}
