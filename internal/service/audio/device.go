package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Device kinds accepted by Open.
const (
	DeviceAuto    = "auto"
	DeviceCommand = "command"
	DeviceBell    = "bell"
	DeviceNone    = "none"
)

// bellCharacter makes a terminal ring its bell.
const bellCharacter = "\a"

// ErrUnavailable is returned when no device can produce sound.
var ErrUnavailable = errors.New("audio device unavailable")

// Device plays tones. Play may be called from several goroutines.
type Device interface {
	Play(ctx context.Context, tone Tone) error
}

// Suspendable is implemented by devices that start muted until a user
// interaction; Signaler.NotifyInteraction resumes them once per session.
// None of the built-in devices (command, bell) start muted, so for them the
// unlock is a no-op.
type Suspendable interface {
	Suspended() bool
	Resume(ctx context.Context) error
}

// Open returns the device for kind. Bell output goes to out.
//
//nolint:ireturn // Devices are interchangeable behind the interface.
func Open(kind string, out io.Writer) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case DeviceNone:
		return nil, fmt.Errorf("%w: disabled by configuration", ErrUnavailable)
	case DeviceBell:
		return newBell(out)
	case DeviceCommand:
		return NewCommandDevice()
	case DeviceAuto, "":
		device, err := NewCommandDevice()
		if err == nil {
			return device, nil
		}

		bell, bellErr := newBell(out)
		if bellErr != nil {
			return nil, errors.Join(err, bellErr)
		}

		return bell, nil
	default:
		return nil, fmt.Errorf("%w: unknown device %q", ErrUnavailable, kind)
	}
}

//nolint:ireturn // Keeps Open's branches uniform.
func newBell(out io.Writer) (Device, error) {
	if out == nil {
		return nil, fmt.Errorf("%w: no terminal for bell output", ErrUnavailable)
	}

	return &BellDevice{out: out}, nil
}

// BellDevice rings the terminal bell. It cannot vary pitch or length.
type BellDevice struct {
	out io.Writer
	mu  sync.Mutex
}

// Play writes one BEL character.
func (d *BellDevice) Play(_ context.Context, _ Tone) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := io.WriteString(d.out, bellCharacter); err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}

	return nil
}
