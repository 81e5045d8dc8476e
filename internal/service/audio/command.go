package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// ErrUnsupportedOS indicates there is no known tone tool for the current OS.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// CommandDevice plays tones through an OS tool:
// - Linux:   `beep -f <hz> -l <ms>`
// - Windows: PowerShell `[console]::beep(<hz>, <ms>)`
// - macOS:   `osascript -e beep` (fixed system sound)
type CommandDevice struct {
	name string
	args func(Tone) []string
}

// NewCommandDevice picks the tool for the running OS and checks it is installed.
func NewCommandDevice() (*CommandDevice, error) {
	device, err := commandFor(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	if _, err := exec.LookPath(device.name); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %w", ErrUnavailable, device.name, err)
	}

	return device, nil
}

func commandFor(goos string) (*CommandDevice, error) {
	osName := strings.ToLower(goos)

	switch {
	case strings.Contains(osName, "linux"):
		return &CommandDevice{
			name: "beep",
			args: func(t Tone) []string {
				return []string{"-f", hertz(t), "-l", millis(t)}
			},
		}, nil
	case strings.Contains(osName, "windows"):
		return &CommandDevice{
			name: "powershell.exe",
			args: func(t Tone) []string {
				return []string{
					"-NoProfile", "-NonInteractive", "-Command",
					"[console]::beep(" + hertz(t) + "," + millis(t) + ")",
				}
			},
		}, nil
	case strings.Contains(osName, "darwin"):
		return &CommandDevice{
			name: "osascript",
			args: func(Tone) []string { return []string{"-e", "beep"} },
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, goos, ErrUnsupportedOS)
	}
}

// Play runs the tool and waits for it to finish.
func (d *CommandDevice) Play(ctx context.Context, tone Tone) error {
	//nolint:gosec // Tool name is fixed per OS, arguments are numbers.
	if err := exec.CommandContext(ctx, d.name, d.args(tone)...).Run(); err != nil {
		return fmt.Errorf("run %s: %w", d.name, err)
	}

	return nil
}

func hertz(t Tone) string {
	return strconv.Itoa(int(t.Frequency))
}

func millis(t Tone) string {
	return strconv.FormatInt(t.Duration.Milliseconds(), 10)
}
