package settings

import (
	"errors"
	"fmt"
	"time"
)

// Persisted JSON keys.
const (
	KeyPollInterval     = "pollIntervalMs"
	KeyAlarmOnZeroPower = "alarmOnZeroPower"
	KeyBeepFrequency    = "beepFrequencyHz"
	KeyBeepDuration     = "beepDurationMs"
	KeyBeepInterval     = "beepIntervalMs"
)

// Defaults and bounds.
const (
	DefaultPollInterval     = 30 * time.Second
	DefaultAlarmOnZeroPower = true
	DefaultBeepFrequency    = 800.0
	DefaultBeepDuration     = 200 * time.Millisecond
	DefaultBeepInterval     = 3 * time.Second

	MinPollInterval  = 5 * time.Second
	MaxPollInterval  = 300 * time.Second
	MinBeepFrequency = 200.0
	MaxBeepFrequency = 2000.0
	MinBeepDuration  = 10 * time.Millisecond
	MaxBeepDuration  = 2 * time.Second
	MinBeepInterval  = 1 * time.Second
	MaxBeepInterval  = 10 * time.Second
)

// ErrOutOfRange is returned when a value violates its bounds.
var ErrOutOfRange = errors.New("value out of range")

// Config holds the tunable parameters of the console.
type Config struct {
	// PollInterval is the period of the recurring plant retrieval.
	PollInterval time.Duration
	// AlarmOnZeroPower enables the alarm for reachable plants producing nothing.
	AlarmOnZeroPower bool
	// BeepFrequency is the normal tone pitch in Hz.
	BeepFrequency float64
	// BeepDuration is the length of one tone burst.
	BeepDuration time.Duration
	// BeepInterval is the period between bursts of a repeating alarm.
	BeepInterval time.Duration
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		PollInterval:     DefaultPollInterval,
		AlarmOnZeroPower: DefaultAlarmOnZeroPower,
		BeepFrequency:    DefaultBeepFrequency,
		BeepDuration:     DefaultBeepDuration,
		BeepInterval:     DefaultBeepInterval,
	}
}

// Validate checks every field against its bounds.
func (c Config) Validate() error {
	var errs []error

	if c.PollInterval < MinPollInterval || c.PollInterval > MaxPollInterval {
		errs = append(errs, rangeError(KeyPollInterval, c.PollInterval, MinPollInterval, MaxPollInterval))
	}

	if c.BeepFrequency < MinBeepFrequency || c.BeepFrequency > MaxBeepFrequency {
		errs = append(errs, rangeError(KeyBeepFrequency, c.BeepFrequency, MinBeepFrequency, MaxBeepFrequency))
	}

	if c.BeepDuration < MinBeepDuration || c.BeepDuration > MaxBeepDuration {
		errs = append(errs, rangeError(KeyBeepDuration, c.BeepDuration, MinBeepDuration, MaxBeepDuration))
	}

	if c.BeepInterval < MinBeepInterval || c.BeepInterval > MaxBeepInterval {
		errs = append(errs, rangeError(KeyBeepInterval, c.BeepInterval, MinBeepInterval, MaxBeepInterval))
	}

	return errors.Join(errs...)
}

// Fields renders the config as the persisted key/value shape.
func (c Config) Fields() map[string]any {
	return map[string]any{
		KeyPollInterval:     float64(c.PollInterval.Milliseconds()),
		KeyAlarmOnZeroPower: c.AlarmOnZeroPower,
		KeyBeepFrequency:    c.BeepFrequency,
		KeyBeepDuration:     float64(c.BeepDuration.Milliseconds()),
		KeyBeepInterval:     float64(c.BeepInterval.Milliseconds()),
	}
}

func rangeError[T any](key string, got, minimum, maximum T) error {
	return fmt.Errorf("%s=%v not in [%v, %v]: %w", key, got, minimum, maximum, ErrOutOfRange)
}
